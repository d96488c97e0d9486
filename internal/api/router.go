package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/api/handler"
	"github.com/saferide/ridepay/internal/api/middleware"
	"github.com/saferide/ridepay/internal/service"
)

// Router wires the assembled services into the HTTP surface.
type Router struct {
	DB                 *pgxpool.Pool
	Redis              redis.Cmdable
	Wallets            *service.WalletService
	Balances           *service.BalanceCalculator
	Topups             *service.TopupService
	Payouts            *service.PayoutService
	Webhooks           *service.WebhookService
	Rides              *service.RideFundCoordinator
	Logger             *zap.Logger
	PublicRateLimitRPS int
}

func (api *Router) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceMiddleware)
	r.Use(middleware.LoggingMiddleware(api.Logger))
	r.Use(middleware.RecoverMiddleware(api.Logger))
	r.Use(middleware.MetricsMiddleware)

	walletHandler := handler.NewWalletHandler(api.Wallets, api.Balances)
	topupHandler := handler.NewTopupHandler(api.Topups)
	payoutHandler := handler.NewPayoutHandler(api.Payouts)
	webhookHandler := handler.NewWebhookHandler(api.Webhooks)
	rideHandler := handler.NewRideHandler(api.Rides)
	healthHandler := handler.NewHealthHandler(api.DB, api.Redis)

	r.Get("/healthz", healthHandler.Live)
	r.Get("/readyz", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	// Gateway callbacks authenticate by HMAC signature, not by session.
	r.Post("/v1/webhooks/topup", webhookHandler.HandleTopup)
	r.Post("/v1/webhooks/payout", webhookHandler.HandlePayout)

	r.Group(func(r chi.Router) {
		r.Use(middleware.PublicRateLimiter(api.PublicRateLimitRPS))

		r.Post("/v1/wallets", walletHandler.CreateWallet)
		r.Get("/v1/wallets/{id}/balance", walletHandler.GetBalance)
		r.Get("/v1/wallets/{id}/statement", walletHandler.GetStatement)
		r.Post("/v1/wallets/{id}/topups", topupHandler.CreateTopup)
		r.Post("/v1/wallets/{id}/payouts", payoutHandler.RequestPayout)

		r.Post("/v1/rides/{bookingID}/reserve", rideHandler.ReserveFare)
		r.Post("/v1/rides/{bookingID}/settle", rideHandler.SettleFare)
		r.Post("/v1/rides/{bookingID}/cancel", rideHandler.CancelRide)
		r.Get("/v1/rides/{bookingID}/funds", rideHandler.FundsState)
	})

	return r
}
