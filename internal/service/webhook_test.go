package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
)

const testHMACKey = "test-webhook-key-0123456789abcdef"

func newWebhookService(env *testEnv) *WebhookService {
	return NewWebhookService(env.topups, env.payouts, testHMACKey, nil)
}

func signedTopupPayload(t *testing.T, orderCode string, amount int64, status string) (payload []byte, signature string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"orderCode": orderCode,
		"amount":    amount,
		"status":    status,
	})
	require.NoError(t, err)
	return payload, gateway.SignPayload([]byte(testHMACKey), payload)
}

func signedPayoutPayload(t *testing.T, referenceID string, amount int64, status, reason string) (payload []byte, signature string) {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"referenceId": referenceID,
		"amount":      amount,
		"status":      status,
		"reason":      reason,
	})
	require.NoError(t, err)
	return payload, gateway.SignPayload([]byte(testHMACKey), payload)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)
	svc := newWebhookService(env)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	payload, _ := signedTopupPayload(t, resp.OrderCode, 500000, gateway.StatusPaid)
	_, err = svc.HandleTopup(ctx, payload, "0000deadbeef")
	require.ErrorIs(t, err, models.ErrInvalidSignature)

	// Nothing settled.
	requireAmount(t, 0, env.available(t, rider.ID))
}

func TestWebhookRejectsTamperedPayload(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)
	svc := newWebhookService(env)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	payload, signature := signedTopupPayload(t, resp.OrderCode, 500000, gateway.StatusPaid)
	tampered := []byte(string(payload[:len(payload)-1]) + " ")
	_, err = svc.HandleTopup(ctx, tampered, signature)
	require.ErrorIs(t, err, models.ErrInvalidSignature)
}

func TestWebhookTopupSettles(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)
	svc := newWebhookService(env)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	payload, signature := signedTopupPayload(t, resp.OrderCode, 500000, gateway.StatusPaid)
	out, err := svc.HandleTopup(ctx, payload, signature)
	require.NoError(t, err)
	require.Equal(t, "processed", out.Message)

	requireAmount(t, 500000, env.available(t, rider.ID))
}

func TestWebhookDuplicateDeliveryAcknowledged(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	rider := env.newWallet(t)
	svc := newWebhookService(env)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "top-up")
	require.NoError(t, err)

	payload, signature := signedTopupPayload(t, resp.OrderCode, 500000, gateway.StatusPaid)
	_, err = svc.HandleTopup(ctx, payload, signature)
	require.NoError(t, err)

	// Byte-identical redelivery: acknowledged, not re-applied.
	out, err := svc.HandleTopup(ctx, payload, signature)
	require.NoError(t, err)
	require.Equal(t, "already processed", out.Message)

	requireAmount(t, 500000, env.available(t, rider.ID))
}

func TestWebhookPayoutFailureRefunds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	driver := env.newWallet(t)
	svc := newWebhookService(env)
	env.fundWallet(t, driver.ID, domain.VND(300000))

	resp, err := env.payouts.RequestPayout(ctx, driver.ID, domain.VND(200000), testDestination, "earnings")
	require.NoError(t, err)

	payload, signature := signedPayoutPayload(t, resp.ReferenceID, 200000, gateway.StatusFailed, "account closed")
	_, err = svc.HandlePayout(ctx, payload, signature)
	require.NoError(t, err)

	requireAmount(t, 300000, env.available(t, driver.ID))
}

// Full cycle: fund 500k, hold 100k for a ride, settle with an 80/20 split,
// then a second ride's 50k hold is cancelled and released. The book must
// balance at every step.
func TestFundFlowEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	svc := newWebhookService(env)
	validator := NewLedgerValidator(env.store, domain.DefaultTolerance)

	rider := env.newWallet(t)
	driver := env.newWallet(t)

	resp, err := env.topups.CreateTopup(ctx, rider.ID, domain.VND(500000), "initial top-up")
	require.NoError(t, err)
	payload, signature := signedTopupPayload(t, resp.OrderCode, 500000, gateway.StatusPaid)
	_, err = svc.HandleTopup(ctx, payload, signature)
	require.NoError(t, err)
	requireAmount(t, 500000, env.available(t, rider.ID))
	require.NoError(t, validator.Validate(ctx))

	rideA := uuid.New()
	_, err = env.wallets.Hold(ctx, rider.ID, domain.VND(100000), rideA, "ride A")
	require.NoError(t, err)
	requireAmount(t, 400000, env.available(t, rider.ID))
	requireAmount(t, 100000, env.pending(t, rider.ID))
	require.NoError(t, validator.Validate(ctx))

	_, err = env.wallets.CaptureHold(ctx, rideA, driver.ID, domain.VND(80000), domain.VND(20000), "ride A fare")
	require.NoError(t, err)
	requireAmount(t, 400000, env.available(t, rider.ID))
	requireAmount(t, 0, env.pending(t, rider.ID))
	requireAmount(t, 80000, env.available(t, driver.ID))
	require.NoError(t, validator.Validate(ctx))
	require.NoError(t, validator.ValidateInternal(ctx))

	rideB := uuid.New()
	_, err = env.wallets.Hold(ctx, rider.ID, domain.VND(50000), rideB, "ride B")
	require.NoError(t, err)
	requireAmount(t, 350000, env.available(t, rider.ID))

	_, err = env.wallets.ReleaseHold(ctx, rideB, "rider cancelled")
	require.NoError(t, err)
	requireAmount(t, 400000, env.available(t, rider.ID))
	requireAmount(t, 0, env.pending(t, rider.ID))
	require.NoError(t, validator.Validate(ctx))

	// Driver cashes out.
	payoutResp, err := env.payouts.RequestPayout(ctx, driver.ID, domain.VND(80000), testDestination, "earnings")
	require.NoError(t, err)
	payload, signature = signedPayoutPayload(t, payoutResp.ReferenceID, 80000, gateway.StatusSuccess, "")
	_, err = svc.HandlePayout(ctx, payload, signature)
	require.NoError(t, err)
	requireAmount(t, 0, env.available(t, driver.ID))
	require.NoError(t, validator.Validate(ctx))
}
