package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/models"
	"github.com/saferide/ridepay/internal/service"
)

// RideHandler drives the fare lifecycle of a booking over HTTP.
type RideHandler struct {
	rides *service.RideFundCoordinator
}

func NewRideHandler(rides *service.RideFundCoordinator) *RideHandler {
	return &RideHandler{rides: rides}
}

type reserveFareRequest struct {
	RiderWalletID string          `json:"rider_wallet_id"`
	Estimate      decimal.Decimal `json:"estimate"`
}

func (h *RideHandler) ReserveFare(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking ID")
		return
	}

	var req reserveFareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	riderWalletID, err := uuid.Parse(req.RiderWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid rider wallet ID")
		return
	}

	hold, err := h.rides.ReserveFare(r.Context(), bookingID, riderWalletID, req.Estimate)
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("reserve fare failed", zap.Error(err), zap.String("booking_id", bookingID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ride/reserve-failed", "Failed to reserve fare")
		return
	}
	RespondJSON(w, http.StatusCreated, hold)
}

type settleFareRequest struct {
	DriverWalletID string          `json:"driver_wallet_id"`
	Subtotal       decimal.Decimal `json:"subtotal"`
}

func (h *RideHandler) SettleFare(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking ID")
		return
	}

	var req settleFareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	driverWalletID, err := uuid.Parse(req.DriverWalletID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid driver wallet ID")
		return
	}

	legs, err := h.rides.SettleFare(r.Context(), bookingID, driverWalletID, models.FareBreakdown{
		Subtotal: req.Subtotal,
		Currency: domain.DefaultCurrency,
	})
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("settle fare failed", zap.Error(err), zap.String("booking_id", bookingID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ride/settle-failed", "Failed to settle fare")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"booking_id": bookingID, "legs": legs})
}

func (h *RideHandler) CancelRide(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking ID")
		return
	}

	release, feeLegs, err := h.rides.CancelRide(r.Context(), bookingID)
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("cancel ride failed", zap.Error(err), zap.String("booking_id", bookingID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ride/cancel-failed", "Failed to cancel ride")
		return
	}

	resp := map[string]any{"booking_id": bookingID}
	if release != nil {
		resp["released"] = release
	}
	if feeLegs != nil {
		resp["fee_legs"] = feeLegs
	}
	RespondJSON(w, http.StatusOK, resp)
}

func (h *RideHandler) FundsState(w http.ResponseWriter, r *http.Request) {
	bookingID, err := uuid.Parse(chi.URLParam(r, "bookingID"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-booking-id", "Invalid booking ID")
		return
	}

	state, err := h.rides.State(r.Context(), bookingID)
	if err != nil {
		zap.L().Error("funds state failed", zap.Error(err), zap.String("booking_id", bookingID.String()))
		RespondError(w, r, http.StatusInternalServerError, "ride/state-failed", "Failed to read funds state")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{"booking_id": bookingID, "state": state})
}
