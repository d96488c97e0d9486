package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/service"
)

type PayoutHandler struct {
	payouts *service.PayoutService
}

func NewPayoutHandler(payouts *service.PayoutService) *PayoutHandler {
	return &PayoutHandler{payouts: payouts}
}

type requestPayoutRequest struct {
	Amount      decimal.Decimal         `json:"amount"`
	Destination service.BankDestination `json:"destination"`
	Description string                  `json:"description"`
}

// RequestPayout handles POST /v1/wallets/{id}/payouts. Returns 202: the
// debit is recorded, but the bank transfer settles asynchronously.
func (h *PayoutHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return
	}

	var req requestPayoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be positive")
		return
	}
	if err := req.Destination.Validate(); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-destination", err.Error())
		return
	}

	resp, err := h.payouts.RequestPayout(r.Context(), walletID, req.Amount, req.Destination, req.Description)
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("request payout failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "payout/request-failed", "Failed to request payout")
		return
	}
	RespondJSON(w, http.StatusAccepted, resp)
}
