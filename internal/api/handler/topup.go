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

type TopupHandler struct {
	topups *service.TopupService
}

func NewTopupHandler(topups *service.TopupService) *TopupHandler {
	return &TopupHandler{topups: topups}
}

type createTopupRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description"`
}

// CreateTopup handles POST /v1/wallets/{id}/topups. Returns 202: the money
// only lands once the gateway confirms payment.
func (h *TopupHandler) CreateTopup(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return
	}

	var req createTopupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	if !req.Amount.IsPositive() {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-amount", "Amount must be positive")
		return
	}

	resp, err := h.topups.CreateTopup(r.Context(), walletID, req.Amount, req.Description)
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("create topup failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "topup/create-failed", "Failed to create top-up")
		return
	}
	RespondJSON(w, http.StatusAccepted, resp)
}
