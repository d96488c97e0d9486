package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/domain"
	"github.com/saferide/ridepay/internal/service"
)

type WalletHandler struct {
	wallets  *service.WalletService
	balances *service.BalanceCalculator
}

func NewWalletHandler(wallets *service.WalletService, balances *service.BalanceCalculator) *WalletHandler {
	return &WalletHandler{wallets: wallets, balances: balances}
}

type createWalletRequest struct {
	UserID string `json:"user_id"`
}

func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-body", "Invalid request body")
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-user-id", "Invalid user ID")
		return
	}

	wallet, err := h.wallets.CreateWallet(r.Context(), userID)
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("create wallet failed", zap.Error(err), zap.String("user_id", userID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/create-failed", "Failed to create wallet")
		return
	}
	RespondJSON(w, http.StatusCreated, wallet)
}

func (h *WalletHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return
	}

	avail, err := h.balances.Available(r.Context(), walletID)
	if err != nil {
		zap.L().Error("get balance failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/balance-read-failed", "Failed to get balance")
		return
	}
	pending, err := h.balances.Pending(r.Context(), walletID)
	if err != nil {
		zap.L().Error("get pending balance failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/balance-read-failed", "Failed to get balance")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"wallet_id": walletID,
		"available": avail,
		"pending":   pending,
		"currency":  domain.DefaultCurrency,
	})
}

func (h *WalletHandler) GetStatement(w http.ResponseWriter, r *http.Request) {
	walletID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, r, http.StatusBadRequest, "request/invalid-wallet-id", "Invalid wallet ID")
		return
	}

	entries, err := h.wallets.Statement(r.Context(), walletID)
	if err != nil {
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		zap.L().Error("get statement failed", zap.Error(err), zap.String("wallet_id", walletID.String()))
		RespondError(w, r, http.StatusInternalServerError, "wallet/statement-read-failed", "Failed to get statement")
		return
	}
	RespondJSON(w, http.StatusOK, map[string]any{
		"wallet_id": walletID,
		"entries":   entries,
	})
}
