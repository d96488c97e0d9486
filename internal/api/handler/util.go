package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/saferide/ridepay/internal/api/problem"
	"github.com/saferide/ridepay/internal/gateway"
	"github.com/saferide/ridepay/internal/models"
)

// RespondJSON writes a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// RespondError writes an error response.
func RespondError(w http.ResponseWriter, r *http.Request, status int, problemType, message string) {
	if problemType != "" && problemType != "about:blank" && !strings.HasPrefix(problemType, "http") {
		problemType = problem.Type(problemType)
	}
	problem.Write(w, r, status, problemType, http.StatusText(status), message)
}

// mapServiceError translates known domain errors into HTTP responses.
func mapServiceError(err error) (status int, problemType, message string, ok bool) {
	switch {
	case errors.Is(err, models.ErrWalletNotFound):
		return http.StatusNotFound, "wallet/not-found", "wallet not found", true
	case errors.Is(err, models.ErrEntryNotFound), errors.Is(err, models.ErrHoldNotFound):
		return http.StatusNotFound, "ledger/not-found", "no ledger entries for reference", true
	case errors.Is(err, models.ErrWalletInactive):
		return http.StatusConflict, "wallet/inactive", "wallet is not active", true
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusUnprocessableEntity, "wallet/insufficient-funds", "insufficient funds", true
	case errors.Is(err, models.ErrHoldAlreadyResolved):
		return http.StatusConflict, "ledger/hold-resolved", "hold already resolved", true
	case errors.Is(err, models.ErrPayloadMismatch):
		return http.StatusConflict, "webhook/payload-mismatch", "payload does not match recorded entries", true
	case errors.Is(err, models.ErrInvalidSignature):
		return http.StatusUnauthorized, "webhook/invalid-signature", "invalid signature", true
	case errors.Is(err, gateway.ErrRejected):
		return http.StatusBadGateway, "gateway/rejected", "payment gateway rejected the request", true
	case errors.Is(err, gateway.ErrUnavailable):
		return http.StatusBadGateway, "gateway/unavailable", "payment gateway unavailable", true
	}
	return mapDBError(err)
}

func mapDBError(err error) (status int, problemType, message string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return 0, "", "", false
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		return http.StatusConflict, "db/unique-violation", "resource already exists", true
	case "23503": // foreign_key_violation
		return http.StatusBadRequest, "db/foreign-key-violation", "invalid reference", true
	case "23514": // check_violation
		return http.StatusBadRequest, "db/check-violation", "request violates data constraints", true
	case "23502": // not_null_violation
		return http.StatusBadRequest, "db/not-null-violation", "missing required field", true
	default:
		return 0, "", "", false
	}
}
