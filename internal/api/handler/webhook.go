package handler

import (
	"context"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/saferide/ridepay/internal/service"
)

// WebhookHandler receives the payment gateway's push notifications. The raw
// body is handed to the service untouched; the signature covers the bytes as
// delivered.
type WebhookHandler struct {
	webhooks *service.WebhookService
}

func NewWebhookHandler(webhooks *service.WebhookService) *WebhookHandler {
	return &WebhookHandler{webhooks: webhooks}
}

// HandleTopup handles POST /v1/webhooks/topup.
func (h *WebhookHandler) HandleTopup(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "topup", h.webhooks.HandleTopup)
}

// HandlePayout handles POST /v1/webhooks/payout.
func (h *WebhookHandler) HandlePayout(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "payout", h.webhooks.HandlePayout)
}

func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request, kind string,
	process func(ctx context.Context, payload []byte, signature string) (*service.WebhookResponse, error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		zap.L().Error("read webhook body failed", zap.String("kind", kind), zap.Error(err))
		RespondError(w, r, http.StatusBadRequest, "webhook/unreadable-body", "Failed to read request body")
		return
	}

	signature := r.Header.Get("X-Webhook-Signature")
	resp, err := process(r.Context(), body, signature)
	if err != nil {
		zap.L().Warn("process webhook failed", zap.String("kind", kind), zap.Error(err))
		if status, problemType, msg, ok := mapServiceError(err); ok {
			RespondError(w, r, status, problemType, msg)
			return
		}
		RespondError(w, r, http.StatusBadRequest, "webhook/processing-failed", err.Error())
		return
	}
	RespondJSON(w, http.StatusOK, resp)
}
