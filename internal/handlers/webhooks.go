package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/hexdecor/api/internal/platform/httpx"
	"github.com/hexdecor/api/internal/platform/observability"
	"github.com/hexdecor/api/internal/platform/requestctx"
	"github.com/hexdecor/api/internal/services"
)

// WebhookHandlers serves inbound provider callbacks.
type WebhookHandlers struct {
	payments services.PaymentService
	metrics  *observability.Metrics
}

type paymentWebhookPayload struct {
	PaymentID string `json:"paymentId"`
	// Status is informational only. The gateway is re-queried for the
	// authoritative state, so a forged or stale value here is harmless.
	Status string `json:"status"`
	Event  string `json:"event"`
}

// Payments handles POST /webhooks/payments. The response is always 200 so
// the gateway never retries into a storm; internal outcomes are logged and
// counted instead.
func (h *WebhookHandlers) Payments(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := requestctx.Logger(ctx).Sugar()

	ack := func(outcome string) {
		h.metrics.WebhookEvent(outcome)
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"received": true})
	}

	var payload paymentWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.Warnw("payment webhook with undecodable body", "error", err.Error())
		ack("bad_payload")
		return
	}

	paymentID := strings.TrimSpace(payload.PaymentID)
	if paymentID == "" {
		logger.Warnw("payment webhook without payment id", "event", payload.Event)
		ack("missing_payment_id")
		return
	}

	if err := h.payments.HandleWebhook(ctx, paymentID); err != nil {
		switch {
		case errors.Is(err, services.ErrPaymentNotFound):
			logger.Warnw("payment webhook for unknown payment", "payment_id", paymentID)
			ack("unknown_payment")
		default:
			logger.Errorw("payment webhook processing failed", "payment_id", paymentID, "error", err.Error())
			ack("error")
		}
		return
	}
	ack("applied")
}
