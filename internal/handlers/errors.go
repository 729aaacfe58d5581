package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/hexdecor/api/internal/platform/httpx"
	"github.com/hexdecor/api/internal/platform/requestctx"
	"github.com/hexdecor/api/internal/repositories"
	"github.com/hexdecor/api/internal/services"
	"github.com/hexdecor/api/internal/shipping"
)

// writeServiceError maps service errors to the HTTP envelope. Provider
// failures become generic 502 responses carrying an incident id; the cause
// is only logged.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	var stockErr *repositories.StockError
	if errors.As(err, &stockErr) {
		switch stockErr.Code {
		case repositories.StockErrorProductNotFound:
			httpx.WriteError(ctx, w, httpx.NewError("product_not_found", stockErr.Error(), http.StatusNotFound).
				WithDetails(map[string]any{"product_id": stockErr.ProductID}))
		default:
			httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusConflict).
				WithDetails(map[string]any{
					"product_id": stockErr.ProductID,
					"requested":  stockErr.Requested,
					"available":  stockErr.Available,
				}))
		}
		return
	}

	var providerErr *shipping.ProviderError
	if errors.As(err, &providerErr) {
		writeIncident(ctx, w, "shipping_provider_failure", err)
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrPaymentNotFound),
		errors.Is(err, services.ErrShippingRuleNotFound),
		errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrQuoteUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("quote_unavailable", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInvalidState):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_transition", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("conflict", "order creation lost a concurrent update, retry", http.StatusConflict))
	case errors.Is(err, services.ErrShippingNotReady):
		httpx.WriteError(ctx, w, httpx.NewError("shipping_not_ready", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrPaymentGateway):
		writeIncident(ctx, w, "payment_gateway_failure", err)
	default:
		writeIncident(ctx, w, "internal_error", err)
	}
}

func writeIncident(ctx context.Context, w http.ResponseWriter, code string, err error) {
	envelope := httpx.NewIncidentError(code, http.StatusBadGateway)
	if code == "internal_error" {
		envelope.Status = http.StatusInternalServerError
	}
	requestctx.Logger(ctx).Sugar().Errorw("request failed",
		"code", code,
		"incident_id", envelope.IncidentID,
		"error", err.Error(),
	)
	httpx.WriteError(ctx, w, envelope)
}
