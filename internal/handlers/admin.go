package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/platform/httpx"
	"github.com/hexdecor/api/internal/services"
)

// AdminHandlers serves the back-office operations surface.
type AdminHandlers struct {
	orders    services.OrderService
	payments  services.PaymentService
	shipping  services.ShippingService
	inventory services.InventoryService
}

// ProvisionShipping handles POST /admin/orders/{orderID}:provision-shipping.
func (h *AdminHandlers) ProvisionShipping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.shipping.Provision(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}

// ResolveTracking handles POST /admin/orders/{orderID}:resolve-tracking.
func (h *AdminHandlers) ResolveTracking(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.shipping.ResolveTracking(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}

// RequestPickup handles POST /admin/orders/{orderID}:request-pickup.
func (h *AdminHandlers) RequestPickup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.shipping.RequestPickup(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}

type transitionRequest struct {
	Status string `json:"status"`
}

// Transition handles POST /admin/orders/{orderID}:transition.
func (h *AdminHandlers) Transition(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}
	target := domain.OrderStatus(strings.TrimSpace(strings.ToLower(req.Status)))
	switch target {
	case domain.OrderStatusPending, domain.OrderStatusPaid, domain.OrderStatusProcessing,
		domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCancelled:
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "unknown status "+req.Status, http.StatusBadRequest))
		return
	}

	order, err := h.orders.Transition(ctx, chi.URLParam(r, "orderID"), target)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}

// ReconcilePayment handles POST /admin/payments/{paymentID}:reconcile.
func (h *AdminHandlers) ReconcilePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.payments.Reconcile(ctx, chi.URLParam(r, "paymentID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}

type upsertProductRequest struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
	Stock int    `json:"stock"`
}

// UpsertProduct handles PUT /admin/products/{productID}.
func (h *AdminHandlers) UpsertProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req upsertProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	product, err := h.inventory.UpsertProduct(ctx, domain.Product{
		ID:    chi.URLParam(r, "productID"),
		Name:  req.Name,
		Price: req.Price,
		Stock: req.Stock,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"productId": product.ID,
		"name":      product.Name,
		"price":     product.Price,
		"stock":     product.Stock,
		"updatedAt": product.UpdatedAt,
	})
}
