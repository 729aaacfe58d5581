package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/platform/httpx"
	"github.com/hexdecor/api/internal/platform/observability"
	"github.com/hexdecor/api/internal/platform/requestctx"
	"github.com/hexdecor/api/internal/repositories"
	"github.com/hexdecor/api/internal/services"
)

// OrderHandlers serves the customer-facing order surface.
type OrderHandlers struct {
	orders   services.OrderService
	payments services.PaymentService
	metrics  *observability.Metrics
}

type createOrderRequest struct {
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		TaxID string `json:"taxId"`
	} `json:"customer"`
	ShippingAddress addressPayload `json:"shippingAddress"`
	Items           []struct {
		ProductID string `json:"productId"`
		Quantity  int    `json:"quantity"`
	} `json:"items"`
	PaymentMethod string `json:"paymentMethod"`
	Currency      string `json:"currency"`
}

type addressPayload struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

type orderItemPayload struct {
	ProductID string `json:"productId"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type orderResponse struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	Status      string `json:"status"`
	Customer    struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"customer"`
	ShippingAddress addressPayload     `json:"shippingAddress"`
	Items           []orderItemPayload `json:"items"`
	Total           int64              `json:"total"`
	Payment         struct {
		Method    string            `json:"method,omitempty"`
		PaymentID string            `json:"paymentId,omitempty"`
		Status    string            `json:"status,omitempty"`
		Artifacts map[string]string `json:"artifacts,omitempty"`
	} `json:"payment"`
	Shipping struct {
		TrackingCode      string     `json:"trackingCode,omitempty"`
		HasCarrierCode    bool       `json:"hasCarrierCode"`
		LabelURL          string     `json:"labelUrl,omitempty"`
		EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	} `json:"shipping"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	PaidAt      *time.Time `json:"paidAt,omitempty"`
	ShippedAt   *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
}

func newOrderResponse(order domain.Order) orderResponse {
	resp := orderResponse{
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		Total:       order.Total(),
		ShippingAddress: addressPayload{
			Street:     order.ShippingAddress.Street,
			Number:     order.ShippingAddress.Number,
			Complement: order.ShippingAddress.Complement,
			District:   order.ShippingAddress.District,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		PaidAt:      order.PaidAt,
		ShippedAt:   order.ShippedAt,
		DeliveredAt: order.DeliveredAt,
		CancelledAt: order.CancelledAt,
	}
	resp.Customer.Name = order.Customer.Name
	resp.Customer.Email = order.Customer.Email
	for _, item := range order.Items {
		resp.Items = append(resp.Items, orderItemPayload{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	resp.Payment.Method = order.Payment.Method
	resp.Payment.PaymentID = order.Payment.PaymentID
	resp.Payment.Status = string(order.Payment.Status)
	resp.Payment.Artifacts = order.Payment.Artifacts
	resp.Shipping.TrackingCode = order.Shipping.TrackingCode
	resp.Shipping.HasCarrierCode = order.Shipping.HasCarrierCode
	resp.Shipping.LabelURL = order.Shipping.LabelURL
	resp.Shipping.EstimatedDelivery = order.Shipping.EstimatedDelivery
	return resp
}

// Create handles POST /orders.
func (h *OrderHandlers) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.CreateOrderCommand{
		Customer: domain.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			TaxID: req.Customer.TaxID,
		},
		ShippingAddress: domain.Address{
			Street:     req.ShippingAddress.Street,
			Number:     req.ShippingAddress.Number,
			Complement: req.ShippingAddress.Complement,
			District:   req.ShippingAddress.District,
			City:       req.ShippingAddress.City,
			State:      req.ShippingAddress.State,
			PostalCode: req.ShippingAddress.PostalCode,
			Country:    req.ShippingAddress.Country,
		},
		PaymentMethod: req.PaymentMethod,
		Currency:      req.Currency,
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CreateOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.orders.CreateOrder(ctx, cmd)
	if err != nil {
		h.metrics.OrderCreated(createOutcome(err))
		writeServiceError(ctx, w, err)
		return
	}

	h.metrics.OrderCreated("created")

	// Card gateways may settle synchronously during creation. Run the
	// reconciler once so the response reflects the final state instead of
	// waiting for the webhook. The order is already persisted, so a failure
	// here is logged and the pending order returned; the webhook channel
	// converges it later.
	switch order.Payment.Status {
	case domain.PaymentStatusApproved, domain.PaymentStatusRejected:
		confirmed, err := h.payments.ConfirmDirect(ctx, order.ID)
		if err != nil {
			requestctx.Logger(ctx).Warn("direct payment confirmation failed",
				zap.String("orderId", order.ID),
				zap.Error(err))
		} else {
			order = confirmed
		}
	}

	httpx.WriteJSON(w, http.StatusCreated, newOrderResponse(order))
}

func createOutcome(err error) string {
	var stockErr *repositories.StockError
	switch {
	case errors.As(err, &stockErr):
		return string(stockErr.Code)
	case errors.Is(err, services.ErrOrderConflict):
		return "conflict"
	case errors.Is(err, services.ErrPaymentGateway):
		return "gateway_failure"
	case errors.Is(err, services.ErrOrderInvalidInput):
		return "invalid_input"
	default:
		return "error"
	}
}

// Get handles GET /orders/{orderID}.
func (h *OrderHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}

// ConfirmPayment handles the direct reconciliation channel: the storefront
// reports that the customer completed the gateway flow.
func (h *OrderHandlers) ConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	order, err := h.payments.ConfirmDirect(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newOrderResponse(order))
}
