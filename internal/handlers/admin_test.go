package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/services"
	"github.com/hexdecor/api/internal/shipping"
)

func TestProvisionShippingEndpoint(t *testing.T) {
	deps := RouterDeps{
		Shipping: &stubShippingService{
			provisionFn: func(orderID string) (domain.Order, error) {
				order := sampleOrder(domain.OrderStatusProcessing)
				order.Shipping = domain.ShippingInfo{
					ShipmentID:     "shp_1",
					Purchased:      true,
					LabelGenerated: true,
					LabelURL:       "https://labels.example.com/shp_1.pdf",
					TrackingCode:   "AB123456789CD",
					HasCarrierCode: true,
				}
				return order, nil
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:provision-shipping", nil)
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	shippingBody := body["shipping"].(map[string]any)
	if shippingBody["trackingCode"] != "AB123456789CD" || shippingBody["hasCarrierCode"] != true {
		t.Errorf("shipping = %v", shippingBody)
	}
}

func TestProvisionShippingProviderFailure(t *testing.T) {
	deps := RouterDeps{
		Shipping: &stubShippingService{
			provisionFn: func(string) (domain.Order, error) {
				return domain.Order{}, shipping.NewProviderError("purchase", errors.New("upstream secret detail"))
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:provision-shipping", nil)
	rec := serve(t, deps, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["incident_id"] == nil {
		t.Error("incident_id missing")
	}
	if msg := body["message"].(string); strings.Contains(msg, "secret") {
		t.Errorf("provider detail leaked: %q", msg)
	}
}

func TestResolveTrackingEndpoint(t *testing.T) {
	deps := RouterDeps{
		Shipping: &stubShippingService{
			resolveFn: func(orderID string) (domain.Order, error) {
				order := sampleOrder(domain.OrderStatusShipped)
				order.Shipping.TrackingCode = "AB123456789CD"
				order.Shipping.HasCarrierCode = true
				return order, nil
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:resolve-tracking", nil)
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestRequestPickupEndpoint(t *testing.T) {
	deps := RouterDeps{
		Shipping: &stubShippingService{
			pickupFn: func(orderID string) (domain.Order, error) {
				return sampleOrder(domain.OrderStatusShipped), nil
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:request-pickup", nil)
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["status"] != "shipped" {
		t.Errorf("status field = %v", body["status"])
	}
}

func TestTransitionEndpoint(t *testing.T) {
	deps := RouterDeps{
		Orders: &stubOrderService{
			transitionFn: func(orderID string, target domain.OrderStatus) (domain.Order, error) {
				if target != domain.OrderStatusDelivered {
					t.Errorf("target = %q", target)
				}
				return sampleOrder(domain.OrderStatusDelivered), nil
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:transition", strings.NewReader(`{"status": "delivered"}`))
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}

func TestTransitionEndpointInvalidEdge(t *testing.T) {
	deps := RouterDeps{
		Orders: &stubOrderService{
			transitionFn: func(string, domain.OrderStatus) (domain.Order, error) {
				return domain.Order{}, fmt.Errorf("%w: delivered -> paid", services.ErrOrderInvalidState)
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:transition", strings.NewReader(`{"status": "paid"}`))
	rec := serve(t, deps, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != "invalid_transition" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestTransitionEndpointUnknownStatus(t *testing.T) {
	deps := RouterDeps{Orders: &stubOrderService{}}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/orders/ord_1:transition", strings.NewReader(`{"status": "returned"}`))
	rec := serve(t, deps, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestReconcilePaymentEndpoint(t *testing.T) {
	deps := RouterDeps{
		Payments: &stubPaymentService{
			reconcileFn: func(paymentID string) (domain.Order, error) {
				if paymentID != "P123" {
					t.Errorf("paymentID = %q", paymentID)
				}
				return sampleOrder(domain.OrderStatusPaid), nil
			},
		},
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/payments/P123:reconcile", nil)
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestUpsertProductEndpoint(t *testing.T) {
	deps := RouterDeps{
		Inventory: &stubInventoryService{
			upsertFn: func(product domain.Product) (domain.Product, error) {
				if product.ID != "prod-1" || product.Stock != 30 {
					t.Errorf("product = %+v", product)
				}
				return product, nil
			},
		},
	}

	req := httptest.NewRequest(http.MethodPut, "/api/v1/admin/products/prod-1", strings.NewReader(`{"name": "Vase", "price": 4500, "stock": 30}`))
	rec := serve(t, deps, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
}
