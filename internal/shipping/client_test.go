package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:  server.URL,
		APIToken: "test-token",
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client
}

func TestClientCreateCartItem(t *testing.T) {
	var gotAuth string
	var gotBody cartItemPayload
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/cart" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(cartItemResponse{ID: "shp_1", Status: "pending"})
	}))

	item, err := client.CreateCartItem(context.Background(), CartItemRequest{
		OrderID:     "ord_1",
		OrderNumber: "HD-2026-000007",
		ServiceCode: "express",
		WeightGrams: 1200,
	})
	if err != nil {
		t.Fatalf("CreateCartItem returned error: %v", err)
	}
	if item.ShipmentID != "shp_1" {
		t.Errorf("shipment id = %q, want shp_1", item.ShipmentID)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotBody.OrderNumber != "HD-2026-000007" {
		t.Errorf("order number = %q", gotBody.OrderNumber)
	}
}

func TestClientCreateCartItemMissingID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cartItemResponse{Status: "pending"})
	}))

	_, err := client.CreateCartItem(context.Background(), CartItemRequest{OrderID: "ord_1"})
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Step != "cart" {
		t.Errorf("step = %q, want cart", providerErr.Step)
	}
}

func TestClientGetShipmentDetails(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v2/orders/shp_1" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(shipmentDetailsResponse{
			ID:           "shp_1",
			TrackingCode: "AB123456789CD",
			ProtocolID:   "ME456",
			DeliveryMin:  3,
			DeliveryMax:  7,
		})
	}))

	details, err := client.GetShipmentDetails(context.Background(), "shp_1")
	if err != nil {
		t.Fatalf("GetShipmentDetails returned error: %v", err)
	}
	if details.TrackingCode != "AB123456789CD" {
		t.Errorf("tracking code = %q", details.TrackingCode)
	}
	if details.DeliveryMaxDays != 7 {
		t.Errorf("delivery max = %d, want 7", details.DeliveryMaxDays)
	}
}

func TestClientWrapsUpstreamFailure(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal token leak do not echo"}`, http.StatusBadGateway)
	}))

	err := client.Purchase(context.Background(), "shp_1")
	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if providerErr.Step != "purchase" {
		t.Errorf("step = %q, want purchase", providerErr.Step)
	}
}

func TestNewClientValidatesBaseURL(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Error("expected error for empty base url")
	}
	if _, err := NewClient(ClientConfig{BaseURL: "ftp://example.com"}); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}
