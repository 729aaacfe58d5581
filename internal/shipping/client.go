package shipping

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultRequestTimeout = 10 * time.Second

// ClientLogger defines the logging contract for aggregator calls.
type ClientLogger func(ctx context.Context, event string, fields map[string]any)

// ClientConfig configures the REST aggregator client.
type ClientConfig struct {
	BaseURL    string
	APIToken   string
	HTTPClient *http.Client
	Logger     ClientLogger
	// Observe records the duration of each outbound call, keyed by operation.
	Observe func(operation string, elapsed time.Duration)
}

// Client talks to the shipping aggregator's REST API.
type Client struct {
	baseURL  *url.URL
	apiToken string
	http     *http.Client
	logger   ClientLogger
	observe  func(operation string, elapsed time.Duration)
}

// NewClient constructs an aggregator client.
func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	if raw == "" {
		return nil, errors.New("shipping: base url is required")
	}
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("shipping: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("shipping: unsupported base url scheme %q", base.Scheme)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeout}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	observe := cfg.Observe
	if observe == nil {
		observe = func(string, time.Duration) {}
	}

	return &Client{
		baseURL:  base,
		apiToken: strings.TrimSpace(cfg.APIToken),
		http:     httpClient,
		logger:   logger,
		observe:  observe,
	}, nil
}

type cartItemPayload struct {
	OrderID       string             `json:"order_id"`
	OrderNumber   string             `json:"order_number"`
	ServiceCode   string             `json:"service_code"`
	WeightGrams   int                `json:"weight_grams"`
	DeclaredValue int64              `json:"declared_value"`
	Destination   destinationPayload `json:"destination"`
	Recipient     recipientPayload   `json:"recipient"`
}

type destinationPayload struct {
	Street     string `json:"street"`
	Number     string `json:"number"`
	Complement string `json:"complement,omitempty"`
	District   string `json:"district"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type recipientPayload struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	TaxID string `json:"tax_id,omitempty"`
}

type cartItemResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type shipmentDetailsResponse struct {
	ID           string `json:"id"`
	TrackingCode string `json:"tracking"`
	ProtocolID   string `json:"protocol"`
	DeliveryMin  int    `json:"delivery_min"`
	DeliveryMax  int    `json:"delivery_max"`
}

type printResponse struct {
	URL string `json:"url"`
}

// CreateCartItem implements Aggregator.
func (c *Client) CreateCartItem(ctx context.Context, req CartItemRequest) (CartItem, error) {
	payload := cartItemPayload{
		OrderID:       req.OrderID,
		OrderNumber:   req.OrderNumber,
		ServiceCode:   req.ServiceCode,
		WeightGrams:   req.WeightGrams,
		DeclaredValue: req.DeclaredValue,
		Destination: destinationPayload{
			Street:     req.Destination.Street,
			Number:     req.Destination.Number,
			Complement: req.Destination.Complement,
			District:   req.Destination.District,
			City:       req.Destination.City,
			State:      req.Destination.State,
			PostalCode: req.Destination.PostalCode,
			Country:    req.Destination.Country,
		},
		Recipient: recipientPayload{
			Name:  req.Recipient.Name,
			Email: req.Recipient.Email,
			TaxID: req.Recipient.TaxID,
		},
	}

	var resp cartItemResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/cart", payload, &resp); err != nil {
		return CartItem{}, NewProviderError("cart", err)
	}
	if resp.ID == "" {
		return CartItem{}, NewProviderError("cart", errors.New("response missing shipment id"))
	}

	c.logger(ctx, "shipping.cart.created", map[string]any{
		"shipmentId": resp.ID,
		"orderId":    req.OrderID,
	})
	return CartItem{ShipmentID: resp.ID, Status: resp.Status}, nil
}

// Purchase implements Aggregator.
func (c *Client) Purchase(ctx context.Context, shipmentID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/v2/shipment/checkout", map[string]any{
		"orders": []string{shipmentID},
	}, nil); err != nil {
		return NewProviderError("purchase", err)
	}
	c.logger(ctx, "shipping.shipment.purchased", map[string]any{"shipmentId": shipmentID})
	return nil
}

// GenerateLabel implements Aggregator.
func (c *Client) GenerateLabel(ctx context.Context, shipmentID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/v2/shipment/generate", map[string]any{
		"orders": []string{shipmentID},
	}, nil); err != nil {
		return NewProviderError("label", err)
	}
	c.logger(ctx, "shipping.label.generated", map[string]any{"shipmentId": shipmentID})
	return nil
}

// GetPrintURL implements Aggregator.
func (c *Client) GetPrintURL(ctx context.Context, shipmentID string) (string, error) {
	var resp printResponse
	if err := c.do(ctx, http.MethodPost, "/api/v2/shipment/print", map[string]any{
		"orders": []string{shipmentID},
	}, &resp); err != nil {
		return "", NewProviderError("print", err)
	}
	if resp.URL == "" {
		return "", NewProviderError("print", errors.New("response missing label url"))
	}
	return resp.URL, nil
}

// RequestPickup implements Aggregator.
func (c *Client) RequestPickup(ctx context.Context, shipmentID string) error {
	if err := c.do(ctx, http.MethodPost, "/api/v2/shipment/pickup", map[string]any{
		"orders": []string{shipmentID},
	}, nil); err != nil {
		return NewProviderError("pickup", err)
	}
	c.logger(ctx, "shipping.pickup.requested", map[string]any{"shipmentId": shipmentID})
	return nil
}

// GetShipmentDetails implements Aggregator.
func (c *Client) GetShipmentDetails(ctx context.Context, shipmentID string) (ShipmentDetails, error) {
	var resp shipmentDetailsResponse
	path := "/api/v2/orders/" + url.PathEscape(shipmentID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return ShipmentDetails{}, NewProviderError("details", err)
	}
	return ShipmentDetails{
		ShipmentID:      resp.ID,
		TrackingCode:    resp.TrackingCode,
		ProtocolID:      resp.ProtocolID,
		DeliveryMinDays: resp.DeliveryMin,
		DeliveryMaxDays: resp.DeliveryMax,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if c == nil || c.http == nil {
		return errors.New("shipping: client not initialised")
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	endpoint := c.baseURL.JoinPath(path).String()
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	c.observe(method+" "+path, time.Since(start))
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain for connection reuse. The body is never echoed to clients.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, path, err)
	}
	return nil
}
