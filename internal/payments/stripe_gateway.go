package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
)

// GatewayLogger defines the logging contract for gateway operations.
type GatewayLogger func(ctx context.Context, event string, fields map[string]any)

type stripePaymentIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGatewayConfig configures the StripeGateway. Intents overrides the
// live API client in tests.
type StripeGatewayConfig struct {
	APIKey   string
	Backends *stripe.Backends
	Logger   GatewayLogger
	Clock    func() time.Time
	Intents  stripePaymentIntentAPI
}

// StripeGateway implements Gateway on Stripe Payment Intents.
type StripeGateway struct {
	intents stripePaymentIntentAPI
	clock   func() time.Time
	logger  GatewayLogger
}

// NewStripeGateway constructs a Stripe-backed Gateway.
func NewStripeGateway(cfg StripeGatewayConfig) (*StripeGateway, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" && cfg.Intents == nil {
		return nil, errors.New("stripe: api key is required")
	}

	intents := cfg.Intents
	if intents == nil {
		sc := client.New(apiKey, cfg.Backends)
		intents = sc.PaymentIntents
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &StripeGateway{
		intents: intents,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// CreatePayment creates a Payment Intent for the order total.
func (g *StripeGateway) CreatePayment(ctx context.Context, req CreatePaymentRequest) (PaymentDetails, error) {
	if g == nil {
		return PaymentDetails{}, errors.New("stripe: gateway is nil")
	}
	if req.Amount <= 0 {
		return PaymentDetails{}, fmt.Errorf("stripe: invalid payment amount %d", req.Amount)
	}

	currency := strings.ToLower(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "usd"
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.Amount),
		Currency: stripe.String(currency),
	}
	params.Context = ctx
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}
	if req.CustomerEmail != "" {
		params.ReceiptEmail = stripe.String(req.CustomerEmail)
	}

	params.Metadata = map[string]string{
		"orderId":     req.OrderID,
		"orderNumber": req.OrderNumber,
	}
	for k, v := range req.Metadata {
		params.Metadata[k] = v
	}

	intent, err := g.intents.New(params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: create payment intent: %w", err)
	}

	g.logger(ctx, "payments.stripe.intent.created", map[string]any{
		"paymentIntent": intent.ID,
		"orderId":       req.OrderID,
		"amount":        intent.Amount,
	})
	return g.details(intent), nil
}

// GetPaymentStatus fetches the current intent state from Stripe. This is the
// only read the reconciliation path trusts.
func (g *StripeGateway) GetPaymentStatus(ctx context.Context, paymentID string) (PaymentDetails, error) {
	if g == nil {
		return PaymentDetails{}, errors.New("stripe: gateway is nil")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return PaymentDetails{}, errors.New("stripe: payment id is required")
	}

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := g.intents.Get(paymentID, params)
	if err != nil {
		return PaymentDetails{}, fmt.Errorf("stripe: lookup payment intent: %w", err)
	}
	return g.details(intent), nil
}

func (g *StripeGateway) details(intent *stripe.PaymentIntent) PaymentDetails {
	if intent == nil {
		return PaymentDetails{}
	}

	artifacts := map[string]string{}
	if intent.ClientSecret != "" {
		artifacts["clientSecret"] = intent.ClientSecret
	}

	return PaymentDetails{
		PaymentID:    intent.ID,
		Status:       normalizeIntentStatus(intent.Status),
		StatusDetail: string(intent.Status),
		Amount:       intent.Amount,
		Currency:     strings.ToUpper(string(intent.Currency)),
		Artifacts:    artifacts,
		UpdatedAt:    g.clock(),
	}
}

// normalizeIntentStatus collapses the Stripe intent lifecycle onto the three
// pipeline states. Everything between creation and capture is pending.
func normalizeIntentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusApproved
	case stripe.PaymentIntentStatusCanceled:
		return StatusRejected
	default:
		return StatusPending
	}
}
