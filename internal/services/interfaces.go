package services

import (
	"context"
	"errors"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/notifications"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderInvalidState indicates an invalid status transition was attempted.
	ErrOrderInvalidState = errors.New("order: invalid status transition")
	// ErrOrderConflict indicates the creation transaction lost the conflict
	// retry budget or a duplicate write was attempted.
	ErrOrderConflict = errors.New("order: conflict")

	// ErrPaymentNotFound indicates no order owns the referenced payment id.
	ErrPaymentNotFound = errors.New("payment: not found")
	// ErrPaymentGateway indicates the payment gateway call failed.
	ErrPaymentGateway = errors.New("payment: gateway failure")

	// ErrShippingNotReady indicates the order is not in a state that admits
	// the requested shipping operation.
	ErrShippingNotReady = errors.New("shipping: order not ready")

	// ErrShippingRuleNotFound indicates the rule could not be located.
	ErrShippingRuleNotFound = errors.New("shipping rule: not found")
	// ErrQuoteUnavailable indicates no active rule covers the destination.
	ErrQuoteUnavailable = errors.New("shipping quote: no rule matches")
)

// CreateOrderItem is one requested line. Name and price are frozen from the
// catalog inside the creation transaction, never taken from the caller.
type CreateOrderItem struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand carries the createOrder request payload.
type CreateOrderCommand struct {
	Customer        domain.Customer
	ShippingAddress domain.Address
	Items           []CreateOrderItem
	PaymentMethod   string
	Currency        string
}

// OrderService owns order creation and the status state machine.
type OrderService interface {
	// CreateOrder runs the stock-safe creation transaction, initiates the
	// gateway payment and returns the pending order with payment artifacts.
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
	// Transition applies a manual lifecycle transition. Terminal states and
	// unknown edges are rejected with ErrOrderInvalidState.
	Transition(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error)
}

// PaymentService reconciles gateway payment state onto orders. Both channels
// and the manual path converge on the same idempotent apply.
type PaymentService interface {
	// ConfirmDirect is the direct channel: the storefront reports the
	// customer finished the gateway flow for the order.
	ConfirmDirect(ctx context.Context, orderID string) (domain.Order, error)
	// HandleWebhook is the asynchronous channel. The payload is only a
	// signal; the authoritative status is re-fetched from the gateway.
	HandleWebhook(ctx context.Context, paymentID string) error
	// Reconcile is the manual admin path for orders stuck out of sync.
	Reconcile(ctx context.Context, paymentID string) (domain.Order, error)
}

// ShippingService drives label provisioning and tracking resolution.
type ShippingService interface {
	// Provision walks the aggregator steps, resuming from the last completed
	// one, then attempts the bounded tracking poll.
	Provision(ctx context.Context, orderID string) (domain.Order, error)
	// ResolveTracking re-runs the bounded poll for shipments still on the
	// protocol-id fallback.
	ResolveTracking(ctx context.Context, orderID string) (domain.Order, error)
	// RequestPickup asks the carrier to collect the parcel and moves the
	// order to shipped.
	RequestPickup(ctx context.Context, orderID string) (domain.Order, error)
}

// QuoteRequest asks for a shipping price for a destination and weight.
type QuoteRequest struct {
	PostalCode  string
	WeightGrams int
}

// Quote is a priced shipping option.
type Quote struct {
	RuleID       string
	RuleName     string
	PriceCents   int64
	DeliveryDays int
}

// ShippingRuleService owns the static pricing configuration and the quote
// calculator that consumes it read-only.
type ShippingRuleService interface {
	ListRules(ctx context.Context, activeOnly bool) ([]domain.ShippingRule, error)
	GetRule(ctx context.Context, ruleID string) (domain.ShippingRule, error)
	UpsertRule(ctx context.Context, rule domain.ShippingRule) (domain.ShippingRule, error)
	DeleteRule(ctx context.Context, ruleID string) error
	QuoteShipping(ctx context.Context, req QuoteRequest) (Quote, error)
}

// InventoryService serves the admin product surface.
type InventoryService interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// NotificationDispatcher publishes customer notifications and background
// jobs. Failures are logged and swallowed: notification delivery is
// best-effort and never blocks a state change.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, message notifications.Message) (string, error)
	EnqueueResolveTracking(ctx context.Context, job notifications.ResolveTrackingJob) (string, error)
}
