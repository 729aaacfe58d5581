package repositories

import (
	"context"
	"time"

	domain "github.com/hexdecor/api/internal/domain"
)

// RepositoryError is the taxonomy contract implemented by persistence errors.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CreateOrderRequest carries a fully built pending order into the creation
// transaction. The order number is assigned inside the transaction.
type CreateOrderRequest struct {
	Order domain.Order
	Now   time.Time
}

// StatusUpdate applies a lifecycle transition to the order document. Only the
// status field, updatedAt and the transition timestamp are written.
type StatusUpdate struct {
	OrderID string
	Status  domain.OrderStatus
	Now     time.Time
}

// OrderRepository owns order records and their lifecycle. Order creation is
// the single atomic unit that also decrements stock: no order exists without
// a matching decrement and vice versa.
type OrderRepository interface {
	// CreatePending atomically validates and decrements stock for every item,
	// assigns the order number and persists the order with status pending.
	CreatePending(ctx context.Context, req CreateOrderRequest) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	// FindByPaymentID locates the order owning a gateway payment id. Payment
	// ids are unique across orders once set.
	FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error)
	// UpdateStatus merges a status transition into the order document.
	UpdateStatus(ctx context.Context, update StatusUpdate) error
	// SetPayment merges the payment.* field group without touching other
	// field groups written concurrently by the shipping path.
	SetPayment(ctx context.Context, orderID string, payment domain.PaymentInfo, now time.Time) error
	// SetShipping merges the shipping.* field group.
	SetShipping(ctx context.Context, orderID string, shipping domain.ShippingInfo, now time.Time) error
}

// InventoryRepository reads product records and serves the admin stock
// surface. Stock decrements happen only inside OrderRepository.CreatePending.
type InventoryRepository interface {
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	UpsertProduct(ctx context.Context, product domain.Product) (domain.Product, error)
}

// ShippingRuleRepository owns the static shipping pricing configuration.
type ShippingRuleRepository interface {
	List(ctx context.Context, activeOnly bool) ([]domain.ShippingRule, error)
	Get(ctx context.Context, ruleID string) (domain.ShippingRule, error)
	Upsert(ctx context.Context, rule domain.ShippingRule) (domain.ShippingRule, error)
	Delete(ctx context.Context, ruleID string) error
}
