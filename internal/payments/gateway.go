package payments

import (
	"context"
	"time"
)

// Status is the normalised gateway payment state. Every provider-specific
// status collapses into one of these three before it reaches the order
// pipeline.
type Status string

const (
	// StatusPending indicates the gateway is still awaiting customer action.
	StatusPending Status = "pending"
	// StatusApproved indicates the gateway captured the payment.
	StatusApproved Status = "approved"
	// StatusRejected indicates the gateway declined or voided the payment.
	StatusRejected Status = "rejected"
)

// CreatePaymentRequest initiates a payment for an order.
type CreatePaymentRequest struct {
	OrderID        string
	OrderNumber    string
	Amount         int64
	Currency       string
	Method         string
	CustomerEmail  string
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentDetails is the normalised view of a gateway payment. Artifacts
// carries method-specific data the client needs to complete the payment,
// e.g. a client secret for card flows.
type PaymentDetails struct {
	PaymentID    string
	Status       Status
	StatusDetail string
	Amount       int64
	Currency     string
	Artifacts    map[string]string
	UpdatedAt    time.Time
}

// Gateway abstracts the payment provider. The reconciliation path treats it
// as the single source of truth for payment state: webhook payloads are only
// a signal to call GetPaymentStatus.
type Gateway interface {
	CreatePayment(ctx context.Context, req CreatePaymentRequest) (PaymentDetails, error)
	GetPaymentStatus(ctx context.Context, paymentID string) (PaymentDetails, error)
}
