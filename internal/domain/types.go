package domain

import "time"

// OrderStatus enumerates valid lifecycle states for orders.
type OrderStatus string

const (
	// OrderStatusPending indicates the order is created and awaits payment confirmation.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusPaid indicates the payment gateway reported the payment as approved.
	OrderStatusPaid OrderStatus = "paid"
	// OrderStatusProcessing indicates a shipping label has been created for the order.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped indicates carrier pickup has been requested for the order.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered indicates delivery was confirmed. Terminal.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCancelled indicates the order was rejected or cancelled. Terminal.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// PaymentStatus enumerates the normalised gateway payment states.
type PaymentStatus string

const (
	// PaymentStatusPending indicates the gateway is still awaiting customer action.
	PaymentStatusPending PaymentStatus = "pending"
	// PaymentStatusApproved indicates the gateway captured the payment.
	PaymentStatusApproved PaymentStatus = "approved"
	// PaymentStatusRejected indicates the gateway declined the payment.
	PaymentStatusRejected PaymentStatus = "rejected"
)

// Customer captures the purchaser identity snapshotted onto the order.
type Customer struct {
	Name  string
	Email string
	TaxID string
}

// Address is the shipping destination snapshotted onto the order.
type Address struct {
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	PostalCode string
	Country    string
}

// OrderItem is a line item with the unit price frozen at order time.
// Prices are never re-read from the catalog after creation.
type OrderItem struct {
	ProductID string
	Name      string
	Quantity  int
	UnitPrice int64
}

// PaymentInfo groups the payment.* field group on the order document.
// It is written only by the payment reconciliation path.
type PaymentInfo struct {
	Method       string
	PaymentID    string
	Status       PaymentStatus
	StatusDetail string
	// Artifacts carries method-specific data returned by the gateway,
	// e.g. a client secret or a voucher URL.
	Artifacts map[string]string
}

// ShippingInfo groups the shipping.* field group on the order document.
// It is written only by the shipping provisioner. Progress through the
// provisioning steps is re-derived from these fields on every invocation.
type ShippingInfo struct {
	ShipmentID     string
	Purchased      bool
	LabelGenerated bool
	LabelURL       string
	ProtocolID     string
	TrackingCode   string
	// HasCarrierCode is true only when TrackingCode is the authoritative
	// carrier-assigned code rather than the aggregator protocol id.
	HasCarrierCode    bool
	PickupRequested   bool
	EstimatedDelivery *time.Time
}

// Order is the aggregate root of the fulfillment pipeline.
type Order struct {
	ID              string
	OrderNumber     string
	Customer        Customer
	ShippingAddress Address
	Items           []OrderItem
	Status          OrderStatus
	Payment         PaymentInfo
	Shipping        ShippingInfo
	CreatedAt       time.Time
	UpdatedAt       time.Time
	PaidAt          *time.Time
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CancelledAt     *time.Time
}

// Total returns the order total in the smallest currency unit.
func (o Order) Total() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.UnitPrice * int64(item.Quantity)
	}
	return total
}

// IsTerminal reports whether the status admits no further transitions.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Product is an inventory record. Stock is mutated only inside the
// order-creation transaction and by the admin stock endpoints.
type Product struct {
	ID        string
	Name      string
	Price     int64
	Stock     int
	UpdatedAt time.Time
}

// ShippingRule is a static pricing configuration row consumed read-only
// by the shipping quote calculator.
type ShippingRule struct {
	ID             string
	Name           string
	PostalStart    string
	PostalEnd      string
	MaxWeightGrams int
	PriceCents     int64
	DeliveryDays   int
	Active         bool
	UpdatedAt      time.Time
}
