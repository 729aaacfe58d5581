package shipping

import (
	"context"
	"fmt"
	"time"
)

// CartItemRequest adds an order to the aggregator cart, the first step of
// label provisioning.
type CartItemRequest struct {
	OrderID       string
	OrderNumber   string
	ServiceCode   string
	WeightGrams   int
	DeclaredValue int64
	Destination   Destination
	Recipient     Recipient
}

// Destination is the delivery address forwarded to the aggregator.
type Destination struct {
	Street     string
	Number     string
	Complement string
	District   string
	City       string
	State      string
	PostalCode string
	Country    string
}

// Recipient identifies who receives the parcel.
type Recipient struct {
	Name  string
	Email string
	TaxID string
}

// CartItem is the aggregator's handle for a provisioned shipment.
type CartItem struct {
	ShipmentID string
	Status     string
}

// ShipmentDetails is the aggregator's view of a purchased shipment. The
// tracking code may lag the purchase by minutes while the carrier assigns
// one; ProtocolID is always present and serves as the fallback reference.
type ShipmentDetails struct {
	ShipmentID      string
	TrackingCode    string
	ProtocolID      string
	LabelURL        string
	DeliveryMinDays int
	DeliveryMaxDays int
}

// Aggregator is the label-provisioning contract. Calls are ordered:
// CreateCartItem, Purchase, GenerateLabel, GetPrintURL, then RequestPickup.
// GetShipmentDetails may be called at any point after purchase.
type Aggregator interface {
	CreateCartItem(ctx context.Context, req CartItemRequest) (CartItem, error)
	Purchase(ctx context.Context, shipmentID string) error
	GenerateLabel(ctx context.Context, shipmentID string) error
	GetPrintURL(ctx context.Context, shipmentID string) (string, error)
	RequestPickup(ctx context.Context, shipmentID string) error
	GetShipmentDetails(ctx context.Context, shipmentID string) (ShipmentDetails, error)
}

// ProviderError wraps an aggregator failure with the step that produced it.
// The cause is logged but never surfaced to API clients.
type ProviderError struct {
	Step  string
	Cause error
}

// Error implements the error interface.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("shipping provider failed at %s: %v", e.Step, e.Cause)
}

// Unwrap exposes the cause for errors.Is inspection.
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError wraps cause with the provisioning step name.
func NewProviderError(step string, cause error) *ProviderError {
	return &ProviderError{Step: step, Cause: cause}
}

// EstimatedDelivery converts the aggregator's max transit days to a concrete
// date from now.
func (d ShipmentDetails) EstimatedDelivery(now time.Time) *time.Time {
	if d.DeliveryMaxDays <= 0 {
		return nil
	}
	estimate := now.UTC().AddDate(0, 0, d.DeliveryMaxDays)
	return &estimate
}
