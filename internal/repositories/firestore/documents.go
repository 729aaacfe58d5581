package firestore

import (
	"time"

	domain "github.com/hexdecor/api/internal/domain"
)

// Document structs mirror the Firestore field layout. Field names are stable
// wire contracts: the webhook query and the merge updates address them by
// path, so renames here require renaming every firestore.Update path too.

type orderDocument struct {
	OrderNumber     string             `firestore:"orderNumber"`
	Customer        customerDocument   `firestore:"customer"`
	ShippingAddress addressDocument    `firestore:"shippingAddress"`
	Items           []orderItemEntry   `firestore:"items"`
	Status          string             `firestore:"status"`
	Payment         paymentDocument    `firestore:"payment"`
	Shipping        shippingDocument   `firestore:"shipping"`
	CreatedAt       time.Time          `firestore:"createdAt"`
	UpdatedAt       time.Time          `firestore:"updatedAt"`
	PaidAt          *time.Time         `firestore:"paidAt,omitempty"`
	ShippedAt       *time.Time         `firestore:"shippedAt,omitempty"`
	DeliveredAt     *time.Time         `firestore:"deliveredAt,omitempty"`
	CancelledAt     *time.Time         `firestore:"cancelledAt,omitempty"`
}

type customerDocument struct {
	Name  string `firestore:"name"`
	Email string `firestore:"email"`
	TaxID string `firestore:"taxId,omitempty"`
}

type addressDocument struct {
	Street     string `firestore:"street"`
	Number     string `firestore:"number"`
	Complement string `firestore:"complement,omitempty"`
	District   string `firestore:"district"`
	City       string `firestore:"city"`
	State      string `firestore:"state"`
	PostalCode string `firestore:"postalCode"`
	Country    string `firestore:"country"`
}

type orderItemEntry struct {
	ProductID string `firestore:"productId"`
	Name      string `firestore:"name"`
	Quantity  int    `firestore:"quantity"`
	UnitPrice int64  `firestore:"unitPrice"`
}

type paymentDocument struct {
	Method       string            `firestore:"method,omitempty"`
	PaymentID    string            `firestore:"paymentId,omitempty"`
	Status       string            `firestore:"status,omitempty"`
	StatusDetail string            `firestore:"statusDetail,omitempty"`
	Artifacts    map[string]string `firestore:"artifacts,omitempty"`
}

type shippingDocument struct {
	ShipmentID        string     `firestore:"shipmentId,omitempty"`
	Purchased         bool       `firestore:"purchased"`
	LabelGenerated    bool       `firestore:"labelGenerated"`
	LabelURL          string     `firestore:"labelUrl,omitempty"`
	ProtocolID        string     `firestore:"protocolId,omitempty"`
	TrackingCode      string     `firestore:"trackingCode,omitempty"`
	HasCarrierCode    bool       `firestore:"hasCarrierCode"`
	PickupRequested   bool       `firestore:"pickupRequested"`
	EstimatedDelivery *time.Time `firestore:"estimatedDelivery,omitempty"`
}

type productDocument struct {
	Name      string    `firestore:"name"`
	Price     int64     `firestore:"price"`
	Stock     int       `firestore:"stock"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type shippingRuleDocument struct {
	Name           string    `firestore:"name"`
	PostalStart    string    `firestore:"postalStart"`
	PostalEnd      string    `firestore:"postalEnd"`
	MaxWeightGrams int       `firestore:"maxWeightGrams"`
	PriceCents     int64     `firestore:"priceCents"`
	DeliveryDays   int       `firestore:"deliveryDays"`
	Active         bool      `firestore:"active"`
	UpdatedAt      time.Time `firestore:"updatedAt"`
}

func newOrderDocument(order domain.Order) orderDocument {
	items := make([]orderItemEntry, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemEntry{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return orderDocument{
		OrderNumber: order.OrderNumber,
		Customer: customerDocument{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			TaxID: order.Customer.TaxID,
		},
		ShippingAddress: addressDocument{
			Street:     order.ShippingAddress.Street,
			Number:     order.ShippingAddress.Number,
			Complement: order.ShippingAddress.Complement,
			District:   order.ShippingAddress.District,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Items:       items,
		Status:      string(order.Status),
		Payment:     newPaymentDocument(order.Payment),
		Shipping:    newShippingDocument(order.Shipping),
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		PaidAt:      order.PaidAt,
		ShippedAt:   order.ShippedAt,
		DeliveredAt: order.DeliveredAt,
		CancelledAt: order.CancelledAt,
	}
}

func newPaymentDocument(payment domain.PaymentInfo) paymentDocument {
	return paymentDocument{
		Method:       payment.Method,
		PaymentID:    payment.PaymentID,
		Status:       string(payment.Status),
		StatusDetail: payment.StatusDetail,
		Artifacts:    payment.Artifacts,
	}
}

func newShippingDocument(shipping domain.ShippingInfo) shippingDocument {
	return shippingDocument{
		ShipmentID:        shipping.ShipmentID,
		Purchased:         shipping.Purchased,
		LabelGenerated:    shipping.LabelGenerated,
		LabelURL:          shipping.LabelURL,
		ProtocolID:        shipping.ProtocolID,
		TrackingCode:      shipping.TrackingCode,
		HasCarrierCode:    shipping.HasCarrierCode,
		PickupRequested:   shipping.PickupRequested,
		EstimatedDelivery: shipping.EstimatedDelivery,
	}
}

func (d orderDocument) toDomain(id string) domain.Order {
	items := make([]domain.OrderItem, 0, len(d.Items))
	for _, item := range d.Items {
		items = append(items, domain.OrderItem{
			ProductID: item.ProductID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return domain.Order{
		ID:          id,
		OrderNumber: d.OrderNumber,
		Customer: domain.Customer{
			Name:  d.Customer.Name,
			Email: d.Customer.Email,
			TaxID: d.Customer.TaxID,
		},
		ShippingAddress: domain.Address{
			Street:     d.ShippingAddress.Street,
			Number:     d.ShippingAddress.Number,
			Complement: d.ShippingAddress.Complement,
			District:   d.ShippingAddress.District,
			City:       d.ShippingAddress.City,
			State:      d.ShippingAddress.State,
			PostalCode: d.ShippingAddress.PostalCode,
			Country:    d.ShippingAddress.Country,
		},
		Items:  items,
		Status: domain.OrderStatus(d.Status),
		Payment: domain.PaymentInfo{
			Method:       d.Payment.Method,
			PaymentID:    d.Payment.PaymentID,
			Status:       domain.PaymentStatus(d.Payment.Status),
			StatusDetail: d.Payment.StatusDetail,
			Artifacts:    d.Payment.Artifacts,
		},
		Shipping: domain.ShippingInfo{
			ShipmentID:        d.Shipping.ShipmentID,
			Purchased:         d.Shipping.Purchased,
			LabelGenerated:    d.Shipping.LabelGenerated,
			LabelURL:          d.Shipping.LabelURL,
			ProtocolID:        d.Shipping.ProtocolID,
			TrackingCode:      d.Shipping.TrackingCode,
			HasCarrierCode:    d.Shipping.HasCarrierCode,
			PickupRequested:   d.Shipping.PickupRequested,
			EstimatedDelivery: d.Shipping.EstimatedDelivery,
		},
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
		PaidAt:      d.PaidAt,
		ShippedAt:   d.ShippedAt,
		DeliveredAt: d.DeliveredAt,
		CancelledAt: d.CancelledAt,
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:        id,
		Name:      d.Name,
		Price:     d.Price,
		Stock:     d.Stock,
		UpdatedAt: d.UpdatedAt,
	}
}

func newProductDocument(product domain.Product) productDocument {
	return productDocument{
		Name:      product.Name,
		Price:     product.Price,
		Stock:     product.Stock,
		UpdatedAt: product.UpdatedAt,
	}
}

func (d shippingRuleDocument) toDomain(id string) domain.ShippingRule {
	return domain.ShippingRule{
		ID:             id,
		Name:           d.Name,
		PostalStart:    d.PostalStart,
		PostalEnd:      d.PostalEnd,
		MaxWeightGrams: d.MaxWeightGrams,
		PriceCents:     d.PriceCents,
		DeliveryDays:   d.DeliveryDays,
		Active:         d.Active,
		UpdatedAt:      d.UpdatedAt,
	}
}

func newShippingRuleDocument(rule domain.ShippingRule) shippingRuleDocument {
	return shippingRuleDocument{
		Name:           rule.Name,
		PostalStart:    rule.PostalStart,
		PostalEnd:      rule.PostalEnd,
		MaxWeightGrams: rule.MaxWeightGrams,
		PriceCents:     rule.PriceCents,
		DeliveryDays:   rule.DeliveryDays,
		Active:         rule.Active,
		UpdatedAt:      rule.UpdatedAt,
	}
}
