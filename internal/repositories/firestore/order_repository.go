package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/hexdecor/api/internal/domain"
	pfirestore "github.com/hexdecor/api/internal/platform/firestore"
	"github.com/hexdecor/api/internal/repositories"
)

const (
	ordersCollection    = "orders"
	inventoryCollection = "inventory"
	countersCollection  = "counters"

	orderNumberCounterID = "orders"
)

// OrderRepository implements repositories.OrderRepository on Firestore.
type OrderRepository struct {
	provider *pfirestore.Provider
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{provider: provider}, nil
}

// CreatePending runs the single serializable transaction of the pipeline:
// read stock for every referenced product, reject on missing product or
// oversell, decrement stock, assign the order number from the counter
// document and create the order. All writes commit together or not at all.
func (r *OrderRepository) CreatePending(ctx context.Context, req repositories.CreateOrderRequest) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	order := req.Order
	if strings.TrimSpace(order.ID) == "" {
		return domain.Order{}, errors.New("order create: order id is required")
	}
	if len(order.Items) == 0 {
		return domain.Order{}, errors.New("order create: at least one item is required")
	}

	now := req.Now.UTC()
	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	// Deterministic access order keeps conflicting transactions from
	// deadlocking on overlapping product sets.
	lines := aggregateLines(order.Items)
	productIDs := make([]string, 0, len(lines))
	for id := range lines {
		productIDs = append(productIDs, id)
	}
	sort.Strings(productIDs)

	var created domain.Order
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		read := make(map[string]productDocument, len(productIDs))
		for _, productID := range productIDs {
			quantity := lines[productID]
			ref := client.Collection(inventoryCollection).Doc(productID)
			snap, err := tx.Get(ref)
			if err != nil {
				if status.Code(err) == codes.NotFound {
					return repositories.NewProductNotFoundError(productID)
				}
				return err
			}
			var doc productDocument
			if err := snap.DataTo(&doc); err != nil {
				return fmt.Errorf("decode product %s: %w", productID, err)
			}
			if doc.Stock < quantity {
				return repositories.NewInsufficientStockError(productID, quantity, doc.Stock)
			}
			doc.Stock -= quantity
			doc.UpdatedAt = now
			if err := tx.Set(ref, doc); err != nil {
				return err
			}
			read[productID] = doc
		}

		// Name and unit price are frozen from the same snapshot the stock
		// check used, so a catalog update cannot change a committed order.
		for i := range order.Items {
			doc := read[strings.TrimSpace(order.Items[i].ProductID)]
			order.Items[i].Name = doc.Name
			order.Items[i].UnitPrice = doc.Price
		}

		number, err := nextOrderNumber(tx, client, now)
		if err != nil {
			return err
		}

		order.OrderNumber = number
		order.Status = domain.OrderStatusPending
		order.CreatedAt = now
		order.UpdatedAt = now

		orderRef := client.Collection(ordersCollection).Doc(order.ID)
		if err := tx.Create(orderRef, newOrderDocument(order)); err != nil {
			return err
		}

		created = order
		return nil
	})
	if err != nil {
		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			return domain.Order{}, stockErr
		}
		return domain.Order{}, pfirestore.WrapError("orders.create", err)
	}
	return created, nil
}

func nextOrderNumber(tx *firestore.Transaction, client *firestore.Client, now time.Time) (string, error) {
	ref := client.Collection(countersCollection).Doc(orderNumberCounterID)

	var doc counterDocument
	snap, err := tx.Get(ref)
	switch status.Code(err) {
	case codes.NotFound:
		doc = counterDocument{}
	case codes.OK:
		if err := snap.DataTo(&doc); err != nil {
			return "", fmt.Errorf("decode counter %s: %w", orderNumberCounterID, err)
		}
	default:
		return "", err
	}

	doc.CurrentValue++
	doc.UpdatedAt = now
	if err := tx.Set(ref, doc); err != nil {
		return "", err
	}
	return fmt.Sprintf("HD-%04d-%06d", now.Year(), doc.CurrentValue), nil
}

// FindByID fetches the order by its opaque id.
func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, errors.New("order find: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	snap, err := client.Collection(ordersCollection).Doc(orderID).Get(ctx)
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.get", err)
	}
	return decodeOrder(snap)
}

// FindByPaymentID locates the order owning a gateway payment id.
func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Order{}, errors.New("order find: payment id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	iter := client.Collection(ordersCollection).
		Where("payment.paymentId", "==", paymentID).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return domain.Order{}, pfirestore.WrapError("orders.findByPayment",
			status.Error(codes.NotFound, fmt.Sprintf("no order for payment %s", paymentID)))
	}
	if err != nil {
		return domain.Order{}, pfirestore.WrapError("orders.findByPayment", err)
	}
	return decodeOrder(snap)
}

// UpdateStatus merges the status, updatedAt and the transition timestamp.
// Other field groups are untouched so concurrent payment/shipping writers
// cannot clobber each other.
func (r *OrderRepository) UpdateStatus(ctx context.Context, update repositories.StatusUpdate) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID := strings.TrimSpace(update.OrderID)
	if orderID == "" {
		return errors.New("order update: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	now := update.Now.UTC()
	updates := []firestore.Update{
		{Path: "status", Value: string(update.Status)},
		{Path: "updatedAt", Value: now},
	}
	if field := transitionTimestampField(update.Status); field != "" {
		updates = append(updates, firestore.Update{Path: field, Value: now})
	}

	_, err = client.Collection(ordersCollection).Doc(orderID).Update(ctx, updates)
	return pfirestore.WrapError("orders.updateStatus", err)
}

func transitionTimestampField(status domain.OrderStatus) string {
	switch status {
	case domain.OrderStatusPaid:
		return "paidAt"
	case domain.OrderStatusShipped:
		return "shippedAt"
	case domain.OrderStatusDelivered:
		return "deliveredAt"
	case domain.OrderStatusCancelled:
		return "cancelledAt"
	}
	return ""
}

// SetPayment merges the payment.* field group.
func (r *OrderRepository) SetPayment(ctx context.Context, orderID string, payment domain.PaymentInfo, now time.Time) error {
	return r.mergeFieldGroup(ctx, orderID, "payment", newPaymentDocument(payment), now)
}

// SetShipping merges the shipping.* field group.
func (r *OrderRepository) SetShipping(ctx context.Context, orderID string, shipping domain.ShippingInfo, now time.Time) error {
	return r.mergeFieldGroup(ctx, orderID, "shipping", newShippingDocument(shipping), now)
}

func (r *OrderRepository) mergeFieldGroup(ctx context.Context, orderID, field string, value any, now time.Time) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return errors.New("order update: order id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	_, err = client.Collection(ordersCollection).Doc(orderID).Update(ctx, []firestore.Update{
		{Path: field, Value: value},
		{Path: "updatedAt", Value: now.UTC()},
	})
	return pfirestore.WrapError("orders.update."+field, err)
}

func aggregateLines(items []domain.OrderItem) map[string]int {
	lines := make(map[string]int, len(items))
	for _, item := range items {
		lines[strings.TrimSpace(item.ProductID)] += item.Quantity
	}
	return lines
}

func decodeOrder(snap *firestore.DocumentSnapshot) (domain.Order, error) {
	var doc orderDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Order{}, fmt.Errorf("decode order %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

type counterDocument struct {
	CurrentValue int64     `firestore:"currentValue"`
	UpdatedAt    time.Time `firestore:"updatedAt"`
}
