package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/notifications"
	"github.com/hexdecor/api/internal/payments"
	"github.com/hexdecor/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventStatusChanged = "order.status.changed"
	orderEventCreateRetried = "order.create.retried"
	orderEventNotifyFailed  = "order.notify.failed"

	orderIDPrefix = "ord_"

	defaultCreateAttempts = 3
	defaultCreateBackoff  = 50 * time.Millisecond
)

// orderStateTransitions is the full lifecycle edge set. Statuses absent as
// keys are terminal.
var orderStateTransitions = map[domain.OrderStatus][]domain.OrderStatus{
	domain.OrderStatusPending:    {domain.OrderStatusPaid, domain.OrderStatusCancelled},
	domain.OrderStatusPaid:       {domain.OrderStatusProcessing, domain.OrderStatusCancelled},
	domain.OrderStatusProcessing: {domain.OrderStatusShipped, domain.OrderStatusCancelled},
	domain.OrderStatusShipped:    {domain.OrderStatusDelivered},
}

func transitionAllowed(from, to domain.OrderStatus) bool {
	for _, next := range orderStateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sleeper pauses between conflict retries and poll attempts. Injected so
// tests replace real waits with recorded ones.
type Sleeper func(ctx context.Context, d time.Duration) error

// ContextSleeper waits for d or until the context is cancelled.
func ContextSleeper(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders        repositories.OrderRepository
	Gateway       payments.Gateway
	Notifications NotificationDispatcher
	Clock         func() time.Time
	IDGenerator   func() string
	Sleeper       Sleeper
	Jitter        func() float64
	// CreateAttempts bounds the conflict retry loop of the creation
	// transaction. CreateBackoff is the base wait between attempts.
	CreateAttempts int
	CreateBackoff  time.Duration
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders        repositories.OrderRepository
	gateway       payments.Gateway
	notifications NotificationDispatcher
	clock         func() time.Time
	newID         func() string
	sleep         Sleeper
	jitter        func() float64
	attempts      int
	backoff       time.Duration
	logger        func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("order service: payment gateway is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	sleep := deps.Sleeper
	if sleep == nil {
		sleep = ContextSleeper
	}
	jitter := deps.Jitter
	if jitter == nil {
		jitter = rand.Float64
	}
	attempts := deps.CreateAttempts
	if attempts <= 0 {
		attempts = defaultCreateAttempts
	}
	backoff := deps.CreateBackoff
	if backoff <= 0 {
		backoff = defaultCreateBackoff
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:        deps.Orders,
		gateway:       deps.Gateway,
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		sleep:    sleep,
		jitter:   jitter,
		attempts: attempts,
		backoff:  backoff,
		logger:   logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (domain.Order, error) {
	if err := validateCreateOrder(cmd); err != nil {
		return domain.Order{}, err
	}

	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		items = append(items, domain.OrderItem{
			ProductID: strings.TrimSpace(item.ProductID),
			Quantity:  item.Quantity,
		})
	}

	order := domain.Order{
		ID:              orderIDPrefix + s.newID(),
		Customer:        cmd.Customer,
		ShippingAddress: cmd.ShippingAddress,
		Items:           items,
		Status:          domain.OrderStatusPending,
	}

	created, err := s.createWithRetry(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx, orderEventCreated, map[string]any{
		"orderId":     created.ID,
		"orderNumber": created.OrderNumber,
		"total":       created.Total(),
	})

	created, err = s.initiatePayment(ctx, created, cmd)
	if err != nil {
		return created, err
	}

	s.notify(ctx, created, notifications.KindOrderConfirmed, nil)
	return created, nil
}

// createWithRetry retries the creation transaction on contention with a
// jittered backoff. Business rejections and other failures abort immediately.
func (s *orderService) createWithRetry(ctx context.Context, order domain.Order) (domain.Order, error) {
	var lastErr error
	for attempt := 1; attempt <= s.attempts; attempt++ {
		created, err := s.orders.CreatePending(ctx, repositories.CreateOrderRequest{
			Order: order,
			Now:   s.clock(),
		})
		if err == nil {
			return created, nil
		}

		var stockErr *repositories.StockError
		if errors.As(err, &stockErr) {
			return domain.Order{}, stockErr
		}
		var repoErr repositories.RepositoryError
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			return domain.Order{}, fmt.Errorf("create order: %w", err)
		}

		lastErr = err
		if attempt == s.attempts {
			break
		}

		wait := s.backoffFor(attempt)
		s.logger(ctx, orderEventCreateRetried, map[string]any{
			"orderId": order.ID,
			"attempt": attempt,
			"waitMs":  wait.Milliseconds(),
		})
		if err := s.sleep(ctx, wait); err != nil {
			return domain.Order{}, fmt.Errorf("create order: %w", err)
		}
	}
	return domain.Order{}, fmt.Errorf("%w: transaction contention after %d attempts: %v", ErrOrderConflict, s.attempts, lastErr)
}

// backoffFor doubles the base per attempt and adds up to 50% jitter so
// colliding writers spread out instead of retrying in lockstep.
func (s *orderService) backoffFor(attempt int) time.Duration {
	base := s.backoff << (attempt - 1)
	return base + time.Duration(s.jitter()*float64(base)/2)
}

func (s *orderService) initiatePayment(ctx context.Context, order domain.Order, cmd CreateOrderCommand) (domain.Order, error) {
	details, err := s.gateway.CreatePayment(ctx, payments.CreatePaymentRequest{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Amount:         order.Total(),
		Currency:       cmd.Currency,
		Method:         cmd.PaymentMethod,
		CustomerEmail:  order.Customer.Email,
		IdempotencyKey: order.ID,
	})
	if err != nil {
		// The order stays pending without a payment id. Manual
		// reconciliation or a client retry picks it up.
		s.logger(ctx, "order.payment.create.failed", map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
		return order, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}

	order.Payment = domain.PaymentInfo{
		Method:       cmd.PaymentMethod,
		PaymentID:    details.PaymentID,
		Status:       domain.PaymentStatus(details.Status),
		StatusDetail: details.StatusDetail,
		Artifacts:    details.Artifacts,
	}
	if err := s.orders.SetPayment(ctx, order.ID, order.Payment, s.clock()); err != nil {
		return order, fmt.Errorf("store payment info: %w", err)
	}
	return order, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return domain.Order{}, fmt.Errorf("get order: %w", err)
	}
	return order, nil
}

func (s *orderService) Transition(ctx context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return s.applyTransition(ctx, order, target)
}

// applyTransition is the single choke point for status changes. Repeating
// the current status is a no-op so idempotent callers converge safely.
func (s *orderService) applyTransition(ctx context.Context, order domain.Order, target domain.OrderStatus) (domain.Order, error) {
	if order.Status == target {
		return order, nil
	}
	if order.Status.IsTerminal() || !transitionAllowed(order.Status, target) {
		return domain.Order{}, fmt.Errorf("%w: %s -> %s for order %s", ErrOrderInvalidState, order.Status, target, order.ID)
	}

	now := s.clock()
	if err := s.orders.UpdateStatus(ctx, repositories.StatusUpdate{
		OrderID: order.ID,
		Status:  target,
		Now:     now,
	}); err != nil {
		return domain.Order{}, fmt.Errorf("update status: %w", err)
	}

	previous := order.Status
	order.Status = target
	order.UpdatedAt = now
	switch target {
	case domain.OrderStatusPaid:
		order.PaidAt = &now
	case domain.OrderStatusShipped:
		order.ShippedAt = &now
	case domain.OrderStatusDelivered:
		order.DeliveredAt = &now
	case domain.OrderStatusCancelled:
		order.CancelledAt = &now
	}

	s.logger(ctx, orderEventStatusChanged, map[string]any{
		"orderId":  order.ID,
		"previous": string(previous),
		"current":  string(target),
	})

	switch target {
	case domain.OrderStatusPaid:
		s.notify(ctx, order, notifications.KindOrderPaid, nil)
	case domain.OrderStatusCancelled:
		s.notify(ctx, order, notifications.KindOrderCancelled, nil)
	case domain.OrderStatusShipped:
		// Until the carrier assigns a real tracking code the shipped
		// notice would carry an untrackable protocol id, so hold it.
		if order.Shipping.HasCarrierCode {
			s.notify(ctx, order, notifications.KindOrderShipped, map[string]string{
				"trackingCode": order.Shipping.TrackingCode,
			})
		}
	}
	return order, nil
}

func (s *orderService) notify(ctx context.Context, order domain.Order, kind notifications.Kind, data map[string]string) {
	if s.notifications == nil {
		return
	}
	_, err := s.notifications.Dispatch(ctx, notifications.Message{
		Kind:           kind,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		RecipientEmail: order.Customer.Email,
		RecipientName:  order.Customer.Name,
		Data:           data,
		OccurredAt:     s.clock(),
	})
	if err != nil {
		s.logger(ctx, orderEventNotifyFailed, map[string]any{
			"orderId": order.ID,
			"kind":    string(kind),
			"error":   err.Error(),
		})
	}
}

func validateCreateOrder(cmd CreateOrderCommand) error {
	if strings.TrimSpace(cmd.Customer.Name) == "" {
		return fmt.Errorf("%w: customer name is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Customer.Email) == "" {
		return fmt.Errorf("%w: customer email is required", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.ShippingAddress.PostalCode) == "" {
		return fmt.Errorf("%w: shipping postal code is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrOrderInvalidInput)
	}
	for i, item := range cmd.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item %d is missing a product id", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("%w: item %d has non-positive quantity", ErrOrderInvalidInput, i)
		}
	}
	return nil
}
