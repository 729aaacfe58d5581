package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/payments"
	"github.com/hexdecor/api/internal/platform/idempotency"
	"github.com/hexdecor/api/internal/repositories"
)

const (
	paymentEventApplied  = "payment.status.applied"
	paymentEventReplayed = "payment.status.replayed"
	paymentEventReleased = "payment.status.release_failed"

	defaultDedupTTL = 72 * time.Hour
)

// PaymentServiceDeps bundles collaborators for the payment reconciler.
type PaymentServiceDeps struct {
	Orders    repositories.OrderRepository
	Lifecycle OrderService
	Gateway   payments.Gateway
	Applied   idempotency.Store
	Clock     func() time.Time
	// DedupTTL bounds how long an applied paymentID+status event suppresses
	// replays.
	DedupTTL time.Duration
	Logger   func(ctx context.Context, event string, fields map[string]any)
}

type paymentService struct {
	orders    repositories.OrderRepository
	lifecycle OrderService
	gateway   payments.Gateway
	applied   idempotency.Store
	clock     func() time.Time
	dedupTTL  time.Duration
	logger    func(context.Context, string, map[string]any)
}

// NewPaymentService wires dependencies into a concrete PaymentService.
func NewPaymentService(deps PaymentServiceDeps) (PaymentService, error) {
	if deps.Orders == nil {
		return nil, errors.New("payment service: order repository is required")
	}
	if deps.Lifecycle == nil {
		return nil, errors.New("payment service: order service is required")
	}
	if deps.Gateway == nil {
		return nil, errors.New("payment service: payment gateway is required")
	}
	if deps.Applied == nil {
		return nil, errors.New("payment service: applied-event store is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := deps.DedupTTL
	if ttl <= 0 {
		ttl = defaultDedupTTL
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &paymentService{
		orders:    deps.Orders,
		lifecycle: deps.Lifecycle,
		gateway:   deps.Gateway,
		applied:   deps.Applied,
		clock: func() time.Time {
			return clock().UTC()
		},
		dedupTTL: ttl,
		logger:   logger,
	}, nil
}

func (s *paymentService) ConfirmDirect(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if strings.TrimSpace(order.Payment.PaymentID) == "" {
		return domain.Order{}, fmt.Errorf("%w: order %s has no payment", ErrPaymentNotFound, order.ID)
	}
	return s.refreshAndApply(ctx, order)
}

// HandleWebhook treats the payload as a signal only. Whatever status the
// caller claims, the gateway is re-queried before anything is applied.
func (s *paymentService) HandleWebhook(ctx context.Context, paymentID string) error {
	order, err := s.findOrderByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	_, err = s.refreshAndApply(ctx, order)
	return err
}

func (s *paymentService) Reconcile(ctx context.Context, paymentID string) (domain.Order, error) {
	order, err := s.findOrderByPayment(ctx, paymentID)
	if err != nil {
		return domain.Order{}, err
	}
	return s.refreshAndApply(ctx, order)
}

func (s *paymentService) findOrderByPayment(ctx context.Context, paymentID string) (domain.Order, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return domain.Order{}, fmt.Errorf("%w: payment id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByPaymentID(ctx, paymentID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.Order{}, fmt.Errorf("%w: %s", ErrPaymentNotFound, paymentID)
		}
		return domain.Order{}, fmt.Errorf("find order by payment: %w", err)
	}
	return order, nil
}

func (s *paymentService) refreshAndApply(ctx context.Context, order domain.Order) (domain.Order, error) {
	details, err := s.gateway.GetPaymentStatus(ctx, order.Payment.PaymentID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("%w: %v", ErrPaymentGateway, err)
	}
	return s.apply(ctx, order, details)
}

// apply is the idempotent convergence point for both channels and the
// manual path. A paymentID+status pair is applied at most once per TTL.
func (s *paymentService) apply(ctx context.Context, order domain.Order, details payments.PaymentDetails) (domain.Order, error) {
	now := s.clock()
	key := idempotency.EventKey(details.PaymentID, string(details.Status))
	applied, err := s.applied.MarkApplied(ctx, key, now, s.dedupTTL)
	if err != nil {
		return domain.Order{}, fmt.Errorf("mark payment event: %w", err)
	}
	if !applied {
		s.logger(ctx, paymentEventReplayed, map[string]any{
			"orderId":   order.ID,
			"paymentId": details.PaymentID,
			"status":    string(details.Status),
		})
		return order, nil
	}

	updated, err := s.applyOutcome(ctx, order, details, now)
	if err != nil {
		// The order mutation did not commit. Drop the dedup record; the
		// provider retry or a manual reconcile must not see a replay.
		if forgetErr := s.applied.Forget(ctx, key); forgetErr != nil {
			s.logger(ctx, paymentEventReleased, map[string]any{
				"orderId":   order.ID,
				"paymentId": details.PaymentID,
				"status":    string(details.Status),
				"error":     forgetErr.Error(),
			})
		}
		return domain.Order{}, err
	}
	return updated, nil
}

func (s *paymentService) applyOutcome(ctx context.Context, order domain.Order, details payments.PaymentDetails, now time.Time) (domain.Order, error) {
	payment := order.Payment
	payment.Status = domain.PaymentStatus(details.Status)
	payment.StatusDetail = details.StatusDetail
	if err := s.orders.SetPayment(ctx, order.ID, payment, now); err != nil {
		return domain.Order{}, fmt.Errorf("store payment status: %w", err)
	}
	order.Payment = payment

	s.logger(ctx, paymentEventApplied, map[string]any{
		"orderId":   order.ID,
		"paymentId": details.PaymentID,
		"status":    string(details.Status),
	})

	switch details.Status {
	case payments.StatusApproved:
		// Orders that already progressed past paid stay where they are.
		if order.Status != domain.OrderStatusPending {
			return order, nil
		}
		return s.lifecycle.Transition(ctx, order.ID, domain.OrderStatusPaid)
	case payments.StatusRejected:
		// Automated rejection only cancels orders still awaiting payment.
		// Cancelling a paid or processing order is an admin decision with
		// refund handling outside this path.
		if order.Status != domain.OrderStatusPending {
			s.logger(ctx, "payment.rejection.ignored", map[string]any{
				"orderId": order.ID,
				"status":  string(order.Status),
			})
			return order, nil
		}
		return s.lifecycle.Transition(ctx, order.ID, domain.OrderStatusCancelled)
	default:
		// Pending changes nothing on the order lifecycle.
		return order, nil
	}
}
