package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/notifications"
	"github.com/hexdecor/api/internal/repositories"
	"github.com/hexdecor/api/internal/shipping"
)

const (
	shippingEventStepDone      = "shipping.step.completed"
	shippingEventTrackingFound = "shipping.tracking.resolved"
	shippingEventFallback      = "shipping.tracking.fallback"
	shippingEventJobFailed     = "shipping.job.enqueue.failed"

	defaultPollAttempts    = 3
	defaultPollInitialWait = 30 * time.Second
	defaultPollSteadyWait  = 15 * time.Second
	defaultItemWeightGrams = 500
)

// carrierTrackingPattern matches real carrier tracking codes. Aggregator
// protocol ids never match it.
var carrierTrackingPattern = regexp.MustCompile(`^[A-Z]{2}\d{9}[A-Z]{2}$`)

// ShippingServiceDeps bundles collaborators for the shipping provisioner.
type ShippingServiceDeps struct {
	Orders        repositories.OrderRepository
	Lifecycle     OrderService
	Aggregator    shipping.Aggregator
	Notifications NotificationDispatcher
	Clock         func() time.Time
	Sleeper       Sleeper
	// PollAttempts caps the tracking poll; PollInitialWait precedes the
	// first attempt and PollSteadyWait each later one.
	PollAttempts    int
	PollInitialWait time.Duration
	PollSteadyWait  time.Duration
	// ServiceCode selects the aggregator shipping product.
	ServiceCode string
	// ItemWeightGrams estimates parcel weight per unit until the catalog
	// carries real weights.
	ItemWeightGrams int
	Logger          func(ctx context.Context, event string, fields map[string]any)
}

type shippingService struct {
	orders        repositories.OrderRepository
	lifecycle     OrderService
	aggregator    shipping.Aggregator
	notifications NotificationDispatcher
	clock         func() time.Time
	sleep         Sleeper
	pollAttempts  int
	pollInitial   time.Duration
	pollSteady    time.Duration
	serviceCode   string
	itemWeight    int
	logger        func(context.Context, string, map[string]any)
}

// NewShippingService wires dependencies into a concrete ShippingService.
func NewShippingService(deps ShippingServiceDeps) (ShippingService, error) {
	if deps.Orders == nil {
		return nil, errors.New("shipping service: order repository is required")
	}
	if deps.Lifecycle == nil {
		return nil, errors.New("shipping service: order service is required")
	}
	if deps.Aggregator == nil {
		return nil, errors.New("shipping service: aggregator is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	sleep := deps.Sleeper
	if sleep == nil {
		sleep = ContextSleeper
	}
	attempts := deps.PollAttempts
	if attempts <= 0 {
		attempts = defaultPollAttempts
	}
	initial := deps.PollInitialWait
	if initial <= 0 {
		initial = defaultPollInitialWait
	}
	steady := deps.PollSteadyWait
	if steady <= 0 {
		steady = defaultPollSteadyWait
	}
	weight := deps.ItemWeightGrams
	if weight <= 0 {
		weight = defaultItemWeightGrams
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &shippingService{
		orders:        deps.Orders,
		lifecycle:     deps.Lifecycle,
		aggregator:    deps.Aggregator,
		notifications: deps.Notifications,
		clock: func() time.Time {
			return clock().UTC()
		},
		sleep:        sleep,
		pollAttempts: attempts,
		pollInitial:  initial,
		pollSteady:   steady,
		serviceCode:  strings.TrimSpace(deps.ServiceCode),
		itemWeight:   weight,
		logger:       logger,
	}, nil
}

// Provision walks the aggregator steps in order, skipping the ones whose
// outcome is already recorded on the order. A crash mid-sequence therefore
// resumes instead of repeating completed side effects.
func (s *shippingService) Provision(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	switch order.Status {
	case domain.OrderStatusPaid, domain.OrderStatusProcessing:
	default:
		return domain.Order{}, fmt.Errorf("%w: order %s is %s", ErrShippingNotReady, order.ID, order.Status)
	}

	if order.Shipping.ShipmentID == "" {
		item, err := s.aggregator.CreateCartItem(ctx, s.cartRequest(order))
		if err != nil {
			return domain.Order{}, err
		}
		order.Shipping.ShipmentID = item.ShipmentID
		if err := s.saveShipping(ctx, &order, "cart"); err != nil {
			return domain.Order{}, err
		}
	}

	if !order.Shipping.Purchased {
		if err := s.aggregator.Purchase(ctx, order.Shipping.ShipmentID); err != nil {
			return domain.Order{}, err
		}
		order.Shipping.Purchased = true
		if err := s.saveShipping(ctx, &order, "purchase"); err != nil {
			return domain.Order{}, err
		}
	}

	if !order.Shipping.LabelGenerated {
		if err := s.aggregator.GenerateLabel(ctx, order.Shipping.ShipmentID); err != nil {
			return domain.Order{}, err
		}
		order.Shipping.LabelGenerated = true
		if err := s.saveShipping(ctx, &order, "label"); err != nil {
			return domain.Order{}, err
		}
	}

	if order.Shipping.LabelURL == "" {
		printURL, err := s.aggregator.GetPrintURL(ctx, order.Shipping.ShipmentID)
		if err != nil {
			return domain.Order{}, err
		}
		order.Shipping.LabelURL = printURL
		if err := s.saveShipping(ctx, &order, "print"); err != nil {
			return domain.Order{}, err
		}
	}

	if order.Status == domain.OrderStatusPaid {
		order, err = s.lifecycle.Transition(ctx, order.ID, domain.OrderStatusProcessing)
		if err != nil {
			return domain.Order{}, err
		}
	}

	if !order.Shipping.HasCarrierCode {
		order, err = s.pollTracking(ctx, order)
		if err != nil {
			return domain.Order{}, err
		}
	}
	return order, nil
}

// ResolveTracking re-runs the bounded poll for shipments still carrying the
// protocol-id fallback. Resolved shipments are a no-op.
func (s *shippingService) ResolveTracking(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Shipping.HasCarrierCode {
		return order, nil
	}
	if order.Shipping.ShipmentID == "" || !order.Shipping.Purchased {
		return domain.Order{}, fmt.Errorf("%w: order %s has no purchased shipment", ErrShippingNotReady, order.ID)
	}

	order, err = s.pollTracking(ctx, order)
	if err != nil {
		return domain.Order{}, err
	}

	// The shipped notice was held back while only the protocol id was
	// known; send it now that a trackable code exists.
	if order.Shipping.HasCarrierCode && order.Status == domain.OrderStatusShipped {
		s.notifyShipped(ctx, order)
	}
	return order, nil
}

func (s *shippingService) RequestPickup(ctx context.Context, orderID string) (domain.Order, error) {
	order, err := s.lifecycle.GetOrder(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if order.Status != domain.OrderStatusProcessing || order.Shipping.LabelURL == "" {
		return domain.Order{}, fmt.Errorf("%w: order %s has no printable label", ErrShippingNotReady, order.ID)
	}

	if !order.Shipping.PickupRequested {
		if err := s.aggregator.RequestPickup(ctx, order.Shipping.ShipmentID); err != nil {
			return domain.Order{}, err
		}
		order.Shipping.PickupRequested = true
		if err := s.saveShipping(ctx, &order, "pickup"); err != nil {
			return domain.Order{}, err
		}
	}
	return s.lifecycle.Transition(ctx, order.ID, domain.OrderStatusShipped)
}

// pollTracking waits, asks the aggregator for shipment details and accepts
// only codes in the carrier format. When the budget runs out it records the
// protocol id as a fallback and enqueues a background re-resolution job.
func (s *shippingService) pollTracking(ctx context.Context, order domain.Order) (domain.Order, error) {
	var details shipping.ShipmentDetails
	for attempt := 1; attempt <= s.pollAttempts; attempt++ {
		wait := s.pollSteady
		if attempt == 1 {
			wait = s.pollInitial
		}
		if err := s.sleep(ctx, wait); err != nil {
			return domain.Order{}, fmt.Errorf("tracking poll: %w", err)
		}

		var err error
		details, err = s.aggregator.GetShipmentDetails(ctx, order.Shipping.ShipmentID)
		if err != nil {
			return domain.Order{}, err
		}

		code := strings.TrimSpace(details.TrackingCode)
		if carrierTrackingPattern.MatchString(code) {
			order.Shipping.TrackingCode = code
			order.Shipping.HasCarrierCode = true
			order.Shipping.ProtocolID = details.ProtocolID
			order.Shipping.EstimatedDelivery = details.EstimatedDelivery(s.clock())
			if err := s.saveShipping(ctx, &order, "tracking"); err != nil {
				return domain.Order{}, err
			}
			s.logger(ctx, shippingEventTrackingFound, map[string]any{
				"orderId":      order.ID,
				"trackingCode": code,
				"attempt":      attempt,
			})
			return order, nil
		}
	}

	if details.ProtocolID == "" {
		return domain.Order{}, shipping.NewProviderError("tracking",
			fmt.Errorf("shipment %s has neither tracking code nor protocol id", order.Shipping.ShipmentID))
	}

	order.Shipping.TrackingCode = details.ProtocolID
	order.Shipping.ProtocolID = details.ProtocolID
	order.Shipping.HasCarrierCode = false
	order.Shipping.EstimatedDelivery = details.EstimatedDelivery(s.clock())
	if err := s.saveShipping(ctx, &order, "tracking-fallback"); err != nil {
		return domain.Order{}, err
	}

	s.logger(ctx, shippingEventFallback, map[string]any{
		"orderId":    order.ID,
		"protocolId": details.ProtocolID,
		"attempts":   s.pollAttempts,
	})
	s.enqueueResolveJob(ctx, order)
	return order, nil
}

func (s *shippingService) enqueueResolveJob(ctx context.Context, order domain.Order) {
	if s.notifications == nil {
		return
	}
	_, err := s.notifications.EnqueueResolveTracking(ctx, notifications.ResolveTrackingJob{
		OrderID:    order.ID,
		ShipmentID: order.Shipping.ShipmentID,
		EnqueuedAt: s.clock(),
	})
	if err != nil {
		s.logger(ctx, shippingEventJobFailed, map[string]any{
			"orderId": order.ID,
			"error":   err.Error(),
		})
	}
}

func (s *shippingService) notifyShipped(ctx context.Context, order domain.Order) {
	if s.notifications == nil {
		return
	}
	_, err := s.notifications.Dispatch(ctx, notifications.Message{
		Kind:           notifications.KindOrderShipped,
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		RecipientEmail: order.Customer.Email,
		RecipientName:  order.Customer.Name,
		Data: map[string]string{
			"trackingCode": order.Shipping.TrackingCode,
		},
		OccurredAt: s.clock(),
	})
	if err != nil {
		s.logger(ctx, orderEventNotifyFailed, map[string]any{
			"orderId": order.ID,
			"kind":    string(notifications.KindOrderShipped),
			"error":   err.Error(),
		})
	}
}

func (s *shippingService) saveShipping(ctx context.Context, order *domain.Order, step string) error {
	now := s.clock()
	if err := s.orders.SetShipping(ctx, order.ID, order.Shipping, now); err != nil {
		return fmt.Errorf("store shipping step %s: %w", step, err)
	}
	order.UpdatedAt = now
	s.logger(ctx, shippingEventStepDone, map[string]any{
		"orderId":    order.ID,
		"step":       step,
		"shipmentId": order.Shipping.ShipmentID,
	})
	return nil
}

func (s *shippingService) cartRequest(order domain.Order) shipping.CartItemRequest {
	units := 0
	for _, item := range order.Items {
		units += item.Quantity
	}
	return shipping.CartItemRequest{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		ServiceCode:   s.serviceCode,
		WeightGrams:   units * s.itemWeight,
		DeclaredValue: order.Total(),
		Destination: shipping.Destination{
			Street:     order.ShippingAddress.Street,
			Number:     order.ShippingAddress.Number,
			Complement: order.ShippingAddress.Complement,
			District:   order.ShippingAddress.District,
			City:       order.ShippingAddress.City,
			State:      order.ShippingAddress.State,
			PostalCode: order.ShippingAddress.PostalCode,
			Country:    order.ShippingAddress.Country,
		},
		Recipient: shipping.Recipient{
			Name:  order.Customer.Name,
			Email: order.Customer.Email,
			TaxID: order.Customer.TaxID,
		},
	}
}
