package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/hexdecor/api/internal/handlers"
	"github.com/hexdecor/api/internal/notifications"
	"github.com/hexdecor/api/internal/payments"
	"github.com/hexdecor/api/internal/platform/config"
	pfirestore "github.com/hexdecor/api/internal/platform/firestore"
	"github.com/hexdecor/api/internal/platform/idempotency"
	"github.com/hexdecor/api/internal/platform/observability"
	firestorerepo "github.com/hexdecor/api/internal/repositories/firestore"
	"github.com/hexdecor/api/internal/services"
	"github.com/hexdecor/api/internal/shipping"
)

// Services bundles the service-layer contracts the HTTP layer depends on.
type Services struct {
	Orders        services.OrderService
	Payments      services.PaymentService
	Shipping      services.ShippingService
	ShippingRules services.ShippingRuleService
	Inventory     services.InventoryService
}

// Container wires external clients, repositories, and services for runtime use.
type Container struct {
	Config   config.Config
	Logger   *zap.Logger
	Services Services
	Router   chi.Router

	// AppliedEvents is exposed so the process can periodically purge expired
	// payment dedup records.
	AppliedEvents *idempotency.FirestoreStore

	firestore          *pfirestore.Provider
	pubsubClient       *pubsub.Client
	notificationsTopic *pubsub.Topic
	jobsTopic          *pubsub.Topic
}

// NewContainer constructs the production dependency graph from configuration.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	firestoreProvider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := firestoreProvider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("di: firestore client: %w", err)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		_ = firestoreProvider.Close()
		return nil, fmt.Errorf("di: pubsub client: %w", err)
	}

	c := &Container{
		Config:             cfg,
		Logger:             logger,
		firestore:          firestoreProvider,
		pubsubClient:       pubsubClient,
		notificationsTopic: pubsubClient.Topic(cfg.PubSub.NotificationsTopic),
		jobsTopic:          pubsubClient.Topic(cfg.PubSub.JobsTopic),
	}

	if err := c.build(firestoreClientChecker(firestoreClient)); err != nil {
		_ = c.Close(ctx)
		return nil, err
	}
	return c, nil
}

func (c *Container) build(firestoreCheck handlers.ReadinessChecker) error {
	cfg := c.Config
	logger := c.Logger

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)

	dispatcher, err := notifications.NewPubSubDispatcher(c.notificationsTopic, c.jobsTopic)
	if err != nil {
		return fmt.Errorf("di: notification dispatcher: %w", err)
	}

	gateway, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
		APIKey: cfg.Stripe.APIKey,
		Logger: observability.EventLogger(logger.Named("stripe")),
	})
	if err != nil {
		return fmt.Errorf("di: stripe gateway: %w", err)
	}

	carrier, err := shipping.NewClient(shipping.ClientConfig{
		BaseURL:    cfg.Carrier.BaseURL,
		APIToken:   cfg.Carrier.Token,
		HTTPClient: &http.Client{Timeout: cfg.Carrier.Timeout},
		Logger:     observability.EventLogger(logger.Named("carrier")),
		Observe: func(operation string, elapsed time.Duration) {
			metrics.ObserveExternalCall("carrier", operation, elapsed)
		},
	})
	if err != nil {
		return fmt.Errorf("di: carrier client: %w", err)
	}

	orderRepo, err := firestorerepo.NewOrderRepository(c.firestore)
	if err != nil {
		return fmt.Errorf("di: order repository: %w", err)
	}
	inventoryRepo, err := firestorerepo.NewInventoryRepository(c.firestore)
	if err != nil {
		return fmt.Errorf("di: inventory repository: %w", err)
	}
	ruleRepo, err := firestorerepo.NewShippingRuleRepository(c.firestore)
	if err != nil {
		return fmt.Errorf("di: shipping rule repository: %w", err)
	}

	applied, err := idempotency.NewFirestoreStore(c.firestore, "")
	if err != nil {
		return fmt.Errorf("di: applied-event store: %w", err)
	}
	c.AppliedEvents = applied

	orderSvc, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:         orderRepo,
		Gateway:        gateway,
		Notifications:  dispatcher,
		CreateAttempts: cfg.Fulfillment.CreateAttempts,
		CreateBackoff:  cfg.Fulfillment.CreateBackoff,
		Logger:         observability.EventLogger(logger.Named("orders")),
	})
	if err != nil {
		return fmt.Errorf("di: order service: %w", err)
	}

	paymentSvc, err := services.NewPaymentService(services.PaymentServiceDeps{
		Orders:    orderRepo,
		Lifecycle: orderSvc,
		Gateway:   gateway,
		Applied:   applied,
		DedupTTL:  cfg.Fulfillment.DedupTTL,
		Logger:    observability.EventLogger(logger.Named("payments")),
	})
	if err != nil {
		return fmt.Errorf("di: payment service: %w", err)
	}

	shippingSvc, err := services.NewShippingService(services.ShippingServiceDeps{
		Orders:          orderRepo,
		Lifecycle:       orderSvc,
		Aggregator:      carrier,
		Notifications:   dispatcher,
		PollAttempts:    cfg.Fulfillment.PollAttempts,
		PollInitialWait: cfg.Fulfillment.PollInitialWait,
		PollSteadyWait:  cfg.Fulfillment.PollSteadyWait,
		ItemWeightGrams: cfg.Fulfillment.ItemWeightGrams,
		ServiceCode:     cfg.Carrier.ServiceCode,
		Logger:          observability.EventLogger(logger.Named("shipping")),
	})
	if err != nil {
		return fmt.Errorf("di: shipping service: %w", err)
	}

	ruleSvc, err := services.NewShippingRuleService(services.ShippingRuleServiceDeps{
		Rules:  ruleRepo,
		Logger: observability.EventLogger(logger.Named("shipping_rules")),
	})
	if err != nil {
		return fmt.Errorf("di: shipping rule service: %w", err)
	}

	inventorySvc, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: inventoryRepo,
	})
	if err != nil {
		return fmt.Errorf("di: inventory service: %w", err)
	}

	c.Services = Services{
		Orders:        orderSvc,
		Payments:      paymentSvc,
		Shipping:      shippingSvc,
		ShippingRules: ruleSvc,
		Inventory:     inventorySvc,
	}

	health := handlers.NewHealthHandlers(map[string]handlers.ReadinessChecker{
		"firestore": firestoreCheck,
		"pubsub": func(ctx context.Context) error {
			_, err := c.notificationsTopic.Exists(ctx)
			return err
		},
	})

	c.Router = handlers.NewRouter(handlers.RouterDeps{
		Orders:        orderSvc,
		Payments:      paymentSvc,
		Shipping:      shippingSvc,
		ShippingRules: ruleSvc,
		Inventory:     inventorySvc,
		Health:        health,
		Metrics:       metrics,
	}, handlers.WithMiddlewares(
		observability.InjectLoggerMiddleware(logger.Named("http")),
		observability.TraceMiddleware(),
		observability.RequestLoggerMiddleware(),
	))
	return nil
}

// Close releases the external clients. Safe to call more than once.
func (c *Container) Close(context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	if c.notificationsTopic != nil {
		c.notificationsTopic.Stop()
		c.notificationsTopic = nil
	}
	if c.jobsTopic != nil {
		c.jobsTopic.Stop()
		c.jobsTopic = nil
	}
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("pubsub close: %w", err))
		}
		c.pubsubClient = nil
	}
	if c.firestore != nil {
		if err := c.firestore.Close(); err != nil {
			errs = append(errs, fmt.Errorf("firestore close: %w", err))
		}
		c.firestore = nil
	}
	return errors.Join(errs...)
}

func firestoreClientChecker(client *firestore.Client) handlers.ReadinessChecker {
	return func(ctx context.Context) error {
		iter := client.Collections(ctx)
		if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
			return err
		}
		return nil
	}
}
