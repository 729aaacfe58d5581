package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/services"
)

type stubOrderService struct {
	createFn     func(cmd services.CreateOrderCommand) (domain.Order, error)
	getFn        func(orderID string) (domain.Order, error)
	transitionFn func(orderID string, target domain.OrderStatus) (domain.Order, error)
}

func (s *stubOrderService) CreateOrder(_ context.Context, cmd services.CreateOrderCommand) (domain.Order, error) {
	return s.createFn(cmd)
}

func (s *stubOrderService) GetOrder(_ context.Context, orderID string) (domain.Order, error) {
	return s.getFn(orderID)
}

func (s *stubOrderService) Transition(_ context.Context, orderID string, target domain.OrderStatus) (domain.Order, error) {
	return s.transitionFn(orderID, target)
}

type stubPaymentService struct {
	confirmFn   func(orderID string) (domain.Order, error)
	webhookFn   func(paymentID string) error
	reconcileFn func(paymentID string) (domain.Order, error)
}

func (s *stubPaymentService) ConfirmDirect(_ context.Context, orderID string) (domain.Order, error) {
	return s.confirmFn(orderID)
}

func (s *stubPaymentService) HandleWebhook(_ context.Context, paymentID string) error {
	return s.webhookFn(paymentID)
}

func (s *stubPaymentService) Reconcile(_ context.Context, paymentID string) (domain.Order, error) {
	return s.reconcileFn(paymentID)
}

type stubShippingService struct {
	provisionFn func(orderID string) (domain.Order, error)
	resolveFn   func(orderID string) (domain.Order, error)
	pickupFn    func(orderID string) (domain.Order, error)
}

func (s *stubShippingService) Provision(_ context.Context, orderID string) (domain.Order, error) {
	return s.provisionFn(orderID)
}

func (s *stubShippingService) ResolveTracking(_ context.Context, orderID string) (domain.Order, error) {
	return s.resolveFn(orderID)
}

func (s *stubShippingService) RequestPickup(_ context.Context, orderID string) (domain.Order, error) {
	return s.pickupFn(orderID)
}

type stubRuleService struct {
	listFn   func(activeOnly bool) ([]domain.ShippingRule, error)
	getFn    func(ruleID string) (domain.ShippingRule, error)
	upsertFn func(rule domain.ShippingRule) (domain.ShippingRule, error)
	deleteFn func(ruleID string) error
	quoteFn  func(req services.QuoteRequest) (services.Quote, error)
}

func (s *stubRuleService) ListRules(_ context.Context, activeOnly bool) ([]domain.ShippingRule, error) {
	return s.listFn(activeOnly)
}

func (s *stubRuleService) GetRule(_ context.Context, ruleID string) (domain.ShippingRule, error) {
	return s.getFn(ruleID)
}

func (s *stubRuleService) UpsertRule(_ context.Context, rule domain.ShippingRule) (domain.ShippingRule, error) {
	return s.upsertFn(rule)
}

func (s *stubRuleService) DeleteRule(_ context.Context, ruleID string) error {
	return s.deleteFn(ruleID)
}

func (s *stubRuleService) QuoteShipping(_ context.Context, req services.QuoteRequest) (services.Quote, error) {
	return s.quoteFn(req)
}

type stubInventoryService struct {
	getFn    func(productID string) (domain.Product, error)
	upsertFn func(product domain.Product) (domain.Product, error)
}

func (s *stubInventoryService) GetProduct(_ context.Context, productID string) (domain.Product, error) {
	return s.getFn(productID)
}

func (s *stubInventoryService) UpsertProduct(_ context.Context, product domain.Product) (domain.Product, error) {
	return s.upsertFn(product)
}

func sampleOrder(status domain.OrderStatus) domain.Order {
	now := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
	return domain.Order{
		ID:          "ord_1",
		OrderNumber: "HD-2026-000001",
		Status:      status,
		Customer:    domain.Customer{Name: "Ana", Email: "ana@example.com"},
		Items:       []domain.OrderItem{{ProductID: "prod-1", Name: "Vase", Quantity: 2, UnitPrice: 4500}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func serve(t *testing.T, deps RouterDeps, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	router := NewRouter(deps)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}
