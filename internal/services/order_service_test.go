package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/notifications"
	"github.com/hexdecor/api/internal/payments"
	"github.com/hexdecor/api/internal/repositories"
)

type stubRepoError struct {
	notFound bool
	conflict bool
}

func (e *stubRepoError) Error() string       { return "stub repository error" }
func (e *stubRepoError) IsNotFound() bool    { return e.notFound }
func (e *stubRepoError) IsConflict() bool    { return e.conflict }
func (e *stubRepoError) IsUnavailable() bool { return false }

type stubOrderRepo struct {
	createFn       func(req repositories.CreateOrderRequest) (domain.Order, error)
	updateStatusFn func(update repositories.StatusUpdate) error
	createCalls    int
	orders         map[string]domain.Order
	statusUpdates  []repositories.StatusUpdate
	payments       []domain.PaymentInfo
	shippings      []domain.ShippingInfo
}

func newStubOrderRepo(orders ...domain.Order) *stubOrderRepo {
	repo := &stubOrderRepo{orders: make(map[string]domain.Order)}
	for _, order := range orders {
		repo.orders[order.ID] = order
	}
	return repo
}

func (r *stubOrderRepo) CreatePending(_ context.Context, req repositories.CreateOrderRequest) (domain.Order, error) {
	r.createCalls++
	if r.createFn != nil {
		order, err := r.createFn(req)
		if err != nil {
			return domain.Order{}, err
		}
		r.orders[order.ID] = order
		return order, nil
	}
	order := req.Order
	order.OrderNumber = fmt.Sprintf("HD-%04d-%06d", req.Now.Year(), r.createCalls)
	order.Status = domain.OrderStatusPending
	order.CreatedAt = req.Now
	order.UpdatedAt = req.Now
	r.orders[order.ID] = order
	return order, nil
}

func (r *stubOrderRepo) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, &stubRepoError{notFound: true}
	}
	return order, nil
}

func (r *stubOrderRepo) FindByPaymentID(_ context.Context, paymentID string) (domain.Order, error) {
	for _, order := range r.orders {
		if order.Payment.PaymentID == paymentID {
			return order, nil
		}
	}
	return domain.Order{}, &stubRepoError{notFound: true}
}

func (r *stubOrderRepo) UpdateStatus(_ context.Context, update repositories.StatusUpdate) error {
	if r.updateStatusFn != nil {
		if err := r.updateStatusFn(update); err != nil {
			return err
		}
	}
	r.statusUpdates = append(r.statusUpdates, update)
	order, ok := r.orders[update.OrderID]
	if !ok {
		return &stubRepoError{notFound: true}
	}
	order.Status = update.Status
	order.UpdatedAt = update.Now
	r.orders[update.OrderID] = order
	return nil
}

func (r *stubOrderRepo) SetPayment(_ context.Context, orderID string, payment domain.PaymentInfo, now time.Time) error {
	r.payments = append(r.payments, payment)
	order, ok := r.orders[orderID]
	if !ok {
		return &stubRepoError{notFound: true}
	}
	order.Payment = payment
	order.UpdatedAt = now
	r.orders[orderID] = order
	return nil
}

func (r *stubOrderRepo) SetShipping(_ context.Context, orderID string, shipping domain.ShippingInfo, now time.Time) error {
	r.shippings = append(r.shippings, shipping)
	order, ok := r.orders[orderID]
	if !ok {
		return &stubRepoError{notFound: true}
	}
	order.Shipping = shipping
	order.UpdatedAt = now
	r.orders[orderID] = order
	return nil
}

type stubGateway struct {
	createFn func(req payments.CreatePaymentRequest) (payments.PaymentDetails, error)
	statusFn func(paymentID string) (payments.PaymentDetails, error)
}

func (g *stubGateway) CreatePayment(_ context.Context, req payments.CreatePaymentRequest) (payments.PaymentDetails, error) {
	if g.createFn == nil {
		return payments.PaymentDetails{PaymentID: "pay_1", Status: payments.StatusPending}, nil
	}
	return g.createFn(req)
}

func (g *stubGateway) GetPaymentStatus(_ context.Context, paymentID string) (payments.PaymentDetails, error) {
	if g.statusFn == nil {
		return payments.PaymentDetails{PaymentID: paymentID, Status: payments.StatusPending}, nil
	}
	return g.statusFn(paymentID)
}

type stubDispatcher struct {
	messages []notifications.Message
	jobs     []notifications.ResolveTrackingJob
	fail     bool
}

func (d *stubDispatcher) Dispatch(_ context.Context, message notifications.Message) (string, error) {
	if d.fail {
		return "", errors.New("publish failed")
	}
	d.messages = append(d.messages, message)
	return "msg-1", nil
}

func (d *stubDispatcher) EnqueueResolveTracking(_ context.Context, job notifications.ResolveTrackingJob) (string, error) {
	if d.fail {
		return "", errors.New("publish failed")
	}
	d.jobs = append(d.jobs, job)
	return "job-1", nil
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return nil
}

func testClock() time.Time {
	return time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)
}

func newTestOrderService(t *testing.T, repo *stubOrderRepo, gateway *stubGateway, dispatcher *stubDispatcher, sleeper *recordingSleeper) OrderService {
	t.Helper()
	svc, err := NewOrderService(OrderServiceDeps{
		Orders:         repo,
		Gateway:        gateway,
		Notifications:  dispatcher,
		Clock:          testClock,
		IDGenerator:    func() string { return "TESTULID" },
		Sleeper:        sleeper.sleep,
		Jitter:         func() float64 { return 0 },
		CreateAttempts: 3,
		CreateBackoff:  50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("NewOrderService: %v", err)
	}
	return svc
}

func validCreateCommand() CreateOrderCommand {
	return CreateOrderCommand{
		Customer: domain.Customer{Name: "Ana Souza", Email: "ana@example.com"},
		ShippingAddress: domain.Address{
			Street:     "Rua das Flores",
			Number:     "100",
			City:       "Curitiba",
			State:      "PR",
			PostalCode: "80010-000",
			Country:    "BR",
		},
		Items:         []CreateOrderItem{{ProductID: "prod-1", Quantity: 2}},
		PaymentMethod: "card",
		Currency:      "BRL",
	}
}

func TestCreateOrderSuccess(t *testing.T) {
	repo := newStubOrderRepo()
	gateway := &stubGateway{
		createFn: func(req payments.CreatePaymentRequest) (payments.PaymentDetails, error) {
			if req.OrderID != "ord_TESTULID" {
				t.Errorf("gateway got order id %q", req.OrderID)
			}
			return payments.PaymentDetails{
				PaymentID: "pay_9",
				Status:    payments.StatusPending,
				Artifacts: map[string]string{"clientSecret": "cs_1"},
			}, nil
		},
	}
	dispatcher := &stubDispatcher{}
	svc := newTestOrderService(t, repo, gateway, dispatcher, &recordingSleeper{})

	order, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if order.Status != domain.OrderStatusPending {
		t.Errorf("status = %q, want pending", order.Status)
	}
	if order.OrderNumber != "HD-2026-000001" {
		t.Errorf("order number = %q", order.OrderNumber)
	}
	if order.Payment.PaymentID != "pay_9" {
		t.Errorf("payment id = %q", order.Payment.PaymentID)
	}
	if len(repo.payments) != 1 {
		t.Fatalf("expected 1 SetPayment call, got %d", len(repo.payments))
	}
	if len(dispatcher.messages) != 1 || dispatcher.messages[0].Kind != notifications.KindOrderConfirmed {
		t.Errorf("expected order.confirmed notification, got %v", dispatcher.messages)
	}
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	repo := newStubOrderRepo()
	repo.createFn = func(repositories.CreateOrderRequest) (domain.Order, error) {
		return domain.Order{}, repositories.NewInsufficientStockError("prod-1", 5, 3)
	}
	svc := newTestOrderService(t, repo, &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})

	cmd := validCreateCommand()
	cmd.Items = []CreateOrderItem{{ProductID: "prod-1", Quantity: 5}}
	_, err := svc.CreateOrder(context.Background(), cmd)

	var stockErr *repositories.StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %v", err)
	}
	if stockErr.Code != repositories.StockErrorInsufficient {
		t.Errorf("code = %q", stockErr.Code)
	}
	if stockErr.Requested != 5 || stockErr.Available != 3 {
		t.Errorf("requested/available = %d/%d, want 5/3", stockErr.Requested, stockErr.Available)
	}
	if repo.createCalls != 1 {
		t.Errorf("stock rejection must not be retried, got %d attempts", repo.createCalls)
	}
}

func TestCreateOrderRetriesOnConflict(t *testing.T) {
	repo := newStubOrderRepo()
	failures := 2
	repo.createFn = func(req repositories.CreateOrderRequest) (domain.Order, error) {
		if failures > 0 {
			failures--
			return domain.Order{}, &stubRepoError{conflict: true}
		}
		order := req.Order
		order.OrderNumber = "HD-2026-000001"
		order.Status = domain.OrderStatusPending
		return order, nil
	}
	sleeper := &recordingSleeper{}
	svc := newTestOrderService(t, repo, &stubGateway{}, &stubDispatcher{}, sleeper)

	if _, err := svc.CreateOrder(context.Background(), validCreateCommand()); err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	if repo.createCalls != 3 {
		t.Errorf("attempts = %d, want 3", repo.createCalls)
	}
	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond}
	if len(sleeper.waits) != len(want) {
		t.Fatalf("waits = %v, want %v", sleeper.waits, want)
	}
	for i := range want {
		if sleeper.waits[i] != want[i] {
			t.Errorf("wait[%d] = %v, want %v", i, sleeper.waits[i], want[i])
		}
	}
}

func TestCreateOrderConflictBudgetExhausted(t *testing.T) {
	repo := newStubOrderRepo()
	repo.createFn = func(repositories.CreateOrderRequest) (domain.Order, error) {
		return domain.Order{}, &stubRepoError{conflict: true}
	}
	svc := newTestOrderService(t, repo, &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})

	_, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if !errors.Is(err, ErrOrderConflict) {
		t.Fatalf("expected ErrOrderConflict, got %v", err)
	}
	if repo.createCalls != 3 {
		t.Errorf("attempts = %d, want 3", repo.createCalls)
	}
}

func TestCreateOrderGatewayFailureKeepsOrder(t *testing.T) {
	repo := newStubOrderRepo()
	gateway := &stubGateway{
		createFn: func(payments.CreatePaymentRequest) (payments.PaymentDetails, error) {
			return payments.PaymentDetails{}, errors.New("gateway down")
		},
	}
	svc := newTestOrderService(t, repo, gateway, &stubDispatcher{}, &recordingSleeper{})

	order, err := svc.CreateOrder(context.Background(), validCreateCommand())
	if !errors.Is(err, ErrPaymentGateway) {
		t.Fatalf("expected ErrPaymentGateway, got %v", err)
	}
	if order.ID == "" {
		t.Fatal("order should be returned even when the gateway fails")
	}
	if _, ok := repo.orders[order.ID]; !ok {
		t.Error("order should remain persisted")
	}
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(), &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})

	cases := []struct {
		name   string
		mutate func(*CreateOrderCommand)
	}{
		{"missing customer name", func(c *CreateOrderCommand) { c.Customer.Name = "" }},
		{"missing email", func(c *CreateOrderCommand) { c.Customer.Email = "" }},
		{"missing postal code", func(c *CreateOrderCommand) { c.ShippingAddress.PostalCode = "" }},
		{"no items", func(c *CreateOrderCommand) { c.Items = nil }},
		{"zero quantity", func(c *CreateOrderCommand) { c.Items[0].Quantity = 0 }},
		{"blank product id", func(c *CreateOrderCommand) { c.Items[0].ProductID = " " }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := validCreateCommand()
			tc.mutate(&cmd)
			if _, err := svc.CreateOrder(context.Background(), cmd); !errors.Is(err, ErrOrderInvalidInput) {
				t.Errorf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestTransitionHappyPath(t *testing.T) {
	order := domain.Order{
		ID:       "ord_1",
		Status:   domain.OrderStatusPending,
		Customer: domain.Customer{Name: "Ana", Email: "ana@example.com"},
	}
	repo := newStubOrderRepo(order)
	dispatcher := &stubDispatcher{}
	svc := newTestOrderService(t, repo, &stubGateway{}, dispatcher, &recordingSleeper{})

	updated, err := svc.Transition(context.Background(), "ord_1", domain.OrderStatusPaid)
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != domain.OrderStatusPaid {
		t.Errorf("status = %q, want paid", updated.Status)
	}
	if updated.PaidAt == nil || !updated.PaidAt.Equal(testClock()) {
		t.Errorf("paidAt = %v, want %v", updated.PaidAt, testClock())
	}
	if len(dispatcher.messages) != 1 || dispatcher.messages[0].Kind != notifications.KindOrderPaid {
		t.Errorf("expected order.paid notification, got %v", dispatcher.messages)
	}
}

func TestTransitionSameStatusIsNoop(t *testing.T) {
	repo := newStubOrderRepo(domain.Order{ID: "ord_1", Status: domain.OrderStatusPaid})
	svc := newTestOrderService(t, repo, &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})

	if _, err := svc.Transition(context.Background(), "ord_1", domain.OrderStatusPaid); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(repo.statusUpdates) != 0 {
		t.Errorf("no-op transition must not write, got %v", repo.statusUpdates)
	}
}

func TestTransitionRejectsTerminalStates(t *testing.T) {
	for _, status := range []domain.OrderStatus{domain.OrderStatusDelivered, domain.OrderStatusCancelled} {
		repo := newStubOrderRepo(domain.Order{ID: "ord_1", Status: status})
		svc := newTestOrderService(t, repo, &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})

		_, err := svc.Transition(context.Background(), "ord_1", domain.OrderStatusPaid)
		if !errors.Is(err, ErrOrderInvalidState) {
			t.Errorf("%s: expected ErrOrderInvalidState, got %v", status, err)
		}
	}
}

func TestTransitionRejectsUnknownEdges(t *testing.T) {
	repo := newStubOrderRepo(domain.Order{ID: "ord_1", Status: domain.OrderStatusPending})
	svc := newTestOrderService(t, repo, &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})

	if _, err := svc.Transition(context.Background(), "ord_1", domain.OrderStatusShipped); !errors.Is(err, ErrOrderInvalidState) {
		t.Fatalf("expected ErrOrderInvalidState, got %v", err)
	}
}

func TestTransitionShippedNotificationGatedOnCarrierCode(t *testing.T) {
	order := domain.Order{
		ID:     "ord_1",
		Status: domain.OrderStatusProcessing,
		Shipping: domain.ShippingInfo{
			TrackingCode:   "ME456",
			HasCarrierCode: false,
		},
	}
	repo := newStubOrderRepo(order)
	dispatcher := &stubDispatcher{}
	svc := newTestOrderService(t, repo, &stubGateway{}, dispatcher, &recordingSleeper{})

	if _, err := svc.Transition(context.Background(), "ord_1", domain.OrderStatusShipped); err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if len(dispatcher.messages) != 0 {
		t.Errorf("shipped notice must be suppressed without a carrier code, got %v", dispatcher.messages)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	svc := newTestOrderService(t, newStubOrderRepo(), &stubGateway{}, &stubDispatcher{}, &recordingSleeper{})
	if _, err := svc.GetOrder(context.Background(), "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
