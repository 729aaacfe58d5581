package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hexdecor/api/internal/services"
)

func postWebhook(t *testing.T, deps RouterDeps, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payments", strings.NewReader(body))
	return serve(t, deps, req)
}

func TestPaymentWebhookApplied(t *testing.T) {
	var handled string
	deps := RouterDeps{
		Payments: &stubPaymentService{
			webhookFn: func(paymentID string) error {
				handled = paymentID
				return nil
			},
		},
	}

	rec := postWebhook(t, deps, `{"paymentId": "P123", "status": "approved"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if handled != "P123" {
		t.Errorf("handled payment = %q, want P123", handled)
	}
	if body := decodeBody(t, rec); body["received"] != true {
		t.Errorf("body = %v", body)
	}
}

func TestPaymentWebhookUnknownPaymentStillAcks(t *testing.T) {
	deps := RouterDeps{
		Payments: &stubPaymentService{
			webhookFn: func(string) error {
				return services.ErrPaymentNotFound
			},
		},
	}

	rec := postWebhook(t, deps, `{"paymentId": "P999"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even for unknown payments", rec.Code)
	}
}

func TestPaymentWebhookInternalFailureStillAcks(t *testing.T) {
	deps := RouterDeps{
		Payments: &stubPaymentService{
			webhookFn: func(string) error {
				return errors.New("firestore unavailable")
			},
		},
	}

	rec := postWebhook(t, deps, `{"paymentId": "P123"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on internal failure", rec.Code)
	}
}

func TestPaymentWebhookBadPayloadStillAcks(t *testing.T) {
	called := false
	deps := RouterDeps{
		Payments: &stubPaymentService{
			webhookFn: func(string) error {
				called = true
				return nil
			},
		},
	}

	rec := postWebhook(t, deps, "{broken")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 for undecodable payloads", rec.Code)
	}
	if called {
		t.Error("reconciliation must not run without a payment id")
	}
}
