package services

import (
	"context"
	"errors"
	"testing"

	domain "github.com/hexdecor/api/internal/domain"
)

type stubRuleRepo struct {
	rules   map[string]domain.ShippingRule
	deleted []string
}

func newStubRuleRepo(rules ...domain.ShippingRule) *stubRuleRepo {
	repo := &stubRuleRepo{rules: make(map[string]domain.ShippingRule)}
	for _, rule := range rules {
		repo.rules[rule.ID] = rule
	}
	return repo
}

func (r *stubRuleRepo) List(_ context.Context, activeOnly bool) ([]domain.ShippingRule, error) {
	var out []domain.ShippingRule
	for _, rule := range r.rules {
		if activeOnly && !rule.Active {
			continue
		}
		out = append(out, rule)
	}
	return out, nil
}

func (r *stubRuleRepo) Get(_ context.Context, ruleID string) (domain.ShippingRule, error) {
	rule, ok := r.rules[ruleID]
	if !ok {
		return domain.ShippingRule{}, &stubRepoError{notFound: true}
	}
	return rule, nil
}

func (r *stubRuleRepo) Upsert(_ context.Context, rule domain.ShippingRule) (domain.ShippingRule, error) {
	r.rules[rule.ID] = rule
	return rule, nil
}

func (r *stubRuleRepo) Delete(_ context.Context, ruleID string) error {
	r.deleted = append(r.deleted, ruleID)
	delete(r.rules, ruleID)
	return nil
}

func newTestRuleService(t *testing.T, repo *stubRuleRepo) ShippingRuleService {
	t.Helper()
	svc, err := NewShippingRuleService(ShippingRuleServiceDeps{
		Rules:       repo,
		Clock:       testClock,
		IDGenerator: func() string { return "TESTULID" },
	})
	if err != nil {
		t.Fatalf("NewShippingRuleService: %v", err)
	}
	return svc
}

func sampleRules() []domain.ShippingRule {
	return []domain.ShippingRule{
		{
			ID:             "shr_south",
			Name:           "South standard",
			PostalStart:    "80000000",
			PostalEnd:      "89999999",
			MaxWeightGrams: 5000,
			PriceCents:     2500,
			DeliveryDays:   5,
			Active:         true,
		},
		{
			ID:             "shr_south_express",
			Name:           "South express",
			PostalStart:    "80000000",
			PostalEnd:      "89999999",
			MaxWeightGrams: 2000,
			PriceCents:     4900,
			DeliveryDays:   2,
			Active:         true,
		},
		{
			ID:          "shr_retired",
			Name:        "Retired",
			PostalStart: "00000000",
			PostalEnd:   "99999999",
			PriceCents:  100,
			Active:      false,
		},
	}
}

func TestQuoteShippingPicksCheapestMatch(t *testing.T) {
	svc := newTestRuleService(t, newStubRuleRepo(sampleRules()...))

	quote, err := svc.QuoteShipping(context.Background(), QuoteRequest{
		PostalCode:  "80010-000",
		WeightGrams: 1500,
	})
	if err != nil {
		t.Fatalf("QuoteShipping: %v", err)
	}
	if quote.RuleID != "shr_south" {
		t.Errorf("rule = %q, want shr_south (cheapest)", quote.RuleID)
	}
	if quote.PriceCents != 2500 {
		t.Errorf("price = %d, want 2500", quote.PriceCents)
	}
}

func TestQuoteShippingRespectsWeightCap(t *testing.T) {
	svc := newTestRuleService(t, newStubRuleRepo(sampleRules()...))

	quote, err := svc.QuoteShipping(context.Background(), QuoteRequest{
		PostalCode:  "80010000",
		WeightGrams: 4000,
	})
	if err != nil {
		t.Fatalf("QuoteShipping: %v", err)
	}
	// Express caps at 2000g, so only the standard rule covers 4000g.
	if quote.RuleID != "shr_south" {
		t.Errorf("rule = %q, want shr_south", quote.RuleID)
	}
}

func TestQuoteShippingIgnoresInactiveRules(t *testing.T) {
	svc := newTestRuleService(t, newStubRuleRepo(sampleRules()...))

	_, err := svc.QuoteShipping(context.Background(), QuoteRequest{
		PostalCode:  "01000-000",
		WeightGrams: 500,
	})
	if !errors.Is(err, ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestUpsertRuleAssignsID(t *testing.T) {
	repo := newStubRuleRepo()
	svc := newTestRuleService(t, repo)

	saved, err := svc.UpsertRule(context.Background(), domain.ShippingRule{
		Name:        "North",
		PostalStart: "60000000",
		PostalEnd:   "69999999",
		PriceCents:  3000,
		Active:      true,
	})
	if err != nil {
		t.Fatalf("UpsertRule: %v", err)
	}
	if saved.ID != "shr_TESTULID" {
		t.Errorf("id = %q, want shr_TESTULID", saved.ID)
	}
	if !saved.UpdatedAt.Equal(testClock()) {
		t.Errorf("updatedAt = %v", saved.UpdatedAt)
	}
}

func TestUpsertRuleValidation(t *testing.T) {
	svc := newTestRuleService(t, newStubRuleRepo())

	cases := []struct {
		name string
		rule domain.ShippingRule
	}{
		{"missing name", domain.ShippingRule{PostalStart: "0", PostalEnd: "9"}},
		{"missing range", domain.ShippingRule{Name: "x"}},
		{"inverted range", domain.ShippingRule{Name: "x", PostalStart: "90000000", PostalEnd: "80000000"}},
		{"negative price", domain.ShippingRule{Name: "x", PostalStart: "0", PostalEnd: "9", PriceCents: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.UpsertRule(context.Background(), tc.rule); !errors.Is(err, ErrOrderInvalidInput) {
				t.Errorf("expected ErrOrderInvalidInput, got %v", err)
			}
		})
	}
}

func TestGetRuleNotFound(t *testing.T) {
	svc := newTestRuleService(t, newStubRuleRepo())
	if _, err := svc.GetRule(context.Background(), "missing"); !errors.Is(err, ErrShippingRuleNotFound) {
		t.Fatalf("expected ErrShippingRuleNotFound, got %v", err)
	}
}

func TestDeleteRule(t *testing.T) {
	repo := newStubRuleRepo(sampleRules()...)
	svc := newTestRuleService(t, repo)

	if err := svc.DeleteRule(context.Background(), "shr_retired"); err != nil {
		t.Fatalf("DeleteRule: %v", err)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "shr_retired" {
		t.Errorf("deleted = %v", repo.deleted)
	}
}
