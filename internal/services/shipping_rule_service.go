package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/repositories"
)

const shippingRuleIDPrefix = "shr_"

// ShippingRuleServiceDeps bundles collaborators for the rule service.
type ShippingRuleServiceDeps struct {
	Rules       repositories.ShippingRuleRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type shippingRuleService struct {
	rules  repositories.ShippingRuleRepository
	clock  func() time.Time
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

// NewShippingRuleService wires dependencies into a concrete ShippingRuleService.
func NewShippingRuleService(deps ShippingRuleServiceDeps) (ShippingRuleService, error) {
	if deps.Rules == nil {
		return nil, errors.New("shipping rule service: rule repository is required")
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
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &shippingRuleService{
		rules: deps.Rules,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *shippingRuleService) ListRules(ctx context.Context, activeOnly bool) ([]domain.ShippingRule, error) {
	rules, err := s.rules.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list shipping rules: %w", err)
	}
	return rules, nil
}

func (s *shippingRuleService) GetRule(ctx context.Context, ruleID string) (domain.ShippingRule, error) {
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return domain.ShippingRule{}, fmt.Errorf("%w: rule id is required", ErrOrderInvalidInput)
	}

	rule, err := s.rules.Get(ctx, ruleID)
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return domain.ShippingRule{}, fmt.Errorf("%w: %s", ErrShippingRuleNotFound, ruleID)
		}
		return domain.ShippingRule{}, fmt.Errorf("get shipping rule: %w", err)
	}
	return rule, nil
}

func (s *shippingRuleService) UpsertRule(ctx context.Context, rule domain.ShippingRule) (domain.ShippingRule, error) {
	if err := validateRule(rule); err != nil {
		return domain.ShippingRule{}, err
	}
	if strings.TrimSpace(rule.ID) == "" {
		rule.ID = shippingRuleIDPrefix + s.newID()
	}
	rule.UpdatedAt = s.clock()

	saved, err := s.rules.Upsert(ctx, rule)
	if err != nil {
		return domain.ShippingRule{}, fmt.Errorf("upsert shipping rule: %w", err)
	}
	s.logger(ctx, "shipping.rule.upserted", map[string]any{
		"ruleId": saved.ID,
		"active": saved.Active,
	})
	return saved, nil
}

func (s *shippingRuleService) DeleteRule(ctx context.Context, ruleID string) error {
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return fmt.Errorf("%w: rule id is required", ErrOrderInvalidInput)
	}
	if err := s.rules.Delete(ctx, ruleID); err != nil {
		return fmt.Errorf("delete shipping rule: %w", err)
	}
	s.logger(ctx, "shipping.rule.deleted", map[string]any{"ruleId": ruleID})
	return nil
}

// QuoteShipping picks the cheapest active rule covering the postal code and
// weight. Rules are a small static table, so scanning is fine.
func (s *shippingRuleService) QuoteShipping(ctx context.Context, req QuoteRequest) (Quote, error) {
	postal := normalizePostal(req.PostalCode)
	if postal == "" {
		return Quote{}, fmt.Errorf("%w: postal code is required", ErrOrderInvalidInput)
	}
	if req.WeightGrams <= 0 {
		return Quote{}, fmt.Errorf("%w: weight must be positive", ErrOrderInvalidInput)
	}

	rules, err := s.rules.List(ctx, true)
	if err != nil {
		return Quote{}, fmt.Errorf("quote shipping: %w", err)
	}

	var best *domain.ShippingRule
	for i := range rules {
		rule := rules[i]
		if !ruleCovers(rule, postal, req.WeightGrams) {
			continue
		}
		if best == nil || rule.PriceCents < best.PriceCents {
			best = &rules[i]
		}
	}
	if best == nil {
		return Quote{}, fmt.Errorf("%w: postal %s weight %dg", ErrQuoteUnavailable, postal, req.WeightGrams)
	}

	return Quote{
		RuleID:       best.ID,
		RuleName:     best.Name,
		PriceCents:   best.PriceCents,
		DeliveryDays: best.DeliveryDays,
	}, nil
}

func ruleCovers(rule domain.ShippingRule, postal string, weightGrams int) bool {
	if rule.MaxWeightGrams > 0 && weightGrams > rule.MaxWeightGrams {
		return false
	}
	start := normalizePostal(rule.PostalStart)
	end := normalizePostal(rule.PostalEnd)
	return postal >= start && postal <= end
}

func normalizePostal(postal string) string {
	return strings.ReplaceAll(strings.TrimSpace(postal), "-", "")
}

func validateRule(rule domain.ShippingRule) error {
	if strings.TrimSpace(rule.Name) == "" {
		return fmt.Errorf("%w: rule name is required", ErrOrderInvalidInput)
	}
	start := normalizePostal(rule.PostalStart)
	end := normalizePostal(rule.PostalEnd)
	if start == "" || end == "" {
		return fmt.Errorf("%w: postal range is required", ErrOrderInvalidInput)
	}
	if start > end {
		return fmt.Errorf("%w: postal range start exceeds end", ErrOrderInvalidInput)
	}
	if rule.PriceCents < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrOrderInvalidInput)
	}
	return nil
}
