package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/hexdecor/api/internal/domain"
	pfirestore "github.com/hexdecor/api/internal/platform/firestore"
)

const shippingRulesCollection = "shippingRules"

// ShippingRuleRepository owns the shipping pricing configuration rows.
type ShippingRuleRepository struct {
	provider *pfirestore.Provider
}

// NewShippingRuleRepository constructs a Firestore-backed rule repository.
func NewShippingRuleRepository(provider *pfirestore.Provider) (*ShippingRuleRepository, error) {
	if provider == nil {
		return nil, errors.New("shipping rule repository requires firestore provider")
	}
	return &ShippingRuleRepository{provider: provider}, nil
}

// List returns rules ordered by postal range start. With activeOnly set the
// query filters to active rules, which is what the quote calculator reads.
func (r *ShippingRuleRepository) List(ctx context.Context, activeOnly bool) ([]domain.ShippingRule, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("shipping rule repository not initialised")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	query := client.Collection(shippingRulesCollection).Query
	if activeOnly {
		query = query.Where("active", "==", true)
	}
	iter := query.OrderBy("postalStart", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var rules []domain.ShippingRule
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("shippingRules.list", err)
		}
		var doc shippingRuleDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode shipping rule %s: %w", snap.Ref.ID, err)
		}
		rules = append(rules, doc.toDomain(snap.Ref.ID))
	}
	return rules, nil
}

// Get fetches a single rule by id.
func (r *ShippingRuleRepository) Get(ctx context.Context, ruleID string) (domain.ShippingRule, error) {
	if r == nil || r.provider == nil {
		return domain.ShippingRule{}, errors.New("shipping rule repository not initialised")
	}
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return domain.ShippingRule{}, errors.New("shipping rule get: rule id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ShippingRule{}, err
	}

	snap, err := client.Collection(shippingRulesCollection).Doc(ruleID).Get(ctx)
	if err != nil {
		return domain.ShippingRule{}, pfirestore.WrapError("shippingRules.get", err)
	}
	var doc shippingRuleDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ShippingRule{}, fmt.Errorf("decode shipping rule %s: %w", ruleID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

// Upsert replaces the rule row.
func (r *ShippingRuleRepository) Upsert(ctx context.Context, rule domain.ShippingRule) (domain.ShippingRule, error) {
	if r == nil || r.provider == nil {
		return domain.ShippingRule{}, errors.New("shipping rule repository not initialised")
	}
	rule.ID = strings.TrimSpace(rule.ID)
	if rule.ID == "" {
		return domain.ShippingRule{}, errors.New("shipping rule upsert: rule id is required")
	}
	if rule.UpdatedAt.IsZero() {
		rule.UpdatedAt = time.Now().UTC()
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.ShippingRule{}, err
	}

	_, err = client.Collection(shippingRulesCollection).Doc(rule.ID).Set(ctx, newShippingRuleDocument(rule))
	if err != nil {
		return domain.ShippingRule{}, pfirestore.WrapError("shippingRules.upsert", err)
	}
	return rule, nil
}

// Delete removes the rule row. Deleting a missing rule is not an error.
func (r *ShippingRuleRepository) Delete(ctx context.Context, ruleID string) error {
	if r == nil || r.provider == nil {
		return errors.New("shipping rule repository not initialised")
	}
	ruleID = strings.TrimSpace(ruleID)
	if ruleID == "" {
		return errors.New("shipping rule delete: rule id is required")
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return err
	}

	_, err = client.Collection(shippingRulesCollection).Doc(ruleID).Delete(ctx)
	return pfirestore.WrapError("shippingRules.delete", err)
}
