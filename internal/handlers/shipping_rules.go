package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/hexdecor/api/internal/domain"
	"github.com/hexdecor/api/internal/platform/httpx"
	"github.com/hexdecor/api/internal/services"
)

// ShippingRuleHandlers serves the pricing-rule admin surface and the public
// quote endpoint.
type ShippingRuleHandlers struct {
	rules services.ShippingRuleService
}

type shippingRulePayload struct {
	RuleID         string    `json:"ruleId,omitempty"`
	Name           string    `json:"name"`
	PostalStart    string    `json:"postalStart"`
	PostalEnd      string    `json:"postalEnd"`
	MaxWeightGrams int       `json:"maxWeightGrams"`
	PriceCents     int64     `json:"priceCents"`
	DeliveryDays   int       `json:"deliveryDays"`
	Active         bool      `json:"active"`
	UpdatedAt      time.Time `json:"updatedAt,omitempty"`
}

func newRulePayload(rule domain.ShippingRule) shippingRulePayload {
	return shippingRulePayload{
		RuleID:         rule.ID,
		Name:           rule.Name,
		PostalStart:    rule.PostalStart,
		PostalEnd:      rule.PostalEnd,
		MaxWeightGrams: rule.MaxWeightGrams,
		PriceCents:     rule.PriceCents,
		DeliveryDays:   rule.DeliveryDays,
		Active:         rule.Active,
		UpdatedAt:      rule.UpdatedAt,
	}
}

// List handles GET /admin/shipping-rules.
func (h *ShippingRuleHandlers) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	activeOnly := r.URL.Query().Get("active") == "true"

	rules, err := h.rules.ListRules(ctx, activeOnly)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := make([]shippingRulePayload, 0, len(rules))
	for _, rule := range rules {
		payload = append(payload, newRulePayload(rule))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"rules": payload})
}

// Get handles GET /admin/shipping-rules/{ruleID}.
func (h *ShippingRuleHandlers) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rule, err := h.rules.GetRule(ctx, chi.URLParam(r, "ruleID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newRulePayload(rule))
}

// Upsert handles PUT /admin/shipping-rules/{ruleID}.
func (h *ShippingRuleHandlers) Upsert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req shippingRulePayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body is not valid JSON", http.StatusBadRequest))
		return
	}

	rule, err := h.rules.UpsertRule(ctx, domain.ShippingRule{
		ID:             chi.URLParam(r, "ruleID"),
		Name:           req.Name,
		PostalStart:    req.PostalStart,
		PostalEnd:      req.PostalEnd,
		MaxWeightGrams: req.MaxWeightGrams,
		PriceCents:     req.PriceCents,
		DeliveryDays:   req.DeliveryDays,
		Active:         req.Active,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newRulePayload(rule))
}

// Delete handles DELETE /admin/shipping-rules/{ruleID}.
func (h *ShippingRuleHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.rules.DeleteRule(ctx, chi.URLParam(r, "ruleID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Quote handles GET /shipping/quote?postal=...&weight=...
func (h *ShippingRuleHandlers) Quote(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	weight, err := strconv.Atoi(r.URL.Query().Get("weight"))
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "weight must be an integer number of grams", http.StatusBadRequest))
		return
	}

	quote, err := h.rules.QuoteShipping(ctx, services.QuoteRequest{
		PostalCode:  r.URL.Query().Get("postal"),
		WeightGrams: weight,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"ruleId":       quote.RuleID,
		"ruleName":     quote.RuleName,
		"priceCents":   quote.PriceCents,
		"deliveryDays": quote.DeliveryDays,
	})
}
