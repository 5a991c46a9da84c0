package domain

import (
	"context"
	"sort"
	"time"
)

// DestinationWildcard marks a rule that applies to any destination not
// covered by a destination-specific rule.
const DestinationWildcard = "*"

// BaseCurrency is the currency every stored rule price is expressed in.
// Currency conversion happens at seed time, never inside the engine.
const BaseCurrency = "GMD"

// ShippingMode is a named carrier/service tier (e.g. "express", "economy").
// Inactive modes are excluded from quoting, but rules referencing them stay
// valid historically.
type ShippingMode struct {
	Key               string    `json:"key"`
	Label             string    `json:"label"`
	Description       *string   `json:"description,omitempty"`
	DeliveryTimeRange *string   `json:"deliveryTimeRange,omitempty"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// ShippingRule is one weight-banded price entry, scoped to a destination
// (region code or wildcard) and a shipping mode.
type ShippingRule struct {
	ID                   int64     `json:"id"`
	Destination          string    `json:"destination"` // uppercase region code or "*"
	ModeKey              string    `json:"modeKey"`
	MinWeight            float64   `json:"minWeight"` // kg
	MaxWeight            float64   `json:"maxWeight"` // kg
	Price                float64   `json:"price"`     // base currency
	DeliveryTimeOverride *string   `json:"deliveryTimeOverride,omitempty"`
	Priority             int       `json:"priority"`
	Active               bool      `json:"active"`
	Notes                *string   `json:"notes,omitempty"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// ContainsWeight reports whether w falls inside the rule's weight band.
// Bounds are inclusive on both ends.
func (r ShippingRule) ContainsWeight(w float64) bool {
	return w >= r.MinWeight && w <= r.MaxWeight
}

// OverlapsWith reports whether two rules conflict: same (destination, mode)
// scope and intersecting weight bands. Closed intervals [a,b] and [c,d]
// intersect iff a <= d && c <= b; the test is symmetric.
func (r ShippingRule) OverlapsWith(other ShippingRule) bool {
	if r.Destination != other.Destination {
		return false
	}
	if r.ModeKey != other.ModeKey {
		return false
	}
	return r.MinWeight <= other.MaxWeight && other.MinWeight <= r.MaxWeight
}

// SortRulesForMatch orders candidate rules by priority descending, then
// created_at ascending (earliest created wins a priority tie), then id
// ascending so the order is total even when timestamps collide.
func SortRulesForMatch(rules []ShippingRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		if !rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].CreatedAt.Before(rules[j].CreatedAt)
		}
		return rules[i].ID < rules[j].ID
	})
}

// SelectRule picks the single best rule for the given destination among
// candidates that already match the mode and contain the weight.
// Destination-specific rules always outrank wildcard rules, regardless of
// priority. Returns false when no rule covers the request.
func SelectRule(candidates []ShippingRule, destination string) (ShippingRule, bool) {
	var specific, global []ShippingRule
	for _, r := range candidates {
		switch r.Destination {
		case destination:
			specific = append(specific, r)
		case DestinationWildcard:
			global = append(global, r)
		}
	}

	pool := specific
	if len(pool) == 0 {
		pool = global
	}
	if len(pool) == 0 {
		return ShippingRule{}, false
	}

	SortRulesForMatch(pool)
	return pool[0], true
}

// RuleMatch is the outcome of a successful quote: the selected rule's price,
// effective delivery-time string, and the rule id for audit/repricing.
type RuleMatch struct {
	RuleID       int64   `json:"ruleId"`
	Destination  string  `json:"destination"` // scope that matched (code or "*")
	ModeKey      string  `json:"modeKey"`
	ModeLabel    string  `json:"modeLabel"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	DeliveryTime string  `json:"deliveryTime"`
}

// QuoteResult is what the checkout collaborator consumes. Available=false is
// a normal "no coverage" outcome, not an error.
type QuoteResult struct {
	Available bool       `json:"available"`
	Match     *RuleMatch `json:"match,omitempty"`
}

// RuleFilter narrows admin rule listings.
type RuleFilter struct {
	Destination string
	ModeKey     string
	Active      *bool
}

// ShippingRepository is the Rule Store: the sole owner of rule and mode
// records. Mutations happen only through the shipping usecase.
type ShippingRepository interface {
	// Modes
	CreateMode(ctx context.Context, mode *ShippingMode) error
	UpdateMode(ctx context.Context, mode *ShippingMode) error
	GetModeByKey(ctx context.Context, key string) (*ShippingMode, error)
	ListModes(ctx context.Context, activeOnly bool) ([]ShippingMode, error)
	// DeleteMode fails with ErrModeInUse while any rule references the mode.
	DeleteMode(ctx context.Context, key string) error

	// Rules
	CreateRule(ctx context.Context, rule *ShippingRule) error
	UpdateRule(ctx context.Context, rule *ShippingRule) error
	GetRuleByID(ctx context.Context, id int64) (*ShippingRule, error)
	ListRules(ctx context.Context, filter RuleFilter) ([]ShippingRule, error)
	SetRuleActive(ctx context.Context, id int64, active bool) error

	// ListOverlapScope returns the active rules sharing (destination, mode),
	// excluding excludeID when > 0. Used by the overlap validator.
	ListOverlapScope(ctx context.Context, destination, modeKey string, excludeID int64) ([]ShippingRule, error)

	// ListCandidates returns active rules of the mode whose weight band
	// contains weight, in the destination-specific or wildcard scope.
	ListCandidates(ctx context.Context, destination, modeKey string, weight float64) ([]ShippingRule, error)

	// LockScope serializes concurrent writers of one (destination, mode)
	// scope for the duration of the surrounding transaction, so the overlap
	// check and the write commit atomically.
	LockScope(ctx context.Context, destination, modeKey string) error
}

// TransactionManager runs fn within a single transactional boundary.
type TransactionManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}
