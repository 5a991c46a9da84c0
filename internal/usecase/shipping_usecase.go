package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"kairaba-backend/internal/domain"
	"kairaba-backend/pkg/cache"
	"kairaba-backend/pkg/logger"
)

const modesCacheKey = "shipping:modes:active"

// ShippingUsecase is the rule service: it orchestrates rule/mode mutations
// against the rule store, runs the overlap validator before persisting, and
// exposes the matcher for price quotes. The store is injected so tests can
// substitute an in-memory implementation.
type ShippingUsecase struct {
	repo      domain.ShippingRepository
	txManager domain.TransactionManager
	cache     cache.CacheService
	modesTTL  time.Duration
}

func NewShippingUsecase(repo domain.ShippingRepository, txManager domain.TransactionManager, c cache.CacheService, modesTTL time.Duration) *ShippingUsecase {
	return &ShippingUsecase{
		repo:      repo,
		txManager: txManager,
		cache:     c,
		modesTTL:  modesTTL,
	}
}

// --- Requests / Results ---

// CreateRuleRequest carries every field of a new rule explicitly. Admin
// handlers decode into this instead of passing loose key/value maps.
type CreateRuleRequest struct {
	Destination          string   `json:"destination"`
	ModeKey              string   `json:"modeKey"`
	MinWeight            float64  `json:"minWeight"`
	MaxWeight            float64  `json:"maxWeight"`
	Price                float64  `json:"price"`
	DeliveryTimeOverride *string  `json:"deliveryTimeOverride"`
	Priority             int      `json:"priority"`
	Notes                *string  `json:"notes"`
	Active               *bool    `json:"active"` // defaults to true
}

// UpdateRuleRequest updates only the fields that are set.
type UpdateRuleRequest struct {
	Destination          *string  `json:"destination"`
	ModeKey              *string  `json:"modeKey"`
	MinWeight            *float64 `json:"minWeight"`
	MaxWeight            *float64 `json:"maxWeight"`
	Price                *float64 `json:"price"`
	DeliveryTimeOverride *string  `json:"deliveryTimeOverride"`
	Priority             *int     `json:"priority"`
	Notes                *string  `json:"notes"`
	Active               *bool    `json:"active"`
}

// OverlapWarning surfaces an ambiguous-but-allowed rule configuration.
// Overlaps are warned about, not blocked: a narrow high-priority override
// inside a broad low-priority band is a legitimate setup.
type OverlapWarning struct {
	ConflictRuleID int64   `json:"conflictRuleId"`
	MinWeight      float64 `json:"minWeight"`
	MaxWeight      float64 `json:"maxWeight"`
	Message        string  `json:"message"`
}

// RuleMutationResult is the outcome of a create/update: the persisted rule
// plus any non-fatal overlap warning.
type RuleMutationResult struct {
	Rule    *domain.ShippingRule `json:"rule"`
	Warning *OverlapWarning      `json:"warning,omitempty"`
}

// --- Quoting (Matcher) ---

// Quote resolves (destination, mode, weight) to the single best rule.
// Destination-specific rules beat wildcard rules; among equals, priority
// descending then created_at ascending. A quote with no coverage returns
// Available=false, which is a normal outcome, not an error.
func (u *ShippingUsecase) Quote(ctx context.Context, destination, modeKey string, weight float64) (*domain.QuoteResult, error) {
	destination = normalizeDestination(destination)
	modeKey = strings.TrimSpace(modeKey)

	if err := validateQuoteWeight(weight); err != nil {
		return nil, err
	}

	mode, err := u.repo.GetModeByKey(ctx, modeKey)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError(domain.FieldModeKey, "unknown shipping mode %q", modeKey)
		}
		return nil, err
	}
	if !mode.Active {
		return nil, domain.NewValidationError(domain.FieldModeKey, "shipping mode %q is inactive", modeKey)
	}

	candidates, err := u.repo.ListCandidates(ctx, destination, modeKey, weight)
	if err != nil {
		return nil, err
	}

	rule, ok := domain.SelectRule(candidates, destination)
	if !ok {
		logger.WithContext(ctx).Debug().
			Str("destination", destination).
			Str("mode", modeKey).
			Float64("weight_kg", weight).
			Msg("No shipping rule covers request")
		return &domain.QuoteResult{Available: false}, nil
	}

	deliveryTime := ""
	if mode.DeliveryTimeRange != nil {
		deliveryTime = *mode.DeliveryTimeRange
	}
	if rule.DeliveryTimeOverride != nil && *rule.DeliveryTimeOverride != "" {
		deliveryTime = *rule.DeliveryTimeOverride
	}

	return &domain.QuoteResult{
		Available: true,
		Match: &domain.RuleMatch{
			RuleID:       rule.ID,
			Destination:  rule.Destination,
			ModeKey:      mode.Key,
			ModeLabel:    mode.Label,
			Price:        rule.Price,
			Currency:     domain.BaseCurrency,
			DeliveryTime: deliveryTime,
		},
	}, nil
}

// --- Rule mutations (Rule Service) ---

// CreateRule validates invariants, checks for overlaps within the rule's
// (destination, mode) scope and persists. The overlap check and the insert
// run in one transaction under a scope lock so concurrent creates cannot
// slip past each other.
func (u *ShippingUsecase) CreateRule(ctx context.Context, req CreateRuleRequest) (*RuleMutationResult, error) {
	rule := &domain.ShippingRule{
		Destination:          normalizeDestination(req.Destination),
		ModeKey:              strings.TrimSpace(req.ModeKey),
		MinWeight:            req.MinWeight,
		MaxWeight:            req.MaxWeight,
		Price:                req.Price,
		DeliveryTimeOverride: req.DeliveryTimeOverride,
		Priority:             req.Priority,
		Notes:                req.Notes,
		Active:               true,
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := u.validateRule(ctx, rule); err != nil {
		return nil, err
	}

	var warning *OverlapWarning
	err := u.txManager.Do(ctx, func(txCtx context.Context) error {
		if err := u.repo.LockScope(txCtx, rule.Destination, rule.ModeKey); err != nil {
			return err
		}

		w, err := u.checkOverlap(txCtx, rule, 0)
		if err != nil {
			return err
		}
		warning = w

		return u.repo.CreateRule(txCtx, rule)
	})
	if err != nil {
		return nil, err
	}

	if warning != nil {
		logger.WithContext(ctx).Warn().
			Int64("rule_id", rule.ID).
			Int64("conflict_rule_id", warning.ConflictRuleID).
			Msg("Shipping rule created with overlapping weight band")
	}

	return &RuleMutationResult{Rule: rule, Warning: warning}, nil
}

// UpdateRule applies the set fields, re-validates, and re-runs the overlap
// check whenever the scope or weight band changed, excluding the edited
// rule itself from the conflict scan.
func (u *ShippingUsecase) UpdateRule(ctx context.Context, id int64, req UpdateRuleRequest) (*RuleMutationResult, error) {
	rule, err := u.repo.GetRuleByID(ctx, id)
	if err != nil {
		return nil, err
	}

	scopeChanged := false
	if req.Destination != nil {
		rule.Destination = normalizeDestination(*req.Destination)
		scopeChanged = true
	}
	if req.ModeKey != nil {
		rule.ModeKey = strings.TrimSpace(*req.ModeKey)
		scopeChanged = true
	}
	if req.MinWeight != nil {
		rule.MinWeight = *req.MinWeight
		scopeChanged = true
	}
	if req.MaxWeight != nil {
		rule.MaxWeight = *req.MaxWeight
		scopeChanged = true
	}
	if req.Price != nil {
		rule.Price = *req.Price
	}
	if req.DeliveryTimeOverride != nil {
		rule.DeliveryTimeOverride = req.DeliveryTimeOverride
	}
	if req.Priority != nil {
		rule.Priority = *req.Priority
	}
	if req.Notes != nil {
		rule.Notes = req.Notes
	}
	if req.Active != nil {
		rule.Active = *req.Active
	}

	if err := u.validateRule(ctx, rule); err != nil {
		return nil, err
	}

	var warning *OverlapWarning
	err = u.txManager.Do(ctx, func(txCtx context.Context) error {
		if scopeChanged {
			if err := u.repo.LockScope(txCtx, rule.Destination, rule.ModeKey); err != nil {
				return err
			}
			w, err := u.checkOverlap(txCtx, rule, rule.ID)
			if err != nil {
				return err
			}
			warning = w
		}
		return u.repo.UpdateRule(txCtx, rule)
	})
	if err != nil {
		return nil, err
	}

	return &RuleMutationResult{Rule: rule, Warning: warning}, nil
}

// DeactivateRule soft-deletes a rule so historical orders keep a consistent
// price reference. Deactivating an already-inactive rule is a no-op.
func (u *ShippingUsecase) DeactivateRule(ctx context.Context, id int64) error {
	rule, err := u.repo.GetRuleByID(ctx, id)
	if err != nil {
		return err
	}
	if !rule.Active {
		return nil
	}
	return u.repo.SetRuleActive(ctx, id, false)
}

func (u *ShippingUsecase) GetRule(ctx context.Context, id int64) (*domain.ShippingRule, error) {
	return u.repo.GetRuleByID(ctx, id)
}

func (u *ShippingUsecase) ListRules(ctx context.Context, filter domain.RuleFilter) ([]domain.ShippingRule, error) {
	filter.Destination = normalizeDestination(filter.Destination)
	return u.repo.ListRules(ctx, filter)
}

// --- Overlap Validator ---

// checkOverlap scans the candidate's (destination, mode) scope for active
// rules whose weight band intersects the candidate's. Closed intervals
// [a,b] and [c,d] intersect iff a <= d && c <= b. excludeID > 0 omits the
// rule being edited.
func (u *ShippingUsecase) checkOverlap(ctx context.Context, candidate *domain.ShippingRule, excludeID int64) (*OverlapWarning, error) {
	scope, err := u.repo.ListOverlapScope(ctx, candidate.Destination, candidate.ModeKey, excludeID)
	if err != nil {
		return nil, err
	}

	for _, existing := range scope {
		if candidate.OverlapsWith(existing) {
			return &OverlapWarning{
				ConflictRuleID: existing.ID,
				MinWeight:      existing.MinWeight,
				MaxWeight:      existing.MaxWeight,
				Message: fmt.Sprintf("overlaps with rule %d (%.3f-%.3f kg)",
					existing.ID, existing.MinWeight, existing.MaxWeight),
			}, nil
		}
	}
	return nil, nil
}

// --- Mode management ---

type CreateModeRequest struct {
	Key               string  `json:"key"`
	Label             string  `json:"label"`
	Description       *string `json:"description"`
	DeliveryTimeRange *string `json:"deliveryTimeRange"`
	Active            *bool   `json:"active"`
}

type UpdateModeRequest struct {
	Label             *string `json:"label"`
	Description       *string `json:"description"`
	DeliveryTimeRange *string `json:"deliveryTimeRange"`
	Active            *bool   `json:"active"`
}

func (u *ShippingUsecase) CreateMode(ctx context.Context, req CreateModeRequest) (*domain.ShippingMode, error) {
	key := strings.TrimSpace(req.Key)
	if key == "" {
		return nil, domain.NewValidationError(domain.FieldModeKey, "mode key is required")
	}
	if strings.TrimSpace(req.Label) == "" {
		return nil, domain.NewValidationError(domain.FieldModeKey, "mode label is required")
	}

	mode := &domain.ShippingMode{
		Key:               key,
		Label:             req.Label,
		Description:       req.Description,
		DeliveryTimeRange: req.DeliveryTimeRange,
		Active:            true,
	}
	if req.Active != nil {
		mode.Active = *req.Active
	}

	if err := u.repo.CreateMode(ctx, mode); err != nil {
		return nil, err
	}
	u.cache.Delete(modesCacheKey)
	return mode, nil
}

func (u *ShippingUsecase) UpdateMode(ctx context.Context, key string, req UpdateModeRequest) (*domain.ShippingMode, error) {
	mode, err := u.repo.GetModeByKey(ctx, key)
	if err != nil {
		return nil, err
	}

	if req.Label != nil {
		mode.Label = *req.Label
	}
	if req.Description != nil {
		mode.Description = req.Description
	}
	if req.DeliveryTimeRange != nil {
		mode.DeliveryTimeRange = req.DeliveryTimeRange
	}
	if req.Active != nil {
		mode.Active = *req.Active
	}

	if err := u.repo.UpdateMode(ctx, mode); err != nil {
		return nil, err
	}
	u.cache.Delete(modesCacheKey)
	return mode, nil
}

// ListActiveModes returns the modes shown to customers, cached.
func (u *ShippingUsecase) ListActiveModes(ctx context.Context) ([]domain.ShippingMode, error) {
	if val, found := u.cache.Get(modesCacheKey); found {
		return val.([]domain.ShippingMode), nil
	}

	modes, err := u.repo.ListModes(ctx, true)
	if err != nil {
		return nil, err
	}

	u.cache.Set(modesCacheKey, modes, u.modesTTL)
	return modes, nil
}

func (u *ShippingUsecase) ListAllModes(ctx context.Context) ([]domain.ShippingMode, error) {
	return u.repo.ListModes(ctx, false)
}

// DeleteMode removes a mode; the store rejects deletion while rules still
// reference the mode.
func (u *ShippingUsecase) DeleteMode(ctx context.Context, key string) error {
	if err := u.repo.DeleteMode(ctx, key); err != nil {
		return err
	}
	u.cache.Delete(modesCacheKey)
	return nil
}

// --- Validation helpers ---

func (u *ShippingUsecase) validateRule(ctx context.Context, rule *domain.ShippingRule) error {
	if rule.Destination == "" {
		return domain.NewValidationError(domain.FieldDestination, "destination is required (use %q for global rules)", domain.DestinationWildcard)
	}
	if rule.ModeKey == "" {
		return domain.NewValidationError(domain.FieldModeKey, "mode key is required")
	}
	if !isFiniteWeight(rule.MinWeight) || rule.MinWeight < 0 {
		return domain.NewValidationError(domain.FieldMinWeight, "min weight must be a non-negative number")
	}
	if !isFiniteWeight(rule.MaxWeight) || rule.MaxWeight < 0 {
		return domain.NewValidationError(domain.FieldMaxWeight, "max weight must be a non-negative number")
	}
	if rule.MinWeight >= rule.MaxWeight {
		return domain.NewValidationError(domain.FieldMinWeight, "min weight must be less than max weight")
	}
	if !isFiniteWeight(rule.Price) || rule.Price < 0 {
		return domain.NewValidationError(domain.FieldPrice, "price must be >= 0")
	}

	// Referential integrity: the mode must exist. It may be inactive; rules
	// pointing at inactive modes are kept for history and simply never quote.
	if _, err := u.repo.GetModeByKey(ctx, rule.ModeKey); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.NewValidationError(domain.FieldModeKey, "unknown shipping mode %q", rule.ModeKey)
		}
		return err
	}
	return nil
}

func validateQuoteWeight(weight float64) error {
	if !isFiniteWeight(weight) || weight < 0 {
		return domain.NewValidationError(domain.FieldWeight, "weight must be a non-negative number")
	}
	return nil
}

func isFiniteWeight(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func normalizeDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if dest == domain.DestinationWildcard {
		return dest
	}
	return strings.ToUpper(dest)
}
