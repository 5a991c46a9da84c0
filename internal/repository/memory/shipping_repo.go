package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"kairaba-backend/internal/domain"
)

// ShippingRepository is a mutex-guarded in-memory rule store. It backs unit
// tests and local development without postgres; the same engine code runs on
// top of either store.
type ShippingRepository struct {
	mu     sync.RWMutex
	modes  map[string]domain.ShippingMode
	rules  map[int64]domain.ShippingRule
	nextID int64
}

func NewShippingRepository() *ShippingRepository {
	return &ShippingRepository{
		modes:  make(map[string]domain.ShippingMode),
		rules:  make(map[int64]domain.ShippingRule),
		nextID: 1,
	}
}

// --- Modes ---

func (r *ShippingRepository) CreateMode(ctx context.Context, mode *domain.ShippingMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.modes[mode.Key]; exists {
		return domain.NewValidationError(domain.FieldModeKey, "mode %q already exists", mode.Key)
	}

	now := time.Now()
	mode.CreatedAt = now
	mode.UpdatedAt = now
	r.modes[mode.Key] = *mode
	return nil
}

func (r *ShippingRepository) UpdateMode(ctx context.Context, mode *domain.ShippingMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.modes[mode.Key]
	if !ok {
		return domain.ErrNotFound
	}
	mode.CreatedAt = existing.CreatedAt
	mode.UpdatedAt = time.Now()
	r.modes[mode.Key] = *mode
	return nil
}

func (r *ShippingRepository) GetModeByKey(ctx context.Context, key string) (*domain.ShippingMode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mode, ok := r.modes[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &mode, nil
}

func (r *ShippingRepository) ListModes(ctx context.Context, activeOnly bool) ([]domain.ShippingMode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var modes []domain.ShippingMode
	for _, m := range r.modes {
		if activeOnly && !m.Active {
			continue
		}
		modes = append(modes, m)
	}
	sortModesByKey(modes)
	return modes, nil
}

func (r *ShippingRepository) DeleteMode(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modes[key]; !ok {
		return domain.ErrNotFound
	}
	for _, rule := range r.rules {
		if rule.ModeKey == key {
			return domain.ErrModeInUse
		}
	}
	delete(r.modes, key)
	return nil
}

// --- Rules ---

func (r *ShippingRepository) CreateRule(ctx context.Context, rule *domain.ShippingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.modes[rule.ModeKey]; !ok {
		return domain.NewValidationError(domain.FieldModeKey, "unknown shipping mode %q", rule.ModeKey)
	}

	rule.ID = r.nextID
	r.nextID++
	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	r.rules[rule.ID] = *rule
	return nil
}

func (r *ShippingRepository) UpdateRule(ctx context.Context, rule *domain.ShippingRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rules[rule.ID]
	if !ok {
		return domain.ErrNotFound
	}
	if _, ok := r.modes[rule.ModeKey]; !ok {
		return domain.NewValidationError(domain.FieldModeKey, "unknown shipping mode %q", rule.ModeKey)
	}
	rule.CreatedAt = existing.CreatedAt
	rule.UpdatedAt = time.Now()
	r.rules[rule.ID] = *rule
	return nil
}

func (r *ShippingRepository) GetRuleByID(ctx context.Context, id int64) (*domain.ShippingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rule, ok := r.rules[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rule, nil
}

func (r *ShippingRepository) ListRules(ctx context.Context, filter domain.RuleFilter) ([]domain.ShippingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []domain.ShippingRule
	for _, rule := range r.rules {
		if filter.Destination != "" && rule.Destination != filter.Destination {
			continue
		}
		if filter.ModeKey != "" && rule.ModeKey != filter.ModeKey {
			continue
		}
		if filter.Active != nil && rule.Active != *filter.Active {
			continue
		}
		rules = append(rules, rule)
	}
	sortRulesByID(rules)
	return rules, nil
}

func (r *ShippingRepository) SetRuleActive(ctx context.Context, id int64, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rule, ok := r.rules[id]
	if !ok {
		return domain.ErrNotFound
	}
	rule.Active = active
	rule.UpdatedAt = time.Now()
	r.rules[id] = rule
	return nil
}

func (r *ShippingRepository) ListOverlapScope(ctx context.Context, destination, modeKey string, excludeID int64) ([]domain.ShippingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []domain.ShippingRule
	for _, rule := range r.rules {
		if !rule.Active || rule.ID == excludeID {
			continue
		}
		if rule.Destination != destination || rule.ModeKey != modeKey {
			continue
		}
		rules = append(rules, rule)
	}
	sortRulesByID(rules)
	return rules, nil
}

func (r *ShippingRepository) ListCandidates(ctx context.Context, destination, modeKey string, weight float64) ([]domain.ShippingRule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var rules []domain.ShippingRule
	for _, rule := range r.rules {
		if !rule.Active || rule.ModeKey != modeKey {
			continue
		}
		if rule.Destination != destination && rule.Destination != domain.DestinationWildcard {
			continue
		}
		if !rule.ContainsWeight(weight) {
			continue
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (r *ShippingRepository) LockScope(ctx context.Context, destination, modeKey string) error {
	// The in-memory transaction manager already serializes writers globally,
	// which subsumes per-scope locking.
	return nil
}

func sortModesByKey(modes []domain.ShippingMode) {
	sort.Slice(modes, func(i, j int) bool { return modes[i].Key < modes[j].Key })
}

func sortRulesByID(rules []domain.ShippingRule) {
	sort.Slice(rules, func(i, j int) bool { return rules[i].ID < rules[j].ID })
}
