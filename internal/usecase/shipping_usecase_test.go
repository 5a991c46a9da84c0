package usecase

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"kairaba-backend/internal/domain"
	"kairaba-backend/internal/infrastructure/cache"
	"kairaba-backend/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestShippingUsecase(t *testing.T) *ShippingUsecase {
	t.Helper()
	repo := memory.NewShippingRepository()
	tx := memory.NewTransactionManager()
	c := cache.NewMemoryCache(time.Minute, time.Minute)
	return NewShippingUsecase(repo, tx, c, time.Minute)
}

func seedMode(t *testing.T, uc *ShippingUsecase, key string, active bool, delivery string) {
	t.Helper()
	_, err := uc.CreateMode(context.Background(), CreateModeRequest{
		Key:               key,
		Label:             key,
		DeliveryTimeRange: &delivery,
		Active:            &active,
	})
	require.NoError(t, err)
}

func mustCreateRule(t *testing.T, uc *ShippingUsecase, req CreateRuleRequest) *domain.ShippingRule {
	t.Helper()
	result, err := uc.CreateRule(context.Background(), req)
	require.NoError(t, err)
	return result.Rule
}

func TestQuoteMatchesSpecificRule(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	rule := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 2345,
	})

	result, err := uc.Quote(context.Background(), "sen", "express", 0.3)
	require.NoError(t, err)
	require.True(t, result.Available)
	assert.Equal(t, rule.ID, result.Match.RuleID)
	assert.Equal(t, 2345.0, result.Match.Price)
	assert.Equal(t, domain.BaseCurrency, result.Match.Currency)
	assert.Equal(t, "3-7 days", result.Match.DeliveryTime, "delivery time comes from the mode when no override")
}

func TestQuoteDeliveryTimeOverride(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	override := "2-4 days"
	mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
		DeliveryTimeOverride: &override,
	})

	result, err := uc.Quote(context.Background(), "SEN", "express", 0.2)
	require.NoError(t, err)
	require.True(t, result.Available)
	assert.Equal(t, "2-4 days", result.Match.DeliveryTime)
}

func TestQuoteWildcardFallback(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	wildcard := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "*", ModeKey: "express",
		MinWeight: 0, MaxWeight: 1, Price: 5000,
	})
	specific := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 1, Price: 2000,
	})

	// Covered destination hits the specific rule.
	result, err := uc.Quote(context.Background(), "SEN", "express", 0.5)
	require.NoError(t, err)
	require.True(t, result.Available)
	assert.Equal(t, specific.ID, result.Match.RuleID)

	// Any other destination falls back to the wildcard.
	result, err = uc.Quote(context.Background(), "UGA", "express", 0.5)
	require.NoError(t, err)
	require.True(t, result.Available)
	assert.Equal(t, wildcard.ID, result.Match.RuleID)
	assert.Equal(t, "*", result.Match.Destination)
}

func TestQuoteNoCoverageIsNotAnError(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})

	// Weight outside every band.
	result, err := uc.Quote(context.Background(), "SEN", "express", 3.0)
	require.NoError(t, err)
	assert.False(t, result.Available)
	assert.Nil(t, result.Match)

	// Destination with no rules and no wildcard.
	result, err = uc.Quote(context.Background(), "MLI", "express", 0.3)
	require.NoError(t, err)
	assert.False(t, result.Available)
}

func TestQuoteBoundaryWeights(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0.5, MaxWeight: 1.0, Price: 100,
	})

	for _, w := range []float64{0.5, 1.0} {
		result, err := uc.Quote(context.Background(), "SEN", "express", w)
		require.NoError(t, err)
		assert.True(t, result.Available, "weight %v is inside the inclusive band", w)
	}
}

func TestQuoteUnknownAndInactiveMode(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "paused", false, "n/a")

	_, err := uc.Quote(context.Background(), "SEN", "nope", 0.5)
	vErr, ok := domain.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.FieldModeKey, vErr.Field)

	_, err = uc.Quote(context.Background(), "SEN", "paused", 0.5)
	vErr, ok = domain.AsValidationError(err)
	require.True(t, ok)
	assert.Equal(t, domain.FieldModeKey, vErr.Field)
}

func TestQuoteRejectsInvalidWeight(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	for _, w := range []float64{-1, math.NaN(), math.Inf(1)} {
		_, err := uc.Quote(context.Background(), "SEN", "express", w)
		vErr, ok := domain.AsValidationError(err)
		require.True(t, ok, "weight %v must be rejected", w)
		assert.Equal(t, domain.FieldWeight, vErr.Field)
	}
}

func TestQuoteZeroWeight(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})

	result, err := uc.Quote(context.Background(), "SEN", "express", 0)
	require.NoError(t, err)
	assert.True(t, result.Available, "zero weight is valid and matches a band starting at 0")
}

func TestCreateRuleValidation(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	tests := []struct {
		name  string
		req   CreateRuleRequest
		field string
	}{
		{
			name:  "missing destination",
			req:   CreateRuleRequest{ModeKey: "express", MinWeight: 0, MaxWeight: 1, Price: 10},
			field: domain.FieldDestination,
		},
		{
			name:  "unknown mode",
			req:   CreateRuleRequest{Destination: "SEN", ModeKey: "teleport", MinWeight: 0, MaxWeight: 1, Price: 10},
			field: domain.FieldModeKey,
		},
		{
			name:  "min >= max",
			req:   CreateRuleRequest{Destination: "SEN", ModeKey: "express", MinWeight: 1, MaxWeight: 1, Price: 10},
			field: domain.FieldMinWeight,
		},
		{
			name:  "negative min weight",
			req:   CreateRuleRequest{Destination: "SEN", ModeKey: "express", MinWeight: -1, MaxWeight: 1, Price: 10},
			field: domain.FieldMinWeight,
		},
		{
			name:  "negative price",
			req:   CreateRuleRequest{Destination: "SEN", ModeKey: "express", MinWeight: 0, MaxWeight: 1, Price: -5},
			field: domain.FieldPrice,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := uc.CreateRule(context.Background(), tt.req)
			vErr, ok := domain.AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestCreateRuleOverlapWarnsButPersists(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	first := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})

	result, err := uc.CreateRule(context.Background(), CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0.3, MaxWeight: 0.8, Price: 150,
	})
	require.NoError(t, err, "overlap must not block the create")
	require.NotNil(t, result.Warning)
	assert.Equal(t, first.ID, result.Warning.ConflictRuleID)

	// Both rules are live.
	rules, err := uc.ListRules(context.Background(), domain.RuleFilter{Destination: "SEN"})
	require.NoError(t, err)
	assert.Len(t, rules, 2)
}

func TestCreateRuleNoWarningAcrossScopes(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")
	seedMode(t, uc, "economy", true, "20-60 days")

	mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})

	// Same band, different mode: no conflict.
	result, err := uc.CreateRule(context.Background(), CreateRuleRequest{
		Destination: "SEN", ModeKey: "economy",
		MinWeight: 0, MaxWeight: 0.5, Price: 30,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Warning)

	// Same band, different destination: no conflict.
	result, err = uc.CreateRule(context.Background(), CreateRuleRequest{
		Destination: "CIV", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Warning)
}

func TestCreateRuleInactiveRulesDoNotConflict(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	inactive := false
	mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
		Active: &inactive,
	})

	result, err := uc.CreateRule(context.Background(), CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 120,
	})
	require.NoError(t, err)
	assert.Nil(t, result.Warning, "inactive rules are outside the overlap scope")
}

func TestUpdateRuleExcludesSelfFromOverlapCheck(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	rule := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})

	// Widening its own band must not warn against itself.
	newMax := 0.6
	result, err := uc.UpdateRule(context.Background(), rule.ID, UpdateRuleRequest{MaxWeight: &newMax})
	require.NoError(t, err)
	assert.Nil(t, result.Warning)
	assert.Equal(t, 0.6, result.Rule.MaxWeight)
}

func TestUpdateRulePartialFields(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	rule := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100, Priority: 2,
	})

	price := 250.0
	result, err := uc.UpdateRule(context.Background(), rule.ID, UpdateRuleRequest{Price: &price})
	require.NoError(t, err)

	assert.Equal(t, 250.0, result.Rule.Price)
	assert.Equal(t, "SEN", result.Rule.Destination, "unset fields stay untouched")
	assert.Equal(t, 2, result.Rule.Priority)
}

func TestUpdateRuleNotFound(t *testing.T) {
	uc := newTestShippingUsecase(t)

	price := 1.0
	_, err := uc.UpdateRule(context.Background(), 999, UpdateRuleRequest{Price: &price})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeactivateRuleIsIdempotentAndSoft(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	rule := mustCreateRule(t, uc, CreateRuleRequest{
		Destination: "SEN", ModeKey: "express",
		MinWeight: 0, MaxWeight: 0.5, Price: 100,
	})

	require.NoError(t, uc.DeactivateRule(context.Background(), rule.ID))
	require.NoError(t, uc.DeactivateRule(context.Background(), rule.ID), "second deactivation is a no-op")

	// The rule still exists, just inactive.
	got, err := uc.GetRule(context.Background(), rule.ID)
	require.NoError(t, err)
	assert.False(t, got.Active)

	// And it no longer quotes.
	result, err := uc.Quote(context.Background(), "SEN", "express", 0.3)
	require.NoError(t, err)
	assert.False(t, result.Available)
}

func TestDeactivateRuleNotFound(t *testing.T) {
	uc := newTestShippingUsecase(t)
	assert.ErrorIs(t, uc.DeactivateRule(context.Background(), 42), domain.ErrNotFound)
}

func TestListRulesFilters(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")
	seedMode(t, uc, "economy", true, "20-60 days")

	mustCreateRule(t, uc, CreateRuleRequest{Destination: "SEN", ModeKey: "express", MinWeight: 0, MaxWeight: 0.5, Price: 1})
	mustCreateRule(t, uc, CreateRuleRequest{Destination: "SEN", ModeKey: "economy", MinWeight: 0, MaxWeight: 0.5, Price: 2})
	r3 := mustCreateRule(t, uc, CreateRuleRequest{Destination: "CIV", ModeKey: "express", MinWeight: 0, MaxWeight: 0.5, Price: 3})
	require.NoError(t, uc.DeactivateRule(context.Background(), r3.ID))

	rules, err := uc.ListRules(context.Background(), domain.RuleFilter{Destination: "sen"})
	require.NoError(t, err)
	assert.Len(t, rules, 2, "destination filter is case-insensitive")

	rules, err = uc.ListRules(context.Background(), domain.RuleFilter{ModeKey: "express"})
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	active := true
	rules, err = uc.ListRules(context.Background(), domain.RuleFilter{Active: &active})
	require.NoError(t, err)
	assert.Len(t, rules, 2)

	inactive := false
	rules, err = uc.ListRules(context.Background(), domain.RuleFilter{Active: &inactive})
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

func TestConcurrentCreatesBothPersistWithWarning(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	const n = 8
	var wg sync.WaitGroup
	warnings := make(chan bool, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := uc.CreateRule(context.Background(), CreateRuleRequest{
				Destination: "SEN", ModeKey: "express",
				MinWeight: 0, MaxWeight: 0.5, Price: 100,
			})
			if err == nil {
				warnings <- result.Warning != nil
			}
		}()
	}
	wg.Wait()
	close(warnings)

	noWarning := 0
	for w := range warnings {
		if !w {
			noWarning++
		}
	}
	// The transaction boundary serializes check-then-write, so exactly one
	// create can see an empty scope.
	assert.Equal(t, 1, noWarning)

	rules, err := uc.ListRules(context.Background(), domain.RuleFilter{Destination: "SEN"})
	require.NoError(t, err)
	assert.Len(t, rules, n, "warn-not-block: every create persists")
}

func TestModeLifecycle(t *testing.T) {
	uc := newTestShippingUsecase(t)
	ctx := context.Background()

	seedMode(t, uc, "express", true, "3-7 days")

	// Duplicate key is rejected.
	_, err := uc.CreateMode(ctx, CreateModeRequest{Key: "express", Label: "Express"})
	_, ok := domain.AsValidationError(err)
	assert.True(t, ok)

	// A mode with rules cannot be deleted.
	mustCreateRule(t, uc, CreateRuleRequest{Destination: "SEN", ModeKey: "express", MinWeight: 0, MaxWeight: 1, Price: 10})
	assert.ErrorIs(t, uc.DeleteMode(ctx, "express"), domain.ErrModeInUse)

	// Deactivating hides it from the public listing.
	inactive := false
	_, err = uc.UpdateMode(ctx, "express", UpdateModeRequest{Active: &inactive})
	require.NoError(t, err)

	modes, err := uc.ListActiveModes(ctx)
	require.NoError(t, err)
	assert.Empty(t, modes)

	all, err := uc.ListAllModes(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRuleMayReferenceInactiveMode(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "paused", false, "n/a")

	_, err := uc.CreateRule(context.Background(), CreateRuleRequest{
		Destination: "SEN", ModeKey: "paused",
		MinWeight: 0, MaxWeight: 1, Price: 10,
	})
	assert.NoError(t, err, "rules may point at inactive modes; they just never quote")
}
