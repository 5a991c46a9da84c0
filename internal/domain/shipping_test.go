package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContainsWeightInclusiveBounds(t *testing.T) {
	r := ShippingRule{MinWeight: 0.5, MaxWeight: 1.0}

	assert.True(t, r.ContainsWeight(0.5), "lower bound is inclusive")
	assert.True(t, r.ContainsWeight(1.0), "upper bound is inclusive")
	assert.True(t, r.ContainsWeight(0.75))
	assert.False(t, r.ContainsWeight(0.499))
	assert.False(t, r.ContainsWeight(1.001))
}

func TestOverlapsWith(t *testing.T) {
	base := ShippingRule{Destination: "SEN", ModeKey: "express", MinWeight: 0.0, MaxWeight: 0.5}

	tests := []struct {
		name  string
		other ShippingRule
		want  bool
	}{
		{
			name:  "intersecting bands same scope",
			other: ShippingRule{Destination: "SEN", ModeKey: "express", MinWeight: 0.3, MaxWeight: 0.8},
			want:  true,
		},
		{
			name:  "touching at boundary counts as overlap",
			other: ShippingRule{Destination: "SEN", ModeKey: "express", MinWeight: 0.5, MaxWeight: 1.0},
			want:  true,
		},
		{
			name:  "contained band",
			other: ShippingRule{Destination: "SEN", ModeKey: "express", MinWeight: 0.1, MaxWeight: 0.2},
			want:  true,
		},
		{
			name:  "disjoint band",
			other: ShippingRule{Destination: "SEN", ModeKey: "express", MinWeight: 0.6, MaxWeight: 1.0},
			want:  false,
		},
		{
			name:  "different destination never overlaps",
			other: ShippingRule{Destination: "CIV", ModeKey: "express", MinWeight: 0.0, MaxWeight: 0.5},
			want:  false,
		},
		{
			name:  "different mode never overlaps",
			other: ShippingRule{Destination: "SEN", ModeKey: "economy", MinWeight: 0.0, MaxWeight: 0.5},
			want:  false,
		},
		{
			name:  "wildcard and specific are separate scopes",
			other: ShippingRule{Destination: DestinationWildcard, ModeKey: "express", MinWeight: 0.0, MaxWeight: 0.5},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, base.OverlapsWith(tt.other))
			assert.Equal(t, tt.want, tt.other.OverlapsWith(base), "overlap must be symmetric")
		})
	}
}

func TestSortRulesForMatch(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)

	rules := []ShippingRule{
		{ID: 3, Priority: 0, CreatedAt: t1},
		{ID: 1, Priority: 5, CreatedAt: t1},
		{ID: 2, Priority: 5, CreatedAt: t0},
		{ID: 4, Priority: 5, CreatedAt: t0},
	}

	SortRulesForMatch(rules)

	// priority desc, then created_at asc, then id asc
	require.Equal(t, int64(2), rules[0].ID)
	require.Equal(t, int64(4), rules[1].ID)
	require.Equal(t, int64(1), rules[2].ID)
	require.Equal(t, int64(3), rules[3].ID)
}

func TestSelectRulePrefersSpecificOverWildcard(t *testing.T) {
	candidates := []ShippingRule{
		{ID: 1, Destination: DestinationWildcard, ModeKey: "express", Priority: 100},
		{ID: 2, Destination: "SEN", ModeKey: "express", Priority: 0},
	}

	rule, ok := SelectRule(candidates, "SEN")
	require.True(t, ok)
	assert.Equal(t, int64(2), rule.ID, "a specific rule beats a wildcard regardless of priority")
}

func TestSelectRuleWildcardFallback(t *testing.T) {
	candidates := []ShippingRule{
		{ID: 1, Destination: DestinationWildcard, ModeKey: "express", Priority: 0},
	}

	rule, ok := SelectRule(candidates, "UGA")
	require.True(t, ok)
	assert.Equal(t, int64(1), rule.ID)
}

func TestSelectRuleNoCoverage(t *testing.T) {
	_, ok := SelectRule(nil, "SEN")
	assert.False(t, ok)

	candidates := []ShippingRule{
		{ID: 1, Destination: "CIV", ModeKey: "express"},
	}
	_, ok = SelectRule(candidates, "SEN")
	assert.False(t, ok, "a rule for another destination is not a candidate")
}

func TestSelectRuleTieBreaks(t *testing.T) {
	t0 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	candidates := []ShippingRule{
		{ID: 10, Destination: "SEN", ModeKey: "express", Priority: 1, CreatedAt: t0.Add(time.Minute)},
		{ID: 11, Destination: "SEN", ModeKey: "express", Priority: 1, CreatedAt: t0},
		{ID: 12, Destination: "SEN", ModeKey: "express", Priority: 3, CreatedAt: t0.Add(time.Hour)},
	}

	rule, ok := SelectRule(candidates, "SEN")
	require.True(t, ok)
	assert.Equal(t, int64(12), rule.ID, "highest priority wins")

	// Drop the high-priority rule: earliest created wins the tie.
	rule, ok = SelectRule(candidates[:2], "SEN")
	require.True(t, ok)
	assert.Equal(t, int64(11), rule.ID)
}

func TestEffectivePrice(t *testing.T) {
	sale := 80.0
	p := Product{BasePrice: 100, SalePrice: &sale}
	assert.Equal(t, 80.0, p.EffectivePrice())

	p.SalePrice = nil
	assert.Equal(t, 100.0, p.EffectivePrice())
}
