package usecase

import (
	"context"
	"testing"

	"kairaba-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportExpandsWeightBrackets(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	importUC := NewShippingImportUsecase(uc, 67.0)

	summary, err := importUC.Import(context.Background(), []SeedRateRow{
		{
			Country: "SEN", Mode: "express",
			MinWeightKg: 0, MaxWeightKg: 0.5,
			PriceUSDMin: 32, PriceUSDMax: 38,
			Delivery: "3-7 days",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created, "one row expands to three brackets")
	assert.Equal(t, 0, summary.Skipped)

	rules, err := uc.ListRules(context.Background(), domain.RuleFilter{Destination: "SEN"})
	require.NoError(t, err)
	require.Len(t, rules, 3)

	// Base bracket: mid-price 35 USD * 67 = 2345 GMD.
	assert.Equal(t, 0.0, rules[0].MinWeight)
	assert.Equal(t, 0.5, rules[0].MaxWeight)
	assert.Equal(t, 2345.0, rules[0].Price)

	// Second bracket: 0.5-1.0 kg at 1.6x.
	assert.Equal(t, 0.5, rules[1].MinWeight)
	assert.Equal(t, 1.0, rules[1].MaxWeight)
	assert.Equal(t, 3752.0, rules[1].Price)

	// Third bracket: 1.0-2.0 kg at 2.5x.
	assert.Equal(t, 1.0, rules[2].MinWeight)
	assert.Equal(t, 2.0, rules[2].MaxWeight)
	assert.Equal(t, 5862.5, rules[2].Price)

	for _, r := range rules {
		require.NotNil(t, r.DeliveryTimeOverride)
		assert.Equal(t, "3-7 days", *r.DeliveryTimeOverride)
		assert.True(t, r.Active)
	}
}

func TestImportSkipsInvalidRows(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	importUC := NewShippingImportUsecase(uc, 67.0)

	summary, err := importUC.Import(context.Background(), []SeedRateRow{
		{
			Country: "SEN", Mode: "hovercraft", // unknown mode
			MinWeightKg: 0, MaxWeightKg: 0.5,
			PriceUSDMin: 10, PriceUSDMax: 12,
		},
		{
			Country: "CIV", Mode: "express",
			MinWeightKg: 0, MaxWeightKg: 0.5,
			PriceUSDMin: 30, PriceUSDMax: 36,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Created, "valid row still imports")
	assert.Equal(t, 3, summary.Skipped, "all three brackets of the bad row are skipped")
	assert.NotEmpty(t, summary.Warnings)
}

func TestImportAdjacentBracketsWarnOnTouchingBounds(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "express", true, "3-7 days")

	importUC := NewShippingImportUsecase(uc, 67.0)

	summary, err := importUC.Import(context.Background(), []SeedRateRow{
		{
			Country: "SEN", Mode: "express",
			MinWeightKg: 0, MaxWeightKg: 0.5,
			PriceUSDMin: 32, PriceUSDMax: 38,
		},
	})
	require.NoError(t, err)

	// Brackets share inclusive boundary points (0.5, 1.0), which the overlap
	// validator reports. They are created anyway.
	assert.Equal(t, 3, summary.Created)
	assert.Len(t, summary.Warnings, 2)
}

func TestImportCurrencyConversionUsesConfiguredRate(t *testing.T) {
	uc := newTestShippingUsecase(t)
	seedMode(t, uc, "economy", true, "20-60 days")

	importUC := NewShippingImportUsecase(uc, 50.0)

	_, err := importUC.Import(context.Background(), []SeedRateRow{
		{
			Country: "GMB", Mode: "economy",
			MinWeightKg: 0, MaxWeightKg: 0.5,
			PriceUSDMin: 4, PriceUSDMax: 6,
		},
	})
	require.NoError(t, err)

	rules, err := uc.ListRules(context.Background(), domain.RuleFilter{Destination: "GMB"})
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	assert.Equal(t, 250.0, rules[0].Price, "mid 5 USD * 50 = 250 GMD")
}
