package usecase

import (
	"context"
	"fmt"

	"kairaba-backend/internal/domain"
	"kairaba-backend/pkg/logger"
)

// SeedRateRow is one row of carrier tariff data as published: a per-country
// base weight band priced in USD as a min/max range.
type SeedRateRow struct {
	Country     string  `json:"country"`
	Mode        string  `json:"mode"`
	MinWeightKg float64 `json:"minWeightKg"`
	MaxWeightKg float64 `json:"maxWeightKg"`
	PriceUSDMin float64 `json:"priceUsdMin"`
	PriceUSDMax float64 `json:"priceUsdMax"`
	Delivery    string  `json:"delivery"`
}

// ImportSummary reports what a seed run did. Warnings carry per-row overlap
// notices; Skipped counts rows rejected by validation.
type ImportSummary struct {
	Created  int      `json:"created"`
	Skipped  int      `json:"skipped"`
	Warnings []string `json:"warnings"`
}

// weightBracket extrapolates heavier bands from the published base band.
type weightBracket struct {
	fromFactor float64 // multiplier on the band bounds
	toFactor   float64
	priceMul   float64
}

// Carriers publish one base band per country; heavier parcels are priced by
// scaling that band: up to 2x the max weight at 1.6x price, up to 4x at 2.5x.
var seedBrackets = []weightBracket{
	{fromFactor: 0, toFactor: 1, priceMul: 1.0},
	{fromFactor: 1, toFactor: 2, priceMul: 1.6},
	{fromFactor: 2, toFactor: 4, priceMul: 2.5},
}

// ShippingImportUsecase expands published tariff rows into concrete rules and
// persists them through the normal rule-creation path, so seeded data gets
// the same validation and overlap checks as manually entered rules.
type ShippingImportUsecase struct {
	shipping *ShippingUsecase
	usdToGMD float64
}

func NewShippingImportUsecase(shipping *ShippingUsecase, usdToGMD float64) *ShippingImportUsecase {
	return &ShippingImportUsecase{shipping: shipping, usdToGMD: usdToGMD}
}

// Import converts each tariff row into one rule per weight bracket. The rule
// price is the midpoint of the published USD range, converted to the base
// currency and scaled by the bracket multiplier.
func (u *ShippingImportUsecase) Import(ctx context.Context, rows []SeedRateRow) (*ImportSummary, error) {
	summary := &ImportSummary{}
	log := logger.WithContext(ctx)

	for _, row := range rows {
		midUSD := (row.PriceUSDMin + row.PriceUSDMax) / 2

		for _, bracket := range seedBrackets {
			minW := row.MaxWeightKg * bracket.fromFactor
			if bracket.fromFactor == 0 {
				minW = row.MinWeightKg
			}
			maxW := row.MaxWeightKg * bracket.toFactor

			price := roundPrice(midUSD * u.usdToGMD * bracket.priceMul)

			delivery := row.Delivery
			notes := fmt.Sprintf("Seeded: %.1f-%.1fkg bracket (USD %.2f x %.1f)", minW, maxW, midUSD, bracket.priceMul)
			req := CreateRuleRequest{
				Destination: row.Country,
				ModeKey:     row.Mode,
				MinWeight:   minW,
				MaxWeight:   maxW,
				Price:       price,
				Notes:       &notes,
			}
			if delivery != "" {
				req.DeliveryTimeOverride = &delivery
			}

			result, err := u.shipping.CreateRule(ctx, req)
			if err != nil {
				if vErr, ok := domain.AsValidationError(err); ok {
					summary.Skipped++
					summary.Warnings = append(summary.Warnings,
						fmt.Sprintf("%s/%s %.3f-%.3fkg: %s", row.Country, row.Mode, minW, maxW, vErr.Message))
					continue
				}
				return summary, err
			}

			summary.Created++
			if result.Warning != nil {
				summary.Warnings = append(summary.Warnings,
					fmt.Sprintf("%s/%s %.3f-%.3fkg: %s", row.Country, row.Mode, minW, maxW, result.Warning.Message))
			}
		}
	}

	log.Info().
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Int("warnings", len(summary.Warnings)).
		Msg("Shipping rate import finished")

	return summary, nil
}

func roundPrice(p float64) float64 {
	return float64(int64(p*100+0.5)) / 100
}
