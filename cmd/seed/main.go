package main

import (
	"context"
	"flag"
	"os"
	"time"

	"kairaba-backend/config"
	"kairaba-backend/internal/domain"
	"kairaba-backend/internal/infrastructure/cache"
	"kairaba-backend/internal/repository/postgres"
	"kairaba-backend/internal/usecase"
	"kairaba-backend/pkg/logger"

	"github.com/goccy/go-json"
)

// Seeds shipping modes and rate rules from a JSON tariff file, e.g.:
//
//	go run ./cmd/seed -file tariffs.json
//
// Each row is expanded into weight brackets and inserted through the normal
// rule-creation path, so validation and overlap checks apply.
func main() {
	var (
		file      = flag.String("file", "", "path to JSON tariff file (array of rate rows)")
		rate      = flag.Float64("rate", 0, "USD to GMD rate override (defaults to config)")
		modesOnly = flag.Bool("modes-only", false, "seed default shipping modes and exit")
	)
	flag.Parse()

	cfg := config.LoadConfig()
	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := postgres.NewPgxPool(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pool.Close()

	shippingRepo := postgres.NewShippingRepository(pool)
	txManager := postgres.NewTransactionManager(pool)
	memCache := cache.NewMemoryCache(time.Minute, time.Minute)

	shippingUC := usecase.NewShippingUsecase(shippingRepo, txManager, memCache, time.Minute)

	usdToGMD := cfg.SeedUSDToGMDRate
	if *rate > 0 {
		usdToGMD = *rate
	}
	importUC := usecase.NewShippingImportUsecase(shippingUC, usdToGMD)

	seedModes(ctx, shippingUC)
	if *modesOnly {
		return
	}

	if *file == "" {
		log.Fatal().Msg("-file is required (or pass -modes-only)")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to read tariff file")
	}

	var rows []usecase.SeedRateRow
	if err := json.Unmarshal(data, &rows); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse tariff file")
	}

	summary, err := importUC.Import(ctx, rows)
	if err != nil {
		log.Fatal().Err(err).Msg("Import failed")
	}

	for _, w := range summary.Warnings {
		log.Warn().Msg(w)
	}
	log.Info().
		Int("created", summary.Created).
		Int("skipped", summary.Skipped).
		Float64("usd_to_gmd", usdToGMD).
		Msg("Seed complete")
}

func strPtr(s string) *string { return &s }

// seedModes creates the default carrier tiers if they do not exist yet.
func seedModes(ctx context.Context, shippingUC *usecase.ShippingUsecase) {
	defaults := []usecase.CreateModeRequest{
		{Key: "express", Label: "Express", Description: strPtr("Fast air freight"), DeliveryTimeRange: strPtr("3-7 days")},
		{Key: "economy_plus", Label: "Economy Plus", Description: strPtr("Consolidated air freight"), DeliveryTimeRange: strPtr("10-20 days")},
		{Key: "economy", Label: "Economy", Description: strPtr("Sea freight"), DeliveryTimeRange: strPtr("20-60 days")},
	}

	for _, req := range defaults {
		if _, err := shippingUC.CreateMode(ctx, req); err != nil {
			if _, ok := domain.AsValidationError(err); ok {
				continue // already exists
			}
			logger.Fatal().Err(err).Str("mode", req.Key).Msg("Failed to seed mode")
		}
		logger.Info().Str("mode", req.Key).Msg("Seeded shipping mode")
	}
}
