package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kairaba-backend/config"
	"kairaba-backend/internal/delivery/http/middleware"
	v1 "kairaba-backend/internal/delivery/http/v1"
	"kairaba-backend/internal/infrastructure/cache"
	"kairaba-backend/internal/repository/postgres"
	"kairaba-backend/internal/usecase"
	"kairaba-backend/pkg/logger"
	"kairaba-backend/pkg/storage"
	"kairaba-backend/pkg/utils"

	"github.com/NYTimes/gziphandler"
	"golang.org/x/time/rate"
)

func main() {
	cfg := config.LoadConfig()
	utils.SetSecret(cfg.JWTSecret)

	logger.Init(cfg.Env, cfg.LogLevel)
	log := logger.Get()

	pgxPool, err := postgres.NewPgxPool(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	log.Info().Msg("Connected to PostgreSQL")

	// Repositories
	userRepo := postgres.NewUserRepository(pgxPool)
	productRepo := postgres.NewProductRepository(pgxPool)
	orderRepo := postgres.NewOrderRepository(pgxPool)
	shippingRepo := postgres.NewShippingRepository(pgxPool)
	txManager := postgres.NewTransactionManager(pgxPool)

	memCache := cache.NewMemoryCache(30*time.Minute, 60*time.Minute)

	mux := http.NewServeMux()

	// Auth module
	authUC := usecase.NewAuthUsecase(
		userRepo,
		cfg.GoogleClientID,
		cfg.GoogleClientSecret,
		cfg.AccessTokenExpiry,
		cfg.RefreshTokenExpiry,
	)
	authHandler := v1.NewAuthHandler(authUC)

	// Storage module (R2)
	r2Storage, err := storage.NewR2Storage(
		context.Background(),
		cfg.R2AccountID,
		cfg.R2AccessKeyID,
		cfg.R2AccessKeySecret,
		cfg.R2BucketName,
		cfg.R2PublicURL,
		cfg.R2UploadTimeout,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize R2 storage")
	}
	uploadHandler := v1.NewUploadHandler(r2Storage, cfg.MaxUploadSizeMB)

	// Shipping module
	shippingUC := usecase.NewShippingUsecase(shippingRepo, txManager, memCache, cfg.CacheModesTTL)
	importUC := usecase.NewShippingImportUsecase(shippingUC, cfg.SeedUSDToGMDRate)
	shippingHandler := v1.NewShippingHandler(shippingUC)
	adminShippingHandler := v1.NewAdminShippingHandler(shippingUC, importUC)

	// Catalog module
	catalogUC := usecase.NewCatalogUsecase(productRepo, memCache, cfg.CacheProductTTL)
	catalogHandler := v1.NewCatalogHandler(catalogUC)
	adminCatalogHandler := v1.NewAdminCatalogHandler(catalogUC)

	// Order module
	orderUC := usecase.NewOrderUsecase(orderRepo, productRepo, shippingUC, txManager, cfg.MaxCartQuantity)
	orderHandler := v1.NewOrderHandler(orderUC)
	adminOrderHandler := v1.NewAdminOrderHandler(orderUC)

	// Auth
	mux.HandleFunc("POST /api/v1/auth/google", authHandler.GoogleLogin)
	mux.HandleFunc("POST /api/v1/auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/logout", authHandler.Logout)
	mux.Handle("GET /api/v1/auth/me", middleware.AuthMiddleware(http.HandlerFunc(authHandler.Me)))

	// User profile / addresses
	mux.Handle("POST /api/v1/user/addresses", middleware.AuthMiddleware(http.HandlerFunc(authHandler.AddAddress)))
	mux.Handle("GET /api/v1/user/addresses", middleware.AuthMiddleware(http.HandlerFunc(authHandler.GetAddresses)))
	mux.Handle("PUT /api/v1/user/addresses/{id}", middleware.AuthMiddleware(http.HandlerFunc(authHandler.UpdateAddress)))
	mux.Handle("DELETE /api/v1/user/addresses/{id}", middleware.AuthMiddleware(http.HandlerFunc(authHandler.DeleteAddress)))
	mux.Handle("PUT /api/v1/user/profile", middleware.AuthMiddleware(http.HandlerFunc(authHandler.UpdateProfile)))

	// Uploads
	mux.Handle("POST /api/v1/upload", middleware.AuthMiddleware(http.HandlerFunc(uploadHandler.UploadFile)))

	// Catalog (public)
	mux.HandleFunc("GET /api/v1/products", catalogHandler.ListProducts)
	mux.HandleFunc("GET /api/v1/products/{slug}", catalogHandler.GetProductBySlug)

	// Shipping (public)
	mux.HandleFunc("GET /api/v1/shipping/modes", shippingHandler.GetModes)
	mux.HandleFunc("POST /api/v1/shipping/quote", shippingHandler.Quote)

	// Cart & checkout (protected)
	mux.Handle("GET /api/v1/cart", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.GetCart)))
	mux.Handle("POST /api/v1/cart", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.AddToCart)))
	mux.Handle("DELETE /api/v1/cart/{productId}", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.RemoveFromCart)))
	mux.Handle("POST /api/v1/checkout/preview", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.PreviewCheckout)))
	mux.Handle("POST /api/v1/checkout", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.Checkout)))
	mux.Handle("GET /api/v1/orders", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.GetMyOrders)))
	mux.Handle("GET /api/v1/orders/{id}", middleware.AuthMiddleware(http.HandlerFunc(orderHandler.GetOrder)))

	// Admin (protected)
	adminMiddleware := func(h http.HandlerFunc) http.Handler {
		return middleware.AuthMiddleware(middleware.AdminMiddleware(h))
	}

	// Admin shipping rules
	mux.Handle("GET /api/v1/admin/shipping/rules", adminMiddleware(adminShippingHandler.ListRules))
	mux.Handle("GET /api/v1/admin/shipping/rules/{id}", adminMiddleware(adminShippingHandler.GetRule))
	mux.Handle("POST /api/v1/admin/shipping/rules", adminMiddleware(adminShippingHandler.CreateRule))
	mux.Handle("PUT /api/v1/admin/shipping/rules/{id}", adminMiddleware(adminShippingHandler.UpdateRule))
	mux.Handle("DELETE /api/v1/admin/shipping/rules/{id}", adminMiddleware(adminShippingHandler.DeleteRule))
	mux.Handle("POST /api/v1/admin/shipping/rules/import", adminMiddleware(adminShippingHandler.ImportRates))

	// Admin shipping modes
	mux.Handle("GET /api/v1/admin/shipping/modes", adminMiddleware(adminShippingHandler.ListModes))
	mux.Handle("POST /api/v1/admin/shipping/modes", adminMiddleware(adminShippingHandler.CreateMode))
	mux.Handle("PUT /api/v1/admin/shipping/modes/{key}", adminMiddleware(adminShippingHandler.UpdateMode))
	mux.Handle("DELETE /api/v1/admin/shipping/modes/{key}", adminMiddleware(adminShippingHandler.DeleteMode))

	// Admin catalog
	mux.Handle("GET /api/v1/admin/products", adminMiddleware(adminCatalogHandler.ListProducts))
	mux.Handle("GET /api/v1/admin/products/{id}", adminMiddleware(adminCatalogHandler.GetProduct))
	mux.Handle("POST /api/v1/admin/products", adminMiddleware(adminCatalogHandler.CreateProduct))
	mux.Handle("PUT /api/v1/admin/products/{id}", adminMiddleware(adminCatalogHandler.UpdateProduct))
	mux.Handle("DELETE /api/v1/admin/products/{id}", adminMiddleware(adminCatalogHandler.DeleteProduct))

	// Admin orders
	mux.Handle("GET /api/v1/admin/orders", adminMiddleware(adminOrderHandler.ListOrders))
	mux.Handle("PATCH /api/v1/admin/orders/{id}/status", adminMiddleware(adminOrderHandler.UpdateStatus))
	mux.Handle("PATCH /api/v1/admin/orders/{id}/payment-status", adminMiddleware(adminOrderHandler.UpdatePaymentStatus))

	// Health check
	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status": "ok"}`))
	}
	mux.HandleFunc("GET /api/v1/health", healthHandler)
	mux.HandleFunc("GET /health", healthHandler)

	addr := fmt.Sprintf(":%s", cfg.Port)

	rateLimiter := middleware.NewRateLimiter(
		context.Background(),
		rate.Limit(cfg.RateLimitPerSecond),
		cfg.RateLimitBurst,
		time.Minute,
		3*time.Minute,
	)

	handler := middleware.NewCORSMiddleware(cfg)(mux)
	handler = middleware.RequestLogger(handler)
	handler = rateLimiter.Middleware()(handler)
	handler = gziphandler.GzipHandler(handler)

	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	log.Info().Msgf("Server starting on %s", addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down...")

	rateLimiter.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	pgxPool.Close()
	log.Info().Msg("Server exited properly")
}
