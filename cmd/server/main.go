package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"biolink-storefront-api/internal/cache"
	"biolink-storefront-api/internal/cart"
	"biolink-storefront-api/internal/catalog"
	"biolink-storefront-api/internal/checkout"
	"biolink-storefront-api/internal/community"
	"biolink-storefront-api/internal/config"
	"biolink-storefront-api/internal/events"
	"biolink-storefront-api/internal/handlers"
	"biolink-storefront-api/internal/middleware"
	"biolink-storefront-api/internal/storage"
	"biolink-storefront-api/internal/telemetry"
	"biolink-storefront-api/internal/wallet"

	"github.com/gorilla/mux"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting Bio-Link Storefront API", "version", "1.0.0")

	// Initialize OpenTelemetry telemetry system
	ctx := context.Background()
	otelTelemetry := &telemetry.Telemetry{}
	otelTelemetry.InitMetrics("biolink-storefront-api", &ctx)
	slog.Info("OpenTelemetry telemetry initialized")

	apiTelemetry := telemetry.NewStorefrontApiTelemetry()
	if err := apiTelemetry.InitializeTelemetry(ctx); err != nil {
		slog.Error("Failed to initialize API telemetry", "error", err)
		return
	}
	slog.Info("Storefront API telemetry initialized successfully")

	// Snapshot store backs all service state with local JSON files
	persistenceEnabled := strings.EqualFold(cfg.EnableJSONPersistence, "true")
	snapshots, err := storage.NewSnapshotStore(cfg.SnapshotDir, persistenceEnabled)
	if err != nil {
		slog.Error("Failed to initialize snapshot store", "error", err)
		return
	}

	// Idempotency cache guards commission processing against replays
	cacheTTL := parseDurationWithDefault(cfg.IdempotencyCacheTTL, 2*time.Minute)
	cacheCleanup := parseDurationWithDefault(cfg.IdempotencyCacheCleanupInterval, 30*time.Second)
	idempotencyCache := cache.NewTTLCache(cacheTTL, cacheCleanup)
	defer idempotencyCache.Stop()

	// Initialize services
	catalogService, err := catalog.NewService(cfg.SeedDataPath, snapshots)
	if err != nil {
		slog.Error("Failed to initialize catalog service", "error", err)
		return
	}
	slog.Info("Catalog service initialized successfully")

	cartService := cart.NewService(snapshots)
	walletService := wallet.NewService(snapshots, idempotencyCache)
	communityService := community.NewService(cfg.ShareBaseURL, snapshots)

	// Initialize event queue
	maxEvents, _ := strconv.Atoi(cfg.MaxEventsInQueue)
	if maxEvents <= 0 {
		maxEvents = 10000
	}

	eventQueue, err := events.NewEventQueue(events.EventQueueConfig{
		FilePath:  cfg.EventsFilePath,
		MaxEvents: maxEvents,
		Logger:    slog.Default(),
	})
	if err != nil {
		slog.Error("Failed to initialize event queue", "error", err)
		return
	}
	slog.Info("Event queue initialized successfully")

	shippingFlatRate, err := strconv.ParseInt(cfg.ShippingFlatRate, 10, 64)
	if err != nil || shippingFlatRate < 0 {
		slog.Warn("Invalid shipping flat rate, using default", "configured", cfg.ShippingFlatRate)
		shippingFlatRate = 15000
	}

	checkoutService := checkout.NewService(cartService, catalogService, walletService, communityService, eventQueue, shippingFlatRate)

	// Initialize handlers
	storefrontHandler := handlers.NewStorefrontHandler(catalogService)
	cartHandler := handlers.NewCartHandler(cartService, catalogService)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, catalogService, apiTelemetry)
	walletHandler := handlers.NewWalletHandler(walletService, apiTelemetry)
	communityHandler := handlers.NewCommunityHandler(communityService, eventQueue, apiTelemetry)
	adminHandler := handlers.NewAdminHandler(catalogService, walletService, checkoutService, apiTelemetry)
	eventsHandler := handlers.NewEventsHandler(eventQueue, slog.Default())
	healthHandler := handlers.NewHealthHandler()
	slog.Debug("HTTP handlers initialized")

	r := mux.NewRouter()

	// Create telemetry middleware
	telemetryMiddleware := telemetry.NewTelemetryMiddleware(apiTelemetry)

	// Apply telemetry middleware to all routes first
	r.Use(telemetryMiddleware.Middleware)

	// Setup rate limiting middleware
	rateLimitConfig := middleware.ParseRateLimitConfig(cfg)
	var rateLimiter *middleware.RateLimiter
	if rateLimitConfig.Enabled {
		rateLimiter = middleware.NewRateLimiter(rateLimitConfig)
		r.Use(middleware.RateLimitMiddleware(rateLimiter))
		slog.Info("Rate limiting middleware enabled")
	} else {
		slog.Info("Rate limiting middleware disabled")
	}

	rateLimitStatusHandler := handlers.NewRateLimitStatusHandler(rateLimiter)

	// Apply auth middleware to v1 API routes
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.AuthMiddleware)

	// Catalog and storefront routes
	v1.HandleFunc("/products", storefrontHandler.ListProducts).Methods("GET")
	v1.HandleFunc("/products/{productId}", storefrontHandler.GetProduct).Methods("GET")
	v1.HandleFunc("/storefront/{username}", storefrontHandler.GetStorefront).Methods("GET")
	v1.HandleFunc("/resellers/{resellerId}/listings", storefrontHandler.AddListing).Methods("POST")
	v1.HandleFunc("/resellers/{resellerId}/listings/{productId}", storefrontHandler.RemoveListing).Methods("DELETE")
	v1.HandleFunc("/resellers/{resellerId}/orders", storefrontHandler.ListResellerOrders).Methods("GET")

	// Cart routes
	v1.HandleFunc("/carts/{cartId}", cartHandler.GetCart).Methods("GET")
	v1.HandleFunc("/carts/{cartId}", cartHandler.ClearCart).Methods("DELETE")
	v1.HandleFunc("/carts/{cartId}/items", cartHandler.AddItem).Methods("POST")
	v1.HandleFunc("/carts/{cartId}/items/{productId}", cartHandler.UpdateItem).Methods("PATCH")
	v1.HandleFunc("/carts/{cartId}/items/{productId}", cartHandler.RemoveItem).Methods("DELETE")

	// Checkout and order routes
	v1.HandleFunc("/checkout", checkoutHandler.Checkout).Methods("POST")
	v1.HandleFunc("/orders/{orderId}", checkoutHandler.GetOrder).Methods("GET")

	// Wallet routes
	v1.HandleFunc("/wallets/{userId}", walletHandler.GetWallet).Methods("GET")
	v1.HandleFunc("/wallets/{userId}/transactions", walletHandler.ListTransactions).Methods("GET")
	v1.HandleFunc("/wallets/{userId}/payouts", walletHandler.CreatePayout).Methods("POST")
	v1.HandleFunc("/wallets/{userId}/payouts", walletHandler.ListPayouts).Methods("GET")
	v1.HandleFunc("/wallets/{userId}/payouts/{payoutId}", walletHandler.GetPayout).Methods("GET")

	// Community voucher and share routes
	v1.HandleFunc("/vouchers", communityHandler.CreateVoucher).Methods("POST")
	v1.HandleFunc("/vouchers", communityHandler.ListVouchers).Methods("GET")
	v1.HandleFunc("/vouchers/{voucherId}/status", communityHandler.UpdateVoucherStatus).Methods("PATCH")
	v1.HandleFunc("/scan/{code}", communityHandler.RedeemVoucher).Methods("GET")
	v1.HandleFunc("/users/{userId}/shares", communityHandler.CreateShare).Methods("POST")
	v1.HandleFunc("/users/{userId}/shares", communityHandler.ListShares).Methods("GET")
	v1.HandleFunc("/shares/{shareId}/clicks", communityHandler.TrackClick).Methods("POST")
	v1.HandleFunc("/shares/{shareId}/conversions", communityHandler.TrackConversion).Methods("POST")

	// Event streaming
	v1.HandleFunc("/events", eventsHandler.GetEvents).Methods("GET")

	// Admin API routes (v1) - require admin authentication
	adminV1 := r.PathPrefix("/v1/admin").Subrouter()
	adminV1.Use(middleware.AdminAuthMiddleware)
	adminV1.HandleFunc("/products/set", adminHandler.SetProducts).Methods("PUT")
	adminV1.HandleFunc("/products/create", adminHandler.CreateProducts).Methods("POST")
	adminV1.HandleFunc("/products/delete", adminHandler.DeleteProducts).Methods("DELETE")
	adminV1.HandleFunc("/orders/{orderId}/status", adminHandler.UpdateOrderStatus).Methods("PATCH")
	adminV1.HandleFunc("/wallets/{userId}/payouts/{payoutId}/status", adminHandler.UpdatePayoutStatus).Methods("PATCH")
	adminV1.HandleFunc("/commissions", adminHandler.ProcessCommission).Methods("POST")

	// Rate limiting status endpoints (admin only)
	adminV1.HandleFunc("/rate-limit/status", rateLimitStatusHandler.GetRateLimitStatus).Methods("GET")
	adminV1.HandleFunc("/rate-limit/reset", rateLimitStatusHandler.ResetRateLimits).Methods("POST")

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	slog.Info("Starting HTTP server",
		"port", cfg.Port,
		"environment", cfg.Environment)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server ready to accept connections", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown event queue first so the final events hit disk
	if err := eventQueue.Close(); err != nil {
		slog.Error("Error closing event queue", "error", err)
	}

	if rateLimiter != nil {
		rateLimiter.Stop()
	}

	// Shutdown telemetry
	otelTelemetry.Close()
	slog.Info("Telemetry shutdown completed")

	// Shutdown HTTP server
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server exited")
}

func parseDurationWithDefault(value string, defaultValue time.Duration) time.Duration {
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		slog.Warn("Invalid duration, using default", "value", value, "default", defaultValue)
		return defaultValue
	}
	return parsed
}
