package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/config"
	"github.com/fjod/storefront/internal/events"
	"github.com/fjod/storefront/internal/gateway"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/inventory"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/orders"
)

type closer func() error

type backends struct {
	catalog   catalog.Catalog
	inventory inventory.Inventory
	orders    orders.Repository
	closers   []closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	zap.ReplaceGlobals(zl)

	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	b, err := newBackends(cfg, zl)
	if err != nil {
		zl.Fatal("failed to set up backends", zap.Error(err))
	}

	cartStore, idem, redisClose, err := newSessionStores(cfg, zl)
	if err != nil {
		zl.Fatal("failed to set up session stores", zap.Error(err))
	}
	if redisClose != nil {
		b.closers = append(b.closers, redisClose)
	}

	var publisher events.Publisher = events.NewLogPublisher(zl)
	if len(cfg.KafkaBrokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.KafkaTopic, cfg.KafkaBrokers...)
		zl.Info("publishing events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	}
	b.closers = append(b.closers, publisher.Close)

	collector := catalog.NewCollector(b.catalog, cfg.RequestTimeout)
	carts := cart.NewService(cartStore, b.catalog, zl)
	checkoutSvc := checkout.NewService(carts, b.inventory, b.orders, idem, publisher, zl, checkout.Options{
		DeductionTimeout: cfg.DeductionTimeout,
		Workers:          cfg.DeductionWorkers,
		PublishTimeout:   cfg.PublishTimeout,
	})

	handlers := h.Handlers{
		Products: h.NewProductHandler(b.catalog, collector, zl, cfg.RequestTimeout),
		Cart:     h.NewCartHandler(carts, zl, cfg.RequestTimeout),
		Checkout: h.NewCheckoutHandler(checkoutSvc, zl, cfg.RequestTimeout),
		Orders:   h.NewOrdersHandler(orders.NewService(b.orders, zl), zl, cfg.RequestTimeout),
		Admin:    h.NewAdminHandler(b.catalog, collector, inventory.NewService(b.inventory, b.catalog, zl), zl, cfg.RequestTimeout),
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Mount("/", h.NewRouter(handlers, zl, cfg.MaxRequestBodySize))

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(r, "storefront"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zl.Info("storefront starting",
			zap.String("port", cfg.HTTPPort),
			zap.String("catalog_backend", cfg.CatalogBackend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			zl.Warn("close failed", zap.Error(err))
		}
	}
	if err := tp.Shutdown(ctx); err != nil {
		zl.Warn("tracer shutdown failed", zap.Error(err))
	}

	zl.Info("server exited")
}

// newBackends picks catalog, inventory and orders by CATALOG_BACKEND. The
// local backends keep stock in the catalog and orders in memory.
func newBackends(cfg *config.Config, zl *zap.Logger) (*backends, error) {
	switch cfg.CatalogBackend {
	case config.BackendHTTP:
		client := gateway.NewClient(cfg.GatewayURL, gateway.Options{
			Timeout:            cfg.GatewayTimeout,
			BreakerMaxFailures: cfg.BreakerMaxFailures,
			BreakerOpenTimeout: cfg.BreakerOpenTimeout,
			Logger:             zl,
		})
		zl.Info("using gateway backend", zap.String("gateway_url", cfg.GatewayURL))
		return &backends{
			catalog:   catalog.NewHTTPCatalog(client),
			inventory: inventory.NewHTTPInventory(client),
			orders:    orders.NewHTTPRepository(client),
		}, nil

	case config.BackendMemory:
		cat := catalog.NewMemoryCatalog(catalog.Fixtures(), catalog.DefaultPerPage)
		stock := inventory.NewMemoryStore(cat)
		return &backends{
			catalog:   cat,
			inventory: stock,
			orders:    orders.NewMemoryRepository(0),
			closers:   []closer{stock.Close},
		}, nil

	case config.BackendSQLite:
		cat, err := catalog.NewSQLiteCatalog(cfg.SQLitePath, catalog.DefaultPerPage)
		if err != nil {
			return nil, err
		}
		stock := inventory.NewMemoryStore(cat)
		zl.Info("using sqlite catalog", zap.String("path", cfg.SQLitePath))
		return &backends{
			catalog:   cat,
			inventory: stock,
			orders:    orders.NewMemoryRepository(0),
			closers:   []closer{cat.Close, stock.Close},
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown catalog backend %q", config.ErrInvalidConfig, cfg.CatalogBackend)
}

// newSessionStores returns Redis-backed carts and checkout keys when REDIS_ADDR
// is set, in-process ones otherwise.
func newSessionStores(cfg *config.Config, zl *zap.Logger) (cart.Store, checkout.IdempotencyStore, closer, error) {
	if cfg.RedisAddr == "" {
		return cart.NewMemoryStore(cfg.CartTTL), checkout.NewMemoryIdempotency(cfg.IdempotencyTTL), nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	zl.Info("using redis session stores", zap.String("addr", cfg.RedisAddr))
	return cart.NewRedisStore(client, cfg.CartTTL), checkout.NewRedisIdempotency(client, cfg.IdempotencyTTL), client.Close, nil
}
