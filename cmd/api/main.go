package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"storefront-api/internal/client"
	"storefront-api/internal/config"
	"storefront-api/internal/idempotency"
	"storefront-api/internal/logger"
	"storefront-api/internal/metrics"
	"storefront-api/internal/repository"
	"storefront-api/internal/server"
	"storefront-api/internal/service"
)

// @title        storefront-api
// @version      1.0
// @description  Catalog, checkout and order endpoints of the storefront. Every route is also served under /api.
// @BasePath     /
func main() {
	// load .env into os.Environ
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found (ok in prod)")
	}

	cfg := &config.Config{}
	if err := env.Parse(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to parse config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log, cfg.Environment.Name)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("storefront-api stopped")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx := context.Background()

	db, err := client.NewDBClient(cfg.DB(), log)
	if err != nil {
		return fmt.Errorf("init db: %w", err)
	}
	defer func() {
		if err := client.CloseDB(db); err != nil {
			log.Error().Err(err).Msg("close db")
		}
	}()

	productRepo := repository.NewProductRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	if cfg.Database.SeedProducts {
		if err := productRepo.Seed(ctx); err != nil {
			return fmt.Errorf("seed products: %w", err)
		}
		log.Info().Msg("sample catalog seeded")
	}

	store, closeStore, err := newIdempotencyStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	checkoutService := service.NewCheckoutService(db, productRepo, orderRepo, store, cfg.Checkout, log)
	catalogService := service.NewCatalogService(productRepo)
	orderService := service.NewOrderService(orderRepo)

	srv := server.NewServer(cfg.HTTP, log, metrics.New(), checkoutService, catalogService, orderService)

	serverAddr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info().
		Str("addr", serverAddr).
		Str("db_driver", cfg.Database.Driver).
		Str("idempotency_backend", cfg.Idempotency.Backend).
		Msg("starting HTTP server")

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("signal received, starting graceful shutdown")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

func newIdempotencyStore(ctx context.Context, cfg *config.Config) (idempotency.Store, func(), error) {
	switch cfg.Idempotency.Backend {
	case "", "memory":
		return idempotency.NewMemoryStore(cfg.Idempotency.MaxEntries, cfg.Idempotency.TTL), func() {}, nil
	case "redis":
		rdb, err := client.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("init redis: %w", err)
		}
		return idempotency.NewRedisStore(rdb, cfg.Idempotency.TTL), func() { _ = rdb.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown idempotency backend %q", cfg.Idempotency.Backend)
	}
}
