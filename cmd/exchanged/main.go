// Command exchanged runs the exchange layer HTTP service.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	app "github.com/R3E-Network/exchange_layer/internal/app"
	"github.com/R3E-Network/exchange_layer/internal/app/httpapi"
	"github.com/R3E-Network/exchange_layer/internal/app/metrics"
	"github.com/R3E-Network/exchange_layer/internal/app/storage/postgres"
	"github.com/R3E-Network/exchange_layer/internal/config"
	"github.com/R3E-Network/exchange_layer/internal/middleware"
	"github.com/R3E-Network/exchange_layer/internal/platform/migrations"
	"github.com/R3E-Network/exchange_layer/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var stores app.Stores
	if cfg.Database.URL != "" {
		db, err := sql.Open("postgres", cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Apply(ctx, db); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		store := postgres.New(db)
		stores = app.Stores{Pools: store, Exchanges: store, Audit: store}
		log.Info("using postgres persistence")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory persistence")
	}

	application, err := app.New(app.Options{
		UnitAsset:         cfg.Exchange.UnitAsset,
		Admin:             cfg.Exchange.Admin,
		ReconcileInterval: cfg.Exchange.ReconcileInterval,
	}, stores, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}

	if cfg.Exchange.GenesisPath != "" {
		genesis, err := config.LoadGenesis(cfg.Exchange.GenesisPath)
		if err != nil {
			return fmt.Errorf("load genesis: %w", err)
		}
		if err := application.SeedGenesis(ctx, genesis); err != nil {
			return fmt.Errorf("seed genesis: %w", err)
		}
	}

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, log)
	limiter.StartCleanup(time.Minute, ctx.Done())

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	api := httpapi.NewHandler(application)
	mux.Handle("/", httpapi.WrapWithAuth(limiter.Handler(metrics.InstrumentHandler(api)), cfg.AdminTokens()))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("http server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http shutdown")
	}
	if err := application.Stop(shutdownCtx); err != nil {
		log.WithError(err).Error("service shutdown")
	}
	return nil
}
