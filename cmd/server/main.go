/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the incentive compensation engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (config.yaml + INCENTIVE_* environment)
  2. Initialize structured logging
  3. Open the store (sqlite or in-memory)
  4. Create API handler with dependencies
  5. Start the anomaly scan scheduler
  6. Start server with graceful shutdown

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler
  4. Close database connection
  5. Exit

EXAMPLES:
  # Run with file database
  INCENTIVE_STORE_PATH=./data/incentive.db ./server

  # Run with in-memory store
  INCENTIVE_STORE_DRIVER=memory ./server

  # Run on different port
  INCENTIVE_SERVER_PORT=3000 ./server

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warp/incentive-engine/api"
	"github.com/warp/incentive-engine/config"
	"github.com/warp/incentive-engine/engine"
	memstore "github.com/warp/incentive-engine/engine/store"
	"github.com/warp/incentive-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitLogger(cfg.Log); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer zap.L().Sync()

	// Store selection
	var store api.Store
	switch cfg.Store.Driver {
	case "memory":
		store = memstore.NewMemory()
	default:
		db, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			zap.L().Fatal("failed to initialize database",
				zap.String("path", cfg.Store.Path), zap.Error(err))
		}
		defer db.Close()
		store = db
	}

	// Dependencies
	eng := &engine.Engine{Workers: cfg.Engine.Workers}
	detector := engine.NewDetector(engine.Thresholds{
		CriticalVariancePercent: cfg.Anomaly.CriticalVariancePercent,
		HighVariancePercent:     cfg.Anomaly.HighVariancePercent,
		MediumVariancePercent:   cfg.Anomaly.MediumVariancePercent,
		TerritoryStdDevs:        cfg.Anomaly.TerritoryStdDevs,
		CurveMismatchRatio:      cfg.Anomaly.CurveMismatchRatio,
	})
	handler := api.NewHandler(store, eng, detector)
	router := api.NewRouter(handler)

	// Background anomaly scans
	scheduler := api.NewScanScheduler(handler)
	scheduler.Enabled = cfg.Scheduler.Enabled
	if cfg.Scheduler.IntervalSecs > 0 {
		scheduler.CheckInterval = time.Duration(cfg.Scheduler.IntervalSecs) * time.Second
	}
	scheduler.Start()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		zap.L().Info("server starting",
			zap.Int("port", cfg.Server.Port),
			zap.String("store_driver", cfg.Store.Driver))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zap.L().Fatal("server failed", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		zap.L().Error("server forced to shutdown", zap.Error(err))
	}
	scheduler.Stop()

	zap.L().Info("server stopped")
}
