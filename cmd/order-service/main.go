package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kasirpos/platform/internal/config"
	"github.com/kasirpos/platform/internal/db"
	"github.com/kasirpos/platform/internal/events"
	"github.com/kasirpos/platform/internal/metric"
	"github.com/kasirpos/platform/internal/order"
	"github.com/kasirpos/platform/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(os.Getenv("POS_CONFIG_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	shutdownTracer, err := telemetry.InitTracer("pos-order-service", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer pool.Close()

	metrics := metric.New()
	go func() {
		if err := metrics.Serve(cfg.Server.MetricsPort); err != nil {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()

	bus, err := events.NewPublisher(ctx, cfg.NATS.URL, cfg.NATS.Stream, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to connect to event broker: %v", err)
	}
	defer bus.Close()

	svc := order.NewService(
		order.NewPGStore(pool),
		order.NewHTTPStockChecker(cfg.Services.Product),
		bus,
		logger,
	)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: order.NewRouter(svc, logger),
	}

	go func() {
		logger.Info("order service listening", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("order service shutdown complete")
}
