package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/kasirpos/platform/internal/config"
	"github.com/kasirpos/platform/internal/db"
	"github.com/kasirpos/platform/internal/events"
	"github.com/kasirpos/platform/internal/metric"
	"github.com/kasirpos/platform/internal/reporting"
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

	shutdownTracer, err := telemetry.InitTracer("pos-report-worker", logger)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	consumer, err := events.NewConsumer(cfg.NATS.URL, cfg.NATS.Stream, logger, metrics)
	if err != nil {
		log.Fatalf("Failed to connect to event broker: %v", err)
	}
	defer consumer.Close()

	handler := reporting.NewPaymentHandler(reporting.NewPGStore(pool), logger)

	if err := consumer.Run(ctx, "reporting-payments", []string{events.PaymentCompleted}, handler.Handle); err != nil {
		log.Fatalf("Consumer failed: %v", err)
	}

	logger.Info("report worker shutdown complete")
}
