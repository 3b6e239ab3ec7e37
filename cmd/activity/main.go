package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/joao-fontenele/storefront/internal/activity"
	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/logging"
	"github.com/joao-fontenele/storefront/internal/messaging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{Service: "activity"}).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{
		Service: "activity",
		Env:     string(cfg.Env),
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "activity", cfg.Telemetry.ServiceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("activity", cfg.Telemetry.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(context.Background()) }()

	if cfg.Postgres.URL == "" {
		logger.Error("POSTGRES_URL is required")
		os.Exit(1)
	}
	if len(cfg.Kafka.Brokers) == 0 {
		logger.Error("KAFKA_BROKERS is required")
		os.Exit(1)
	}

	db, err := telemetry.OpenDB("postgres", cfg.Postgres.URL)
	if err != nil {
		logger.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	if err := db.PingContext(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	repo := activity.NewRepository(db)
	ingester := activity.NewIngester(repo, logger)
	handler := activity.NewHandler(repo, logger)

	consumer := messaging.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ActivityTopic, cfg.Kafka.GroupID,
		messaging.WithLogger(logger))
	defer func() { _ = consumer.Close() }()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /activity", telemetry.WithHTTPRoute(handler.HandleList))
	mux.HandleFunc("GET /activity/summary", telemetry.WithHTTPRoute(handler.HandleSummary))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(mux, "activity", otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting activity service", "port", cfg.Server.Port, "topic", cfg.Kafka.ActivityTopic)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := consumer.Consume(gctx, ingester.Handle)
		if errors.Is(err, context.Canceled) {
			logger.Info("consumer stopped")
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("activity service error", "error", err)
		os.Exit(1)
	}
}
