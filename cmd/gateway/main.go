package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/joao-fontenele/storefront/internal/config"
	"github.com/joao-fontenele/storefront/internal/gateway"
	"github.com/joao-fontenele/storefront/internal/logging"
	"github.com/joao-fontenele/storefront/internal/telemetry"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.Options{Service: "gateway"}).Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(logging.Options{
		Service: "gateway",
		Env:     string(cfg.Env),
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	shutdownTracer, err := telemetry.InitTracerProvider(ctx, "gateway", cfg.Telemetry.ServiceVersion, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		logger.Error("failed to initialize tracer", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownTracer(ctx) }()

	metricsHandler, shutdownMeter, err := telemetry.InitMeterProvider("gateway", cfg.Telemetry.ServiceVersion)
	if err != nil {
		logger.Error("failed to initialize meter", "error", err)
		os.Exit(1)
	}
	defer func() { _ = shutdownMeter(ctx) }()

	if cfg.Gateway.Upstream == "" {
		logger.Error("BACKEND_URL is required")
		os.Exit(1)
	}

	httpClient := &http.Client{
		Timeout:   cfg.API.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	backendProxy := gateway.NewServiceProxy(cfg.Gateway.Upstream, httpClient)
	var activityProxy *gateway.ServiceProxy
	if cfg.Gateway.Activity != "" {
		activityProxy = gateway.NewServiceProxy(cfg.Gateway.Activity, httpClient)
	}
	handler := gateway.NewHandler(backendProxy, activityProxy, logger)

	mux := http.NewServeMux()
	handler.Register(mux, telemetry.WithHTTPRoute)
	mux.Handle("GET /metrics", metricsHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      otelhttp.NewHandler(mux, "gateway", otelhttp.WithSpanNameFormatter(telemetry.SpanName)),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		logger.Info("starting gateway", "port", cfg.Server.Port, "upstream", cfg.Gateway.Upstream)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
