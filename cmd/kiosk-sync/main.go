package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kiosk-sync/internal/client"
	"kiosk-sync/internal/config"
	"kiosk-sync/internal/service"
	"kiosk-sync/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Level, cfg.Log.Format, "kiosk-sync")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting kiosk sync daemon",
		zap.String("version", service.Version),
		zap.String("mqtt_broker", cfg.MQTT.Broker),
		zap.String("api_base_url", cfg.API.BaseURL),
	)

	tokens := client.StaticTokenSource(cfg.API.BearerToken)

	kioskService, err := service.NewKioskService(cfg, tokens, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to create kiosk service", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := kioskService.Start(ctx); err != nil {
		zapLogger.Fatal("Failed to start kiosk service", zap.Error(err))
	}

	go serveMetrics(cfg.Metrics.Addr, zapLogger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	zapLogger.Info("Received signal, shutting down", zap.String("signal", sig.String()))

	cancel()
	if err := kioskService.Stop(context.Background()); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}

	zapLogger.Info("Daemon stopped")
}

func serveMetrics(addr string, zapLogger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if err := http.ListenAndServe(addr, mux); err != nil {
		zapLogger.Error("Metrics server terminated", zap.Error(err))
	}
}
