package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"logdistributor/api"
	"logdistributor/config"
	"logdistributor/distributor/implementations"
	"logdistributor/telemetry"
)

const (
	serviceName = "log-distributor"
	version     = "1.0.0"
)

func main() {
	logger := initLogger()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	logger.Info("starting log distributor",
		zap.String("service", serviceName),
		zap.String("version", version),
		zap.Int("analyzer_count", len(cfg.Analyzers)),
		zap.Int("worker_min", cfg.WorkerMin),
		zap.Int("worker_max", cfg.WorkerMax),
		zap.Int("queue_capacity", cfg.QueueCapacity),
	)

	metrics := telemetry.New()
	dist := implementations.New(cfg, metrics, logger)

	ctx, cancelDistributor := context.WithCancel(context.Background())
	if err := dist.Start(ctx); err != nil {
		logger.Fatal("failed to start distributor", zap.Error(err))
	}

	handler := api.NewHandler(dist, metrics, logger)
	router := handler.SetupRoutes()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}

	cancelDistributor()
	if err := dist.Stop(); err != nil {
		logger.Error("distributor shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

// initLogger configures zap the way the teacher service does: console
// encoding, capital-color levels, ISO8601 timestamps.
func initLogger() *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	cfg.DisableCaller = true
	cfg.DisableStacktrace = true
	cfg.Encoding = "console"
	cfg.EncoderConfig = zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "message",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	logger, err := cfg.Build()
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return logger
}
