package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/polyglot-llm-gateway/internal/pkg/config"
	"github.com/tjfontaine/polyglot-llm-gateway/internal/telemetry"
	"github.com/tjfontaine/polyglot-llm-gateway/pkg/gateway"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := slog.Default()

	var shutdownTracer func(context.Context) error
	if cfg.Tracing.Enabled {
		shutdownTracer, err = telemetry.InitTracer(cfg.Tracing.ServiceName, logger)
		if err != nil {
			log.Fatalf("failed to initialize tracer: %v", err)
		}
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
			}
		}()
	}

	storePath := cfg.Store.SQLite.Path
	if storePath == "" {
		storePath = "./data/gateway.db"
	}

	opts := []gateway.Option{
		gateway.WithConfigValue(cfg),
		gateway.WithSQLiteStore(storePath),
		gateway.WithLogger(logger),
	}
	if cfg.Cache.Type == "redis" {
		opts = append(opts, gateway.WithRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB))
	}

	gw, err := gateway.New(opts...)
	if err != nil {
		log.Fatalf("failed to create gateway: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startErrCh := make(chan error, 1)
	go func() {
		startErrCh <- gw.Start(ctx)
	}()

	logger.Info("gateway started", slog.Int("port", cfg.Server.Port))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-startErrCh:
		if err != nil {
			log.Fatalf("gateway failed: %v", err)
		}
	case <-sigChan:
		logger.Info("shutdown signal received, stopping gateway")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeoutDuration())
	defer shutdownCancel()

	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("gateway shutdown complete")
}
