package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sirosfoundation/relay-panel/internal/backend"
	"github.com/sirosfoundation/relay-panel/internal/notify"
	"github.com/sirosfoundation/relay-panel/internal/server"
	"github.com/sirosfoundation/relay-panel/internal/service"
	"github.com/sirosfoundation/relay-panel/pkg/config"
	"github.com/sirosfoundation/relay-panel/pkg/logging"
)

var (
	configFile = flag.String("config", "configs/config.yaml", "Path to configuration file")
	version    = "dev"
	buildTime  = "unknown"
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting relay panel",
		zap.String("version", version),
		zap.String("build_time", buildTime),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := backend.New(ctx, cfg)
	cancel()
	if err != nil {
		logger.Fatal("Failed to initialize storage backend", zap.Error(err))
	}
	defer func() { _ = store.Close() }()

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.Ping(ctx); err != nil {
		cancel()
		logger.Fatal("Failed to ping storage", zap.Error(err))
	}
	if err := service.EnsureAdmin(ctx, store, cfg.Bootstrap, logger); err != nil {
		cancel()
		logger.Fatal("Failed to bootstrap admin account", zap.Error(err))
	}
	cancel()

	logger.Info("Storage backend initialized", zap.String("type", string(store.Type())))

	sender := notify.New(cfg.Telegram, logger)
	services := service.NewServices(store, sender, cfg, logger)
	services.Start()

	mgr := server.NewManager(server.ServerConfigFrom(cfg), logger)
	mgr.AddProvider(server.NewPanelProvider(cfg, store, services, logger))
	if err := mgr.Start(context.Background()); err != nil {
		logger.Fatal("Failed to start server", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := mgr.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	services.Stop()

	logger.Info("Server exited")
}
