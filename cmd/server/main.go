package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/justifi/internal/config"
	"github.com/garyjia/justifi/internal/container"
	httpapi "github.com/garyjia/justifi/internal/interfaces/http"
	"github.com/garyjia/justifi/pkg/utils"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := os.Getenv("JUSTIFI_CONFIG")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, err := utils.NewLogger(utils.LoggerConfig{
		Level:      cfg.Logger.Level,
		OutputPath: cfg.Logger.OutputPath,
		Format:     cfg.Logger.Format,
		Service:    "justifi-server",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting justification service",
		zap.String("version", version),
		zap.String("database_driver", cfg.Database.Driver),
		zap.String("notification_channel", cfg.Notification.Channel),
		zap.Int("port", cfg.Server.Port))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c, err := container.NewContainer(cfg.ToContainerConfig(version), logger)
	if err != nil {
		logger.Fatal("Failed to create container", zap.Error(err))
	}
	if err := c.Start(ctx); err != nil {
		logger.Fatal("Failed to start container", zap.Error(err))
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Error("Container shutdown error", zap.Error(err))
		}
	}()

	if cfg.Logger.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	server := httpapi.NewServer(httpapi.ServerConfig{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		RateLimit: httpapi.RateLimitConfig{
			Enabled: cfg.RateLimit.Enabled,
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
		},
	}, httpapi.Dependencies{
		Engine:    c.Engine(),
		Query:     c.Services().Query,
		Rules:     c.Services().Rules,
		Types:     c.Services().Types,
		Templates: c.Services().Templates,
		Users:     c.Services().Users,
		Exporter:  c.Exporter(),
		Health:    c,
		Metrics:   c.Metrics(),
		Version:   version,
	}, logger)

	// Start blocks until SIGINT or SIGTERM
	if err := server.Start(ctx); err != nil {
		logger.Error("HTTP server error", zap.Error(err))
		return
	}

	logger.Info("Server exited successfully")
}
