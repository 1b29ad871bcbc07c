package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sockethub/database"
	"sockethub/internal/config"
	"sockethub/internal/hub"
)

func main() {
	// Load config (fallback to env/default)
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	// Setup structured logging
	logger := newLogger(cfg)
	slog.SetDefault(logger)

	opts := hub.Options{
		Port:        cfg.HubPort,
		Greeting:    cfg.Greeting,
		Passthrough: cfg.Passthrough,
		MaxPayload:  cfg.MaxPayload,
		RateLimit:   cfg.RateLimit,
		RateBurst:   cfg.RateBurst,
		Logger:      logger,
	}

	// Upgrade authentication
	if cfg.AuthEnabled() {
		opts.Auth = hub.NewTokenValidator(cfg.JWTSecret)
		logger.Info("upgrade_auth_enabled")
	}

	// Message history
	if cfg.DatabaseURL != "" {
		db, err := database.Connect(cfg.DatabaseURL, logger)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer database.Close(db)
		opts.History = hub.NewHistoryRepository(db)
		logger.Info("message_history_enabled")
	}

	// Broadcast bridge
	var bridge *hub.Bridge
	if cfg.RedisURL != "" {
		// strip the scheme, go-redis wants host:port here
		redisAddr := cfg.RedisURL
		redisAddr = strings.TrimPrefix(redisAddr, "redis://")
		redisAddr = strings.TrimPrefix(redisAddr, "rediss://")

		bridge, err = hub.NewBridge(redisAddr, cfg.BridgeChannel, logger)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer bridge.Close()
		opts.Bridge = bridge
		logger.Info("broadcast_bridge_enabled", "channel", cfg.BridgeChannel)
	}

	server := hub.NewServer(opts)

	logger.Info("starting_hub_server", "port", cfg.HubPort)
	if err := server.Start(); err != nil {
		logger.Error("server_start_failed", "error", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if bridge != nil {
		go func() {
			if err := bridge.Run(ctx, server.Registry()); err != nil && ctx.Err() == nil {
				logger.Error("bridge_stopped", "error", err.Error())
			}
		}()
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("received_shutdown_signal")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown_error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("server_stopped_gracefully")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, handlerOpts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, handlerOpts))
}
