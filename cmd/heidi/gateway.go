package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/psychoticproxy/heidi/pkg/channels"
	"github.com/psychoticproxy/heidi/pkg/health"
	"github.com/psychoticproxy/heidi/pkg/logger"
)

func gatewayCmd(debug bool) error {
	if debug {
		logger.SetLevel(logger.DEBUG)
	}

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(true); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	// Tee logs into the workspace so a restart does not lose diagnostics.
	logDir := filepath.Join(cfg.WorkspacePath(), "logs")
	if err := os.MkdirAll(logDir, 0o755); err == nil {
		logFile, err := os.OpenFile(filepath.Join(logDir, "heidi.log"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err == nil {
			defer logFile.Close()
			logger.SetOutput(io.MultiWriter(os.Stderr, logFile))
		}
	}

	rt, err := buildRuntime(cfg, "discord")
	if err != nil {
		return err
	}

	discord, err := channels.NewDiscordChannel(cfg.Discord, rt.bus)
	if err != nil {
		rt.shutdown(context.Background())
		return err
	}
	rt.manager.Register(discord)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := rt.start(ctx); err != nil {
		rt.shutdown(context.Background())
		return err
	}

	healthServer := health.NewServer(cfg.Gateway.Host, cfg.Gateway.Port)
	healthServer.Start()

	fmt.Printf("Gateway running, liveness on http://%s:%d/health\n", cfg.Gateway.Host, cfg.Gateway.Port)
	fmt.Println("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nShutting down...")
	cancel()
	_ = healthServer.Stop(context.Background())
	rt.shutdown(context.Background())
	fmt.Println("Gateway stopped")
	return nil
}
