package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sportpick-hq/newsdesk/internal/app"
	"github.com/sportpick-hq/newsdesk/internal/config"
	"github.com/sportpick-hq/newsdesk/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "newsdesk run failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if _, err := logger.Init(cfg.LogLevel); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	logger.InfoObj("newsdesk starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	desk, err := app.NewNewsdesk(ctx, cfg, logger.Default())
	if err != nil {
		logger.ErrorObj("failed to initialize newsdesk", "error", err)
		return err
	}

	if err := desk.Run(ctx); err != nil {
		return fmt.Errorf("newsdesk run: %w", err)
	}
	return nil
}
