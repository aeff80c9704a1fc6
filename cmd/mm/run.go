package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"btc-option-mm/internal/api"
	"btc-option-mm/internal/config"
	"btc-option-mm/internal/engine"
	"btc-option-mm/internal/logging"
)

var configPath string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the market maker",
	RunE:  runMaker,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "path to the YAML config file")
}

func runMaker(cmd *cobra.Command, args []string) error {
	if p := os.Getenv("BTCMM_CONFIG"); p != "" {
		configPath = p
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger, err := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", zap.Error(err))
		return err
	}

	var apiServer *api.Server
	if cfg.Dashboard.Enabled {
		apiServer = api.NewServer(cfg.Dashboard, cfg.Metrics, eng, *cfg, logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error("dashboard server failed", zap.Error(err))
			}
		}()
		logger.Info("dashboard started", zap.String("url", fmt.Sprintf("http://localhost:%d", cfg.Dashboard.Port)))
	}

	if cfg.DryRun {
		logger.Warn("dry-run mode: no real orders will be placed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	engineErr := make(chan error, 1)
	go func() { engineErr <- eng.Start(ctx) }()

	logger.Info("market maker started", zap.Bool("dry_run", cfg.DryRun))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
	case err := <-engineErr:
		if err != nil {
			logger.Error("engine exited", zap.Error(err))
		}
	}

	cancel()

	if apiServer != nil {
		if err := apiServer.Stop(); err != nil {
			logger.Error("failed to stop dashboard", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	eng.Stop(shutdownCtx)

	return nil
}
