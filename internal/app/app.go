// Package app wires configuration, storage and the REST server into the nocturne service.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/chrissnell/nocturne/internal/controllers/restserver"
	"github.com/chrissnell/nocturne/internal/storage"
	"github.com/chrissnell/nocturne/pkg/config"
)

// App represents the main application
type App struct {
	configProvider config.ConfigProvider
	logger         *zap.SugaredLogger
}

// New creates a new application instance
func New(configProvider config.ConfigProvider, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		configProvider: configProvider,
		logger:         logger,
	}
}

// Run starts the application and blocks until a shutdown signal arrives or ctx is
// cancelled
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg, err := a.configProvider.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	store, err := storage.New(ctx, cfg.Storage, a.logger.Desugar())
	if err != nil {
		return fmt.Errorf("error opening night store: %w", err)
	}
	if store != nil {
		defer store.Close()
		a.logger.Infof("night store backend: %s", cfg.Storage.Backend)
	} else {
		a.logger.Info("no night store configured; nights will not be saved")
	}

	ctrl, err := restserver.NewController(ctx, &wg, cfg, store, a.logger)
	if err != nil {
		return fmt.Errorf("error creating REST server: %w", err)
	}
	if err := ctrl.StartController(); err != nil {
		return fmt.Errorf("error starting REST server: %w", err)
	}

	a.logger.Info("application started successfully")

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		a.logger.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		a.logger.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	a.logger.Info("waiting for all workers to terminate...")
	wg.Wait()
	a.logger.Info("shutdown complete")

	return nil
}
