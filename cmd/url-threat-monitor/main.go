package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/url-threat-monitor/internal/alert"
	"github.com/mikey/url-threat-monitor/internal/api"
	"github.com/mikey/url-threat-monitor/internal/di"
	"github.com/mikey/url-threat-monitor/internal/factory"
	"github.com/mikey/url-threat-monitor/internal/orchestrator"
	"github.com/mikey/url-threat-monitor/internal/ports"
)

func main() {
	// Build the dependency injection container
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	// Run the application
	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(
	logger *zap.Logger,
	monitor *orchestrator.Orchestrator,
	dispatcher *alert.Dispatcher,
	inbox ports.InboxSource,
	archive factory.Archive,
	classifiers *factory.ClassifierFactory,
	server *api.Server,
) error {
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("Shutting down...", zap.String("signal", sig.String()))
		cancel()
	}()

	if server != nil {
		go func() {
			if err := server.Start(); err != nil {
				logger.Error("Operator API stopped", zap.Error(err))
			}
		}()
	}

	runErr := monitor.Run(ctx)

	if server != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to stop operator API", zap.Error(err))
		}
		shutdownCancel()
	}

	if err := inbox.Close(); err != nil {
		logger.Error("Failed to close inbox", zap.Error(err))
	}
	if err := classifiers.Close(); err != nil {
		logger.Error("Failed to close content classifier", zap.Error(err))
	}
	if archive != nil {
		archive.Stop()
	}

	monitor.LogStats("Final statistics")
	summary := dispatcher.Summary()
	logger.Info("Alert summary",
		zap.Int("total_alerts", summary.TotalAlerts),
		zap.Any("alert_levels", summary.AlertLevels),
		zap.Any("risk_levels", summary.RiskLevels))

	logger.Info("Shutdown complete")
	return runErr
}
