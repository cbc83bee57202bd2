package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	httpadapter "github.com/oceanvis/llc4320-gateway/internal/adapter/http"
	kafkaadapter "github.com/oceanvis/llc4320-gateway/internal/adapter/kafka"
	"github.com/oceanvis/llc4320-gateway/internal/adapter/openvisus"
	"github.com/oceanvis/llc4320-gateway/internal/config"
	"github.com/oceanvis/llc4320-gateway/internal/coords"
	"github.com/oceanvis/llc4320-gateway/internal/observability"
	"github.com/oceanvis/llc4320-gateway/internal/service"
)

// Flags override their environment-variable counterparts when set.
var (
	flagAddr        string
	flagLogLevel    string
	flagLatLonFile  string
	flagFrontendDir string
)

var rootCmd = &cobra.Command{
	Use:   "gateway",
	Short: "HTTP gateway serving slices of the LLC4320 ocean simulation",
	RunE:  func(*cobra.Command, []string) error { return run() },
	// Config errors are already logged with context; suppress cobra's echo.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Flags().StringVar(&flagAddr, "addr", "", "listen address (overrides HTTP_ADDR)")
	rootCmd.Flags().StringVar(&flagLogLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	rootCmd.Flags().StringVar(&flagLatLonFile, "latlon-file", "", "coordinate NetCDF path (overrides LATLON_FILE)")
	rootCmd.Flags().StringVar(&flagFrontendDir, "frontend-dir", "", "static frontend directory (overrides FRONTEND_DIR)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}
	applyFlags(cfg)

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	client := openvisus.NewClient(cfg.OpenVisusBaseURL, cfg.OpenVisusTimeout, metrics, logger)
	datasets := openvisus.NewDatasetCache(client, clockwork.NewRealClock(), metrics)
	store := coords.NewStore(cfg.LatLonFile, logger, metrics)

	// Usage publishing is feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS.
	var usage service.UsageRecorder
	var usageWriter *kafkaadapter.UsageWriter
	if cfg.KafkaEnabled {
		usageWriter = kafkaadapter.NewUsageWriter(cfg, logger, metrics)
		usage = usageWriter
		logger.Info("usage event publishing enabled", "topic", cfg.KafkaUsageTopic, "brokers", cfg.KafkaBrokers)
	} else {
		logger.Info("usage event publishing disabled")
	}

	svc := service.New(store, datasets, client, usage, logger, metrics)
	srv := httpadapter.NewServer(cfg, svc, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load coordinate grids ahead of the first request. Readiness flips once
	// this completes; a failure here still lets the lazy path retry later.
	go func() {
		if err := svc.WarmUp(); err != nil {
			logger.Error("coordinate warm-up failed", "error", err, "file", cfg.LatLonFile)
		}
	}()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if usageWriter != nil {
		if err := usageWriter.Close(); err != nil {
			logger.Error("usage writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return nil
}

func applyFlags(cfg *config.Config) {
	if flagAddr != "" {
		cfg.HTTPAddr = flagAddr
	}
	if flagLogLevel != "" {
		cfg.LogLevel = flagLogLevel
	}
	if flagLatLonFile != "" {
		cfg.LatLonFile = flagLatLonFile
	}
	if flagFrontendDir != "" {
		cfg.FrontendDir = flagFrontendDir
	}
}
