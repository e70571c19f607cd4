package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/privacyguard/dpa-engine/internal/api/rest"
	"github.com/privacyguard/dpa-engine/internal/domain/knowledge"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/config"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/external"
	"github.com/privacyguard/dpa-engine/internal/infrastructure/telemetry"
	"github.com/privacyguard/dpa-engine/internal/metrics"
	"github.com/privacyguard/dpa-engine/internal/service/analysis"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize telemetry
	ctx := context.Background()
	telConfig := telemetry.DefaultConfig()
	telConfig.ServiceName = cfg.Telemetry.ServiceName
	telConfig.ServiceVersion = cfg.Version
	telConfig.Environment = cfg.Environment
	telConfig.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	telConfig.Enabled = cfg.Telemetry.Enabled
	telConfig.SamplingRate = cfg.Telemetry.SampleRate

	provider, err := telemetry.InitializeOpenTelemetry(ctx, telConfig)
	if err != nil {
		log.Fatalf("Failed to initialize telemetry: %v", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			log.Printf("Failed to shutdown telemetry: %v", err)
		}
	}()

	slogLogger, err := telemetry.SetupLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to setup logger: %v", err)
	}

	zapLogger, err := newZapLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to setup service logger: %v", err)
	}
	defer zapLogger.Sync()

	// Load the statute knowledge base. A missing or corrupt file is not
	// fatal; the engine runs degraded with an empty base.
	kb := knowledge.Load(cfg.Knowledge.Path, zapLogger)
	stats := kb.Stats()
	SetKnowledgeSections(stats.Sections)
	SetBuildInfo(cfg.Version, cfg.Environment)

	reg, err := metrics.NewRegistry("dpa-engine")
	if err != nil {
		log.Fatalf("Failed to initialize metrics: %v", err)
	}

	var secondary analysis.SecondaryAnalyzer
	if cfg.Analyzer.Enabled {
		secondary = external.NewAnalyzer(external.Config{
			BaseURL:           cfg.Analyzer.BaseURL,
			APIKey:            cfg.Analyzer.APIKey,
			Model:             cfg.Analyzer.Model,
			Temperature:       cfg.Analyzer.Temperature,
			MaxTokens:         cfg.Analyzer.MaxTokens,
			RequestsPerMinute: cfg.Analyzer.RequestsPerMinute,
			Burst:             cfg.Analyzer.Burst,
		}, kb, zapLogger)
	}

	svc := analysis.NewService(kb, secondary, reg, zapLogger, analysis.Config{
		SecondaryEnabled: cfg.Analyzer.Enabled,
		SecondaryTimeout: cfg.Analyzer.Timeout,
	})

	apiServer := rest.NewServer(cfg, svc, reg, slogLogger)
	defer apiServer.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", MetricsHandler())
	mux.Handle("/", InstrumentHTTPHandler("api", apiServer.Handler()))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment),
			zap.Bool("knowledge_loaded", !kb.Empty()),
			zap.Bool("external_analyzer", cfg.Analyzer.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		log.Fatalf("Server error: %v", err)
	case <-runCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	zapLogger.Info("server stopped")
}

func newZapLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
