package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dvloznov/openbanking-mcp/internal/api"
	"github.com/dvloznov/openbanking-mcp/internal/api/handlers"
	"github.com/dvloznov/openbanking-mcp/internal/config"
	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/logger"
	promMetrics "github.com/dvloznov/openbanking-mcp/internal/metrics/prometheus"
	"github.com/dvloznov/openbanking-mcp/internal/oauth"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/retention"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

func main() {
	var addr = flag.String("addr", "", "HTTP listen address (defaults to LISTEN_ADDR or :8080)")
	flag.Parse()

	log := logger.New("info")
	cfg := config.Load(log)
	log = logger.New(cfg.LogLevel)

	if *addr == "" {
		*addr = cfg.ListenAddr
	}

	collector := promMetrics.NewPrometheusCollector("openbanking")
	registry := prometheus.NewRegistry()
	if err := collector.Register(registry); err != nil {
		log.Fatal().Err(err).Msg("Failed to register metrics")
	}

	table := hmrc.NewCategoryTable()
	tokens := oauth.NewTokenStore()

	chain := source.NewChain(log, collector,
		source.NewCSVSource(cfg.FixtureCSVPath, log),
		source.NewTrueLayerSource(cfg.APIBaseURL, tokens, cfg.FetchTimeout, cfg.DebugPayloads, log),
		source.NewMockSource(),
	)

	service := pipeline.NewService(chain, hmrc.NewCategorizer(table), collector, log)
	exporter := export.NewExporter(cfg.ExportDir, collector, log)

	// Background retention sweeper over the export directory.
	enforcer := retention.NewEnforcer(cfg.ExportDir, cfg.RetentionDays, log)
	sweeper := retention.NewSweeper(enforcer, cfg.RetentionSweepInterval, collector, log)

	sweepCtx, cancelSweep := context.WithCancel(context.Background())
	defer cancelSweep()
	if err := sweeper.Start(sweepCtx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start retention sweeper")
	}

	router := api.NewRouter(api.RouterConfig{
		Accounts:     handlers.NewAccountsHandler(service, log),
		Transactions: handlers.NewTransactionsHandler(service, table, collector, log),
		Exports:      handlers.NewExportsHandler(service, exporter, collector, log),
		Registry:     registry,
		CORSOrigins:  cfg.CORSOrigins,
		Log:          log,
	})

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", *addr).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	cancelSweep()
	if err := sweeper.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping retention sweeper")
	}

	log.Info().Msg("Server exited")
}
