package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dvloznov/openbanking-mcp/internal/config"
	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/logger"
	"github.com/dvloznov/openbanking-mcp/internal/mcp"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
	"github.com/dvloznov/openbanking-mcp/internal/oauth"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

const version = "1.0.0"

func main() {
	// Bootstrap logger for config warnings, then re-level from config.
	// Everything goes to stderr: stdout carries the JSON-RPC frames.
	log := logger.New("info")
	cfg := config.Load(log)
	log = logger.New(cfg.LogLevel)

	// The stdio transport has no scrape endpoint, so metrics are a no-op.
	collector := metrics.NoOpCollector{}

	table := hmrc.NewCategoryTable()
	tokens := oauth.NewTokenStore()

	chain := source.NewChain(log, collector,
		source.NewCSVSource(cfg.FixtureCSVPath, log),
		source.NewTrueLayerSource(cfg.APIBaseURL, tokens, cfg.FetchTimeout, cfg.DebugPayloads, log),
		source.NewMockSource(),
	)

	service := pipeline.NewService(chain, hmrc.NewCategorizer(table), collector, log)
	exporter := export.NewExporter(cfg.ExportDir, collector, log)

	client := oauth.NewClient(cfg.AuthBaseURL, cfg.TrueLayerClientID, cfg.TrueLayerClientSecret,
		cfg.TrueLayerRedirectURI, cfg.FetchTimeout, log)
	auth := oauth.NewManager(client, tokens, oauth.NewConsentLedger(cfg.ConsentTTLDays), log)

	server := mcp.NewServer(service, exporter, auth, table, version, cfg.DebugPayloads, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, os.Stdin, os.Stdout); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("MCP server terminated")
	}
	log.Info().Msg("MCP server stopped")
}
