package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/openbanking-mcp/internal/config"
	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/logger"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
	"github.com/dvloznov/openbanking-mcp/internal/oauth"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
	"github.com/dvloznov/openbanking-mcp/internal/retention"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:          "openbanking",
	Short:        "Bank transaction pipeline for HMRC reporting",
	Long:         "Fetch bank transactions, categorize them against the HMRC category set and export HMRC-ready CSV files.",
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var (
	txAccountID string
	txStartDate string
	txEndDate   string
	txLimit     int
	txOffset    int
	txRaw       bool

	expAccountID string
	expStartDate string
	expEndDate   string
	expFilename  string

	retDays  int
	retDir   string
	retApply bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	transactionsCmd.Flags().StringVar(&txAccountID, "account", "", "account ID (required)")
	transactionsCmd.Flags().StringVar(&txStartDate, "start", "", "start date YYYY-MM-DD (required)")
	transactionsCmd.Flags().StringVar(&txEndDate, "end", "", "end date YYYY-MM-DD (required)")
	transactionsCmd.Flags().IntVar(&txLimit, "limit", pipeline.DefaultLimit, "page size")
	transactionsCmd.Flags().IntVar(&txOffset, "offset", 0, "window offset into the full result set")
	transactionsCmd.Flags().BoolVar(&txRaw, "raw", false, "include descriptions and merchant names")
	_ = transactionsCmd.MarkFlagRequired("account")
	_ = transactionsCmd.MarkFlagRequired("start")
	_ = transactionsCmd.MarkFlagRequired("end")

	exportCmd.Flags().StringVar(&expAccountID, "account", "", "account ID (required)")
	exportCmd.Flags().StringVar(&expStartDate, "start", "", "start date YYYY-MM-DD (required)")
	exportCmd.Flags().StringVar(&expEndDate, "end", "", "end date YYYY-MM-DD (required)")
	exportCmd.Flags().StringVar(&expFilename, "filename", "", "output filename (default derived from account and period)")
	_ = exportCmd.MarkFlagRequired("account")
	_ = exportCmd.MarkFlagRequired("start")
	_ = exportCmd.MarkFlagRequired("end")

	retentionCmd.Flags().IntVar(&retDays, "days", 0, "retention period in days (defaults to RETENTION_DAYS)")
	retentionCmd.Flags().StringVar(&retDir, "dir", "", "directory to scan (defaults to EXPORT_DIR)")
	retentionCmd.Flags().BoolVar(&retApply, "apply", false, "actually delete expired files (default is a dry run)")

	rootCmd.AddCommand(accountsCmd, transactionsCmd, exportCmd, retentionCmd)
}

// loadConfig bootstraps logging and configuration for every command.
func loadConfig() (*config.Config, zerolog.Logger) {
	log := logger.New("info")
	cfg := config.Load(log)

	level := logLevel
	if level == "" {
		level = cfg.LogLevel
	}
	return cfg, logger.New(level)
}

// buildStack wires the pipeline the same way the servers do: fixture
// file first, TrueLayer when a token exists, built-in records as the
// final fallback.
func buildStack() (*config.Config, *pipeline.Service, *export.Exporter, zerolog.Logger) {
	cfg, log := loadConfig()

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
	return cfg, service, exporter, log
}

func checkDates(dates ...string) error {
	for _, d := range dates {
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return fmt.Errorf("invalid date %q, use YYYY-MM-DD", d)
		}
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List accounts visible through the source chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, service, _, _ := buildStack()

		accounts, err := service.Accounts(cmd.Context())
		if err != nil {
			return fmt.Errorf("list accounts: %w", err)
		}

		for _, acc := range accounts {
			fmt.Printf("%-8s %-28s %-9s %10s %s\n",
				acc.ID, acc.Name, acc.Type, acc.Balance.StringFixed(2), acc.Currency)
		}
		return nil
	},
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List normalized, categorized transactions for a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDates(txStartDate, txEndDate); err != nil {
			return err
		}
		_, service, _, _ := buildStack()

		result, err := service.List(cmd.Context(), pipeline.Query{
			AccountID:  txAccountID,
			StartDate:  txStartDate,
			EndDate:    txEndDate,
			Limit:      txLimit,
			Offset:     txOffset,
			IncludeRaw: txRaw,
		})
		if err != nil {
			return fmt.Errorf("list transactions: %w", err)
		}

		if txRaw {
			return printJSON(result)
		}
		return printJSON(result.Redacted())
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export transactions as an HMRC-ready CSV file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkDates(expStartDate, expEndDate); err != nil {
			return err
		}
		_, service, exporter, _ := buildStack()

		fetched, err := service.Fetch(cmd.Context(), expAccountID, expStartDate, expEndDate)
		if err != nil {
			return fmt.Errorf("fetch transactions: %w", err)
		}

		result, err := exporter.Export(cmd.Context(),
			fetched.Transactions, expAccountID, expStartDate, expEndDate, expFilename)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}

		fmt.Println(result.Summary)
		return nil
	},
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Report on or delete exported CSV files past retention",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		if retDir == "" {
			retDir = cfg.ExportDir
		}
		if retDays == 0 {
			retDays = cfg.RetentionDays
		}
		enforcer := retention.NewEnforcer(retDir, retDays, log)

		report, err := enforcer.ReportText()
		if err != nil {
			return err
		}
		fmt.Print(report)

		if !retApply {
			result, err := enforcer.Cleanup(cmd.Context(), true)
			if err != nil {
				return err
			}
			fmt.Printf("\nDry run: %d file(s) would be deleted, freeing %d bytes. Re-run with --apply to delete.\n",
				result.FilesDeleted, result.TotalSizeFreedBytes)
			return nil
		}

		if err := enforcer.ProbeDelete(); err != nil {
			return fmt.Errorf("delete permission check failed: %w", err)
		}

		result, err := enforcer.Cleanup(cmd.Context(), false)
		if err != nil {
			return err
		}
		fmt.Printf("\nDeleted %d file(s), freed %d bytes.\n", result.FilesDeleted, result.TotalSizeFreedBytes)
		for _, msg := range result.Errors {
			fmt.Fprintf(os.Stderr, "failed: %s\n", msg)
		}
		if len(result.Errors) > 0 {
			return fmt.Errorf("%d deletion(s) failed", len(result.Errors))
		}
		return nil
	},
}
