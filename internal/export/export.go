// Package export writes categorized transactions to HMRC-ready CSV
// files and produces the export metadata and human-readable summary
// returned to the caller.
package export

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
)

// WriteError reports a destination that could not be written:
// permissions, disk, or an invalid path left over after sanitization.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write export %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Metadata describes a completed export. The JSON shape is part of the
// tool contract.
type Metadata struct {
	AccountID        string          `json:"account_id"`
	StartDate        string          `json:"start_date"`
	EndDate          string          `json:"end_date"`
	TransactionCount int             `json:"transaction_count"`
	TotalIncome      decimal.Decimal `json:"total_income"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetTotal         decimal.Decimal `json:"net_total"`
	CreatedAt        string          `json:"created_at"`
}

// Result is the full outcome of one export: the written file, the rows
// it contains, the metadata envelope and the rendered summary. Only
// csv_path and metadata marshal; records and summary travel beside the
// envelope.
type Result struct {
	CSVPath  string         `json:"csv_path"`
	Records  []ExportRecord `json:"-"`
	Metadata Metadata       `json:"metadata"`
	Summary  string         `json:"-"`
}

// Exporter writes HMRC CSV files into a fixed directory. Sanitized
// filenames contain no separators, so every export lands directly in
// that directory.
type Exporter struct {
	dir       string
	collector metrics.Collector
	log       zerolog.Logger
}

// NewExporter returns an Exporter rooted at dir.
func NewExporter(dir string, collector metrics.Collector, log zerolog.Logger) *Exporter {
	if dir == "" {
		dir = "."
	}
	return &Exporter{
		dir:       dir,
		collector: collector,
		log:       log.With().Str("component", "exporter").Logger(),
	}
}

// Export writes the transactions to a CSV file and returns the result
// envelope. Transactions are expected to be normalized and categorized
// already; the exporter reformats, aggregates and writes, it does not
// classify. filename may be empty, in which case a name is synthesized
// from the account and period.
func (e *Exporter) Export(ctx context.Context, txs []domain.Transaction, accountID, startDate, endDate, filename string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Export: %w", err)
	}
	start := time.Now()

	if filename == "" {
		filename = fmt.Sprintf("hmrc_export_%s_%s_%s.csv", accountID, startDate, endDate)
	}
	safeName := SanitizeFilename(filename)
	path := filepath.Join(e.dir, safeName)

	records := make([]ExportRecord, 0, len(txs))
	var totals Totals
	byCategory := make(map[string]decimal.Decimal)

	for _, tx := range txs {
		record := newRecord(tx)
		records = append(records, record)

		if tx.Amount.Sign() > 0 {
			totals.Income = totals.Income.Add(tx.Amount)
		} else {
			totals.Expenses = totals.Expenses.Add(tx.Amount.Abs())
		}
		byCategory[record.Category] = byCategory[record.Category].Add(record.Amount)
	}
	totals.Net = totals.Income.Sub(totals.Expenses)

	if err := writeCSV(path, records); err != nil {
		e.collector.RecordExport(false, time.Since(start))
		e.log.Error().Err(err).Str("path", path).Msg("CSV write failed")
		return nil, &WriteError{Path: path, Err: err}
	}
	e.collector.RecordExport(true, time.Since(start))

	top := topExpenses(byCategory, 3)
	summary := renderSummary(path, startDate, endDate, accountID, len(records), totals, top)

	e.log.Info().
		Str("path", path).
		Int("records", len(records)).
		Str("account_id", accountID).
		Msg("CSV exported")

	return &Result{
		CSVPath: path,
		Records: records,
		Metadata: Metadata{
			AccountID:        accountID,
			StartDate:        startDate,
			EndDate:          endDate,
			TransactionCount: len(records),
			TotalIncome:      totals.Income,
			TotalExpenses:    totals.Expenses,
			NetTotal:         totals.Net,
			CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		},
		Summary: summary,
	}, nil
}
