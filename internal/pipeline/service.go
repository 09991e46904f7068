package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

// Fetcher yields raw records and accounts; implemented by *source.Chain.
type Fetcher interface {
	Fetch(ctx context.Context, accountID, startDate, endDate string) ([]source.RawTransaction, string, error)
	Accounts(ctx context.Context) ([]domain.Account, error)
}

// Service runs the retrieval, normalization and categorization stages and
// hands the resulting canonical transactions to the paginator or the CSV
// exporter. Each invocation is synchronous and shares no state with
// concurrent calls.
type Service struct {
	fetcher     Fetcher
	categorizer *hmrc.Categorizer
	collector   metrics.Collector
	log         zerolog.Logger
}

// NewService assembles the pipeline over a raw-record fetcher and a
// categorizer.
func NewService(fetcher Fetcher, categorizer *hmrc.Categorizer, collector metrics.Collector, log zerolog.Logger) *Service {
	return &Service{
		fetcher:     fetcher,
		categorizer: categorizer,
		collector:   collector,
		log:         log,
	}
}

// Query carries the caller-facing pipeline inputs.
type Query struct {
	AccountID  string
	StartDate  string
	EndDate    string
	Limit      int
	Offset     int
	IncludeRaw bool
}

// FetchResult is the full normalized, categorized transaction set for
// one account and date range.
type FetchResult struct {
	Transactions []domain.Transaction
	Source       string
	Dropped      int
}

// ListResult is the paginated view of a fetch. Transactions carry full
// detail; callers that have not requested raw mode project them through
// Redacted before returning them.
type ListResult struct {
	Transactions []domain.Transaction `json:"transactions"`
	Pagination   domain.Pagination    `json:"pagination"`

	// Operator-facing observability, not part of the caller contract.
	Source  string `json:"-"`
	Dropped int    `json:"-"`
}

// RedactedListResult is the default-safe shape of a list response.
type RedactedListResult struct {
	Transactions []domain.RedactedTransaction `json:"transactions"`
	Pagination   domain.Pagination            `json:"pagination"`
}

// Redacted projects every transaction into the field-limited view.
func (r *ListResult) Redacted() *RedactedListResult {
	redacted := make([]domain.RedactedTransaction, len(r.Transactions))
	for i, tx := range r.Transactions {
		redacted[i] = tx.Redacted()
	}
	return &RedactedListResult{
		Transactions: redacted,
		Pagination:   r.Pagination,
	}
}

// Fetch runs adapter, normalizer and categorizer to completion and
// returns every surviving transaction. Records that fail normalization
// are dropped, logged and counted; they never abort the batch.
func (s *Service) Fetch(ctx context.Context, accountID, startDate, endDate string) (*FetchResult, error) {
	raws, sourceName, err := s.fetcher.Fetch(ctx, accountID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("Fetch: %w", err)
	}

	txs := make([]domain.Transaction, 0, len(raws))
	dropped := 0
	for i, raw := range raws {
		tx, err := Normalize(raw, accountID, i+1)
		if err != nil {
			dropped++
			s.collector.RecordRowDropped(sourceName)
			s.log.Warn().Err(err).Str("source", sourceName).Msg("Skipping invalid record")
			continue
		}
		tx.Category = s.categorizer.Categorize(tx)
		txs = append(txs, tx)
	}

	if dropped > 0 {
		s.log.Info().
			Int("dropped", dropped).
			Int("kept", len(txs)).
			Str("source", sourceName).
			Msg("Normalization dropped records")
	}

	return &FetchResult{
		Transactions: txs,
		Source:       sourceName,
		Dropped:      dropped,
	}, nil
}

// List fetches, then slices the set to the requested window.
func (s *Service) List(ctx context.Context, q Query) (*ListResult, error) {
	result, err := s.Fetch(ctx, q.AccountID, q.StartDate, q.EndDate)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}

	window, pagination := Paginate(result.Transactions, q.Offset, q.Limit)
	return &ListResult{
		Transactions: window,
		Pagination:   pagination,
		Source:       result.Source,
		Dropped:      result.Dropped,
	}, nil
}

// Accounts lists the accounts visible through the adapter chain.
func (s *Service) Accounts(ctx context.Context) ([]domain.Account, error) {
	accounts, err := s.fetcher.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("Accounts: %w", err)
	}
	return accounts, nil
}
