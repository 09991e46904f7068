package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
)

// ErrUnavailable signals that a source cannot serve the request at all
// (fixture file absent, no access token). The chain skips it quietly and
// moves on; any other error is a fetch failure worth a warning.
var ErrUnavailable = errors.New("source unavailable")

// FetchError wraps an upstream failure with the source that produced it.
// Fetch errors are recovered inside the chain via fallback and never
// surface to a caller.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch from %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Source yields raw transaction records for one account and date range.
type Source interface {
	Name() string
	Fetch(ctx context.Context, accountID, startDate, endDate string) ([]RawTransaction, error)
}

// AccountSource is implemented by sources that can also list accounts.
type AccountSource interface {
	Accounts(ctx context.Context) ([]domain.Account, error)
}

// Chain evaluates sources in priority order and returns the first
// successful result. Fallback order and conditions live here and nowhere
// else: a failing source is logged and counted, the caller never sees an
// error as long as the last source (the mock fixture set) cannot fail.
type Chain struct {
	sources   []Source
	log       zerolog.Logger
	collector metrics.Collector
}

// NewChain builds a coordinator over the given sources, evaluated in the
// order supplied.
func NewChain(log zerolog.Logger, collector metrics.Collector, sources ...Source) *Chain {
	return &Chain{
		sources:   sources,
		log:       log,
		collector: collector,
	}
}

// Fetch walks the chain and returns the records of the first source that
// succeeds, along with that source's name. An error is returned only
// when every source fails, which a correctly assembled chain (mock last)
// never does.
func (c *Chain) Fetch(ctx context.Context, accountID, startDate, endDate string) ([]RawTransaction, string, error) {
	var lastErr error

	for i, src := range c.sources {
		start := time.Now()
		records, err := src.Fetch(ctx, accountID, startDate, endDate)
		if err == nil {
			c.collector.RecordFetch(src.Name(), true, time.Since(start))
			c.log.Info().
				Str("source", src.Name()).
				Int("records", len(records)).
				Str("account_id", accountID).
				Msg("Fetched raw transactions")
			return records, src.Name(), nil
		}

		if errors.Is(err, ErrUnavailable) {
			c.log.Debug().Str("source", src.Name()).Msg("Source unavailable, trying next")
		} else {
			c.collector.RecordFetch(src.Name(), false, time.Since(start))
			c.log.Warn().
				Err(err).
				Str("source", src.Name()).
				Msg("Source fetch failed, falling back")
			if i+1 < len(c.sources) {
				c.collector.RecordFallback(src.Name(), c.sources[i+1].Name())
			}
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no sources configured")
	}
	return nil, "", &FetchError{Source: "chain", Err: lastErr}
}

// Accounts returns the account list from the first source in the chain
// that can provide one.
func (c *Chain) Accounts(ctx context.Context) ([]domain.Account, error) {
	var lastErr error

	for _, src := range c.sources {
		lister, ok := src.(AccountSource)
		if !ok {
			continue
		}
		accounts, err := lister.Accounts(ctx)
		if err == nil {
			c.log.Info().
				Str("source", src.Name()).
				Int("accounts", len(accounts)).
				Msg("Fetched accounts")
			return accounts, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			c.log.Warn().Err(err).Str("source", src.Name()).Msg("Account listing failed, falling back")
		}
		lastErr = err
	}

	if lastErr == nil {
		lastErr = errors.New("no account sources configured")
	}
	return nil, &FetchError{Source: "chain", Err: lastErr}
}
