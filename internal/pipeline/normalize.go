package pipeline

import (
	"fmt"
	"strings"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

// NormalizationError reports a raw record that could not be converted
// into a canonical transaction. The record is dropped and processing
// continues over the remainder of the batch.
type NormalizationError struct {
	Index int
	Field string
	Err   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize record %d: invalid %s: %v", e.Index, e.Field, e.Err)
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}

// Normalize converts one raw record into the canonical Transaction.
// index is the record's 1-based ordinal within the fetch batch and seeds
// the synthesized id when the source provides none; synthesized ids are
// unique within a batch only, not across batches.
//
// Direction always derives from the amount sign. A raw direction field,
// when present, is ignored: amount is authoritative.
func Normalize(raw source.RawTransaction, accountID string, index int) (domain.Transaction, error) {
	amountStr := strings.TrimSpace(raw.Amount)
	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return domain.Transaction{}, &NormalizationError{Index: index, Field: "amount", Err: fmt.Errorf("%q: %w", amountStr, err)}
	}

	date, err := normalizeDate(raw.Date)
	if err != nil {
		return domain.Transaction{}, &NormalizationError{Index: index, Field: "date", Err: err}
	}

	id := raw.ID
	if id == "" {
		id = fmt.Sprintf("txn_%03d", index)
	}

	if accountID == "" {
		accountID = raw.AccountID
	}

	currency := raw.Currency
	if currency == "" {
		currency = "GBP"
	}

	return domain.Transaction{
		ID:             id,
		Date:           date,
		Description:    raw.Description,
		Amount:         amount,
		Direction:      domain.DirectionOf(amount),
		AccountID:      accountID,
		Category:       raw.Category,
		Currency:       currency,
		Merchant:       raw.Merchant,
		Classification: raw.Classification,
	}, nil
}

// normalizeDate accepts either D/M/YYYY with slash separators, which is
// converted to ISO with zero padding, or an ISO date passed through as
// is. Anything else fails.
func normalizeDate(s string) (civil.Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return civil.Date{}, fmt.Errorf("empty date")
	}

	if strings.Contains(s, "/") {
		parts := strings.Split(s, "/")
		if len(parts) != 3 {
			return civil.Date{}, fmt.Errorf("invalid date format: %q", s)
		}
		s = fmt.Sprintf("%s-%s-%s", parts[2], pad2(parts[1]), pad2(parts[0]))
	}

	date, err := civil.ParseDate(s)
	if err != nil {
		return civil.Date{}, fmt.Errorf("invalid date format: %q", s)
	}
	return date, nil
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}
