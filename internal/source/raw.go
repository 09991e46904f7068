package source

import (
	"github.com/shopspring/decimal"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
)

// Kind identifies which source produced a raw record.
type Kind string

const (
	KindCSV       Kind = "csv"
	KindTrueLayer Kind = "truelayer"
	KindMock      Kind = "mock"
)

// RawTransaction is the provider-specific record shape before
// normalization. Amount and Date stay textual so the normalizer owns
// every parse failure; each source has exactly one decoding function
// producing this variant. Raw records live only inside the adapter and
// normalizer boundary and are never returned to a caller.
type RawTransaction struct {
	Kind           Kind
	ID             string
	Date           string // DD/MM/YYYY or ISO, source dependent
	Description    string
	Amount         string
	Currency       string
	Merchant       string
	Category       string
	Classification string
	AccountID      string
}

// Redacted projects the raw record into the default-safe view without
// normalizing it first. An unparseable amount renders as zero; absent
// fields stay empty.
func (r RawTransaction) Redacted() domain.RedactedTransaction {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		amount = decimal.Zero
	}
	return domain.RedactedTransaction{
		ID:             r.ID,
		Date:           r.Date,
		Amount:         amount,
		Currency:       r.Currency,
		Category:       r.Category,
		Classification: r.Classification,
	}
}
