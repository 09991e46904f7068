package domain

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

func init() {
	// Amounts serialize as JSON numbers, matching the wire contract of the
	// tool and REST responses.
	decimal.MarshalJSONWithoutQuotes = true
}

// Direction classifies a transaction by the sign of its amount.
type Direction string

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// DirectionOf derives the direction from an amount. The amount sign is
// authoritative; a zero amount counts as credit.
func DirectionOf(amount decimal.Decimal) Direction {
	if amount.Sign() >= 0 {
		return DirectionCredit
	}
	return DirectionDebit
}

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// Transaction is the canonical representation every raw source is
// normalized into. Constructed by the normalizer from exactly one raw
// record; immutable thereafter.
//
// Invariant: Direction == DirectionCredit iff Amount >= 0. The normalizer
// derives Direction from the amount sign, never from a raw direction field.
type Transaction struct {
	ID          string          `json:"id"`          // source id, or synthesized txn_NNN
	Date        civil.Date      `json:"date"`        // ISO calendar date
	Description string          `json:"description"` // raw description, may be empty
	Amount      decimal.Decimal `json:"amount"`      // signed; negative = money out
	Direction   Direction       `json:"direction"`
	AccountID   string          `json:"account_id"`
	Category    string          `json:"category"` // empty until categorized

	// Pass-through fields the canonical schema tolerates but does not
	// require: currency feeds the CSV export, merchant feeds keyword
	// categorization and the description fallback.
	Currency       string `json:"currency,omitempty"`
	Merchant       string `json:"merchant_name,omitempty"`
	Classification string `json:"classification,omitempty"`
}

// Redacted returns the field-limited view of the transaction used
// whenever the caller has not asked for raw detail. Pure projection;
// absent fields stay empty.
func (t Transaction) Redacted() RedactedTransaction {
	return RedactedTransaction{
		ID:             t.ID,
		Date:           t.Date.String(),
		Amount:         t.Amount,
		Currency:       t.Currency,
		Category:       t.Category,
		Classification: t.Classification,
	}
}

// RedactedTransaction is the default-safe projection of a transaction:
// descriptive and merchant detail removed. Derived, never stored.
type RedactedTransaction struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Category       string          `json:"category"`
	Classification string          `json:"classification"`
}

// Account describes one bank account exposed by the data source.
type Account struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     string          `json:"type"`
	Currency string          `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
}
