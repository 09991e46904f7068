// Package schema checks tool outputs against their declared contracts
// before they leave the process. A violation is reported as a
// structured ValidationError carrying the offending output, never as a
// transport-level fault.
package schema

import (
	"fmt"
	"time"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/export"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/pipeline"
)

// ValidationError reports an output that failed its schema contract.
// Output preserves the original value for diagnosis.
type ValidationError struct {
	Reason string
	Output any
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("output validation failed: %s", e.Reason)
}

// ValidateTransaction checks the canonical transaction invariants:
// non-empty id, a real calendar date, a known direction coherent with
// the amount sign, and a category inside the HMRC set when present.
func ValidateTransaction(tx domain.Transaction, table *hmrc.CategoryTable) error {
	if tx.ID == "" {
		return &ValidationError{Reason: "transaction id must not be empty", Output: tx}
	}
	if !tx.Date.IsValid() {
		return &ValidationError{Reason: fmt.Sprintf("transaction %s: invalid date %v", tx.ID, tx.Date), Output: tx}
	}
	if !tx.Direction.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("transaction %s: direction must be credit or debit, got %q", tx.ID, tx.Direction), Output: tx}
	}
	if domain.DirectionOf(tx.Amount) != tx.Direction {
		return &ValidationError{Reason: fmt.Sprintf("transaction %s: direction %q contradicts amount %s", tx.ID, tx.Direction, tx.Amount), Output: tx}
	}
	if tx.Category != "" && !table.IsBucket(tx.Category) {
		return &ValidationError{Reason: fmt.Sprintf("transaction %s: category %q outside the HMRC set", tx.ID, tx.Category), Output: tx}
	}
	return nil
}

// ValidateAccount checks the account shape returned by account tools.
func ValidateAccount(acc domain.Account) error {
	if acc.ID == "" {
		return &ValidationError{Reason: "account id must not be empty", Output: acc}
	}
	if acc.Currency == "" {
		return &ValidationError{Reason: fmt.Sprintf("account %s: currency must not be empty", acc.ID), Output: acc}
	}
	return nil
}

// ValidatePagination checks the envelope arithmetic.
func ValidatePagination(p domain.Pagination) error {
	if p.Total < 0 || p.Offset < 0 {
		return &ValidationError{Reason: fmt.Sprintf("pagination counts must be non-negative: %+v", p), Output: p}
	}
	if p.Limit <= 0 {
		return &ValidationError{Reason: fmt.Sprintf("pagination limit must be positive: %+v", p), Output: p}
	}
	if p.Page != p.Offset/p.Limit+1 {
		return &ValidationError{Reason: fmt.Sprintf("pagination page %d does not match offset %d / limit %d", p.Page, p.Offset, p.Limit), Output: p}
	}
	if p.HasMore != (p.Offset+p.Limit < p.Total) {
		return &ValidationError{Reason: fmt.Sprintf("pagination has_more %v inconsistent with window %+v", p.HasMore, p), Output: p}
	}
	return nil
}

// ValidateListResult checks a paginated transaction listing. Listed
// transactions have passed the categorizer, so an empty category is a
// defect here even though the canonical type allows it.
func ValidateListResult(r *pipeline.ListResult, table *hmrc.CategoryTable) error {
	if r == nil {
		return &ValidationError{Reason: "list result must not be nil"}
	}
	for i, tx := range r.Transactions {
		if err := ValidateTransaction(tx, table); err != nil {
			return &ValidationError{Reason: fmt.Sprintf("transactions[%d]: %v", i, err), Output: r}
		}
		if tx.Category == "" {
			return &ValidationError{Reason: fmt.Sprintf("transactions[%d]: listed transaction must be categorized", i), Output: r}
		}
	}
	if err := ValidatePagination(r.Pagination); err != nil {
		return &ValidationError{Reason: err.Error(), Output: r}
	}
	if len(r.Transactions) > r.Pagination.Limit {
		return &ValidationError{Reason: fmt.Sprintf("page carries %d transactions, limit is %d", len(r.Transactions), r.Pagination.Limit), Output: r}
	}
	return nil
}

// ValidateExportResult checks the export receipt: a written path,
// consistent counts, non-negative row amounts and the exact totals
// identity net = income - expenses.
func ValidateExportResult(r *export.Result) error {
	if r == nil {
		return &ValidationError{Reason: "export result must not be nil"}
	}
	if r.CSVPath == "" {
		return &ValidationError{Reason: "export csv_path must not be empty", Output: r}
	}
	if r.Metadata.TransactionCount != len(r.Records) {
		return &ValidationError{Reason: fmt.Sprintf("transaction_count %d does not match %d records", r.Metadata.TransactionCount, len(r.Records)), Output: r}
	}
	for i, record := range r.Records {
		if record.Amount.Sign() < 0 {
			return &ValidationError{Reason: fmt.Sprintf("records[%d]: export amounts must be non-negative, got %s", i, record.Amount), Output: r}
		}
	}
	if r.Metadata.TotalIncome.Sign() < 0 || r.Metadata.TotalExpenses.Sign() < 0 {
		return &ValidationError{Reason: "export totals must be non-negative", Output: r}
	}
	if !r.Metadata.NetTotal.Equal(r.Metadata.TotalIncome.Sub(r.Metadata.TotalExpenses)) {
		return &ValidationError{Reason: fmt.Sprintf("net_total %s is not income %s minus expenses %s", r.Metadata.NetTotal, r.Metadata.TotalIncome, r.Metadata.TotalExpenses), Output: r}
	}
	if _, err := time.Parse(time.RFC3339, r.Metadata.CreatedAt); err != nil {
		return &ValidationError{Reason: fmt.Sprintf("export created_at %q is not RFC 3339", r.Metadata.CreatedAt), Output: r}
	}
	if r.Summary == "" {
		return &ValidationError{Reason: "export summary must not be empty", Output: r}
	}
	return nil
}
