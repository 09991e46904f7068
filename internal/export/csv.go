package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
)

// csvHeader is the fixed column order of the HMRC export file.
var csvHeader = []string{"Date", "Description", "Amount", "Currency", "HMRC Category"}

// ExportRecord is one row of the HMRC CSV: dates in DD/MM/YYYY, amounts
// absolute. The JSON keys mirror the CSV columns so the record list can
// be returned alongside the file.
type ExportRecord struct {
	Date        string          `json:"Date"`
	Description string          `json:"Description"`
	Amount      decimal.Decimal `json:"Amount"`
	Currency    string          `json:"Currency"`
	Category    string          `json:"HMRC Category"`
}

// newRecord builds the CSV row for a categorized transaction. The
// description falls back to the merchant hint when empty; HMRC wants
// positive amounts, so the sign is dropped here and preserved only in
// the totals.
func newRecord(tx domain.Transaction) ExportRecord {
	description := tx.Description
	if description == "" {
		description = tx.Merchant
	}

	currency := tx.Currency
	if currency == "" {
		currency = "GBP"
	}

	return ExportRecord{
		Date:        fmt.Sprintf("%02d/%02d/%04d", tx.Date.Day, int(tx.Date.Month), tx.Date.Year),
		Description: description,
		Amount:      tx.Amount.Abs(),
		Currency:    currency,
		Category:    tx.Category,
	}
}

// unsafeFilenameChars are replaced with underscores in the filename
// stem. The dot is included: with the .csv suffix handled separately,
// any remaining dot is a traversal or extension-smuggling attempt.
const unsafeFilenameChars = `<>:"/\|?*.`

// SanitizeFilename makes a caller-supplied filename safe to create in
// the export directory. One trailing .csv suffix is set aside, every
// unsafe character in the stem becomes an underscore, and the suffix is
// re-appended, so "test_export.csv" survives intact while
// "../../etc/passwd" flattens to "______etc_passwd.csv".
func SanitizeFilename(name string) string {
	stem := strings.TrimSuffix(name, ".csv")

	var b strings.Builder
	b.Grow(len(stem) + 4)
	for _, r := range stem {
		if strings.ContainsRune(unsafeFilenameChars, r) {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	b.WriteString(".csv")
	return b.String()
}

// writeCSV writes the header and records to path atomically: the
// content goes to a temp file in the same directory, is fsynced, and is
// renamed into place. A crash mid-write never leaves a partial export
// under the final name.
func writeCSV(path string, records []ExportRecord) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".hmrc_export_*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(csvHeader); err != nil {
		tmp.Close()
		return err
	}
	for _, r := range records {
		row := []string{r.Date, r.Description, r.Amount.String(), r.Currency, r.Category}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
