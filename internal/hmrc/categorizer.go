package hmrc

import (
	"strings"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
)

// keywordGroups drive the fallback categorization for transactions with
// no explicit category. Groups are tested in order and the first match
// wins; order is the documented tie-break for descriptions matching more
// than one group.
var keywordGroups = []struct {
	bucket   string
	keywords []string
}{
	{CategoryIncome, []string{"salary", "invoice", "stripe", "income"}},
	{CategoryBankInterest, []string{"interest"}},
	{CategoryTravel, []string{"uber", "train", "rail", "tfl", "taxi"}},
	{CategoryOfficeCosts, []string{"coffee", "cafe", "restaurant"}},
	{CategoryUtilities, []string{"gas", "electric", "water", "broadband"}},
	{CategoryBankCharges, []string{"wise", "transferwise", "fee", "charge"}},
}

// Categorizer resolves the HMRC category for a transaction, either by
// normalizing an explicit label through the injected table or by keyword
// matching over the transaction text.
type Categorizer struct {
	table *CategoryTable
}

// NewCategorizer creates a categorizer backed by the given table.
func NewCategorizer(table *CategoryTable) *Categorizer {
	return &Categorizer{table: table}
}

// Table returns the injected category table.
func (c *Categorizer) Table() *CategoryTable {
	return c.table
}

// Categorize returns the HMRC bucket for tx. An explicit non-empty
// category delegates to Normalize; otherwise keywords are matched over
// the lower-cased description plus merchant hint. Always returns a
// member of the closed set.
func (c *Categorizer) Categorize(tx domain.Transaction) string {
	if tx.Category != "" {
		return c.table.Normalize(tx.Category)
	}

	text := strings.ToLower(tx.Description + " " + tx.Merchant)
	for _, group := range keywordGroups {
		for _, keyword := range group.keywords {
			if strings.Contains(text, keyword) {
				return c.table.Normalize(group.bucket)
			}
		}
	}
	return c.table.Normalize(CategoryGeneralExpenses)
}
