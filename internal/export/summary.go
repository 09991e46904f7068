package export

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
)

// Totals carries the three aggregate figures of an export. All three
// are exact decimals; Net is always Income minus Expenses.
type Totals struct {
	Income   decimal.Decimal
	Expenses decimal.Decimal
	Net      decimal.Decimal
}

// CategoryTotal pairs an HMRC bucket with its accumulated absolute
// amount.
type CategoryTotal struct {
	Category string
	Amount   decimal.Decimal
}

// topExpenses ranks the expense buckets by accumulated amount and
// returns at most n. Income and Bank Interest never count as expenses.
// Ties sort by bucket name so the ranking is deterministic.
func topExpenses(byCategory map[string]decimal.Decimal, n int) []CategoryTotal {
	ranked := make([]CategoryTotal, 0, len(byCategory))
	for category, amount := range byCategory {
		if category == hmrc.CategoryIncome || category == hmrc.CategoryBankInterest {
			continue
		}
		ranked = append(ranked, CategoryTotal{Category: category, Amount: amount})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Amount.Cmp(ranked[j].Amount); c != 0 {
			return c > 0
		}
		return ranked[i].Category < ranked[j].Category
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// renderSummary produces the fixed-template report callers display to
// the user. The wording is a contract: downstream tests match
// substrings of it.
func renderSummary(file, startDate, endDate, accountID string, count int, totals Totals, top []CategoryTotal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "HMRC CSV Export Summary\n")
	fmt.Fprintf(&b, "=====================\n")
	fmt.Fprintf(&b, "File: %s\n", file)
	fmt.Fprintf(&b, "Period: %s to %s\n", startDate, endDate)
	fmt.Fprintf(&b, "Account: %s\n", accountID)
	fmt.Fprintf(&b, "Transactions: %d\n", count)
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Totals:\n")
	fmt.Fprintf(&b, "- Income: £%s\n", totals.Income.StringFixed(2))
	fmt.Fprintf(&b, "- Expenses: £%s\n", totals.Expenses.StringFixed(2))
	fmt.Fprintf(&b, "- Net: £%s\n", totals.Net.StringFixed(2))
	fmt.Fprintf(&b, "\n")
	fmt.Fprintf(&b, "Top 3 Expense Categories:\n")
	for i, ct := range top {
		fmt.Fprintf(&b, "%d. %s: £%s\n", i+1, ct.Category, ct.Amount.StringFixed(2))
	}
	return b.String()
}
