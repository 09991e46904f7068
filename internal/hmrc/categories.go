package hmrc

import (
	"sort"
	"strings"
)

// The closed set of HMRC report buckets. Every categorizer output is a
// member of this set; report logic (top-expense ranking, schema
// enumerations) relies on these exact strings.
const (
	CategoryIncome          = "Income"
	CategoryGeneralExpenses = "General expenses"
	CategoryOfficeCosts     = "Office Costs"
	CategoryTravel          = "Travel"
	CategoryUtilities       = "Utilities"
	CategoryBankCharges     = "Bank charges"
	CategoryBankInterest    = "Bank Interest"
)

// CategoryTable maps free-text category labels to canonical HMRC buckets.
// It is immutable after construction and injected into the Categorizer,
// so tests can swap in alternate tables.
type CategoryTable struct {
	mapping map[string]string // lower-cased label -> bucket
}

// NewCategoryTable returns the default label mapping used for HMRC
// reporting.
func NewCategoryTable() *CategoryTable {
	return NewCategoryTableFrom(map[string]string{
		"Salary":           CategoryIncome,
		"Shopping":         CategoryGeneralExpenses,
		"Groceries":        CategoryGeneralExpenses,
		"Food":             CategoryGeneralExpenses,
		"Meals":            CategoryOfficeCosts,
		"Travel":           CategoryTravel,
		"Transport":        CategoryTravel,
		"Utilities":        CategoryUtilities,
		"Bank Fees":        CategoryBankCharges,
		"Bank charges":     CategoryBankCharges,
		"Interest":         CategoryBankInterest,
		"Bank Interest":    CategoryBankInterest,
		"Income":           CategoryIncome,
		"Office Costs":     CategoryOfficeCosts,
		"General expenses": CategoryGeneralExpenses,
		"Uncategorized":    CategoryGeneralExpenses,
		"Cash":             CategoryGeneralExpenses,
	})
}

// NewCategoryTableFrom builds a table from an explicit label mapping.
// Lookup is case-insensitive on the label side; the mapping is copied.
func NewCategoryTableFrom(mapping map[string]string) *CategoryTable {
	m := make(map[string]string, len(mapping))
	for label, bucket := range mapping {
		m[strings.ToLower(label)] = bucket
	}
	return &CategoryTable{mapping: m}
}

// Normalize maps a free-text label to a canonical bucket. Total function:
// empty and unrecognized labels clamp to General expenses, so the closed
// set holds unconditionally. Idempotent, since every bucket maps to
// itself.
func (t *CategoryTable) Normalize(label string) string {
	clean := strings.TrimSpace(label)
	if clean == "" {
		return CategoryGeneralExpenses
	}
	if bucket, ok := t.mapping[strings.ToLower(clean)]; ok {
		return bucket
	}
	return CategoryGeneralExpenses
}

// Buckets returns the distinct canonical buckets in sorted order.
func (t *CategoryTable) Buckets() []string {
	seen := make(map[string]struct{}, len(t.mapping))
	for _, bucket := range t.mapping {
		seen[bucket] = struct{}{}
	}
	buckets := make([]string, 0, len(seen))
	for bucket := range seen {
		buckets = append(buckets, bucket)
	}
	sort.Strings(buckets)
	return buckets
}

// IsBucket reports whether s is a canonical bucket of this table.
func (t *CategoryTable) IsBucket(s string) bool {
	for _, bucket := range t.mapping {
		if bucket == s {
			return true
		}
	}
	return false
}
