package source

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
)

// MockSource serves a fixed set of deterministic records so the pipeline
// always produces some result when neither the fixture file nor the live
// API can. It sits last in the chain and never fails.
type MockSource struct{}

// NewMockSource creates the built-in fixture source.
func NewMockSource() *MockSource {
	return &MockSource{}
}

// Name implements Source.
func (s *MockSource) Name() string {
	return string(KindMock)
}

// Fetch implements Source. The date range is ignored: fixture records
// are returned as-is for any account.
func (s *MockSource) Fetch(ctx context.Context, accountID, startDate, endDate string) ([]RawTransaction, error) {
	return []RawTransaction{
		{
			Kind:        KindMock,
			ID:          "txn001",
			Date:        "2024-09-15",
			Description: "TESCO STORES 1234 LONDON",
			Amount:      "-45.50",
			Currency:    "GBP",
			Merchant:    "Tesco",
			Category:    "groceries",
			AccountID:   accountID,
		},
		{
			Kind:        KindMock,
			ID:          "txn002",
			Date:        "2024-09-14",
			Description: "AMAZON UK SERVICES",
			Amount:      "-12.99",
			Currency:    "GBP",
			Merchant:    "Amazon",
			Category:    "shopping",
			AccountID:   accountID,
		},
		{
			Kind:        KindMock,
			ID:          "txn003",
			Date:        "2024-09-01",
			Description: "SALARY PAYMENT",
			Amount:      "2500.00",
			Currency:    "GBP",
			Merchant:    "Employer Ltd",
			Category:    "salary",
			AccountID:   accountID,
		},
		{
			Kind:        KindMock,
			ID:          "txn004",
			Date:        "2024-08-28",
			Description: "BRITISH GAS ENERGY",
			Amount:      "-89.99",
			Currency:    "GBP",
			Merchant:    "British Gas",
			Category:    "utilities",
			AccountID:   accountID,
		},
		{
			Kind:        KindMock,
			ID:          "txn005",
			Date:        "2024-08-25",
			Description: "CASH WITHDRAWAL ATM",
			Amount:      "-25.00",
			Currency:    "GBP",
			Merchant:    "ATM",
			Category:    "cash",
			AccountID:   accountID,
		},
	}, nil
}

// Accounts implements AccountSource with two fixture accounts.
func (s *MockSource) Accounts(ctx context.Context) ([]domain.Account, error) {
	return []domain.Account{
		{
			ID:       "acc001",
			Name:     "Primary Current Account",
			Type:     "checking",
			Currency: "GBP",
			Balance:  decimal.RequireFromString("2847.32"),
		},
		{
			ID:       "acc002",
			Name:     "Business Savings",
			Type:     "savings",
			Currency: "GBP",
			Balance:  decimal.RequireFromString("15750.00"),
		},
	}, nil
}

var (
	_ Source        = (*MockSource)(nil)
	_ AccountSource = (*MockSource)(nil)
)
