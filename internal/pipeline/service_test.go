package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
	"github.com/dvloznov/openbanking-mcp/internal/hmrc"
	"github.com/dvloznov/openbanking-mcp/internal/metrics"
	"github.com/dvloznov/openbanking-mcp/internal/source"
)

type fakeFetcher struct {
	raws     []source.RawTransaction
	name     string
	err      error
	accounts []domain.Account
}

func (f *fakeFetcher) Fetch(ctx context.Context, accountID, startDate, endDate string) ([]source.RawTransaction, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return f.raws, f.name, nil
}

func (f *fakeFetcher) Accounts(ctx context.Context) ([]domain.Account, error) {
	return f.accounts, f.err
}

type countingCollector struct {
	metrics.NoOpCollector

	mu      sync.Mutex
	dropped map[string]int
}

func (c *countingCollector) RecordRowDropped(sourceName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dropped == nil {
		c.dropped = map[string]int{}
	}
	c.dropped[sourceName]++
}

func newTestService(fetcher Fetcher, collector metrics.Collector) *Service {
	if collector == nil {
		collector = metrics.NoOpCollector{}
	}
	return NewService(fetcher, hmrc.NewCategorizer(hmrc.NewCategoryTable()), collector, zerolog.Nop())
}

func TestServiceFetchNormalizesAndCategorizes(t *testing.T) {
	fetcher := &fakeFetcher{
		name: "csv",
		raws: []source.RawTransaction{
			{Date: "15/09/2024", Description: "TESCO STORES", Amount: "-45.50"},
			{Date: "01/09/2024", Description: "SALARY PAYMENT", Amount: "2500.00"},
			{Date: "2024-08-28", Description: "BRITISH GAS ENERGY", Amount: "-89.99", Category: "utilities"},
		},
	}

	svc := newTestService(fetcher, nil)
	result, err := svc.Fetch(context.Background(), "acc1", "2024-08-01", "2024-09-30")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Source != "csv" {
		t.Errorf("Source = %q, want csv", result.Source)
	}
	if result.Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", result.Dropped)
	}
	if len(result.Transactions) != 3 {
		t.Fatalf("len = %d, want 3", len(result.Transactions))
	}

	table := hmrc.NewCategoryTable()
	wantCategories := []string{
		hmrc.CategoryGeneralExpenses,
		hmrc.CategoryIncome,
		hmrc.CategoryUtilities,
	}
	for i, want := range wantCategories {
		if got := result.Transactions[i].Category; got != want {
			t.Errorf("transaction %d: Category = %q, want %q", i, got, want)
		}
		if !table.IsBucket(result.Transactions[i].Category) {
			t.Errorf("transaction %d: category %q outside the HMRC set", i, result.Transactions[i].Category)
		}
	}

	tesco := result.Transactions[0]
	if tesco.Date.String() != "2024-09-15" {
		t.Errorf("Date = %s, want 2024-09-15", tesco.Date)
	}
	if tesco.Direction != domain.DirectionDebit {
		t.Errorf("Direction = %q, want debit", tesco.Direction)
	}
}

func TestServiceFetchDropsInvalidRecords(t *testing.T) {
	fetcher := &fakeFetcher{
		name: "csv",
		raws: []source.RawTransaction{
			{Date: "15/09/2024", Description: "GOOD ROW", Amount: "-1.00"},
			{Date: "not a date", Description: "BAD DATE", Amount: "-2.00"},
			{Date: "16/09/2024", Description: "BAD AMOUNT", Amount: "lots"},
			{Date: "17/09/2024", Description: "ANOTHER GOOD ROW", Amount: "3.00"},
		},
	}
	collector := &countingCollector{}

	svc := newTestService(fetcher, collector)
	result, err := svc.Fetch(context.Background(), "acc1", "", "")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", result.Dropped)
	}
	if len(result.Transactions) != 2 {
		t.Fatalf("len = %d, want 2", len(result.Transactions))
	}
	if result.Transactions[0].Description != "GOOD ROW" || result.Transactions[1].Description != "ANOTHER GOOD ROW" {
		t.Errorf("surviving rows wrong: %+v", result.Transactions)
	}
	if collector.dropped["csv"] != 2 {
		t.Errorf("dropped metric = %d, want 2", collector.dropped["csv"])
	}
}

func TestServiceFetchPropagatesError(t *testing.T) {
	sentinel := errors.New("all sources down")
	svc := newTestService(&fakeFetcher{err: sentinel}, nil)

	_, err := svc.Fetch(context.Background(), "acc1", "", "")
	if !errors.Is(err, sentinel) {
		t.Fatalf("err = %v, want wrapped sentinel", err)
	}
}

func TestServiceListWindows(t *testing.T) {
	raws := make([]source.RawTransaction, 25)
	for i := range raws {
		raws[i] = source.RawTransaction{Date: "2024-09-01", Description: "ROW", Amount: "-1.00"}
	}
	svc := newTestService(&fakeFetcher{name: "mock", raws: raws}, nil)

	result, err := svc.List(context.Background(), Query{AccountID: "acc1", Limit: 10, Offset: 20})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(result.Transactions) != 5 {
		t.Errorf("len = %d, want 5", len(result.Transactions))
	}
	if result.Pagination.Total != 25 {
		t.Errorf("Total = %d, want 25", result.Pagination.Total)
	}
	if result.Pagination.Page != 3 {
		t.Errorf("Page = %d, want 3", result.Pagination.Page)
	}
	if result.Pagination.HasMore {
		t.Error("HasMore = true, want false on the final page")
	}
	// Synthesized ids are batch-wide ordinals, so the window starts at 21.
	if result.Transactions[0].ID != "txn_021" {
		t.Errorf("first ID = %q, want txn_021", result.Transactions[0].ID)
	}
}

func TestListResultRedacted(t *testing.T) {
	svc := newTestService(&fakeFetcher{
		name: "mock",
		raws: []source.RawTransaction{
			{Date: "15/09/2024", Description: "TESCO STORES 1234 LONDON", Amount: "-45.50", Merchant: "Tesco"},
		},
	}, nil)

	result, err := svc.List(context.Background(), Query{AccountID: "acc1"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	redacted := result.Redacted()
	if len(redacted.Transactions) != 1 {
		t.Fatalf("len = %d, want 1", len(redacted.Transactions))
	}
	if redacted.Pagination != result.Pagination {
		t.Error("redaction changed the pagination envelope")
	}

	body, err := json.Marshal(redacted)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	for _, leak := range []string{"TESCO", "Tesco", "description", "merchant"} {
		if strings.Contains(string(body), leak) {
			t.Errorf("redacted payload contains %q: %s", leak, body)
		}
	}
	if !strings.Contains(string(body), "-45.5") {
		t.Errorf("redacted payload lost the amount: %s", body)
	}
}

func TestServiceAccounts(t *testing.T) {
	want := []domain.Account{{ID: "acc001", Name: "Primary Current Account"}}
	svc := newTestService(&fakeFetcher{accounts: want}, nil)

	accounts, err := svc.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 || accounts[0].ID != "acc001" {
		t.Errorf("accounts = %+v, want %+v", accounts, want)
	}
}
