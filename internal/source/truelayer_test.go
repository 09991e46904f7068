package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type staticToken struct {
	token string
	held  bool
}

func (s staticToken) AccessToken() (string, bool) { return s.token, s.held }

func TestTrueLayerSourceNoToken(t *testing.T) {
	src := NewTrueLayerSource("https://api.truelayer-sandbox.com", staticToken{}, time.Second, false, zerolog.Nop())

	_, err := src.Fetch(context.Background(), "acc1", "2024-09-01", "2024-09-30")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without a token, got %v", err)
	}
	_, err = src.Accounts(context.Background())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable without a token, got %v", err)
	}
}

func TestTrueLayerSourceFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.URL.Path != "/data/v1/accounts/acc1/transactions" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("from") != "2024-09-01" || q.Get("to") != "2024-09-30" {
			t.Errorf("range = %s..%s", q.Get("from"), q.Get("to"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{
			"transaction_id":"tl-100",
			"timestamp":"2024-09-15T14:30:00Z",
			"description":"TESCO STORES 1234 LONDON",
			"amount":-45.50,
			"currency":"GBP",
			"merchant_name":"Tesco",
			"transaction_classification":["Shopping","Groceries"]
		}]}`))
	}))
	defer server.Close()

	src := NewTrueLayerSource(server.URL, staticToken{token: "tok-123", held: true}, time.Second, false, zerolog.Nop())
	records, err := src.Fetch(context.Background(), "acc1", "2024-09-01", "2024-09-30")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}

	r := records[0]
	if r.Kind != KindTrueLayer || r.ID != "tl-100" {
		t.Errorf("unexpected record identity: %+v", r)
	}
	if r.Date != "2024-09-15" {
		t.Errorf("Date = %q, want 2024-09-15", r.Date)
	}
	// json.Number keeps the textual amount intact for the normalizer.
	if r.Amount != "-45.50" {
		t.Errorf("Amount = %q, want -45.50", r.Amount)
	}
	if r.Merchant != "Tesco" || r.Classification != "Shopping, Groceries" {
		t.Errorf("unexpected detail fields: %+v", r)
	}
}

func TestTrueLayerSourceHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"invalid_token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	src := NewTrueLayerSource(server.URL, staticToken{token: "expired", held: true}, time.Second, false, zerolog.Nop())
	_, err := src.Fetch(context.Background(), "acc1", "2024-09-01", "2024-09-30")
	if err == nil {
		t.Fatal("expected error on 401 response")
	}
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("error type = %T, want *FetchError", err)
	}
	if fetchErr.Source != "truelayer" {
		t.Errorf("Source = %q, want truelayer", fetchErr.Source)
	}
}

func TestTrueLayerSourceMalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results": not-json`))
	}))
	defer server.Close()

	src := NewTrueLayerSource(server.URL, staticToken{token: "tok", held: true}, time.Second, false, zerolog.Nop())
	_, err := src.Fetch(context.Background(), "acc1", "2024-09-01", "2024-09-30")

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError on malformed body, got %v", err)
	}
}

func TestTrueLayerSourceCanceledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewTrueLayerSource(server.URL, staticToken{token: "tok", held: true}, time.Second, false, zerolog.Nop())
	_, err := src.Fetch(ctx, "acc1", "2024-09-01", "2024-09-30")

	// A dead context is just another fetch failure for the chain to
	// recover from, never a panic or a hang.
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *FetchError on canceled context, got %v", err)
	}
}

func TestTrueLayerSourceAccounts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/data/v1/accounts" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"results":[{
			"account_id":"acc-tl-1",
			"account_type":"TRANSACTION",
			"display_name":"Sandbox Current",
			"currency":"GBP"
		}]}`))
	}))
	defer server.Close()

	src := NewTrueLayerSource(server.URL, staticToken{token: "tok", held: true}, time.Second, false, zerolog.Nop())
	accounts, err := src.Accounts(context.Background())
	if err != nil {
		t.Fatalf("Accounts: %v", err)
	}
	if len(accounts) != 1 {
		t.Fatalf("got %d accounts, want 1", len(accounts))
	}
	if accounts[0].ID != "acc-tl-1" || accounts[0].Type != "transaction" || accounts[0].Name != "Sandbox Current" {
		t.Errorf("unexpected account: %+v", accounts[0])
	}
}
