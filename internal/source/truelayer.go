package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/openbanking-mcp/internal/domain"
)

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 1 << 20

// TokenProvider supplies the current access token, if any. Implemented
// by the oauth token store; the second return is false when the user has
// not completed the consent flow.
type TokenProvider interface {
	AccessToken() (string, bool)
}

// TrueLayerSource fetches live records from the TrueLayer sandbox data
// API. Without an access token the source reports ErrUnavailable; with
// one, any transport, auth or decode problem is a FetchError the chain
// recovers from. Every call is bounded by the configured timeout so one
// slow upstream request cannot stall the pipeline.
type TrueLayerSource struct {
	apiBaseURL    string
	httpClient    *http.Client
	tokens        TokenProvider
	timeout       time.Duration
	debugPayloads bool
	log           zerolog.Logger
}

// NewTrueLayerSource creates a live source against the given API base URL.
func NewTrueLayerSource(apiBaseURL string, tokens TokenProvider, timeout time.Duration, debugPayloads bool, log zerolog.Logger) *TrueLayerSource {
	return &TrueLayerSource{
		apiBaseURL: strings.TrimRight(apiBaseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tokens:        tokens,
		timeout:       timeout,
		debugPayloads: debugPayloads,
		log:           log,
	}
}

// Name implements Source.
func (s *TrueLayerSource) Name() string {
	return string(KindTrueLayer)
}

// trueLayerTransaction is the wire shape of one transaction in the data
// API. Amount stays a json.Number so no float round-trip corrupts it
// before the normalizer parses it as a decimal.
type trueLayerTransaction struct {
	TransactionID  string      `json:"transaction_id"`
	Timestamp      string      `json:"timestamp"`
	Description    string      `json:"description"`
	Amount         json.Number `json:"amount"`
	Currency       string      `json:"currency"`
	MerchantName   string      `json:"merchant_name"`
	Classification []string    `json:"transaction_classification"`
}

// Fetch implements Source.
func (s *TrueLayerSource) Fetch(ctx context.Context, accountID, startDate, endDate string) ([]RawTransaction, error) {
	token, ok := s.tokens.AccessToken()
	if !ok {
		return nil, fmt.Errorf("no access token: %w", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/data/v1/accounts/%s/transactions", s.apiBaseURL, url.PathEscape(accountID))
	query := url.Values{
		"from":  {startDate},
		"to":    {endDate},
		"limit": {"500"},
	}

	body, err := s.get(ctx, endpoint+"?"+query.Encode(), token)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}

	var payload struct {
		Results []trueLayerTransaction `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("decode transactions: %w", err)}
	}

	records := make([]RawTransaction, 0, len(payload.Results))
	for _, t := range payload.Results {
		records = append(records, RawTransaction{
			Kind:           KindTrueLayer,
			ID:             t.TransactionID,
			Date:           isoDateOf(t.Timestamp),
			Description:    t.Description,
			Amount:         t.Amount.String(),
			Currency:       t.Currency,
			Merchant:       t.MerchantName,
			Classification: strings.Join(t.Classification, ", "),
			AccountID:      accountID,
		})
	}

	s.log.Info().Int("records", len(records)).Str("account_id", accountID).Msg("Parsed TrueLayer transactions")
	return records, nil
}

// trueLayerAccount is the wire shape of one account in the data API.
type trueLayerAccount struct {
	AccountID   string `json:"account_id"`
	AccountType string `json:"account_type"`
	DisplayName string `json:"display_name"`
	Currency    string `json:"currency"`
}

// Accounts implements AccountSource.
func (s *TrueLayerSource) Accounts(ctx context.Context) ([]domain.Account, error) {
	token, ok := s.tokens.AccessToken()
	if !ok {
		return nil, fmt.Errorf("no access token: %w", ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.get(ctx, s.apiBaseURL+"/data/v1/accounts", token)
	if err != nil {
		return nil, &FetchError{Source: s.Name(), Err: err}
	}

	var payload struct {
		Results []trueLayerAccount `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &FetchError{Source: s.Name(), Err: fmt.Errorf("decode accounts: %w", err)}
	}

	accounts := make([]domain.Account, 0, len(payload.Results))
	for _, a := range payload.Results {
		accounts = append(accounts, domain.Account{
			ID:       a.AccountID,
			Name:     a.DisplayName,
			Type:     strings.ToLower(a.AccountType),
			Currency: a.Currency,
		})
	}
	return accounts, nil
}

// get performs an authorized GET and returns the response body.
func (s *TrueLayerSource) get(ctx context.Context, rawURL, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if s.debugPayloads {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200]
		}
		s.log.Debug().Str("payload", preview).Msg("TrueLayer payload preview")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

// isoDateOf reduces an RFC3339 timestamp to its calendar date part.
func isoDateOf(timestamp string) string {
	if len(timestamp) >= 10 {
		return timestamp[:10]
	}
	return timestamp
}

var (
	_ Source        = (*TrueLayerSource)(nil)
	_ AccountSource = (*TrueLayerSource)(nil)
)
