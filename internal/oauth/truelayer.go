// Package oauth implements the TrueLayer authorization code flow with
// PKCE, the in-memory token store and the user consent ledger.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNotConfigured means the TrueLayer client credentials are missing
// from the environment. Callers degrade to mock guidance rather than
// failing the tool call.
var ErrNotConfigured = errors.New("truelayer credentials not configured")

// ErrInvalidState rejects a code exchange whose state is unknown,
// already used, or expired.
var ErrInvalidState = errors.New("invalid or expired state parameter")

// MockAuthURL is returned as guidance when no client id is configured.
const MockAuthURL = "https://auth.truelayer-sandbox.com/connect/authorize?response_type=code&client_id=YOUR_CLIENT_ID&scope=info%20accounts%20balance%20transactions&redirect_uri=http://localhost:8080/callback&providers=mock"

// Tokens is one access/refresh token pair from the token endpoint.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenStore keeps the current user's tokens in memory. It satisfies
// source.TokenProvider for the live transaction source.
type TokenStore struct {
	mu      sync.RWMutex
	current *Tokens
}

// NewTokenStore returns an empty store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Set replaces the current token pair.
func (s *TokenStore) Set(tokens Tokens) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &tokens
}

// AccessToken returns the current access token, if any.
func (s *TokenStore) AccessToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil || s.current.AccessToken == "" {
		return "", false
	}
	return s.current.AccessToken, true
}

// Clear drops the stored tokens.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}

// Client talks to the TrueLayer authorization server.
type Client struct {
	authBaseURL  string
	clientID     string
	clientSecret string
	redirectURI  string
	httpClient   *http.Client
	log          zerolog.Logger
}

// NewClient builds a client against the given auth base URL. clientID
// and clientSecret may be empty; calls then fail with ErrNotConfigured.
func NewClient(authBaseURL, clientID, clientSecret, redirectURI string, timeout time.Duration, log zerolog.Logger) *Client {
	return &Client{
		authBaseURL:  strings.TrimRight(authBaseURL, "/"),
		clientID:     clientID,
		clientSecret: clientSecret,
		redirectURI:  redirectURI,
		httpClient:   &http.Client{Timeout: timeout},
		log:          log.With().Str("component", "oauth").Logger(),
	}
}

// Configured reports whether a client id is present.
func (c *Client) Configured() bool {
	return c.clientID != ""
}

// AuthLink builds the authorization URL binding the given state and
// S256 challenge.
func (c *Client) AuthLink(state, challenge string) (string, error) {
	if c.clientID == "" {
		return "", ErrNotConfigured
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.clientID)
	params.Set("scope", strings.Join(DefaultScopes, " "))
	params.Set("redirect_uri", c.redirectURI)
	params.Set("providers", "mock")
	params.Set("state", state)
	params.Set("code_challenge", challenge)
	params.Set("code_challenge_method", "S256")

	return c.authBaseURL + "/connect/authorize?" + params.Encode(), nil
}

// Exchange redeems an authorization code for tokens. verifier may be
// empty for a non-PKCE exchange.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (Tokens, error) {
	if c.clientID == "" || c.clientSecret == "" {
		return Tokens{}, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.redirectURI)
	if verifier != "" {
		form.Set("code_verifier", verifier)
	}

	endpoint := c.authBaseURL + "/connect/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Tokens{}, fmt.Errorf("Exchange: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Tokens{}, fmt.Errorf("Exchange: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Tokens{}, fmt.Errorf("Exchange: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		c.log.Warn().Int("status", resp.StatusCode).Msg("Token exchange rejected")
		return Tokens{}, fmt.Errorf("Exchange: token endpoint returned %d", resp.StatusCode)
	}

	var tokens Tokens
	if err := json.Unmarshal(body, &tokens); err != nil {
		return Tokens{}, fmt.Errorf("Exchange: decode response: %w", err)
	}
	if tokens.AccessToken == "" {
		return Tokens{}, fmt.Errorf("Exchange: no access token in response")
	}
	return tokens, nil
}
