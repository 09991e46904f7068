package oauth

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// AuthLinkResult is the create_data_auth_link tool payload.
type AuthLinkResult struct {
	AuthURL      string `json:"auth_url"`
	RedirectURI  string `json:"redirect_uri"`
	State        string `json:"state"`
	Instructions string `json:"instructions"`
}

// ExchangeResult is the complete_code_exchange tool payload. Token
// fields carry truncated previews only; the real tokens never leave the
// store.
type ExchangeResult struct {
	Success      bool   `json:"success"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Message      string `json:"message"`
	ConsentID    string `json:"consent_id,omitempty"`
}

// Manager drives the authorization flow end to end: it issues auth
// links with fresh PKCE material, redeems codes one-shot per state,
// stores the resulting tokens and records the consent grant.
type Manager struct {
	client *Client
	flows  *FlowStore
	tokens *TokenStore
	ledger *ConsentLedger
	log    zerolog.Logger
}

// NewManager wires the flow around an authorization client, token
// store and consent ledger.
func NewManager(client *Client, tokens *TokenStore, ledger *ConsentLedger, log zerolog.Logger) *Manager {
	return &Manager{
		client: client,
		flows:  NewFlowStore(FlowTTL),
		tokens: tokens,
		ledger: ledger,
		log:    log.With().Str("component", "oauth").Logger(),
	}
}

// CreateAuthLink starts a new flow and returns the authorization URL
// the user must visit. Fails with ErrNotConfigured when no client id is
// set.
func (m *Manager) CreateAuthLink() (*AuthLinkResult, error) {
	state, err := NewState()
	if err != nil {
		return nil, fmt.Errorf("CreateAuthLink: %w", err)
	}
	verifier, err := NewVerifier()
	if err != nil {
		return nil, fmt.Errorf("CreateAuthLink: %w", err)
	}

	authURL, err := m.client.AuthLink(state, Challenge(verifier))
	if err != nil {
		return nil, err
	}
	m.flows.Begin(state, verifier)

	m.log.Info().Str("state", state).Msg("Authorization flow started")
	return &AuthLinkResult{
		AuthURL:      authURL,
		RedirectURI:  m.client.redirectURI,
		State:        state,
		Instructions: "Visit the auth_url to authorize access, then use the returned code and state with complete_code_exchange tool",
	}, nil
}

// CompleteExchange validates the state, redeems the code with the
// stored verifier, keeps the tokens and records the consent under the
// state id. A state works exactly once.
func (m *Manager) CompleteExchange(ctx context.Context, code, state string) (*ExchangeResult, error) {
	verifier, ok := m.flows.Take(state)
	if !ok {
		return nil, ErrInvalidState
	}

	tokens, err := m.client.Exchange(ctx, code, verifier)
	if err != nil {
		return nil, err
	}
	m.tokens.Set(tokens)

	consent := m.ledger.Grant(state, ConsentPurpose, DefaultScopes, ConsentProvider)
	m.log.Info().Str("consent_id", consent.ID).Msg("Code exchange completed, consent recorded")

	return &ExchangeResult{
		Success:      true,
		AccessToken:  previewToken(tokens.AccessToken),
		RefreshToken: previewToken(tokens.RefreshToken),
		Message:      "Tokens stored successfully",
		ConsentID:    consent.ID,
	}, nil
}

// ExchangeCode redeems a code without PKCE or state validation. Legacy
// path; it stores the tokens but records no consent.
func (m *Manager) ExchangeCode(ctx context.Context, code string) (*ExchangeResult, error) {
	tokens, err := m.client.Exchange(ctx, code, "")
	if err != nil {
		return nil, err
	}
	m.tokens.Set(tokens)

	m.log.Info().Msg("Legacy code exchange completed")
	return &ExchangeResult{
		Success:      true,
		AccessToken:  previewToken(tokens.AccessToken),
		RefreshToken: previewToken(tokens.RefreshToken),
		Message:      "Tokens stored successfully",
	}, nil
}

// Consents lists the active consent grants.
func (m *Manager) Consents() []Consent {
	return m.ledger.List()
}

// RevokeConsent removes a grant and reports whether it existed.
func (m *Manager) RevokeConsent(id string) bool {
	return m.ledger.Revoke(id)
}

// previewToken truncates a token for display. Full values stay in the
// store only.
func previewToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) > 20 {
		token = token[:20]
	}
	return token + "..."
}
