package oauth

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ConsentPurpose is the fixed purpose string recorded for every grant.
const ConsentPurpose = "Bank account data access for HMRC reporting"

// ConsentProvider names the upstream the consent covers.
const ConsentProvider = "TrueLayer"

// DefaultScopes is the scope set requested from TrueLayer.
var DefaultScopes = []string{"info", "accounts", "balance", "transactions"}

// Consent is one recorded user authorization.
type Consent struct {
	ID        string    `json:"id"`
	Purpose   string    `json:"purpose"`
	Scopes    []string  `json:"scopes"`
	Provider  string    `json:"provider"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConsentLedger is the in-memory record of user consents. Expiry is
// evaluated at read time; expired entries are pruned as they are seen.
type ConsentLedger struct {
	mu       sync.Mutex
	consents map[string]Consent
	ttl      time.Duration
	now      func() time.Time
}

// NewConsentLedger returns a ledger whose grants live for ttlDays.
func NewConsentLedger(ttlDays int) *ConsentLedger {
	if ttlDays <= 0 {
		ttlDays = 90
	}
	return &ConsentLedger{
		consents: make(map[string]Consent),
		ttl:      time.Duration(ttlDays) * 24 * time.Hour,
		now:      time.Now,
	}
}

// Grant records a consent under the given id and returns it.
func (l *ConsentLedger) Grant(id, purpose string, scopes []string, provider string) Consent {
	l.mu.Lock()
	defer l.mu.Unlock()

	granted := l.now().UTC()
	consent := Consent{
		ID:        id,
		Purpose:   purpose,
		Scopes:    append([]string(nil), scopes...),
		Provider:  provider,
		GrantedAt: granted,
		ExpiresAt: granted.Add(l.ttl),
	}
	l.consents[id] = consent
	return consent
}

// Get returns an active consent by id. Expired entries are removed and
// reported as missing.
func (l *ConsentLedger) Get(id string) (Consent, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	consent, ok := l.consents[id]
	if !ok {
		return Consent{}, false
	}
	if l.now().After(consent.ExpiresAt) {
		delete(l.consents, id)
		return Consent{}, false
	}
	return consent, true
}

// List returns every active consent, oldest grant first.
func (l *ConsentLedger) List() []Consent {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	active := make([]Consent, 0, len(l.consents))
	for id, consent := range l.consents {
		if now.After(consent.ExpiresAt) {
			delete(l.consents, id)
			continue
		}
		active = append(active, consent)
	}

	sort.Slice(active, func(i, j int) bool {
		if !active[i].GrantedAt.Equal(active[j].GrantedAt) {
			return active[i].GrantedAt.Before(active[j].GrantedAt)
		}
		return active[i].ID < active[j].ID
	})
	return active
}

// Revoke removes a consent and reports whether it existed.
func (l *ConsentLedger) Revoke(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, ok := l.consents[id]
	delete(l.consents, id)
	return ok
}

// RenderConsents formats the consent list as the block of text shown
// to the user by the list_consents tool.
func RenderConsents(consents []Consent) string {
	if len(consents) == 0 {
		return "No active consents found."
	}

	var b strings.Builder
	b.WriteString("Active User Consents:\n")
	b.WriteString(strings.Repeat("=", 50) + "\n\n")

	for _, c := range consents {
		fmt.Fprintf(&b, "Consent ID: %s\n", c.ID)
		fmt.Fprintf(&b, "Purpose: %s\n", c.Purpose)
		fmt.Fprintf(&b, "Provider: %s\n", c.Provider)
		fmt.Fprintf(&b, "Scopes: %s\n", strings.Join(c.Scopes, ", "))
		fmt.Fprintf(&b, "Granted: %s\n", c.GrantedAt.Format(time.RFC3339))
		fmt.Fprintf(&b, "Expires: %s\n", c.ExpiresAt.Format(time.RFC3339))
		b.WriteString(strings.Repeat("-", 30) + "\n\n")
	}
	return b.String()
}
