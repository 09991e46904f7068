package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// FlowTTL is how long a started authorization flow stays redeemable.
const FlowTTL = 10 * time.Minute

// NewVerifier returns a fresh PKCE code verifier: 32 random bytes,
// base64url without padding, per RFC 7636.
func NewVerifier() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("NewVerifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// Challenge derives the S256 code challenge for a verifier.
func Challenge(verifier string) string {
	digest := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

// NewState returns a random state parameter for CSRF binding.
func NewState() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("NewState: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

type pendingFlow struct {
	verifier  string
	createdAt time.Time
}

// FlowStore holds in-flight authorization flows keyed by state. A
// verifier can be taken exactly once; expired flows are discarded on
// access.
type FlowStore struct {
	mu    sync.Mutex
	flows map[string]pendingFlow
	ttl   time.Duration
	now   func() time.Time
}

// NewFlowStore returns an empty store with the given flow lifetime.
func NewFlowStore(ttl time.Duration) *FlowStore {
	if ttl <= 0 {
		ttl = FlowTTL
	}
	return &FlowStore{
		flows: make(map[string]pendingFlow),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Begin records a started flow under its state.
func (s *FlowStore) Begin(state, verifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flows[state] = pendingFlow{verifier: verifier, createdAt: s.now()}
}

// Take redeems the verifier for a state. The flow is removed whether or
// not it was still valid, so a state can never be replayed.
func (s *FlowStore) Take(state string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[state]
	if !ok {
		return "", false
	}
	delete(s.flows, state)

	if s.now().Sub(flow.createdAt) > s.ttl {
		return "", false
	}
	return flow.verifier, true
}

// Sweep drops every expired flow. Called opportunistically; Take
// already refuses stale states on its own.
func (s *FlowStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := s.now().Add(-s.ttl)
	for state, flow := range s.flows {
		if flow.createdAt.Before(cutoff) {
			delete(s.flows, state)
			removed++
		}
	}
	return removed
}
