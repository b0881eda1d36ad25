// Package session is the single source of truth for "is there a currently
// authenticated actor, and who are they". It stores one bearer token per
// actor role, checks expiry by an unverified read of the token claims, and
// never performs a network call.
//
// The local validity check is advisory only: it exists to redirect the user
// to login before wasting a request, never as the authorization boundary.
// The backend re-verifies the credential on every gated write.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role identifies which actor a stored token belongs to.
type Role string

const (
	RoleWorker   Role = "worker"
	RoleBusiness Role = "business"
)

// Store persists tokens keyed by role. Implementations must treat an absent
// row as ("", nil), not an error.
type Store interface {
	Get(ctx context.Context, role Role) (string, error)
	Put(ctx context.Context, role Role, token string) error
	Delete(ctx context.Context, role Role) error
}

// Manager tracks the current actor's credentials. Safe for concurrent use.
// It is the only component allowed to mutate the stored tokens.
type Manager struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
}

// NewManager creates a Manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Token returns the stored token for role, or "" and false when none is
// stored. It does not validate the token; callers that gate an operation
// combine Token with Valid so expiry is re-checked at call time.
func (m *Manager) Token(ctx context.Context, role Role) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tok, err := m.store.Get(ctx, role)
	if err != nil || tok == "" {
		return "", false
	}
	return tok, true
}

// Establish stores a newly issued token, replacing any prior token for the
// role.
func (m *Manager) Establish(ctx context.Context, role Role, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Put(ctx, role, token)
}

// Clear removes the stored token for role. Used on logout and on a detected
// expiry or 401.
func (m *Manager) Clear(ctx context.Context, role Role) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.Delete(ctx, role)
}

// Valid reports whether token carries an expiry claim strictly after now.
// Absent, malformed, unparseable, or expired tokens are all simply invalid;
// ambiguity resolves to "not authenticated", never to an error.
func (m *Manager) Valid(token string) bool {
	claims, ok := decodeClaims(token)
	if !ok {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		// fail closed on tokens without an expiry
		return false
	}
	return exp.Time.After(m.now())
}

// Identity extracts the actor name encoded in token: the "username" claim
// for workers, falling back to "company" for business tokens.
func (m *Manager) Identity(token string) (string, bool) {
	claims, ok := decodeClaims(token)
	if !ok {
		return "", false
	}

	for _, key := range []string{"username", "company"} {
		if v, found := claims[key]; found {
			if s, isStr := v.(string); isStr && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Current is the gate every store calls before a protected operation: it
// re-reads the token for role and returns it with the embedded identity,
// or ok=false when there is no valid session.
func (m *Manager) Current(ctx context.Context, role Role) (token, identity string, ok bool) {
	tok, found := m.Token(ctx, role)
	if !found || !m.Valid(tok) {
		return "", "", false
	}
	id, found := m.Identity(tok)
	if !found {
		return "", "", false
	}
	return tok, id, true
}

// Require is Current plus the detected-expiry cleanup: a stored token that
// no longer validates is cleared, so the next gate starts from a clean
// logged-out state instead of tripping over the same stale credential.
func (m *Manager) Require(ctx context.Context, role Role) (token, identity string, ok bool) {
	tok, found := m.Token(ctx, role)
	if !found {
		return "", "", false
	}
	if !m.Valid(tok) {
		_ = m.Clear(ctx, role)
		return "", "", false
	}
	id, found := m.Identity(tok)
	if !found {
		return "", "", false
	}
	return tok, id, true
}

// decodeClaims reads the claims without verifying the signature. Signature
// verification belongs to the backend; the client only needs the expiry and
// identity hints.
func decodeClaims(token string) (jwt.MapClaims, bool) {
	if token == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, false
	}
	return claims, true
}
