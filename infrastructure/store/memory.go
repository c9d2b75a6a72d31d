// Package store provides a reference in-memory application.SessionStore.
// Production deployments are expected to supply their own store backed by a
// real database; the core never touches one directly.
package store

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
	"time"

	"tunnelcore/application"
	domainsession "tunnelcore/domain/session"
)

// MemoryStore is an in-memory, concurrency-safe application.SessionStore
// keyed by session token.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[domainsession.Token]application.StoredSession
	nextID   int
}

// New returns an empty MemoryStore.
func New() *MemoryStore {
	return &MemoryStore{sessions: make(map[domainsession.Token]application.StoredSession)}
}

// CreateSession persists a new session record under a freshly generated
// token and returns it.
func (m *MemoryStore) CreateSession(_ context.Context, userID string, virtualIP netip.Addr, peerAddr, clientVersion, keyHex string, ttl time.Duration) (application.StoredSession, error) {
	token, err := domainsession.NewToken()
	if err != nil {
		return application.StoredSession{}, fmt.Errorf("store: create session: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := application.StoredSession{
		ID:            fmt.Sprintf("sess-%d", m.nextID),
		Token:         token,
		UserID:        userID,
		VirtualIP:     virtualIP,
		PeerAddr:      peerAddr,
		ClientVersion: clientVersion,
		KeyHex:        keyHex,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(ttl),
	}
	m.sessions[token] = s
	return s, nil
}

// ErrNotFound is returned when no stored session matches the given token.
var ErrNotFound = fmt.Errorf("store: session not found")

// GetByToken returns the stored session for token.
func (m *MemoryStore) GetByToken(_ context.Context, token domainsession.Token) (application.StoredSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[token]
	if !ok {
		return application.StoredSession{}, ErrNotFound
	}
	return s, nil
}

// GetActive returns every non-expired session owned by userID.
func (m *MemoryStore) GetActive(_ context.Context, userID string) ([]application.StoredSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	var out []application.StoredSession
	for _, s := range m.sessions {
		if s.UserID == userID && now.Before(s.ExpiresAt) {
			out = append(out, s)
		}
	}
	return out, nil
}

// Terminate removes the session for token. reason is accepted for parity
// with the plugin contract but is not retained by this reference store.
func (m *MemoryStore) Terminate(_ context.Context, token domainsession.Token, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[token]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, token)
	return nil
}

// CleanupExpired removes every session past its ExpiresAt and returns the count.
func (m *MemoryStore) CleanupExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for token, s := range m.sessions {
		if now.After(s.ExpiresAt) {
			delete(m.sessions, token)
			n++
		}
	}
	return n, nil
}

// UpdateTraffic records the latest cumulative byte counters for a session.
func (m *MemoryStore) UpdateTraffic(_ context.Context, token domainsession.Token, sent, received uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok {
		return ErrNotFound
	}
	s.BytesSent = sent
	s.BytesReceived = received
	m.sessions[token] = s
	return nil
}
