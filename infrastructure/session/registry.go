package session

import (
	"errors"
	"net/netip"
	"sync"
	"time"

	domainsession "tunnelcore/domain/session"
)

// ErrDuplicateToken is returned by Add when a session with the same token is
// already registered.
var ErrDuplicateToken = errors.New("session: duplicate token")

// ErrNotFound is returned by Get/Remove when no session matches.
var ErrNotFound = errors.New("session: not found")

// Registry is the process-wide, concurrency-safe index of live sessions,
// keyed both by session token and by virtual IP. A session always appears in
// both indices or neither: Add and Remove update both atomically under the
// same lock.
type Registry struct {
	mu      sync.RWMutex
	byToken map[domainsession.Token]*Session
	byIP    map[netip.Addr]*Session
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken: make(map[domainsession.Token]*Session),
		byIP:    make(map[netip.Addr]*Session),
	}
}

// Add registers s under both its token and virtual IP.
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[s.Token]; exists {
		return ErrDuplicateToken
	}
	r.byToken[s.Token] = s
	r.byIP[s.VirtualIP] = s
	return nil
}

// Remove detaches the session for token from both indices and returns it.
func (r *Registry) Remove(token domainsession.Token) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.byToken, token)
	delete(r.byIP, s.VirtualIP)
	return s, nil
}

// Get looks a session up by token.
func (r *Registry) Get(token domainsession.Token) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byToken[token]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetByIP looks a session up by its assigned virtual IP.
func (r *Registry) GetByIP(addr netip.Addr) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byIP[addr]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// All returns a snapshot slice of every currently registered session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.byToken))
	for _, s := range r.byToken {
		out = append(out, s)
	}
	return out
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}

// CountForUser returns the number of registered sessions owned by userID,
// used to enforce the per-user session limit at handshake time.
func (r *Registry) CountForUser(userID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, s := range r.byToken {
		if s.UserID == userID {
			n++
		}
	}
	return n
}

// CleanupInactive removes and closes every session whose last activity is
// older than idleTimeout, or whose TTL has elapsed, and returns the count
// evicted.
func (r *Registry) CleanupInactive(idleTimeout time.Duration) int {
	r.mu.Lock()
	stale := make([]*Session, 0)
	now := time.Now()
	for token, s := range r.byToken {
		if now.Sub(s.LastActivity()) > idleTimeout || s.Expired() {
			delete(r.byToken, token)
			delete(r.byIP, s.VirtualIP)
			stale = append(stale, s)
		}
	}
	r.mu.Unlock()

	for _, s := range stale {
		s.Close("idle timeout or TTL expired")
	}
	return len(stale)
}
