package application

import (
	"context"
	"net/netip"
	"time"

	"tunnelcore/domain/session"
)

// DatagramDevice is the host-side endpoint for decrypted IP traffic: it
// consumes datagrams arriving from the tunnel and produces datagrams bound
// for it. A concrete implementation bridges to a TUN device, a userspace
// stack, or a test harness; the core never implements one itself.
type DatagramDevice interface {
	// Write delivers one IP datagram that arrived decrypted from the tunnel.
	Write(ctx context.Context, packet []byte) error
	// Read returns the next outbound IP datagram, blocking until one is
	// available or ctx is cancelled.
	Read(ctx context.Context) ([]byte, error)
}

// NetworkPolicy gates which packets a session is allowed to carry. The
// built-in check validates that a decrypted packet's source address matches
// the session's own assigned virtual IP, preventing one client from
// spoofing another's address on the shared tunnel; a policy can extend this
// with AllowedIPs-style routing restrictions.
type NetworkPolicy interface {
	IsSourceAllowed(sessionVirtualIP netip.Addr, packetSourceIP netip.Addr) bool
}

// User is a directory record for an authenticated principal.
type User struct {
	ID          string
	Active      bool
	MaxSessions int
}

// UserDirectory verifies credentials against an external store.
type UserDirectory interface {
	// Verify checks username/password and returns the matching user record.
	// ok is false for unknown users, disabled users, or a bad password.
	Verify(ctx context.Context, username, password string) (user User, ok bool)
}

// StoredSession is the persisted view of a session, as the Session Store
// plugin sees it. The core treats this purely as data returned by the
// plugin; it has no ORM or database access of its own.
type StoredSession struct {
	ID            string
	Token         session.Token
	UserID        string
	VirtualIP     netip.Addr
	PeerAddr      string
	ClientVersion string
	KeyHex        string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	BytesSent     uint64
	BytesReceived uint64
}

// SessionStore persists session records. The core never touches a database
// directly; all durability is delegated here.
type SessionStore interface {
	CreateSession(ctx context.Context, userID string, virtualIP netip.Addr, peerAddr, clientVersion, keyHex string, ttl time.Duration) (StoredSession, error)
	GetByToken(ctx context.Context, token session.Token) (StoredSession, error)
	GetActive(ctx context.Context, userID string) ([]StoredSession, error)
	Terminate(ctx context.Context, token session.Token, reason string) error
	CleanupExpired(ctx context.Context) (int, error)
	UpdateTraffic(ctx context.Context, token session.Token, sent, received uint64) error
}
