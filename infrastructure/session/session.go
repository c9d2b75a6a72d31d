// Package session implements the server-side session object and the
// process-wide registry that indexes live sessions by token and by virtual
// IP.
package session

import (
	"fmt"
	"io"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"tunnelcore/domain/session"
	"tunnelcore/infrastructure/aead"
	"tunnelcore/infrastructure/rekey"
	"tunnelcore/infrastructure/wire"
)

// Stream is the minimal transport a Session needs: a reader/writer pair plus
// a way to tear the connection down. net.Conn and *tls.Conn both satisfy it.
type Stream interface {
	io.Reader
	io.Writer
	io.Closer
}

// Session is one authenticated tunnel connection. Its stream buffer is used
// only by the connection's own handler task. The AEAD instances carry their
// own mutex, and the stream is also written by the engine's outbound loop
// and closed from other tasks. The counters and activity timestamp are read
// concurrently by the reaper and stats logger, so they are atomic.
type Session struct {
	Token         session.Token
	UserID        string
	VirtualIP     netip.Addr
	PeerAddr      string
	ClientVersion string
	CreatedAt     time.Time
	ExpiresAt     time.Time

	Send  *aead.Instance
	Recv  *aead.Instance
	Buf   wire.Buffer
	Rekey *rekey.Controller

	stream Stream

	bytesSent     atomic.Uint64
	bytesReceived atomic.Uint64
	packetsSent   atomic.Uint64
	packetsRecv   atomic.Uint64
	lastActivity  atomic.Int64 // unix nanoseconds

	closeOnce   sync.Once
	closeReason string
	active      atomic.Bool
}

// New builds a Session over an already-authenticated stream. The caller is
// responsible for having allocated the token and virtual IP and derived the
// AEAD instances beforehand.
func New(token session.Token, userID string, virtualIP netip.Addr, peerAddr, clientVersion string, send, recv *aead.Instance, stream Stream, ttl time.Duration) *Session {
	s := &Session{
		Token:         token,
		UserID:        userID,
		VirtualIP:     virtualIP,
		PeerAddr:      peerAddr,
		ClientVersion: clientVersion,
		CreatedAt:     time.Now(),
		ExpiresAt:     time.Now().Add(ttl),
		Send:          send,
		Recv:          recv,
		Rekey:         rekey.NewController(send, recv),
		stream:        stream,
	}
	s.active.Store(true)
	s.touch()
	return s
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// LastActivity returns the timestamp of the most recent send or recv.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

// Active reports whether the session is still open.
func (s *Session) Active() bool {
	return s.active.Load()
}

// Expired reports whether the session's TTL has elapsed as of now.
func (s *Session) Expired() bool {
	return time.Now().After(s.ExpiresAt)
}

// SendBytes writes a framed blob to the stream and updates counters and activity.
func (s *Session) SendBytes(b []byte) error {
	n, err := s.stream.Write(b)
	if err != nil {
		return fmt.Errorf("session: send: %w", err)
	}
	s.bytesSent.Add(uint64(n))
	s.packetsSent.Add(1)
	s.touch()
	return nil
}

// Recv reads up to len(buf) bytes. io.EOF indicates the peer closed the stream.
func (s *Session) Recv(buf []byte) (int, error) {
	n, err := s.stream.Read(buf)
	if n > 0 {
		s.bytesReceived.Add(uint64(n))
		s.touch()
	}
	if err != nil {
		return n, err
	}
	return n, nil
}

// RecordPacketReceived increments the received-packet counter; called once
// per successfully decrypted data-plane record, separately from raw byte
// accounting in Recv.
func (s *Session) RecordPacketReceived() {
	s.packetsRecv.Add(1)
}

// Close idempotently tears the session down: marks it inactive, closes the
// underlying stream if still open, and records reason (the first reason
// given wins).
func (s *Session) Close(reason string) error {
	var err error
	s.closeOnce.Do(func() {
		s.active.Store(false)
		s.closeReason = reason
		err = s.stream.Close()
	})
	return err
}

// CloseReason returns the reason passed to the first Close call, or "" if
// the session is still open.
func (s *Session) CloseReason() string {
	return s.closeReason
}

// Counters is a snapshot of a session's traffic counters.
type Counters struct {
	BytesSent     uint64
	BytesReceived uint64
	PacketsSent   uint64
	PacketsRecv   uint64
}

func (s *Session) Counters() Counters {
	return Counters{
		BytesSent:     s.bytesSent.Load(),
		BytesReceived: s.bytesReceived.Load(),
		PacketsSent:   s.packetsSent.Load(),
		PacketsRecv:   s.packetsRecv.Load(),
	}
}
