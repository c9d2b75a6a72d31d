package session

import (
	"errors"
	"io"
	"net/netip"
	"testing"
	"time"

	domainsession "tunnelcore/domain/session"
)

type recordingStream struct {
	written   [][]byte
	readErr   error
	closeErr  error
	closed    bool
}

func (s *recordingStream) Read(p []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	return 0, io.EOF
}

func (s *recordingStream) Write(p []byte) (int, error) {
	s.written = append(s.written, append([]byte(nil), p...))
	return len(p), nil
}

func (s *recordingStream) Close() error {
	s.closed = true
	return s.closeErr
}

func TestSession_SendUpdatesCountersAndActivity(t *testing.T) {
	t.Parallel()
	stream := &recordingStream{}
	addr := netip.MustParseAddr("10.8.0.2")
	s := New(domainsession.Token("tok"), "alice", addr, "peer:1", "1.0", nil, nil, stream, time.Hour)

	before := s.LastActivity()
	time.Sleep(time.Millisecond)

	if err := s.SendBytes([]byte("hello")); err != nil {
		t.Fatalf("SendBytes: %v", err)
	}
	if len(stream.written) != 1 {
		t.Fatalf("expected one write, got %d", len(stream.written))
	}
	if s.Counters().BytesSent != 5 {
		t.Fatalf("BytesSent = %d, want 5", s.Counters().BytesSent)
	}
	if s.Counters().PacketsSent != 1 {
		t.Fatalf("PacketsSent = %d, want 1", s.Counters().PacketsSent)
	}
	if !s.LastActivity().After(before) {
		t.Fatal("LastActivity should have advanced")
	}
}

func TestSession_RecvEOF(t *testing.T) {
	t.Parallel()
	stream := &recordingStream{}
	s := New(domainsession.Token("tok"), "alice", netip.MustParseAddr("10.8.0.2"), "peer:1", "1.0", nil, nil, stream, time.Hour)

	buf := make([]byte, 16)
	_, err := s.Recv(buf)
	if !errors.Is(err, io.EOF) {
		t.Fatalf("want io.EOF, got %v", err)
	}
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	stream := &recordingStream{}
	s := New(domainsession.Token("tok"), "alice", netip.MustParseAddr("10.8.0.2"), "peer:1", "1.0", nil, nil, stream, time.Hour)

	if err := s.Close("first"); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := s.Close("second"); err != nil {
		t.Fatalf("second Close should not error: %v", err)
	}
	if s.Active() {
		t.Fatal("session should be inactive after Close")
	}
	if s.CloseReason() != "first" {
		t.Fatalf("CloseReason = %q, want %q (first reason wins)", s.CloseReason(), "first")
	}
	if !stream.closed {
		t.Fatal("underlying stream should be closed")
	}
}

func TestSession_Expired(t *testing.T) {
	t.Parallel()
	stream := &recordingStream{}
	s := New(domainsession.Token("tok"), "alice", netip.MustParseAddr("10.8.0.2"), "peer:1", "1.0", nil, nil, stream, -time.Second)
	if !s.Expired() {
		t.Fatal("session with negative TTL should report Expired")
	}
}
