package server

import (
	"context"
	"crypto/rand"
	"fmt"
	"net"
	"time"

	"tunnelcore/domain/protocol"
	"tunnelcore/infrastructure/aead"
	"tunnelcore/infrastructure/control"
	"tunnelcore/infrastructure/session"
	"tunnelcore/infrastructure/wire"
)

const handshakeReadLimit = 4096

// handleConnection runs the full life of one accepted connection: handshake,
// then the data-plane loop, until EOF/error/shutdown. A failure anywhere in
// this function terminates only this connection.
func (e *Engine) handleConnection(ctx context.Context, conn net.Conn) {
	peerAddr := conn.RemoteAddr().String()

	sess, err := e.handshake(ctx, conn, peerAddr)
	if err != nil {
		e.logger.Warnf("server: handshake from %s failed: %v", peerAddr, err)
		conn.Close()
		return
	}

	e.logger.Infof("server: session %s established for %s at %s", sess.Token, sess.UserID, sess.VirtualIP)
	e.runDataPlane(ctx, sess)
}

func (e *Engine) handshake(ctx context.Context, conn net.Conn, peerAddr string) (*session.Session, error) {
	deadline := time.Now().Add(10 * time.Second)
	conn.SetReadDeadline(deadline)

	var buf wire.Buffer
	readBuf := make([]byte, handshakeReadLimit)
	n, err := conn.Read(readBuf)
	if err != nil {
		return nil, fmt.Errorf("server: read auth request: %w", err)
	}
	buf.Append(readBuf[:n])

	msgType, payload, ok, err := buf.ExtractControlMessage()
	if err != nil {
		e.writeError(conn, protocol.ErrInvalidMessage, err.Error())
		return nil, fmt.Errorf("server: decode control message: %w", err)
	}
	if !ok || msgType != protocol.AuthRequest {
		e.writeError(conn, protocol.ErrInvalidMessage, "expected AuthRequest")
		return nil, fmt.Errorf("server: expected AuthRequest, got %v (complete=%v)", msgType, ok)
	}

	req, err := control.DecodeAuthRequest(payload)
	if err != nil {
		e.writeError(conn, protocol.ErrInvalidMessage, err.Error())
		return nil, fmt.Errorf("server: decode auth request: %w", err)
	}

	user, verified := e.users.Verify(ctx, req.Username, req.Password)
	if !verified {
		e.writeAuthFailure(conn, protocol.ErrInvalidCredentials, "invalid username or password")
		return nil, fmt.Errorf("server: credentials rejected for %q", req.Username)
	}

	if e.registry.CountForUser(user.ID) >= user.MaxSessions {
		e.writeAuthFailure(conn, protocol.ErrTooManySessions, "session limit reached")
		return nil, fmt.Errorf("server: session limit reached for %q", user.ID)
	}

	virtualIP, err := e.allocator.Allocate()
	if err != nil {
		e.writeAuthFailure(conn, protocol.ErrIPAllocation, "no virtual address available")
		return nil, fmt.Errorf("server: allocate virtual ip: %w", err)
	}

	masterKey := make([]byte, protocol.KeySize)
	if _, err := rand.Read(masterKey); err != nil {
		e.allocator.Release(virtualIP)
		e.writeAuthFailure(conn, protocol.ErrOverloaded, "internal error")
		return nil, fmt.Errorf("server: generate master key: %w", err)
	}

	ttl := e.cfg.SessionTTL()
	// the store issues the session token, so the live session and later
	// UpdateTraffic/Terminate calls use the same one
	stored, err := e.store.CreateSession(ctx, user.ID, virtualIP, peerAddr, req.ClientVersion, fmt.Sprintf("%x", masterKey), ttl)
	if err != nil {
		e.allocator.Release(virtualIP)
		e.writeAuthFailure(conn, protocol.ErrOverloaded, "could not persist session")
		return nil, fmt.Errorf("server: persist session: %w", err)
	}
	token := stored.Token

	sendInst, err := aead.NewInstance(masterKey)
	if err != nil {
		e.allocator.Release(virtualIP)
		return nil, fmt.Errorf("server: build send aead instance: %w", err)
	}
	recvInst, err := aead.NewInstance(masterKey)
	if err != nil {
		e.allocator.Release(virtualIP)
		return nil, fmt.Errorf("server: build recv aead instance: %w", err)
	}

	successPayload, err := control.EncodeAuthSuccess(token.String(), virtualIP.String(), masterKey)
	if err != nil {
		e.allocator.Release(virtualIP)
		return nil, fmt.Errorf("server: encode auth success: %w", err)
	}
	framed, err := wire.FrameControlMessage(protocol.AuthSuccess, successPayload)
	if err != nil {
		e.allocator.Release(virtualIP)
		return nil, fmt.Errorf("server: frame auth success: %w", err)
	}
	if _, err := conn.Write(framed); err != nil {
		e.allocator.Release(virtualIP)
		return nil, fmt.Errorf("server: write auth success: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	sess := session.New(token, user.ID, virtualIP, peerAddr, req.ClientVersion, sendInst, recvInst, conn, ttl)
	if err := e.registry.Add(sess); err != nil {
		e.allocator.Release(virtualIP)
		return nil, fmt.Errorf("server: register session: %w", err)
	}

	// buf may already hold bytes read past the auth-request frame (e.g. the
	// client pipelined its first data record); carry them into the
	// session's own stream buffer for the data-plane loop to drain.
	sess.Buf = buf

	return sess, nil
}

func (e *Engine) writeError(conn net.Conn, code protocol.ErrorCode, message string) {
	payload, err := control.EncodeError(code, message)
	if err != nil {
		return
	}
	framed, err := wire.FrameControlMessage(protocol.Error, payload)
	if err != nil {
		return
	}
	conn.Write(framed)
}

func (e *Engine) writeAuthFailure(conn net.Conn, code protocol.ErrorCode, message string) {
	payload, err := control.EncodeAuthFailure(code, message)
	if err != nil {
		return
	}
	framed, err := wire.FrameControlMessage(protocol.AuthFailure, payload)
	if err != nil {
		return
	}
	conn.Write(framed)
}
