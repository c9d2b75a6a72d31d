// Package client implements the client-side tunnel engine: the connect
// sequence, receive loop, send path, keepalive loop, and disconnect
// sequence described for the client tunnel engine.
package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"tunnelcore/application"
	"tunnelcore/config"
	"tunnelcore/domain/protocol"
	"tunnelcore/infrastructure/aead"
	"tunnelcore/infrastructure/control"
	"tunnelcore/infrastructure/ipvalidate"
	"tunnelcore/infrastructure/telemetry/trafficstats"
	"tunnelcore/infrastructure/wire"
)

// ConnectionState is the client engine's externally visible status.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Authenticating
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Authenticating:
		return "authenticating"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Engine is the client tunnel engine: one connection at a time, with a
// receive task and a keepalive task running alongside the caller's own
// send path.
type Engine struct {
	cfg    config.ClientConfig
	logger application.Logger
	device application.DatagramDevice

	mu         sync.Mutex
	conn       net.Conn
	send       *aead.Instance
	recv       *aead.Instance
	buf        wire.Buffer
	sessionTok string
	assignedIP string
	state      atomic.Int32
	lastErr    atomic.Value // protocol.ErrorCode

	stats *trafficstats.Collector

	lastPong atomic.Int64 // unix nano of most recent pong
	cancel   context.CancelFunc
}

// New builds a client Engine bound to a Datagram Device for outbound packets.
func New(cfg config.ClientConfig, logger application.Logger, device application.DatagramDevice) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		device: device,
		stats:  trafficstats.NewCollector(time.Second, 0.3),
	}, nil
}

// Stats returns a snapshot of this connection's byte counters and smoothed
// send/receive rates.
func (e *Engine) Stats() trafficstats.Snapshot {
	return e.stats.Snapshot()
}

// State returns the engine's current connection state.
func (e *Engine) State() ConnectionState {
	return ConnectionState(e.state.Load())
}

// SessionToken returns the token assigned on the most recent successful
// connect, or "" if never connected.
func (e *Engine) SessionToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sessionTok
}

// AssignedIP returns the virtual IP assigned on the most recent successful
// connect, or "" if never connected.
func (e *Engine) AssignedIP() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.assignedIP
}

func (e *Engine) setState(s ConnectionState) {
	e.state.Store(int32(s))
}

// Connect opens a TLS stream to the configured server, authenticates, and on
// success spawns the receive and keepalive loops under ctx. It returns once
// the handshake completes (success or failure); the loops keep running in
// the background until ctx is cancelled or Disconnect is called.
func (e *Engine) Connect(ctx context.Context) error {
	e.setState(Authenticating)

	addr := fmt.Sprintf("%s:%d", e.cfg.ServerHost, e.cfg.ServerPort)
	dialer := &net.Dialer{Timeout: protocol.ConnectionTimeout}

	var conn net.Conn
	var err error
	if e.cfg.VerifyCert {
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS13, ServerName: e.cfg.ServerHost}
		if e.cfg.TrustAnchorPath != "" {
			// A production build loads the PEM at TrustAnchorPath into
			// tlsCfg.RootCAs here; the core takes the path as configuration
			// only and does not parse certificate files itself.
			e.logger.Debugf("client: using trust anchor %s", e.cfg.TrustAnchorPath)
		}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	} else {
		e.logger.Warnf("client: certificate verification disabled, connecting insecurely to %s", addr)
		tlsCfg := &tls.Config{MinVersion: tls.VersionTLS13, InsecureSkipVerify: true}
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, tlsCfg)
	}
	if err != nil {
		e.setState(Disconnected)
		return fmt.Errorf("client: connect to %s: %w", addr, err)
	}

	if err := e.authenticate(conn); err != nil {
		conn.Close()
		e.setState(Disconnected)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	e.mu.Lock()
	e.conn = conn
	e.cancel = cancel
	e.mu.Unlock()

	e.lastPong.Store(time.Now().UnixNano())
	go e.receiveLoop(loopCtx)
	go e.keepaliveLoop(loopCtx)
	go e.stats.Start(loopCtx)

	e.setState(Connected)
	return nil
}

func (e *Engine) authenticate(conn net.Conn) error {
	conn.SetDeadline(time.Now().Add(protocol.ConnectionTimeout))
	defer conn.SetDeadline(time.Time{})

	reqPayload, err := control.EncodeAuthRequest(e.cfg.Username, e.cfg.Password, e.cfg.ClientVersion)
	if err != nil {
		return fmt.Errorf("client: encode auth request: %w", err)
	}
	framed, err := wire.FrameControlMessage(protocol.AuthRequest, reqPayload)
	if err != nil {
		return fmt.Errorf("client: frame auth request: %w", err)
	}
	if _, err := conn.Write(framed); err != nil {
		return fmt.Errorf("client: send auth request: %w", err)
	}

	var buf wire.Buffer
	readBuf := make([]byte, 4096)
	for {
		n, err := conn.Read(readBuf)
		if err != nil {
			return fmt.Errorf("client: read auth reply: %w", err)
		}
		buf.Append(readBuf[:n])

		msgType, payload, ok, err := buf.ExtractControlMessage()
		if err != nil {
			return fmt.Errorf("client: decode auth reply: %w", err)
		}
		if !ok {
			continue
		}

		switch msgType {
		case protocol.AuthSuccess:
			success, err := control.DecodeAuthSuccess(payload)
			if err != nil {
				return fmt.Errorf("client: decode auth success: %w", err)
			}
			sendInst, err := aead.NewInstance(success.MasterKey)
			if err != nil {
				return fmt.Errorf("client: build send aead instance: %w", err)
			}
			recvInst, err := aead.NewInstance(success.MasterKey)
			if err != nil {
				return fmt.Errorf("client: build recv aead instance: %w", err)
			}
			e.mu.Lock()
			e.sessionTok = success.SessionToken
			e.assignedIP = success.AssignedIP
			e.send = sendInst
			e.recv = recvInst
			e.buf = buf
			e.mu.Unlock()
			return nil
		case protocol.AuthFailure:
			failure, err := control.DecodeAuthFailure(payload)
			if err != nil {
				return fmt.Errorf("client: decode auth failure: %w", err)
			}
			e.lastErr.Store(failure.ErrorCode)
			return fmt.Errorf("client: authentication rejected: %s (%s)", failure.ErrorCode, failure.ErrorMessage)
		default:
			return fmt.Errorf("client: unexpected message type %v during handshake", msgType)
		}
	}
}

// SendPacket validates, encrypts, frames and writes one outbound IP
// datagram. It blocks until the write is drained.
func (e *Engine) SendPacket(packet []byte) error {
	if err := ipvalidate.Validate(packet); err != nil {
		return err
	}

	e.mu.Lock()
	conn, sendInst := e.conn, e.send
	e.mu.Unlock()
	if conn == nil || sendInst == nil {
		return errors.New("client: not connected")
	}

	record, err := sendInst.Encrypt(packet)
	if err != nil {
		return fmt.Errorf("client: encrypt: %w", err)
	}
	framed, err := wire.FrameRecord(record)
	if err != nil {
		return fmt.Errorf("client: frame record: %w", err)
	}
	if _, err := conn.Write(framed); err != nil {
		return fmt.Errorf("client: write: %w", err)
	}
	e.stats.AddSentBytes(uint64(len(framed)))
	return nil
}

func (e *Engine) receiveLoop(ctx context.Context) {
	e.mu.Lock()
	conn, recvInst := e.conn, e.recv
	e.mu.Unlock()

	recorder := trafficstats.NewRecorderFor(e.stats)
	defer recorder.Flush()

	readBuf := make([]byte, protocol.MTU+64)
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := conn.Read(readBuf)
		if n > 0 {
			e.mu.Lock()
			e.buf.Append(readBuf[:n])
			e.mu.Unlock()
			recorder.RecordReceived(uint64(n))
		}
		if err != nil {
			e.lastErr.Store(protocol.ErrConnectionLost)
			e.teardown("receive loop ended: " + err.Error())
			return
		}

		for {
			e.mu.Lock()
			record, ok, extractErr := e.buf.ExtractRecord()
			controlType, controlPayload, controlOk, controlErr := protocol.MessageType(0), []byte(nil), false, error(nil)
			if !ok && extractErr == nil {
				controlType, controlPayload, controlOk, controlErr = e.buf.ExtractControlMessage()
			}
			e.mu.Unlock()

			if extractErr != nil {
				e.teardown("protocol error: " + extractErr.Error())
				return
			}
			if ok {
				e.handleInboundRecord(ctx, recvInst, record)
				continue
			}
			if controlErr != nil {
				e.teardown("protocol error: " + controlErr.Error())
				return
			}
			if controlOk {
				e.handleControlMessage(controlType, controlPayload)
				continue
			}
			break
		}
	}
}

func (e *Engine) handleInboundRecord(ctx context.Context, recvInst *aead.Instance, record []byte) {
	plaintext, err := recvInst.Decrypt(record)
	if err != nil {
		e.logger.Debugf("client: dropped record: %v", err)
		return
	}
	if err := ipvalidate.Validate(plaintext); err != nil {
		e.logger.Debugf("client: dropped invalid ip packet: %v", err)
		return
	}
	if err := e.device.Write(ctx, plaintext); err != nil {
		e.logger.Warnf("client: datagram device write failed: %v", err)
	}
}

func (e *Engine) handleControlMessage(msgType protocol.MessageType, payload []byte) {
	if msgType != protocol.Pong {
		return
	}
	if _, err := control.DecodePong(payload); err != nil {
		return
	}
	e.lastPong.Store(time.Now().UnixNano())
}

func (e *Engine) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(protocol.KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(time.Unix(0, e.lastPong.Load())) > protocol.KeepaliveTimeout {
				e.lastErr.Store(protocol.ErrConnectionLost)
				e.teardown("keepalive timeout")
				return
			}
			if err := e.sendPing(); err != nil {
				e.teardown("keepalive send failed: " + err.Error())
				return
			}
		}
	}
}

func (e *Engine) sendPing() error {
	payload, err := control.EncodePing(time.Now().Unix())
	if err != nil {
		return err
	}
	framed, err := wire.FrameControlMessage(protocol.Ping, payload)
	if err != nil {
		return err
	}
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn == nil {
		return errors.New("client: not connected")
	}
	_, err = conn.Write(framed)
	return err
}

// Disconnect sends a best-effort Disconnect message, tears the connection
// down, and cancels the receive/keepalive loops.
func (e *Engine) Disconnect(reason string) {
	e.mu.Lock()
	conn := e.conn
	e.mu.Unlock()
	if conn != nil {
		if payload, err := control.EncodeDisconnect(reason); err == nil {
			if framed, err := wire.FrameControlMessage(protocol.Disconnect, payload); err == nil {
				conn.SetWriteDeadline(time.Now().Add(time.Second))
				conn.Write(framed)
			}
		}
	}
	e.teardown(reason)
}

func (e *Engine) teardown(reason string) {
	e.mu.Lock()
	conn := e.conn
	cancel := e.cancel
	e.conn = nil
	e.cancel = nil
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	e.setState(Disconnected)
	e.logger.Infof("client: disconnected: %s", reason)
}

// LastError returns the most recent error code observed, or 0 if none.
func (e *Engine) LastError() protocol.ErrorCode {
	v := e.lastErr.Load()
	if v == nil {
		return 0
	}
	return v.(protocol.ErrorCode)
}
