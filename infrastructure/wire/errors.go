// Package wire implements the two frame formats that share the tunnel's byte
// stream: control-message frames (handshake, ping/pong, disconnect) and data
// record frames (the AEAD-protected data plane). Both are parsed out of a
// Buffer that accumulates bytes read off the network and hands back complete
// frames without copying or mutating state when a frame is incomplete.
package wire

import "errors"

var (
	// ErrInvalidMessage is returned when a control frame's magic bytes do not match.
	ErrInvalidMessage = errors.New("wire: invalid message (bad magic)")
	// ErrProtocolError is returned when a frame's declared length exceeds the
	// maximum allowed frame size.
	ErrProtocolError = errors.New("wire: protocol error (oversize length)")
	// ErrUnknownMessageType is returned when a control frame's type byte is
	// not a recognized protocol.MessageType.
	ErrUnknownMessageType = errors.New("wire: unknown message type")
)
