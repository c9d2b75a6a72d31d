// Package protocol holds the fixed wire constants shared by every layer of
// the tunnel: the server and the client must agree on these independent of
// configuration.
package protocol

import "time"

// Magic is the 4-byte prefix identifying a control-message frame.
var Magic = [4]byte{0x49, 0x52, 0x56, 0x50}

// Version is carried on every control-message payload; a peer that does not
// match this string rejects the message.
const Version = "tunnelcore-1.0"

const (
	KeySize   = 32 // master/session key size, bytes
	NonceSize = 12 // ChaCha20-Poly1305 nonce size, bytes
	TagSize   = 16 // AEAD authentication tag size, bytes

	MTU             = 1500
	ReplayWindow    = 64
	MaxControlFrame = 65535 // total control-message frame size (magic+len+type+payload)
	MaxRecordFrame  = 65535 // AEAD record length carried in the 2-byte prefix (prefix itself excluded)

	MinIPHeaderLen = 20
)

const (
	KeepaliveInterval   = 15 * time.Second
	KeepaliveTimeout    = 30 * time.Second
	ConnectionTimeout   = 10 * time.Second
	ReconnectInitDelay  = 1 * time.Second
	ReconnectMaxDelay   = 30 * time.Second
	ReconnectMultiplier = 2.0
	SessionTTL          = 24 * time.Hour
	IdleTimeout         = 300 * time.Second
	ReaperInterval      = 60 * time.Second
	StatsLogInterval    = 300 * time.Second
	ShutdownGrace       = 5 * time.Second
)
