// Package control implements the typed constructors and decoders for every
// control-message payload: auth request/success/failure, ping/pong,
// disconnect, error, and the rekey control-plane pair. Every payload is
// msgpack-encoded map carrying a version field that must match
// protocol.Version.
package control

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"tunnelcore/domain/protocol"
)

// AuthRequest is sent by the client to begin the handshake.
type AuthRequest struct {
	Version       string `msgpack:"version"`
	Username      string `msgpack:"username"`
	Password      string `msgpack:"password"`
	ClientVersion string `msgpack:"client_version"`
}

// EncodeAuthRequest builds and encodes an AuthRequest payload.
func EncodeAuthRequest(username, password, clientVersion string) ([]byte, error) {
	return encode(AuthRequest{
		Version:       protocol.Version,
		Username:      username,
		Password:      password,
		ClientVersion: clientVersion,
	})
}

// DecodeAuthRequest decodes an AuthRequest payload and checks the protocol version.
func DecodeAuthRequest(payload []byte) (AuthRequest, error) {
	var m AuthRequest
	if err := decode(payload, &m); err != nil {
		return AuthRequest{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return AuthRequest{}, err
	}
	if m.Username == "" || m.Password == "" {
		return AuthRequest{}, fmt.Errorf("control: auth request missing required fields")
	}
	return m, nil
}

// AuthSuccess is the server's reply on successful authentication. MasterKey
// carries the raw master key inside this TLS-protected reply, so both peers
// derive the same session key from it.
type AuthSuccess struct {
	Version      string `msgpack:"version"`
	SessionToken string `msgpack:"session_token"`
	AssignedIP   string `msgpack:"assigned_ip"`
	MasterKey    []byte `msgpack:"master_key"`
}

// EncodeAuthSuccess builds and encodes an AuthSuccess payload.
func EncodeAuthSuccess(sessionToken, assignedIP string, masterKey []byte) ([]byte, error) {
	return encode(AuthSuccess{
		Version:      protocol.Version,
		SessionToken: sessionToken,
		AssignedIP:   assignedIP,
		MasterKey:    masterKey,
	})
}

// DecodeAuthSuccess decodes an AuthSuccess payload and checks the protocol version.
func DecodeAuthSuccess(payload []byte) (AuthSuccess, error) {
	var m AuthSuccess
	if err := decode(payload, &m); err != nil {
		return AuthSuccess{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return AuthSuccess{}, err
	}
	if m.SessionToken == "" || m.AssignedIP == "" || len(m.MasterKey) != protocol.KeySize {
		return AuthSuccess{}, fmt.Errorf("control: auth success missing required fields")
	}
	return m, nil
}

// AuthFailure is the server's reply on rejected authentication.
type AuthFailure struct {
	Version      string            `msgpack:"version"`
	ErrorCode    protocol.ErrorCode `msgpack:"error_code"`
	ErrorMessage string            `msgpack:"error_message"`
}

// EncodeAuthFailure builds and encodes an AuthFailure payload.
func EncodeAuthFailure(code protocol.ErrorCode, message string) ([]byte, error) {
	return encode(AuthFailure{
		Version:      protocol.Version,
		ErrorCode:    code,
		ErrorMessage: message,
	})
}

// DecodeAuthFailure decodes an AuthFailure payload and checks the protocol version.
func DecodeAuthFailure(payload []byte) (AuthFailure, error) {
	var m AuthFailure
	if err := decode(payload, &m); err != nil {
		return AuthFailure{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return AuthFailure{}, err
	}
	return m, nil
}

// Ping carries the sender's timestamp, echoed back verbatim in Pong.
type Ping struct {
	Version   string `msgpack:"version"`
	Timestamp int64  `msgpack:"timestamp"`
}

// EncodePing builds and encodes a Ping payload.
func EncodePing(timestampUnix int64) ([]byte, error) {
	return encode(Ping{Version: protocol.Version, Timestamp: timestampUnix})
}

// DecodePing decodes a Ping payload and checks the protocol version.
func DecodePing(payload []byte) (Ping, error) {
	var m Ping
	if err := decode(payload, &m); err != nil {
		return Ping{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return Ping{}, err
	}
	return m, nil
}

// Pong echoes the originating Ping's timestamp alongside the responder's own.
type Pong struct {
	Version       string `msgpack:"version"`
	PingTimestamp int64  `msgpack:"ping_timestamp"`
	PongTimestamp int64  `msgpack:"pong_timestamp"`
}

// EncodePong builds and encodes a Pong payload.
func EncodePong(pingTimestamp, pongTimestamp int64) ([]byte, error) {
	return encode(Pong{
		Version:       protocol.Version,
		PingTimestamp: pingTimestamp,
		PongTimestamp: pongTimestamp,
	})
}

// DecodePong decodes a Pong payload and checks the protocol version.
func DecodePong(payload []byte) (Pong, error) {
	var m Pong
	if err := decode(payload, &m); err != nil {
		return Pong{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return Pong{}, err
	}
	return m, nil
}

// Disconnect announces a voluntary connection teardown.
type Disconnect struct {
	Version string `msgpack:"version"`
	Reason  string `msgpack:"reason"`
}

// EncodeDisconnect builds and encodes a Disconnect payload.
func EncodeDisconnect(reason string) ([]byte, error) {
	return encode(Disconnect{Version: protocol.Version, Reason: reason})
}

// DecodeDisconnect decodes a Disconnect payload and checks the protocol version.
func DecodeDisconnect(payload []byte) (Disconnect, error) {
	var m Disconnect
	if err := decode(payload, &m); err != nil {
		return Disconnect{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return Disconnect{}, err
	}
	return m, nil
}

// Error is a general-purpose failure notification, also used to reject a
// malformed or unsupported control message before the handshake has
// established enough state for a more specific reply.
type Error struct {
	Version      string            `msgpack:"version"`
	ErrorCode    protocol.ErrorCode `msgpack:"error_code"`
	ErrorMessage string            `msgpack:"error_message"`
}

// EncodeError builds and encodes an Error payload.
func EncodeError(code protocol.ErrorCode, message string) ([]byte, error) {
	return encode(Error{Version: protocol.Version, ErrorCode: code, ErrorMessage: message})
}

// DecodeError decodes an Error payload and checks the protocol version.
func DecodeError(payload []byte) (Error, error) {
	var m Error
	if err := decode(payload, &m); err != nil {
		return Error{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return Error{}, err
	}
	return m, nil
}

// RekeyInit proposes a new master key for the session. It is sent as an
// ordinary control frame in-band after the handshake; the key is not wrapped
// by the AEAD layer and is protected only by the outer TLS stream.
type RekeyInit struct {
	Version      string `msgpack:"version"`
	NewMasterKey []byte `msgpack:"new_master_key"`
}

// EncodeRekeyInit builds and encodes a RekeyInit payload.
func EncodeRekeyInit(newMasterKey []byte) ([]byte, error) {
	return encode(RekeyInit{Version: protocol.Version, NewMasterKey: newMasterKey})
}

// DecodeRekeyInit decodes a RekeyInit payload and checks the protocol version.
func DecodeRekeyInit(payload []byte) (RekeyInit, error) {
	var m RekeyInit
	if err := decode(payload, &m); err != nil {
		return RekeyInit{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return RekeyInit{}, err
	}
	if len(m.NewMasterKey) != protocol.KeySize {
		return RekeyInit{}, fmt.Errorf("control: rekey init key must be %d bytes", protocol.KeySize)
	}
	return m, nil
}

// RekeyAck confirms a RekeyInit has been installed by the peer.
type RekeyAck struct {
	Version string `msgpack:"version"`
	Applied bool   `msgpack:"applied"`
}

// EncodeRekeyAck builds and encodes a RekeyAck payload.
func EncodeRekeyAck(applied bool) ([]byte, error) {
	return encode(RekeyAck{Version: protocol.Version, Applied: applied})
}

// DecodeRekeyAck decodes a RekeyAck payload and checks the protocol version.
func DecodeRekeyAck(payload []byte) (RekeyAck, error) {
	var m RekeyAck
	if err := decode(payload, &m); err != nil {
		return RekeyAck{}, err
	}
	if err := checkVersion(m.Version); err != nil {
		return RekeyAck{}, err
	}
	return m, nil
}

func encode(v interface{}) ([]byte, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("control: encode: %w", err)
	}
	return b, nil
}

func decode(payload []byte, v interface{}) error {
	if err := msgpack.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("control: decode: %w", err)
	}
	return nil
}

func checkVersion(v string) error {
	if v != protocol.Version {
		return fmt.Errorf("control: version mismatch: got %q want %q", v, protocol.Version)
	}
	return nil
}
