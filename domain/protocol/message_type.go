package protocol

import "fmt"

// MessageType tags the payload of a control-message frame.
type MessageType byte

const (
	AuthRequest MessageType = 0x01
	AuthSuccess MessageType = 0x03
	AuthFailure MessageType = 0x04
	RekeyInit   MessageType = 0x20
	RekeyAck    MessageType = 0x21
	Disconnect  MessageType = 0x22
	Ping        MessageType = 0x30
	Pong        MessageType = 0x31
	Error       MessageType = 0xFF
)

var messageTypeNames = map[MessageType]string{
	AuthRequest: "AuthRequest",
	AuthSuccess: "AuthSuccess",
	AuthFailure: "AuthFailure",
	RekeyInit:   "RekeyInit",
	RekeyAck:    "RekeyAck",
	Disconnect:  "Disconnect",
	Ping:        "Ping",
	Pong:        "Pong",
	Error:       "Error",
}

// Known reports whether t is a recognized message type.
func (t MessageType) Known() bool {
	_, ok := messageTypeNames[t]
	return ok
}

func (t MessageType) String() string {
	if name, ok := messageTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("MessageType(0x%02X)", byte(t))
}
