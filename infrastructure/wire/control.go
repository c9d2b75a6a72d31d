package wire

import (
	"encoding/binary"
	"fmt"

	"tunnelcore/domain/protocol"
)

// controlHeaderSize is magic(4) + payload length(2) + message type(1).
const controlHeaderSize = 4 + 2 + 1

// maxControlPayload is the largest payload that still keeps the total frame
// within protocol.MaxControlFrame.
const maxControlPayload = protocol.MaxControlFrame - controlHeaderSize

// ExtractControlMessage pulls one control frame out of the buffer. It
// returns ok=false, without mutating the buffer, when fewer bytes than a
// complete frame are available. Once the fixed header is present it
// validates the magic and declared length eagerly, so a corrupt or hostile
// header fails fast instead of waiting for more bytes that will never
// complete a valid frame.
func (buf *Buffer) ExtractControlMessage() (msgType protocol.MessageType, payload []byte, ok bool, err error) {
	if len(buf.data) < controlHeaderSize {
		return 0, nil, false, nil
	}
	if !magicMatches(buf.data[0:4]) {
		return 0, nil, false, ErrInvalidMessage
	}
	declaredLen := int(binary.BigEndian.Uint16(buf.data[4:6]))
	if declaredLen > maxControlPayload {
		return 0, nil, false, fmt.Errorf("%w: payload length %d exceeds max %d", ErrProtocolError, declaredLen, maxControlPayload)
	}
	msgType = protocol.MessageType(buf.data[6])
	if !msgType.Known() {
		return 0, nil, false, ErrUnknownMessageType
	}

	total := controlHeaderSize + declaredLen
	if len(buf.data) < total {
		return 0, nil, false, nil
	}

	payload = make([]byte, declaredLen)
	copy(payload, buf.data[controlHeaderSize:total])
	buf.advance(total)
	return msgType, payload, true, nil
}

// FrameControlMessage wraps an encoded payload with the magic prefix,
// length, and message-type byte, ready to write to the stream.
func FrameControlMessage(msgType protocol.MessageType, payload []byte) ([]byte, error) {
	if len(payload) > maxControlPayload {
		return nil, fmt.Errorf("%w: payload length %d exceeds max %d", ErrProtocolError, len(payload), maxControlPayload)
	}
	framed := make([]byte, controlHeaderSize+len(payload))
	copy(framed[0:4], protocol.Magic[:])
	binary.BigEndian.PutUint16(framed[4:6], uint16(len(payload)))
	framed[6] = byte(msgType)
	copy(framed[controlHeaderSize:], payload)
	return framed, nil
}

func magicMatches(b []byte) bool {
	return b[0] == protocol.Magic[0] && b[1] == protocol.Magic[1] && b[2] == protocol.Magic[2] && b[3] == protocol.Magic[3]
}
