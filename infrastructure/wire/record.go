package wire

import (
	"encoding/binary"
	"fmt"

	"tunnelcore/domain/protocol"
)

const recordLengthPrefixSize = 2

// ExtractRecord pulls one data-plane record out of the buffer: a 2-byte
// big-endian length prefix followed by that many bytes of AEAD record
// (counter || ciphertext || tag). It returns ok=false, without mutating the
// buffer, when fewer than a full frame's worth of bytes are available yet.
// A declared length of 0 is accepted here and yields a zero-length record;
// rejecting it is the AEAD layer's job, not the framer's.
func (buf *Buffer) ExtractRecord() (record []byte, ok bool, err error) {
	if len(buf.data) < recordLengthPrefixSize {
		return nil, false, nil
	}
	declaredLen := int(binary.BigEndian.Uint16(buf.data[0:recordLengthPrefixSize]))
	if declaredLen > protocol.MaxRecordFrame {
		return nil, false, fmt.Errorf("%w: record length %d exceeds max %d", ErrProtocolError, declaredLen, protocol.MaxRecordFrame)
	}
	total := recordLengthPrefixSize + declaredLen
	if len(buf.data) < total {
		return nil, false, nil
	}
	record = make([]byte, declaredLen)
	copy(record, buf.data[recordLengthPrefixSize:total])
	buf.advance(total)
	return record, true, nil
}

// FrameRecord prefixes an AEAD record with its 2-byte big-endian length,
// ready to write to the stream.
func FrameRecord(record []byte) ([]byte, error) {
	if len(record) > protocol.MaxRecordFrame {
		return nil, fmt.Errorf("%w: record length %d exceeds max %d", ErrProtocolError, len(record), protocol.MaxRecordFrame)
	}
	framed := make([]byte, recordLengthPrefixSize+len(record))
	binary.BigEndian.PutUint16(framed[0:recordLengthPrefixSize], uint16(len(record)))
	copy(framed[recordLengthPrefixSize:], record)
	return framed, nil
}
