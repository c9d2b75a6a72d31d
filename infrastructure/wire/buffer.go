package wire

// Buffer accumulates bytes read off a stream and hands back complete frames
// as they become available. It never blocks and never reads from a network
// itself: callers append bytes from their own read loop, then drain as many
// complete frames as are present.
//
// The zero value is an empty, ready-to-use Buffer.
type Buffer struct {
	data []byte
}

// Append adds b to the unparsed tail of the buffer.
func (buf *Buffer) Append(b []byte) {
	buf.data = append(buf.data, b...)
}

// Len reports the number of unparsed bytes currently held.
func (buf *Buffer) Len() int {
	return len(buf.data)
}

// advance discards the first n bytes, which must have just been consumed by
// a successful extract.
func (buf *Buffer) advance(n int) {
	buf.data = buf.data[n:]
}
