package wire

import "encoding/binary"

// Buffer is a bounded byte sink. Writes that would exceed the limit fail
// with ErrBufferOverflow and leave the buffer unchanged.
type Buffer struct {
	data  []byte
	limit int
}

// NewBuffer creates a buffer holding at most limit octets.
func NewBuffer(limit int) *Buffer {
	return &Buffer{data: make([]byte, 0, limit), limit: limit}
}

// Write appends p in full or not at all.
func (b *Buffer) Write(p []byte) (int, error) {
	if len(b.data)+len(p) > b.limit {
		return 0, ErrBufferOverflow
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// WriteByte appends a single octet.
func (b *Buffer) WriteByte(c byte) error {
	if len(b.data)+1 > b.limit {
		return ErrBufferOverflow
	}
	b.data = append(b.data, c)
	return nil
}

// WriteUint16 appends v in little-endian order.
func (b *Buffer) WriteUint16(v uint16) error {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	_, err := b.Write(tmp[:])
	return err
}

// Bytes returns the buffered octets. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// Len returns the number of buffered octets.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Limit returns the maximum number of octets the buffer accepts.
func (b *Buffer) Limit() int {
	return b.limit
}

// Available returns how many more octets can be written.
func (b *Buffer) Available() int {
	return b.limit - len(b.data)
}

// Truncate discards all but the first n octets.
func (b *Buffer) Truncate(n int) {
	if n < 0 || n > len(b.data) {
		return
	}
	b.data = b.data[:n]
}

// Reset empties the buffer.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}
