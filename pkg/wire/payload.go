package wire

import "fmt"

// Transport bounds.
const (
	// MaxUpperTransportPDUSize is the largest segmented upper transport PDU.
	MaxUpperTransportPDUSize = 384

	// TransMICSize is the size of the 32-bit transport message integrity check.
	TransMICSize = 4

	// MaxAccessPayloadSize is the largest access payload (opcode and parameters).
	MaxAccessPayloadSize = MaxUpperTransportPDUSize - TransMICSize

	// MaxUnsegmentedAccessPayloadSize is the largest access payload that fits
	// in a single unsegmented lower transport PDU.
	MaxUnsegmentedAccessPayloadSize = 11
)

// AccessPayload is an opcode with its model-specific parameters.
type AccessPayload struct {
	Opcode     Opcode
	Parameters []byte
}

// ParseAccessPayload splits raw access data into opcode and parameters.
// The returned parameters do not alias data.
func ParseAccessPayload(data []byte) (AccessPayload, error) {
	if len(data) > MaxAccessPayloadSize {
		return AccessPayload{}, fmt.Errorf("%w: %d octets exceeds %d", ErrInvalidLength, len(data), MaxAccessPayloadSize)
	}

	opcode, rest, err := ParseOpcode(data)
	if err != nil {
		return AccessPayload{}, err
	}

	params := make([]byte, len(rest))
	copy(params, rest)
	return AccessPayload{Opcode: opcode, Parameters: params}, nil
}

// Len returns the encoded length of the payload.
func (p AccessPayload) Len() int {
	return p.Opcode.Size() + len(p.Parameters)
}

// Segmented reports whether the payload needs lower transport segmentation.
func (p AccessPayload) Segmented() bool {
	return p.Len() > MaxUnsegmentedAccessPayloadSize
}

// Emit writes opcode then parameters to buf.
func (p AccessPayload) Emit(buf *Buffer) error {
	if err := p.Opcode.Emit(buf); err != nil {
		return err
	}
	_, err := buf.Write(p.Parameters)
	return err
}

// Bytes returns the encoded payload, bounded by MaxAccessPayloadSize.
func (p AccessPayload) Bytes() ([]byte, error) {
	buf := NewBuffer(MaxAccessPayloadSize)
	if err := p.Emit(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
