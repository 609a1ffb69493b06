package wire

import "fmt"

// CompanyID is a Bluetooth SIG assigned company identifier.
type CompanyID uint16

// String returns the company identifier in hex notation.
func (c CompanyID) String() string {
	return fmt.Sprintf("0x%04X", uint16(c))
}

// Opcode form prefixes in the first octet.
const (
	opcodeTwoOctetPrefix   = 0x80
	opcodeThreeOctetPrefix = 0xC0
	opcodeFormMask         = 0xC0

	// opcodeRFU is the only reserved one-octet opcode.
	opcodeRFU = 0x7F
)

// Opcode identifies the semantic type of an access message.
// The zero value is not a valid opcode.
type Opcode struct {
	size  uint8
	bytes [3]byte
}

// OneOctet returns a one-octet opcode. Values 0x00-0x7E are valid.
func OneOctet(op byte) Opcode {
	return Opcode{size: 1, bytes: [3]byte{op}}
}

// TwoOctet returns a two-octet opcode from its wire octets, e.g. TwoOctet(0x82, 0x31).
// The first octet must carry the 0b10 prefix.
func TwoOctet(b0, b1 byte) Opcode {
	return Opcode{size: 2, bytes: [3]byte{b0, b1}}
}

// ThreeOctet returns a vendor opcode. Only the lower 6 bits of op are used.
func ThreeOctet(op byte, company CompanyID) Opcode {
	return Opcode{
		size: 3,
		bytes: [3]byte{
			opcodeThreeOctetPrefix | (op & 0x3F),
			byte(company),
			byte(company >> 8),
		},
	}
}

// ParseOpcode reads an opcode from the start of data and returns it
// together with the remaining octets.
func ParseOpcode(data []byte) (Opcode, []byte, error) {
	if len(data) == 0 {
		return Opcode{}, nil, fmt.Errorf("%w: empty access payload", ErrInvalidLength)
	}

	first := data[0]
	switch {
	case first == opcodeRFU:
		return Opcode{}, nil, fmt.Errorf("%w: 0x%02X is reserved", ErrInvalidOpcode, first)
	case first&0x80 == 0:
		return OneOctet(first), data[1:], nil
	case first&opcodeFormMask == opcodeTwoOctetPrefix:
		if len(data) < 2 {
			return Opcode{}, nil, fmt.Errorf("%w: truncated two-octet opcode", ErrInvalidLength)
		}
		return TwoOctet(first, data[1]), data[2:], nil
	default:
		if len(data) < 3 {
			return Opcode{}, nil, fmt.Errorf("%w: truncated vendor opcode", ErrInvalidLength)
		}
		return Opcode{size: 3, bytes: [3]byte{first, data[1], data[2]}}, data[3:], nil
	}
}

// Size returns the number of octets the opcode occupies on the wire.
func (o Opcode) Size() int {
	return int(o.size)
}

// Bytes returns the wire representation of the opcode.
func (o Opcode) Bytes() []byte {
	out := make([]byte, o.size)
	copy(out, o.bytes[:o.size])
	return out
}

// IsValid reports whether the opcode is well formed for its size.
func (o Opcode) IsValid() bool {
	switch o.size {
	case 1:
		return o.bytes[0]&0x80 == 0 && o.bytes[0] != opcodeRFU
	case 2:
		return o.bytes[0]&opcodeFormMask == opcodeTwoOctetPrefix
	case 3:
		return o.bytes[0]&opcodeFormMask == opcodeThreeOctetPrefix
	default:
		return false
	}
}

// Company returns the company identifier of a vendor opcode.
func (o Opcode) Company() (CompanyID, bool) {
	if o.size != 3 {
		return 0, false
	}
	return CompanyID(uint16(o.bytes[1]) | uint16(o.bytes[2])<<8), true
}

// Emit writes the opcode to buf. Either all octets are written or none.
func (o Opcode) Emit(buf *Buffer) error {
	if !o.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidOpcode, o)
	}
	_, err := buf.Write(o.bytes[:o.size])
	return err
}

// String returns the opcode octets in hex, e.g. "0x8231".
func (o Opcode) String() string {
	switch o.size {
	case 1:
		return fmt.Sprintf("0x%02X", o.bytes[0])
	case 2:
		return fmt.Sprintf("0x%02X%02X", o.bytes[0], o.bytes[1])
	case 3:
		return fmt.Sprintf("0x%02X%02X%02X", o.bytes[0], o.bytes[1], o.bytes[2])
	default:
		return "invalid"
	}
}
