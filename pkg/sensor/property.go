package sensor

import (
	"encoding/binary"
	"fmt"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// PropertyID identifies a device property. Zero is prohibited.
type PropertyID uint16

// String returns the property ID in hex notation.
func (p PropertyID) String() string {
	return fmt.Sprintf("0x%04X", uint16(p))
}

const (
	formatA = 0
	formatB = 1

	maxFormatAProperty = 0x07FF
	maxFormatALength   = 16
	maxFormatBLength   = 127

	// formatBZeroLength is the length field value denoting an empty value.
	formatBZeroLength = 0x7F
)

// record is one entry of marshalled sensor data.
type record struct {
	property PropertyID
	value    []byte
}

// emitRecord writes the header and value of a single record. Format A is
// used whenever the property and length fit.
func emitRecord(buf *wire.Buffer, property PropertyID, value []byte) error {
	if property == 0 {
		return fmt.Errorf("%w: property ID 0x0000 is prohibited", wire.ErrInvalidValue)
	}

	n := len(value)
	switch {
	case n >= 1 && n <= maxFormatALength && property <= maxFormatAProperty:
		header := uint16(formatA) | uint16(n-1)<<1 | uint16(property)<<5
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], header)
		if buf.Available() < 2+n {
			return wire.ErrBufferOverflow
		}
		_, _ = buf.Write(tmp[:])
	case n <= maxFormatBLength:
		length := byte(formatBZeroLength)
		if n > 0 {
			length = byte(n - 1)
		}
		if buf.Available() < 3+n {
			return wire.ErrBufferOverflow
		}
		_ = buf.WriteByte(formatB | length<<1)
		_ = buf.WriteUint16(uint16(property))
	default:
		return fmt.Errorf("%w: value of %d octets for property %s", wire.ErrInvalidLength, n, property)
	}

	_, err := buf.Write(value)
	return err
}

// parseRecords splits marshalled sensor data into records. The returned
// values do not alias data.
func parseRecords(data []byte) ([]record, error) {
	var records []record
	for len(data) > 0 {
		var (
			property PropertyID
			n        int
			header   int
		)

		if data[0]&0x01 == formatA {
			if len(data) < 2 {
				return nil, fmt.Errorf("%w: truncated format A header", wire.ErrInvalidLength)
			}
			h := binary.LittleEndian.Uint16(data)
			n = int(h>>1&0x0F) + 1
			property = PropertyID(h >> 5)
			header = 2
		} else {
			if len(data) < 3 {
				return nil, fmt.Errorf("%w: truncated format B header", wire.ErrInvalidLength)
			}
			length := data[0] >> 1
			if length == formatBZeroLength {
				n = 0
			} else {
				n = int(length) + 1
			}
			property = PropertyID(binary.LittleEndian.Uint16(data[1:]))
			header = 3
		}

		if property == 0 {
			return nil, fmt.Errorf("%w: property ID 0x0000 is prohibited", wire.ErrInvalidValue)
		}
		if len(data) < header+n {
			return nil, fmt.Errorf("%w: property %s needs %d octets, %d left", wire.ErrInvalidLength, property, n, len(data)-header)
		}

		value := make([]byte, n)
		copy(value, data[header:header+n])
		records = append(records, record{property: property, value: value})
		data = data[header+n:]
	}
	return records, nil
}
