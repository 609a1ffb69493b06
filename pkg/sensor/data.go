package sensor

import (
	"fmt"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Data holds the readings of a sensor server.
type Data interface {
	// Decode stores the raw value of property. Which properties are
	// accepted is up to the implementation; typed implementations fail with
	// wire.ErrInvalidValue for properties they do not know.
	Decode(property PropertyID, value []byte) error

	// Encode appends the raw value of property to buf. It fails with
	// wire.ErrBufferOverflow rather than truncating.
	Encode(property PropertyID, buf *wire.Buffer) error
}

// Raw is Data that keeps raw property values without interpretation. It is
// the default when a Config names no Data, so it accepts every property.
type Raw map[PropertyID][]byte

// Decode stores a copy of value for any property.
func (r Raw) Decode(property PropertyID, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)
	r[property] = v
	return nil
}

// Encode appends the stored value of property.
func (r Raw) Encode(property PropertyID, buf *wire.Buffer) error {
	v, ok := r[property]
	if !ok {
		return fmt.Errorf("%w: no value for property %s", wire.ErrInvalidValue, property)
	}
	_, err := buf.Write(v)
	return err
}

// Config describes the sensors of a model: the descriptors it exposes and
// how readings are represented.
type Config struct {
	Descriptors []Descriptor

	// NewData returns an empty Data value for decoding. Defaults to Raw.
	NewData func() Data
}

func (c Config) newData() Data {
	if c.NewData == nil {
		return Raw{}
	}
	return c.NewData()
}

// Descriptor returns the descriptor of property.
func (c Config) Descriptor(property PropertyID) (Descriptor, bool) {
	for _, d := range c.Descriptors {
		if d.PropertyID == property {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Properties returns the property IDs of all descriptors in order.
func (c Config) Properties() []PropertyID {
	out := make([]PropertyID, len(c.Descriptors))
	for i, d := range c.Descriptors {
		out[i] = d.PropertyID
	}
	return out
}

// Compile-time interface satisfaction check.
var _ Data = Raw{}
