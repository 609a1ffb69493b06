package examples

import (
	"fmt"
	"math"

	"github.com/btmesh-go/mesh-go/pkg/sensor"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// PropertyTemperature is the Present Ambient Temperature property.
const PropertyTemperature sensor.PropertyID = 0x004F

// Temperature is a reading of the Present Ambient Temperature property in
// degrees Celsius. It is transmitted as one octet in steps of 0.5 degrees.
type Temperature struct {
	Celsius float64
}

// TemperatureConfig returns the sensor configuration of a single
// temperature sensor.
func TemperatureConfig() sensor.Config {
	return sensor.Config{
		Descriptors: []sensor.Descriptor{sensor.NewDescriptor(PropertyTemperature, 1)},
		NewData:     func() sensor.Data { return &Temperature{} },
	}
}

// Decode reads the raw temperature value.
func (t *Temperature) Decode(property sensor.PropertyID, value []byte) error {
	if property != PropertyTemperature {
		return fmt.Errorf("%w: unexpected property %s", wire.ErrInvalidValue, property)
	}
	if len(value) != 1 {
		return fmt.Errorf("%w: temperature is %d octets, want 1", wire.ErrInvalidLength, len(value))
	}
	t.Celsius = float64(int8(value[0])) / 2
	return nil
}

// Encode writes the temperature rounded to 0.5 degrees and clamped to the
// representable range.
func (t *Temperature) Encode(property sensor.PropertyID, buf *wire.Buffer) error {
	if property != PropertyTemperature {
		return fmt.Errorf("%w: unexpected property %s", wire.ErrInvalidValue, property)
	}
	raw := math.Round(t.Celsius * 2)
	raw = math.Max(math.MinInt8, math.Min(math.MaxInt8, raw))
	return buf.WriteByte(byte(int8(raw)))
}

// String returns the temperature in degrees Celsius.
func (t *Temperature) String() string {
	return fmt.Sprintf("%.1f°C", t.Celsius)
}

var _ sensor.Data = (*Temperature)(nil)
