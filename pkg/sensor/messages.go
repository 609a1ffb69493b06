package sensor

import (
	"encoding/binary"
	"fmt"

	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Sensor message opcodes.
var (
	OpcodeDescriptorGet    = wire.TwoOctet(0x82, 0x30)
	OpcodeDescriptorStatus = wire.OneOctet(0x51)
	OpcodeGet              = wire.TwoOctet(0x82, 0x31)
	OpcodeStatus           = wire.OneOctet(0x52)
)

// DescriptorGet requests the descriptors of one property, or of all
// properties when PropertyID is zero.
type DescriptorGet struct {
	PropertyID PropertyID
}

// Opcode returns OpcodeDescriptorGet.
func (DescriptorGet) Opcode() wire.Opcode { return OpcodeDescriptorGet }

// EmitParameters writes the optional property ID.
func (m DescriptorGet) EmitParameters(buf *wire.Buffer) error {
	return emitOptionalProperty(buf, m.PropertyID)
}

// DescriptorStatus reports sensor descriptors. When the requested property
// is not present on the server only Unknown is set.
type DescriptorStatus struct {
	Descriptors []Descriptor
	Unknown     PropertyID
}

// Opcode returns OpcodeDescriptorStatus.
func (DescriptorStatus) Opcode() wire.Opcode { return OpcodeDescriptorStatus }

// EmitParameters writes the descriptors, or the unknown property ID.
func (m DescriptorStatus) EmitParameters(buf *wire.Buffer) error {
	if m.Unknown != 0 {
		if len(m.Descriptors) > 0 {
			return fmt.Errorf("%w: unknown property with descriptors", wire.ErrInvalidValue)
		}
		return buf.WriteUint16(uint16(m.Unknown))
	}

	mark := buf.Len()
	for _, d := range m.Descriptors {
		if err := d.emit(buf); err != nil {
			buf.Truncate(mark)
			return err
		}
	}
	return nil
}

// Get requests the readings of one property, or of all properties when
// PropertyID is zero.
type Get struct {
	PropertyID PropertyID
}

// Opcode returns OpcodeGet.
func (Get) Opcode() wire.Opcode { return OpcodeGet }

// EmitParameters writes the optional property ID.
func (m Get) EmitParameters(buf *wire.Buffer) error {
	return emitOptionalProperty(buf, m.PropertyID)
}

// Status carries readings as marshalled sensor data, one record for each
// entry of Properties in order. When the requested property is not present
// on the server only Unknown is set; it is sent as a zero-length record.
type Status struct {
	Properties []PropertyID
	Data       Data
	Unknown    PropertyID
}

// NewStatus returns a status reporting every property of cfg.
func NewStatus(cfg Config, data Data) Status {
	return Status{Properties: cfg.Properties(), Data: data}
}

// Opcode returns OpcodeStatus.
func (Status) Opcode() wire.Opcode { return OpcodeStatus }

// EmitParameters writes one marshalled record per property. Nothing is
// written if any record fails.
func (m Status) EmitParameters(buf *wire.Buffer) error {
	if m.Unknown != 0 {
		if len(m.Properties) > 0 {
			return fmt.Errorf("%w: unknown property with readings", wire.ErrInvalidValue)
		}
		return emitRecord(buf, m.Unknown, nil)
	}

	mark := buf.Len()
	scratch := wire.NewBuffer(maxFormatBLength)

	for _, property := range m.Properties {
		scratch.Reset()
		if err := m.Data.Encode(property, scratch); err != nil {
			buf.Truncate(mark)
			return fmt.Errorf("encode property %s: %w", property, err)
		}
		if err := emitRecord(buf, property, scratch.Bytes()); err != nil {
			buf.Truncate(mark)
			return err
		}
	}
	return nil
}

func emitOptionalProperty(buf *wire.Buffer, property PropertyID) error {
	if property == 0 {
		return nil
	}
	return buf.WriteUint16(uint16(property))
}

func parseOptionalProperty(params []byte) (PropertyID, error) {
	switch len(params) {
	case 0:
		return 0, nil
	case 2:
		property := PropertyID(binary.LittleEndian.Uint16(params))
		if property == 0 {
			return 0, fmt.Errorf("%w: property ID 0x0000 is prohibited", wire.ErrInvalidValue)
		}
		return property, nil
	default:
		return 0, fmt.Errorf("%w: expected 0 or 2 octets, got %d", wire.ErrInvalidLength, len(params))
	}
}

func parseDescriptorStatus(params []byte) (DescriptorStatus, error) {
	if len(params) == 2 {
		property, err := parseOptionalProperty(params)
		if err != nil {
			return DescriptorStatus{}, err
		}
		return DescriptorStatus{Unknown: property}, nil
	}
	if len(params)%descriptorSize != 0 {
		return DescriptorStatus{}, fmt.Errorf("%w: %d octets is not a descriptor list", wire.ErrInvalidLength, len(params))
	}

	status := DescriptorStatus{}
	for i := 0; i < len(params); i += descriptorSize {
		d, err := parseDescriptor(params[i : i+descriptorSize])
		if err != nil {
			return DescriptorStatus{}, err
		}
		status.Descriptors = append(status.Descriptors, d)
	}
	return status, nil
}

func parseStatus(cfg Config, params []byte) (Status, error) {
	records, err := parseRecords(params)
	if err != nil {
		return Status{}, err
	}

	status := Status{Data: cfg.newData()}
	for _, r := range records {
		if len(r.value) == 0 {
			status.Unknown = r.property
			continue
		}
		if err := status.Data.Decode(r.property, r.value); err != nil {
			return Status{}, fmt.Errorf("decode property %s: %w", r.property, err)
		}
		status.Properties = append(status.Properties, r.property)
	}
	return status, nil
}

// Compile-time interface satisfaction checks.
var (
	_ model.Message = DescriptorGet{}
	_ model.Message = DescriptorStatus{}
	_ model.Message = Get{}
	_ model.Message = Status{}
)
