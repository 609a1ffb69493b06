package sensor

import (
	"encoding/binary"
	"fmt"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// descriptorSize is the wire size of a sensor descriptor.
const descriptorSize = 8

// maxTolerance is the largest 12-bit tolerance value.
const maxTolerance = 0x0FFF

// SamplingFunction describes how a sensor value was computed.
type SamplingFunction uint8

const (
	SamplingUnspecified SamplingFunction = iota
	SamplingInstantaneous
	SamplingArithmeticMean
	SamplingRMS
	SamplingMaximum
	SamplingMinimum
	SamplingAccumulated
	SamplingCount
)

// String returns the sampling function name.
func (s SamplingFunction) String() string {
	switch s {
	case SamplingUnspecified:
		return "UNSPECIFIED"
	case SamplingInstantaneous:
		return "INSTANTANEOUS"
	case SamplingArithmeticMean:
		return "ARITHMETIC_MEAN"
	case SamplingRMS:
		return "RMS"
	case SamplingMaximum:
		return "MAXIMUM"
	case SamplingMinimum:
		return "MINIMUM"
	case SamplingAccumulated:
		return "ACCUMULATED"
	case SamplingCount:
		return "COUNT"
	default:
		return "UNKNOWN"
	}
}

// Descriptor describes one sensor property of a server.
//
// Size is the length of the raw value in octets. It is local configuration
// and not part of the descriptor on the wire.
type Descriptor struct {
	PropertyID        PropertyID
	PositiveTolerance uint16
	NegativeTolerance uint16
	Sampling          SamplingFunction
	MeasurementPeriod uint8
	UpdateInterval    uint8
	Size              int
}

// NewDescriptor returns a descriptor with unspecified tolerances and timing.
func NewDescriptor(property PropertyID, size int) Descriptor {
	return Descriptor{PropertyID: property, Size: size}
}

func (d Descriptor) emit(buf *wire.Buffer) error {
	if d.PropertyID == 0 {
		return fmt.Errorf("%w: property ID 0x0000 is prohibited", wire.ErrInvalidValue)
	}
	if d.PositiveTolerance > maxTolerance || d.NegativeTolerance > maxTolerance {
		return fmt.Errorf("%w: tolerance exceeds 12 bits", wire.ErrInvalidValue)
	}

	var tmp [descriptorSize]byte
	binary.LittleEndian.PutUint16(tmp[0:], uint16(d.PropertyID))
	tolerance := uint32(d.PositiveTolerance) | uint32(d.NegativeTolerance)<<12
	tmp[2] = byte(tolerance)
	tmp[3] = byte(tolerance >> 8)
	tmp[4] = byte(tolerance >> 16)
	tmp[5] = byte(d.Sampling)
	tmp[6] = d.MeasurementPeriod
	tmp[7] = d.UpdateInterval

	_, err := buf.Write(tmp[:])
	return err
}

func parseDescriptor(b []byte) (Descriptor, error) {
	if len(b) != descriptorSize {
		return Descriptor{}, fmt.Errorf("%w: descriptor needs %d octets, got %d", wire.ErrInvalidLength, descriptorSize, len(b))
	}

	property := PropertyID(binary.LittleEndian.Uint16(b))
	if property == 0 {
		return Descriptor{}, fmt.Errorf("%w: property ID 0x0000 is prohibited", wire.ErrInvalidValue)
	}
	tolerance := uint32(b[2]) | uint32(b[3])<<8 | uint32(b[4])<<16

	return Descriptor{
		PropertyID:        property,
		PositiveTolerance: uint16(tolerance & maxTolerance),
		NegativeTolerance: uint16(tolerance >> 12 & maxTolerance),
		Sampling:          SamplingFunction(b[5]),
		MeasurementPeriod: b[6],
		UpdateInterval:    b[7],
	}, nil
}
