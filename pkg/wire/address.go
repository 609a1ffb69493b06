package wire

import (
	"fmt"

	"github.com/google/uuid"
)

// AddressKind classifies a 16-bit mesh address.
type AddressKind uint8

const (
	AddressUnassigned AddressKind = iota
	AddressUnicast
	AddressVirtual
	AddressGroup
)

// String returns the address kind name.
func (k AddressKind) String() string {
	switch k {
	case AddressUnassigned:
		return "UNASSIGNED"
	case AddressUnicast:
		return "UNICAST"
	case AddressVirtual:
		return "VIRTUAL"
	case AddressGroup:
		return "GROUP"
	default:
		return "UNKNOWN"
	}
}

// Fixed group addresses.
const (
	AllProxiesAddress uint16 = 0xFFFC
	AllFriendsAddress uint16 = 0xFFFD
	AllRelaysAddress  uint16 = 0xFFFE
	AllNodesAddress   uint16 = 0xFFFF
)

const (
	unicastMax = 0x7FFF
	virtualMax = 0xBFFF
)

// KindOf classifies a raw 16-bit address.
func KindOf(v uint16) AddressKind {
	switch {
	case v == 0:
		return AddressUnassigned
	case v <= unicastMax:
		return AddressUnicast
	case v <= virtualMax:
		return AddressVirtual
	default:
		return AddressGroup
	}
}

// UnicastAddress is the address of a single element (0x0001-0x7FFF).
type UnicastAddress uint16

// NewUnicastAddress validates v as a unicast address.
func NewUnicastAddress(v uint16) (UnicastAddress, error) {
	if KindOf(v) != AddressUnicast {
		return 0, fmt.Errorf("%w: 0x%04X is not a unicast address", ErrInvalidAddress, v)
	}
	return UnicastAddress(v), nil
}

// Offset returns the unicast address n elements after a.
func (a UnicastAddress) Offset(n int) (UnicastAddress, error) {
	return NewUnicastAddress(uint16(int(a) + n))
}

// String returns the address in hex notation.
func (a UnicastAddress) String() string {
	return fmt.Sprintf("0x%04X", uint16(a))
}

// Address is a message destination: a unicast, group or virtual address.
// Virtual destinations may carry their label UUID instead of the 16-bit hash.
type Address struct {
	value    uint16
	label    uuid.UUID
	hasLabel bool
}

// NewAddress wraps a raw 16-bit destination address.
func NewAddress(v uint16) Address {
	return Address{value: v}
}

// NewVirtualLabel wraps a virtual destination given by its label UUID.
func NewVirtualLabel(label uuid.UUID) Address {
	return Address{label: label, hasLabel: true}
}

// ParseLabel builds a virtual destination from a 16-octet label.
func ParseLabel(b []byte) (Address, error) {
	label, err := uuid.FromBytes(b)
	if err != nil {
		return Address{}, fmt.Errorf("%w: label must be 16 octets, got %d", ErrInvalidAddress, len(b))
	}
	return NewVirtualLabel(label), nil
}

// Kind returns the address classification.
func (a Address) Kind() AddressKind {
	if a.hasLabel {
		return AddressVirtual
	}
	return KindOf(a.value)
}

// Value returns the 16-bit address. It is zero for label-only virtual addresses.
func (a Address) Value() uint16 {
	return a.value
}

// Label returns the virtual label UUID, if the address was given as one.
func (a Address) Label() (uuid.UUID, bool) {
	return a.label, a.hasLabel
}

// String returns a printable representation of the address.
func (a Address) String() string {
	if a.hasLabel {
		return "label:" + a.label.String()
	}
	return fmt.Sprintf("0x%04X", a.value)
}
