package wire

import "fmt"

// maxKeyIndex is the largest 12-bit key index.
const maxKeyIndex = 0x0FFF

// AppKeyIndex identifies an application key on the node.
type AppKeyIndex uint16

// NewAppKeyIndex validates v as a 12-bit application key index.
func NewAppKeyIndex(v uint16) (AppKeyIndex, error) {
	if v > maxKeyIndex {
		return 0, fmt.Errorf("%w: app key index 0x%04X", ErrInvalidKeyIndex, v)
	}
	return AppKeyIndex(v), nil
}

// NetKeyIndex identifies a network key on the node.
type NetKeyIndex uint16

// NewNetKeyIndex validates v as a 12-bit network key index.
func NewNetKeyIndex(v uint16) (NetKeyIndex, error) {
	if v > maxKeyIndex {
		return 0, fmt.Errorf("%w: net key index 0x%04X", ErrInvalidKeyIndex, v)
	}
	return NetKeyIndex(v), nil
}
