package wire

import "errors"

// Payload errors.
var (
	// ErrInvalidValue indicates a field holds a value outside its domain.
	ErrInvalidValue = errors.New("invalid value")

	// ErrInvalidLength indicates a payload is too short or too long.
	ErrInvalidLength = errors.New("invalid length")

	// ErrInvalidOpcode indicates the leading octet is a reserved opcode.
	ErrInvalidOpcode = errors.New("invalid opcode")
)

// Encode errors.
var (
	// ErrBufferOverflow indicates a sink cannot hold the value being encoded.
	ErrBufferOverflow = errors.New("buffer overflow")
)

// Address errors.
var (
	ErrInvalidAddress  = errors.New("invalid address")
	ErrInvalidKeyIndex = errors.New("invalid key index")
)
