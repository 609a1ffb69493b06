package bus

import "errors"

// Registry errors.
var (
	ErrInvalidPath   = errors.New("invalid object path")
	ErrObjectExists  = errors.New("object already exported")
	ErrNoInterfaces  = errors.New("object has no interfaces")
	ErrTxClosed      = errors.New("transaction closed")
	ErrObjectUnknown = errors.New("object not exported")
)
