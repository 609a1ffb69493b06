package mesh

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Session errors.
var (
	// ErrNotRegistered is returned when reading the address of an element
	// that has not been attached to a node.
	ErrNotRegistered = errors.New("element not registered")

	// ErrInvalidApplication is returned for application definitions that
	// cannot be exported.
	ErrInvalidApplication = errors.New("invalid application")

	// ErrControlClosed is returned when a control handle is used after its
	// application was unregistered.
	ErrControlClosed = errors.New("control closed")

	// ErrUnregistered is returned when attaching an application that was
	// already unregistered.
	ErrUnregistered = errors.New("application unregistered")

	// ErrInvalidToken is returned for malformed node tokens.
	ErrInvalidToken = errors.New("invalid node token")
)

// ErrorPrefix is the name prefix of request errors returned to the daemon.
const ErrorPrefix = "org.bluez.Error."

// ReqError is an error response to a request from the daemon.
type ReqError uint8

const (
	ReqFailed ReqError = iota
	ReqInProgress
	ReqInvalidOffset
	ReqInvalidValueLength
	ReqNotPermitted
	ReqNotAuthorized
	ReqNotSupported
)

// Name returns the D-Bus error name suffix, e.g. "InProgress".
func (e ReqError) Name() string {
	switch e {
	case ReqFailed:
		return "Failed"
	case ReqInProgress:
		return "InProgress"
	case ReqInvalidOffset:
		return "InvalidOffset"
	case ReqInvalidValueLength:
		return "InvalidValueLength"
	case ReqNotPermitted:
		return "NotPermitted"
	case ReqNotAuthorized:
		return "NotAuthorized"
	case ReqNotSupported:
		return "NotSupported"
	default:
		return "Failed"
	}
}

// Error returns a description of the request error.
func (e ReqError) Error() string {
	switch e {
	case ReqFailed:
		return "request failed"
	case ReqInProgress:
		return "request already in progress"
	case ReqInvalidOffset:
		return "invalid offset"
	case ReqInvalidValueLength:
		return "invalid value length"
	case ReqNotPermitted:
		return "request not permitted"
	case ReqNotAuthorized:
		return "request not authorized"
	case ReqNotSupported:
		return "request not supported"
	default:
		return fmt.Sprintf("request error %d", uint8(e))
	}
}

// DBusName returns the full D-Bus error name.
func (e ReqError) DBusName() string {
	return ErrorPrefix + e.Name()
}

// DBusError returns the error as sent to the daemon.
func (e ReqError) DBusError() *dbus.Error {
	return dbus.NewError(e.DBusName(), []interface{}{e.Error()})
}

// reqErrorOf maps err to the request error reported to the daemon.
func reqErrorOf(err error) ReqError {
	var req ReqError
	switch {
	case errors.As(err, &req):
		return req
	case errors.Is(err, wire.ErrInvalidLength):
		return ReqInvalidValueLength
	default:
		return ReqFailed
	}
}
