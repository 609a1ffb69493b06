package mock

import (
	"context"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/mock"
)

// RemoteObject is a mocked object of a remote service. Expectations are set
// on "CallWithContext" with the full method name and the argument slice,
// and on "GetProperty" with the property name:
//
//	obj.On("CallWithContext", "org.bluez.mesh.Node1.Publish", mock.Anything).
//		Return([]interface{}{}, nil)
//
// Methods of dbus.BusObject not overridden here panic when called.
type RemoteObject struct {
	dbus.BusObject
	mock.Mock

	dest string
	path dbus.ObjectPath
}

// Call invokes CallWithContext with a background context.
func (o *RemoteObject) Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call {
	return o.CallWithContext(context.Background(), method, flags, args...)
}

// CallWithContext records the call and returns the expected reply body.
// A done context fails the call without consulting expectations.
func (o *RemoteObject) CallWithContext(ctx context.Context, method string, _ dbus.Flags, args ...interface{}) *dbus.Call {
	call := &dbus.Call{
		Destination: o.dest,
		Path:        o.path,
		Method:      method,
		Args:        args,
		Done:        make(chan *dbus.Call, 1),
	}
	if err := ctx.Err(); err != nil {
		call.Err = err
		call.Done <- call
		return call
	}

	ret := o.Called(method, args)
	if body := ret.Get(0); body != nil {
		call.Body = body.([]interface{})
	}
	call.Err = ret.Error(1)
	call.Done <- call
	return call
}

// GetProperty returns the expected value of a property.
func (o *RemoteObject) GetProperty(p string) (dbus.Variant, error) {
	ret := o.Called(p)
	v, _ := ret.Get(0).(dbus.Variant)
	return v, ret.Error(1)
}

// Destination returns the remote service name.
func (o *RemoteObject) Destination() string { return o.dest }

// Path returns the remote object path.
func (o *RemoteObject) Path() dbus.ObjectPath { return o.path }
