// Package mock provides in-memory doubles for the D-Bus system bus.
//
// Bus mimics the export semantics of *dbus.Conn: handlers are looked up by
// path, interface and method at call time, and calls on removed paths fail
// the way the bus reports them to a remote peer. Like *dbus.Conn, every
// incoming call passes the incoming interceptor in call order and is then
// handled on its own goroutine. RemoteObject stands in for an object of the
// mesh daemon and records calls with testify's mock.
package mock

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/godbus/dbus/v5"
)

// DaemonSender is the unique bus name incoming calls are sent from.
const DaemonSender = ":1.1"

var (
	messageType = reflect.TypeOf(dbus.Message{})
	senderType  = reflect.TypeOf(dbus.Sender(""))
)

// Reply is the outcome of a call started with Go.
type Reply struct {
	Body []interface{}
	Err  error
}

// Bus is an in-memory bus connection.
type Bus struct {
	mu       sync.RWMutex
	exports  map[dbus.ObjectPath]map[string]map[string]reflect.Value
	remotes  map[string]*RemoteObject
	failures map[dbus.ObjectPath]error

	// dispatch orders incoming calls the way the connection's reader
	// goroutine does.
	dispatch    sync.Mutex
	serial      uint32
	interceptor dbus.Interceptor
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		exports:  make(map[dbus.ObjectPath]map[string]map[string]reflect.Value),
		remotes:  make(map[string]*RemoteObject),
		failures: make(map[dbus.ObjectPath]error),
	}
}

// FailExport makes subsequent exports at path fail with ErrExportFailed.
func (b *Bus) FailExport(path dbus.ObjectPath) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[path] = fmt.Errorf("%w: %s", ErrExportFailed, path)
}

// Export exports the exported methods of v. A nil v removes the interface.
func (b *Bus) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	if v == nil {
		b.remove(path, iface)
		return nil
	}

	methods := make(map[string]reflect.Value)
	val := reflect.ValueOf(v)
	for i := 0; i < val.NumMethod(); i++ {
		methods[val.Type().Method(i).Name] = val.Method(i)
	}
	return b.export(methods, path, iface)
}

// ExportMethodTable exports a table of handler functions. An empty table
// removes the interface.
func (b *Bus) ExportMethodTable(table map[string]interface{}, path dbus.ObjectPath, iface string) error {
	if len(table) == 0 {
		b.remove(path, iface)
		return nil
	}

	methods := make(map[string]reflect.Value, len(table))
	for name, fn := range table {
		methods[name] = reflect.ValueOf(fn)
	}
	return b.export(methods, path, iface)
}

func (b *Bus) export(methods map[string]reflect.Value, path dbus.ObjectPath, iface string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err, ok := b.failures[path]; ok {
		return err
	}
	if b.exports[path] == nil {
		b.exports[path] = make(map[string]map[string]reflect.Value)
	}
	b.exports[path][iface] = methods
	return nil
}

func (b *Bus) remove(path dbus.ObjectPath, iface string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ifaces, ok := b.exports[path]
	if !ok {
		return
	}
	delete(ifaces, iface)
	if len(ifaces) == 0 {
		delete(b.exports, path)
	}
}

// Object returns the remote object at (dest, path), creating it on first use.
func (b *Bus) Object(dest string, path dbus.ObjectPath) dbus.BusObject {
	return b.Remote(dest, path)
}

// Remote returns the remote object at (dest, path) for setting expectations.
func (b *Bus) Remote(dest string, path dbus.ObjectPath) *RemoteObject {
	b.mu.Lock()
	defer b.mu.Unlock()

	key := dest + string(path)
	if obj, ok := b.remotes[key]; ok {
		return obj
	}
	obj := &RemoteObject{dest: dest, path: path}
	b.remotes[key] = obj
	return obj
}

// Has reports whether any interface is exported at path.
func (b *Bus) Has(path dbus.ObjectPath) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.exports[path]
	return ok
}

// Paths returns every exported path in sorted order.
func (b *Bus) Paths() []dbus.ObjectPath {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]dbus.ObjectPath, 0, len(b.exports))
	for path := range b.exports {
		out = append(out, path)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Interfaces returns the interfaces exported at path in sorted order.
func (b *Bus) Interfaces(path dbus.ObjectPath) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ifaces, ok := b.exports[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExported, path)
	}
	out := make([]string, 0, len(ifaces))
	for name := range ifaces {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// SetIncomingInterceptor installs fn to see every incoming call before it
// is handled, as dbus.WithIncomingInterceptor does for *dbus.Conn.
func (b *Bus) SetIncomingInterceptor(fn dbus.Interceptor) {
	b.dispatch.Lock()
	defer b.dispatch.Unlock()
	b.interceptor = fn
}

// Call invokes an exported method the way a remote peer would and waits for
// the reply. Arguments are converted to the handler's parameter types;
// dbus.Message and dbus.Sender parameters are filled in by the bus. A
// non-nil *dbus.Error returned by the handler is returned as the error.
func (b *Bus) Call(path dbus.ObjectPath, iface, method string, args ...interface{}) ([]interface{}, error) {
	reply := <-b.Go(path, iface, method, args...)
	return reply.Body, reply.Err
}

// Go starts a call and returns at once. Calls started in sequence reach the
// interceptor in that order; their handlers run concurrently.
func (b *Bus) Go(path dbus.ObjectPath, iface, method string, args ...interface{}) <-chan Reply {
	out := make(chan Reply, 1)

	b.dispatch.Lock()
	b.serial++
	msg, err := NewCallMessage(b.serial, path, iface, method)
	if err == nil && b.interceptor != nil {
		b.interceptor(msg)
	}
	b.dispatch.Unlock()

	if err != nil {
		out <- Reply{Err: err}
		return out
	}
	go func() {
		body, err := b.handle(msg, path, iface, method, args)
		out <- Reply{Body: body, Err: err}
	}()
	return out
}

// NewCallMessage builds the method call header a peer would send. The
// serial can only be set by decoding, so the header is encoded first.
func NewCallMessage(serial uint32, path dbus.ObjectPath, iface, method string) (*dbus.Message, error) {
	msg := &dbus.Message{
		Type: dbus.TypeMethodCall,
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath:      dbus.MakeVariant(path),
			dbus.FieldInterface: dbus.MakeVariant(iface),
			dbus.FieldMember:    dbus.MakeVariant(method),
			dbus.FieldSender:    dbus.MakeVariant(DaemonSender),
		},
	}
	var buf bytes.Buffer
	if err := msg.EncodeTo(&buf, binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("encode call %s.%s: %w", iface, method, err)
	}
	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[8:12], serial)
	return dbus.DecodeMessage(bytes.NewReader(raw))
}

func (b *Bus) handle(msg *dbus.Message, path dbus.ObjectPath, iface, method string, args []interface{}) ([]interface{}, error) {
	b.mu.RLock()
	ifaces, ok := b.exports[path]
	var fn reflect.Value
	var found bool
	if ok {
		var methods map[string]reflect.Value
		methods, found = ifaces[iface]
		if found {
			fn, found = methods[method]
		}
	}
	_, hasIface := ifaces[iface]
	b.mu.RUnlock()

	switch {
	case !ok:
		err := dbus.ErrMsgNoObject
		return nil, &err
	case !hasIface:
		err := dbus.ErrMsgUnknownInterface
		return nil, &err
	case !found:
		err := dbus.ErrMsgUnknownMethod
		return nil, &err
	}

	in, err := convertArgs(fn.Type(), msg, args)
	if err != nil {
		return nil, err
	}

	out := fn.Call(in)
	if len(out) == 0 {
		return nil, nil
	}

	last := out[len(out)-1]
	if last.Type() == reflect.TypeOf((*dbus.Error)(nil)) || last.Type() == reflect.TypeOf((*error)(nil)).Elem() {
		if !last.IsNil() {
			return nil, last.Interface().(error)
		}
		out = out[:len(out)-1]
	}

	body := make([]interface{}, len(out))
	for i, v := range out {
		body[i] = v.Interface()
	}
	return body, nil
}

func convertArgs(ft reflect.Type, msg *dbus.Message, args []interface{}) ([]reflect.Value, error) {
	invalid := func() ([]reflect.Value, error) {
		err := dbus.ErrMsgInvalidArg
		return nil, &err
	}

	in := make([]reflect.Value, 0, ft.NumIn())
	next := 0
	for i := 0; i < ft.NumIn(); i++ {
		pt := ft.In(i)
		switch pt {
		case messageType:
			in = append(in, reflect.ValueOf(*msg))
			continue
		case senderType:
			in = append(in, reflect.ValueOf(dbus.Sender(DaemonSender)))
			continue
		}

		if next == len(args) {
			return invalid()
		}
		arg := args[next]
		next++

		if arg == nil {
			in = append(in, reflect.Zero(pt))
			continue
		}
		v := reflect.ValueOf(arg)
		switch {
		case v.Type().AssignableTo(pt):
			in = append(in, v)
		case v.Type().ConvertibleTo(pt):
			in = append(in, v.Convert(pt))
		default:
			return invalid()
		}
	}
	if next != len(args) {
		return invalid()
	}
	return in, nil
}
