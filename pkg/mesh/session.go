package mesh

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/btmesh-go/mesh-go/pkg/bus"
	"github.com/btmesh-go/mesh-go/pkg/log"
)

// Conn is a bus connection. *dbus.Conn implements it.
type Conn interface {
	bus.Exporter
	Object(dest string, path dbus.ObjectPath) dbus.BusObject
}

// interceptorSetter is implemented by connections that accept an incoming
// interceptor after they were opened.
type interceptorSetter interface {
	SetIncomingInterceptor(dbus.Interceptor)
}

// Session is a connection to the mesh daemon.
type Session struct {
	conn     Conn
	closer   io.Closer
	config   Config
	registry *bus.Registry
	order    *inboundOrder
	id       string
}

// Connect connects to the system bus and returns a session using it.
func Connect(ctx context.Context, config Config) (*Session, error) {
	order := newInboundOrder()
	conn, err := dbus.ConnectSystemBus(dbus.WithContext(ctx), dbus.WithIncomingInterceptor(order.intercept))
	if err != nil {
		return nil, fmt.Errorf("connect system bus: %w", err)
	}
	s := newSession(conn, config, order)
	s.closer = conn
	return s, nil
}

// ConnectAddress is like Connect for the bus at address, e.g.
// "unix:path=/run/dbus/test_socket".
func ConnectAddress(ctx context.Context, address string, config Config) (*Session, error) {
	order := newInboundOrder()
	conn, err := dbus.Connect(address, dbus.WithContext(ctx), dbus.WithIncomingInterceptor(order.intercept))
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", address, err)
	}
	s := newSession(conn, config, order)
	s.closer = conn
	return s, nil
}

// NewSession creates a session on an existing connection. Messages for an
// element are delivered in the order the daemon sent them only if the
// connection lets the session install an incoming interceptor; a
// *dbus.Conn cannot, so use Connect or ConnectAddress for those.
func NewSession(conn Conn, config Config) *Session {
	order := newInboundOrder()
	if setter, ok := conn.(interceptorSetter); ok {
		setter.SetIncomingInterceptor(order.intercept)
	}
	return newSession(conn, config, order)
}

func newSession(conn Conn, config Config, order *inboundOrder) *Session {
	config = config.withDefaults()
	return &Session{
		conn:     conn,
		config:   config,
		registry: bus.NewRegistry(conn, config.Logger),
		order:    order,
		id:       uuid.NewString(),
	}
}

// ID returns the session identifier used in protocol logs.
func (s *Session) ID() string {
	return s.id
}

// Config returns the effective session configuration.
func (s *Session) Config() Config {
	return s.config
}

// Registry returns the table of objects exported by the session.
func (s *Session) Registry() *bus.Registry {
	return s.registry
}

// Network returns the daemon's network interface.
func (s *Session) Network() *Network {
	return &Network{session: s}
}

// Node returns the node object at path, as returned by a previous attach.
func (s *Session) Node(path dbus.ObjectPath) *Node {
	return &Node{path: path, session: s}
}

// Close closes the bus connection if the session opened it.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// object returns a proxy for a daemon object.
func (s *Session) object(path dbus.ObjectPath) dbus.BusObject {
	return s.conn.Object(s.config.Service, path)
}

// callContext bounds ctx by CallTimeout unless it already has a deadline.
func (s *Session) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.config.CallTimeout)
}

// handlerContext returns the context for handling a call from the daemon.
func (s *Session) handlerContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.config.CallTimeout)
}

func (s *Session) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

func (s *Session) warnLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Warn(msg, args...)
	}
}

// capture records a protocol event.
func (s *Session) capture(event log.Event) {
	if s.config.ProtocolLogger == nil {
		return
	}
	event.Timestamp = time.Now()
	event.SessionID = s.id
	s.config.ProtocolLogger.Log(event)
}

func (s *Session) captureState(entity log.StateEntity, path dbus.ObjectPath, oldState, newState, reason string) {
	s.capture(log.Event{
		Direction:  log.DirectionOut,
		Layer:      log.LayerApplication,
		Category:   log.CategoryState,
		ObjectPath: string(path),
		StateChange: &log.StateChangeEvent{
			Entity:   entity,
			OldState: oldState,
			NewState: newState,
			Reason:   reason,
		},
	})
}

func (s *Session) captureCall(iface, method string, path dbus.ObjectPath, args string) {
	s.capture(log.Event{
		Direction:  log.DirectionIn,
		Layer:      log.LayerBus,
		Category:   log.CategoryCall,
		ObjectPath: string(path),
		Call: &log.CallEvent{
			Interface: iface,
			Method:    method,
			Args:      args,
		},
	})
}

func (s *Session) captureError(layer log.Layer, path dbus.ObjectPath, op string, err error, req *ReqError) {
	data := &log.ErrorEventData{
		Layer:   layer,
		Message: err.Error(),
		Context: op,
	}
	if req != nil {
		data.Name = req.DBusName()
	}
	s.capture(log.Event{
		Direction:  log.DirectionIn,
		Layer:      layer,
		Category:   log.CategoryError,
		ObjectPath: string(path),
		Error:      data,
	})
}
