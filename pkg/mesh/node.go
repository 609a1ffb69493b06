package mesh

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/btmesh-go/mesh-go/pkg/bus"
	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Node is a proxy for a node object of the daemon.
type Node struct {
	path    dbus.ObjectPath
	session *Session
	config  []ElementConfiguration
}

// Path returns the object path of the node.
func (n *Node) Path() dbus.ObjectPath {
	return n.path
}

// Configuration returns the element configuration reported on attach.
// It is nil for nodes obtained from Session.Node.
func (n *Node) Configuration() []ElementConfiguration {
	return n.config
}

// Management returns the Management1 interface of the node.
func (n *Node) Management() *Management {
	return &Management{node: n}
}

// Addresses reads the unicast addresses of the node's elements.
func (n *Node) Addresses(ctx context.Context) ([]wire.UnicastAddress, error) {
	ctx, cancel := n.session.callContext(ctx)
	defer cancel()

	var (
		v   dbus.Variant
		raw []uint16
	)
	call := n.session.object(n.path).CallWithContext(ctx, bus.PropertiesInterface+".Get", 0, NodeInterface, "Addresses")
	if err := call.Store(&v); err != nil {
		return nil, fmt.Errorf("read addresses of %s: %w", n.path, err)
	}
	if err := v.Store(&raw); err != nil {
		return nil, fmt.Errorf("read addresses of %s: %w", n.path, err)
	}

	addrs := make([]wire.UnicastAddress, 0, len(raw))
	for _, a := range raw {
		addr, err := wire.NewUnicastAddress(a)
		if err != nil {
			return nil, fmt.Errorf("read addresses of %s: %w", n.path, err)
		}
		addrs = append(addrs, addr)
	}
	return addrs, nil
}

// Publish publishes msg from the model m of the element at elementPath
// using the model's publication settings.
func (n *Node) Publish(ctx context.Context, elementPath dbus.ObjectPath, m model.Model, msg model.Message) error {
	data, err := model.Encode(msg)
	if err != nil {
		return fmt.Errorf("publish %s: %w", msg.Opcode(), err)
	}

	id := m.Identifier()
	options := map[string]dbus.Variant{}
	if company, ok := id.Company(); ok {
		options["Vendor"] = dbus.MakeVariant(uint16(company))
	}

	err = n.call(ctx, "Publish", elementPath, id.ID(), options, data)
	n.session.config.Metrics.messageSent("Publish", err)
	n.captureOut(elementPath, "Publish", "", 0, msg, data, id)
	if err != nil {
		return fmt.Errorf("publish %s from %s: %w", msg.Opcode(), elementPath, err)
	}
	return nil
}

// Send sends msg from the element at elementPath to destination, secured
// with the application key at keyIndex.
func (n *Node) Send(ctx context.Context, elementPath dbus.ObjectPath, destination wire.Address, keyIndex wire.AppKeyIndex, msg model.Message) error {
	if _, ok := destination.Label(); ok {
		return fmt.Errorf("%w: send to a label destination", wire.ErrInvalidAddress)
	}
	if destination.Kind() == wire.AddressUnassigned {
		return fmt.Errorf("%w: unassigned destination", wire.ErrInvalidAddress)
	}

	data, err := model.Encode(msg)
	if err != nil {
		return fmt.Errorf("send %s: %w", msg.Opcode(), err)
	}

	options := map[string]dbus.Variant{}
	err = n.call(ctx, "Send", elementPath, destination.Value(), uint16(keyIndex), options, data)
	n.session.config.Metrics.messageSent("Send", err)
	n.captureOut(elementPath, "Send", destination.String(), keyIndex, msg, data, model.ModelIdentifier{})
	if err != nil {
		return fmt.Errorf("send %s to %s: %w", msg.Opcode(), destination, err)
	}
	return nil
}

func (n *Node) call(ctx context.Context, method string, args ...interface{}) error {
	ctx, cancel := n.session.callContext(ctx)
	defer cancel()
	return n.session.object(n.path).CallWithContext(ctx, NodeInterface+"."+method, 0, args...).Err
}

func (n *Node) captureOut(element dbus.ObjectPath, method, destination string, keyIndex wire.AppKeyIndex, msg model.Message, data []byte, id model.ModelIdentifier) {
	ev := &log.MessageEvent{
		Opcode:     msg.Opcode().String(),
		KeyIndex:   uint16(keyIndex),
		Parameters: data[msg.Opcode().Size():],
		Size:       len(data),
		Method:     method,
	}
	if method == "Publish" {
		ev.Model = id.String()
	}
	n.session.capture(log.Event{
		Direction:   log.DirectionOut,
		Layer:       log.LayerAccess,
		Category:    log.CategoryMessage,
		ObjectPath:  string(element),
		Destination: destination,
		Message:     ev,
	})
}
