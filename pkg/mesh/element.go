package mesh

import (
	"context"
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/btmesh-go/mesh-go/pkg/bus"
	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Element is an addressable part of a node hosting one or more models.
type Element struct {
	Path   dbus.ObjectPath
	Models []model.Model

	// Control receives the element's messages (optional).
	Control *ElementControlHandle

	// Location is the GATT namespace location descriptor. Zero omits
	// the property.
	Location uint16
}

// ElementMessage is an access message delivered to an element.
type ElementMessage struct {
	KeyIndex    wire.AppKeyIndex
	Source      wire.UnicastAddress
	Destination wire.Address
	Payload     wire.AccessPayload
}

// Parse offers the message to models in order. See model.ParseAny.
func (m ElementMessage) Parse(models ...model.Model) (model.Model, model.Message, error) {
	return model.ParseAny(models, m.Payload.Opcode, m.Payload.Parameters)
}

// modelConfig is an entry of the Models property: a(qa{sv}).
type modelConfig struct {
	ID      uint16
	Options map[string]dbus.Variant
}

// vendorModelConfig is an entry of the VendorModels property: a(qqa{sv}).
type vendorModelConfig struct {
	Company uint16
	ID      uint16
	Options map[string]dbus.Variant
}

func modelOptions(m model.Model) map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Subscribe": dbus.MakeVariant(m.SupportsSubscription()),
		"Publish":   dbus.MakeVariant(m.SupportsPublication()),
	}
}

// registeredElement is an element exported on the bus.
type registeredElement struct {
	session *Session
	element Element
	index   uint8
}

func (e *registeredElement) properties() map[string]dbus.Variant {
	sig := []modelConfig{}
	vendor := []vendorModelConfig{}
	for _, m := range e.element.Models {
		id := m.Identifier()
		if company, ok := id.Company(); ok {
			vendor = append(vendor, vendorModelConfig{Company: uint16(company), ID: id.ID(), Options: modelOptions(m)})
		} else {
			sig = append(sig, modelConfig{ID: id.ID(), Options: modelOptions(m)})
		}
	}

	props := map[string]dbus.Variant{
		"Index":        dbus.MakeVariant(e.index),
		"Models":       dbus.MakeVariant(sig),
		"VendorModels": dbus.MakeVariant(vendor),
	}
	if e.element.Location != 0 {
		props["Location"] = dbus.MakeVariant(e.element.Location)
	}
	return props
}

func (e *registeredElement) object() bus.Object {
	return bus.Object{
		Path: e.element.Path,
		Interfaces: []bus.Interface{{
			Name: ElementInterface,
			Methods: map[string]interface{}{
				"MessageReceived": e.messageReceived,
			},
			MethodSpecs: []introspect.Method{{
				Name: "MessageReceived",
				Args: []introspect.Arg{
					{Name: "source", Type: "q", Direction: "in"},
					{Name: "key_index", Type: "q", Direction: "in"},
					{Name: "destination", Type: "v", Direction: "in"},
					{Name: "data", Type: "ay", Direction: "in"},
				},
			}},
			Properties: e.properties,
		}},
	}
}

// messageReceived handles Element1.MessageReceived. Calls for the element
// are routed one at a time, in the order the connection received them.
func (e *registeredElement) messageReceived(call dbus.Message, source uint16, keyIndex uint16, destination dbus.Variant, data []byte) *dbus.Error {
	ctx, cancel := e.session.handlerContext()
	defer cancel()

	done, err := e.session.order.wait(ctx, e.element.Path, &call)
	if err != nil {
		err = fmt.Errorf("message from 0x%04X still queued after %s: %w", source, e.session.config.CallTimeout, ReqInProgress)
	} else {
		defer done()
		err = e.route(ctx, source, keyIndex, destination, data)
	}
	if err != nil {
		req := reqErrorOf(err)
		e.session.captureError(log.LayerBus, e.element.Path, "MessageReceived", err, &req)
		e.session.debugLog("element: message rejected",
			"path", e.element.Path, "source", fmt.Sprintf("0x%04X", source), "error", err)
		return req.DBusError()
	}
	return nil
}

// route validates an inbound message and delivers it to the element's
// consumer.
func (e *registeredElement) route(ctx context.Context, source uint16, keyIndex uint16, destination dbus.Variant, data []byte) error {
	metrics := e.session.config.Metrics

	if wire.KindOf(source) != wire.AddressUnicast {
		metrics.messageRejected("source")
		return fmt.Errorf("%w: source 0x%04X is not a unicast address: %w", wire.ErrInvalidAddress, source, ReqFailed)
	}
	src := wire.UnicastAddress(source)

	key, err := wire.NewAppKeyIndex(keyIndex)
	if err != nil {
		metrics.messageRejected("key_index")
		return fmt.Errorf("%w: %w", err, ReqFailed)
	}

	dst, err := parseDestination(destination)
	if err != nil {
		metrics.messageRejected("destination")
		return fmt.Errorf("%w: %w", err, ReqFailed)
	}

	payload, err := wire.ParseAccessPayload(data)
	if err != nil {
		metrics.messageRejected("payload")
		return err
	}

	msg := ElementMessage{
		KeyIndex:    key,
		Source:      src,
		Destination: dst,
		Payload:     payload,
	}

	event := log.Event{
		Direction:   log.DirectionIn,
		Layer:       log.LayerAccess,
		Category:    log.CategoryMessage,
		ObjectPath:  string(e.element.Path),
		Source:      source,
		Destination: dst.String(),
		Message: &log.MessageEvent{
			Opcode:     payload.Opcode.String(),
			KeyIndex:   uint16(key),
			Parameters: payload.Parameters,
			Size:       payload.Len(),
			Method:     "MessageReceived",
		},
	}
	if m, _, _ := msg.Parse(e.element.Models...); m != nil {
		event.Message.Model = m.Identifier().String()
	}

	handle := e.element.Control
	if handle == nil {
		metrics.messageDropped("no_consumer")
		e.session.capture(event)
		e.session.debugLog("element: no consumer, message dropped",
			"path", e.element.Path, "opcode", payload.Opcode.String())
		return nil
	}

	waited, err := handle.deliver(ctx, msg, e.session.config.DeliveryTimeout)
	if err != nil {
		if errors.Is(err, ReqInProgress) {
			metrics.deliveryTimedOut()
			return fmt.Errorf("consumer of %s did not drain within %s: %w", e.element.Path, waited, err)
		}
		return err
	}

	metrics.messageRouted(string(e.element.Path), waited)
	event.Message.Delivery = &waited
	e.session.capture(event)
	return nil
}

// parseDestination converts the destination argument of MessageReceived:
// a 16-bit address, or a 16-octet virtual label.
func parseDestination(v dbus.Variant) (wire.Address, error) {
	switch d := v.Value().(type) {
	case uint16:
		return wire.NewAddress(d), nil
	case []byte:
		return wire.ParseLabel(d)
	default:
		return wire.Address{}, fmt.Errorf("%w: destination of type %s", wire.ErrInvalidAddress, v.Signature())
	}
}
