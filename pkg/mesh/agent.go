package mesh

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/btmesh-go/mesh-go/pkg/bus"
	"github.com/btmesh-go/mesh-go/pkg/log"
)

// DefaultAgentCapabilities are advertised by agents that do not implement
// CapabilityProvider.
var DefaultAgentCapabilities = []string{"out-numeric", "static-oob"}

// AgentDelegate answers the provisioning prompts of the daemon.
type AgentDelegate interface {
	// DisplayNumeric shows a number to the user. kind is e.g. "blink" or
	// "out-numeric".
	DisplayNumeric(ctx context.Context, kind string, number uint32) error

	// DisplayString shows an alphanumeric value to the user.
	DisplayString(ctx context.Context, value string) error

	// PromptNumeric asks the user for a number.
	PromptNumeric(ctx context.Context, kind string) (uint32, error)

	// PromptStatic asks for 16 octets of static OOB data.
	PromptStatic(ctx context.Context, kind string) ([]byte, error)

	// Cancel aborts the current prompt.
	Cancel()
}

// CapabilityProvider is implemented by delegates that advertise their own
// capabilities.
type CapabilityProvider interface {
	Capabilities() []string
}

// registeredAgent is the ProvisionAgent1 object of an application.
type registeredAgent struct {
	session  *Session
	path     dbus.ObjectPath
	delegate AgentDelegate
}

func (a *registeredAgent) capabilities() []string {
	if p, ok := a.delegate.(CapabilityProvider); ok {
		return p.Capabilities()
	}
	return DefaultAgentCapabilities
}

func (a *registeredAgent) properties() map[string]dbus.Variant {
	return map[string]dbus.Variant{
		"Capabilities": dbus.MakeVariant(a.capabilities()),
	}
}

// fail reports err to the daemon.
func (a *registeredAgent) fail(method string, err error) *dbus.Error {
	req := reqErrorOf(err)
	a.session.captureError(log.LayerApplication, a.path, method, err, &req)
	a.session.debugLog("agent: request failed", "method", method, "error", err)
	return req.DBusError()
}

func (a *registeredAgent) displayNumeric(kind string, number uint32) *dbus.Error {
	a.session.captureCall(ProvisionAgentInterface, "DisplayNumeric", a.path, fmt.Sprintf("type=%s number=%d", kind, number))
	if a.delegate == nil {
		return a.fail("DisplayNumeric", ReqNotSupported)
	}
	ctx, cancel := a.session.handlerContext()
	defer cancel()
	if err := a.delegate.DisplayNumeric(ctx, kind, number); err != nil {
		return a.fail("DisplayNumeric", err)
	}
	return nil
}

func (a *registeredAgent) displayString(value string) *dbus.Error {
	a.session.captureCall(ProvisionAgentInterface, "DisplayString", a.path, "value="+value)
	if a.delegate == nil {
		return a.fail("DisplayString", ReqNotSupported)
	}
	ctx, cancel := a.session.handlerContext()
	defer cancel()
	if err := a.delegate.DisplayString(ctx, value); err != nil {
		return a.fail("DisplayString", err)
	}
	return nil
}

func (a *registeredAgent) promptNumeric(kind string) (uint32, *dbus.Error) {
	a.session.captureCall(ProvisionAgentInterface, "PromptNumeric", a.path, "type="+kind)
	if a.delegate == nil {
		return 0, a.fail("PromptNumeric", ReqNotSupported)
	}
	ctx, cancel := a.session.handlerContext()
	defer cancel()
	n, err := a.delegate.PromptNumeric(ctx, kind)
	if err != nil {
		return 0, a.fail("PromptNumeric", err)
	}
	return n, nil
}

func (a *registeredAgent) promptStatic(kind string) ([]byte, *dbus.Error) {
	a.session.captureCall(ProvisionAgentInterface, "PromptStatic", a.path, "type="+kind)
	if a.delegate == nil {
		return nil, a.fail("PromptStatic", ReqNotSupported)
	}
	ctx, cancel := a.session.handlerContext()
	defer cancel()
	data, err := a.delegate.PromptStatic(ctx, kind)
	if err != nil {
		return nil, a.fail("PromptStatic", err)
	}
	if len(data) != 16 {
		return nil, a.fail("PromptStatic", fmt.Errorf("static OOB data is %d octets, want 16: %w", len(data), ReqInvalidValueLength))
	}
	return data, nil
}

func (a *registeredAgent) cancel() *dbus.Error {
	a.session.captureCall(ProvisionAgentInterface, "Cancel", a.path, "")
	if a.delegate != nil {
		a.delegate.Cancel()
	}
	return nil
}

func (a *registeredAgent) object() bus.Object {
	return bus.Object{
		Path: a.path,
		Interfaces: []bus.Interface{{
			Name: ProvisionAgentInterface,
			Methods: map[string]interface{}{
				"DisplayNumeric": a.displayNumeric,
				"DisplayString":  a.displayString,
				"PromptNumeric":  a.promptNumeric,
				"PromptStatic":   a.promptStatic,
				"Cancel":         a.cancel,
			},
			MethodSpecs: []introspect.Method{
				{Name: "DisplayNumeric", Args: []introspect.Arg{
					{Name: "type", Type: "s", Direction: "in"},
					{Name: "number", Type: "u", Direction: "in"},
				}},
				{Name: "DisplayString", Args: []introspect.Arg{
					{Name: "value", Type: "s", Direction: "in"},
				}},
				{Name: "PromptNumeric", Args: []introspect.Arg{
					{Name: "type", Type: "s", Direction: "in"},
					{Name: "number", Type: "u", Direction: "out"},
				}},
				{Name: "PromptStatic", Args: []introspect.Arg{
					{Name: "type", Type: "s", Direction: "in"},
					{Name: "data", Type: "ay", Direction: "out"},
				}},
				{Name: "Cancel"},
			},
			Properties: a.properties,
		}},
	}
}
