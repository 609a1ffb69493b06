package mesh

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/btmesh-go/mesh-go/pkg/bus"
	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// maxElements is the largest number of elements a node can have.
const maxElements = 255

// Identity is the composition data identity of an application.
type Identity struct {
	CompanyID wire.CompanyID
	ProductID uint16
	VersionID uint16

	// CRPL is the minimum number of replay protection list entries.
	// Zero omits the property.
	CRPL uint16
}

// DefaultIdentity returns the identity used when an application has none.
func DefaultIdentity() Identity {
	return Identity{CompanyID: 0x05F1, ProductID: 0x0001, VersionID: 0x0001}
}

// JoinResult reports the outcome of a join or create request.
type JoinResult struct {
	// Token is the node token on success.
	Token uint64

	// Reason is the failure reason, e.g. "timeout" or "bad-pdu".
	Reason string
}

// OK reports whether the join succeeded.
func (r JoinResult) OK() bool {
	return r.Reason == ""
}

// Application is the object tree a program exports to the daemon.
type Application struct {
	// Path of the Application1 object.
	Path dbus.ObjectPath

	// Elements in index order. At least one is required.
	Elements []Element

	// Provisioner adds the Provisioner1 interface (optional).
	Provisioner *Provisioner

	// Agent answers provisioning prompts (optional).
	Agent AgentDelegate

	// Identity defaults to DefaultIdentity.
	Identity *Identity

	// OnJoin is called for JoinComplete and JoinFailed (optional).
	OnJoin func(JoinResult)
}

// AgentPath returns the path of the provisioning agent for root.
func AgentPath(root dbus.ObjectPath) dbus.ObjectPath {
	if root == "/" {
		return "/agent"
	}
	return root + "/agent"
}

// validate checks that app can be exported below root.
func (app *Application) validate(root dbus.ObjectPath) error {
	if !root.IsValid() {
		return fmt.Errorf("%w: invalid root path %q", ErrInvalidApplication, root)
	}
	if !app.Path.IsValid() || !bus.IsDescendant(root, app.Path) {
		return fmt.Errorf("%w: application path %q is not below %s", ErrInvalidApplication, app.Path, root)
	}
	if len(app.Elements) == 0 {
		return fmt.Errorf("%w: no elements", ErrInvalidApplication)
	}
	if len(app.Elements) > maxElements {
		return fmt.Errorf("%w: %d elements exceeds %d", ErrInvalidApplication, len(app.Elements), maxElements)
	}

	if app.Path == AgentPath(root) {
		return fmt.Errorf("%w: application path %s collides with the agent", ErrInvalidApplication, app.Path)
	}
	seen := map[dbus.ObjectPath]bool{
		root:            true,
		AgentPath(root): true,
		app.Path:        true,
	}
	controls := make(map[*ElementControlHandle]bool)

	for i, e := range app.Elements {
		if !e.Path.IsValid() || !bus.IsDescendant(root, e.Path) {
			return fmt.Errorf("%w: element %d path %q is not below %s", ErrInvalidApplication, i, e.Path, root)
		}
		if seen[e.Path] {
			return fmt.Errorf("%w: duplicate path %s", ErrInvalidApplication, e.Path)
		}
		seen[e.Path] = true

		if len(e.Models) == 0 {
			return fmt.Errorf("%w: element %d has no models", ErrInvalidApplication, i)
		}
		if e.Control != nil {
			if controls[e.Control] {
				return fmt.Errorf("%w: element %d shares a control handle", ErrInvalidApplication, i)
			}
			controls[e.Control] = true
		}
	}
	return nil
}

// registeredApplication is an application exported on the bus.
type registeredApplication struct {
	session  *Session
	app      Application
	identity Identity
}

func (a *registeredApplication) properties() map[string]dbus.Variant {
	props := map[string]dbus.Variant{
		"CompanyID": dbus.MakeVariant(uint16(a.identity.CompanyID)),
		"ProductID": dbus.MakeVariant(a.identity.ProductID),
		"VersionID": dbus.MakeVariant(a.identity.VersionID),
	}
	if a.identity.CRPL != 0 {
		props["CRPL"] = dbus.MakeVariant(a.identity.CRPL)
	}
	return props
}

func (a *registeredApplication) joinComplete(token uint64) *dbus.Error {
	a.session.captureCall(ApplicationInterface, "JoinComplete", a.app.Path, fmt.Sprintf("token=%016x", token))
	a.session.captureState(log.StateEntityNode, a.app.Path, "", "JOINED", "")
	if a.app.OnJoin != nil {
		a.app.OnJoin(JoinResult{Token: token})
	}
	return nil
}

func (a *registeredApplication) joinFailed(reason string) *dbus.Error {
	a.session.captureCall(ApplicationInterface, "JoinFailed", a.app.Path, "reason="+reason)
	a.session.captureState(log.StateEntityNode, a.app.Path, "", "JOIN_FAILED", reason)
	if a.app.OnJoin != nil {
		a.app.OnJoin(JoinResult{Reason: reason})
	}
	return nil
}

func (a *registeredApplication) object(provisioner *registeredProvisioner) bus.Object {
	obj := bus.Object{
		Path: a.app.Path,
		Interfaces: []bus.Interface{{
			Name: ApplicationInterface,
			Methods: map[string]interface{}{
				"JoinComplete": a.joinComplete,
				"JoinFailed":   a.joinFailed,
			},
			MethodSpecs: []introspect.Method{
				{Name: "JoinComplete", Args: []introspect.Arg{{Name: "token", Type: "t", Direction: "in"}}},
				{Name: "JoinFailed", Args: []introspect.Arg{{Name: "reason", Type: "s", Direction: "in"}}},
			},
			Properties: a.properties,
		}},
	}
	if provisioner != nil {
		obj.Interfaces = append(obj.Interfaces, provisioner.iface())
	}
	return obj
}

// RegisterApplication exports app below root. The returned handle must be
// unregistered to remove the objects again.
func (s *Session) RegisterApplication(ctx context.Context, root dbus.ObjectPath, app Application) (*ApplicationHandle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := app.validate(root); err != nil {
		return nil, err
	}

	identity := DefaultIdentity()
	if app.Identity != nil {
		identity = *app.Identity
	}
	app.Elements = append([]Element(nil), app.Elements...)

	var bound []*ElementControlHandle
	unbind := func() {
		for _, h := range bound {
			h.unbind()
		}
	}
	for _, e := range app.Elements {
		if e.Control == nil {
			continue
		}
		if err := e.Control.bind(); err != nil {
			unbind()
			return nil, fmt.Errorf("%w: element %s: %w", ErrInvalidApplication, e.Path, err)
		}
		bound = append(bound, e.Control)
	}

	regApp := &registeredApplication{session: s, app: app, identity: identity}
	agent := &registeredAgent{session: s, path: AgentPath(root), delegate: app.Agent}
	var prov *registeredProvisioner
	if app.Provisioner != nil {
		prov = newRegisteredProvisioner(s, app.Path, app.Provisioner)
	}

	var opened []dbus.ObjectPath
	for _, e := range app.Elements {
		if s.order.open(e.Path) {
			opened = append(opened, e.Path)
		}
	}
	closeOrder := func() {
		for _, p := range opened {
			s.order.close(p)
		}
	}

	err := s.registry.Update(func(tx *bus.Tx) error {
		if err := tx.Insert(bus.Object{Path: root, ObjectManager: true}); err != nil {
			return err
		}
		if err := tx.Insert(agent.object()); err != nil {
			return err
		}
		if err := tx.Insert(regApp.object(prov)); err != nil {
			return err
		}
		for i, e := range app.Elements {
			el := &registeredElement{session: s, element: e, index: uint8(i)}
			if err := tx.Insert(el.object()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		unbind()
		closeOrder()
		s.captureError(log.LayerApplication, root, "RegisterApplication", err, nil)
		return nil, fmt.Errorf("register application %s: %w", root, err)
	}

	state := &handleState{
		session:     s,
		root:        root,
		elements:    opened,
		controls:    bound,
		provisioner: prov,
		release:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	for _, e := range app.Elements {
		state.addresses = append(state.addresses, addressOf(e))
	}

	h := &ApplicationHandle{state: state}
	go state.watch()
	runtime.AddCleanup(h, func(st *handleState) { st.discarded() }, state)

	s.config.Metrics.applicationRegistered()
	s.captureState(log.StateEntityApplication, root, "", "REGISTERED", "")
	s.debugLog("application: registered", "root", root, "elements", len(app.Elements))
	return h, nil
}

func addressOf(e Element) *addressCell {
	if e.Control == nil {
		return nil
	}
	return e.Control.address
}

// ApplicationHandle controls the lifetime of a registered application.
type ApplicationHandle struct {
	state *handleState
}

// handleState is kept apart from the handle so that the handle can be
// collected while the release watcher runs.
type handleState struct {
	session     *Session
	root        dbus.ObjectPath
	elements    []dbus.ObjectPath
	controls    []*ElementControlHandle
	provisioner *registeredProvisioner
	addresses   []*addressCell

	releaseOnce sync.Once
	release     chan struct{}

	unregisterOnce sync.Once
	err            error
	done           chan struct{}
}

// Root returns the root path of the application.
func (h *ApplicationHandle) Root() dbus.ObjectPath {
	return h.state.root
}

// Unregister removes the application's objects from the bus and closes
// its element and provisioner streams. Repeated calls return the result of
// the first.
func (h *ApplicationHandle) Unregister() error {
	h.state.unregister("unregistered")
	return h.state.err
}

// Release starts unregistration in the background and returns at once.
func (h *ApplicationHandle) Release() {
	h.state.triggerRelease()
}

// Done is closed once the application has been unregistered.
func (h *ApplicationHandle) Done() <-chan struct{} {
	return h.state.done
}

// Unregistered reports whether the application has been unregistered.
func (h *ApplicationHandle) Unregistered() bool {
	select {
	case <-h.state.done:
		return true
	default:
		return false
	}
}

// String returns a printable representation of the handle.
func (h *ApplicationHandle) String() string {
	return fmt.Sprintf("ApplicationHandle{%s}", h.state.root)
}

func (st *handleState) triggerRelease() {
	st.releaseOnce.Do(func() { close(st.release) })
}

// watch unregisters once release is triggered.
func (st *handleState) watch() {
	select {
	case <-st.release:
		st.unregister("released")
	case <-st.done:
	}
}

func (st *handleState) unregister(reason string) {
	st.unregisterOnce.Do(func() {
		s := st.session
		n, err := s.registry.RemoveSubtree(st.root)
		for _, p := range st.elements {
			s.order.close(p)
		}
		for _, c := range st.controls {
			c.close()
		}
		if st.provisioner != nil {
			st.provisioner.close()
		}
		st.err = err

		s.config.Metrics.applicationUnregistered()
		s.captureState(log.StateEntityApplication, st.root, "REGISTERED", "UNREGISTERED", reason)
		s.debugLog("application: unregistered", "root", st.root, "objects", n, "reason", reason, "error", err)
		close(st.done)
	})
}

// discarded runs when the handle is garbage collected.
func (st *handleState) discarded() {
	select {
	case <-st.done:
		return
	default:
	}
	st.session.warnLog("application: handle discarded without Unregister, releasing", "root", st.root)
	st.triggerRelease()
}
