package mesh

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/google/uuid"

	"github.com/btmesh-go/mesh-go/pkg/bus"
	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// DefaultProvisionerEvents is the capacity of a provisioner event stream.
const DefaultProvisionerEvents = 16

// ProvisionerEventKind identifies a provisioner callback.
type ProvisionerEventKind uint8

const (
	// EventNodeAdded reports a successfully provisioned node.
	EventNodeAdded ProvisionerEventKind = iota

	// EventAddFailed reports a failed provisioning attempt.
	EventAddFailed

	// EventScanResult reports an unprovisioned device beacon.
	EventScanResult
)

// String returns the event kind name.
func (k ProvisionerEventKind) String() string {
	switch k {
	case EventNodeAdded:
		return "node_added"
	case EventAddFailed:
		return "add_failed"
	case EventScanResult:
		return "scan_result"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// ProvisionerEvent is a callback of the daemon's provisioning procedure.
type ProvisionerEvent struct {
	Kind ProvisionerEventKind

	// Device is the UUID of the node (NodeAdded, AddFailed) or of the
	// scanned device (ScanResult, when the beacon carries one).
	Device uuid.UUID

	// Unicast and Count describe the address range of an added node.
	Unicast wire.UnicastAddress
	Count   uint8

	// Reason is set for AddFailed.
	Reason string

	// RSSI, Data and Options are set for ScanResult.
	RSSI    int16
	Data    []byte
	Options map[string]dbus.Variant
}

// ProvisionData returns the net key index and primary unicast address of a
// node with count elements.
type ProvisionData func(ctx context.Context, count uint8) (wire.NetKeyIndex, wire.UnicastAddress, error)

// Provisioner adds the Provisioner1 interface to an application.
type Provisioner struct {
	// Control receives provisioner events (optional).
	Control *ProvisionerControlHandle

	// ProvisionData assigns addresses to new nodes. Defaults to a
	// SequentialAllocator starting at DefaultFirstUnicast.
	ProvisionData ProvisionData
}

// ProvisionerControl receives the events of a provisioner.
type ProvisionerControl struct {
	events <-chan ProvisionerEvent
}

// ProvisionerControlHandle is stored in Provisioner.Control.
type ProvisionerControlHandle struct {
	events chan ProvisionerEvent

	mu     sync.Mutex
	closed bool
}

// NewProvisionerControl creates a ProvisionerControl and its handle. The
// stream holds up to size events; events arriving while it is full are
// dropped. size <= 0 selects DefaultProvisionerEvents.
func NewProvisionerControl(size int) (*ProvisionerControl, *ProvisionerControlHandle) {
	if size <= 0 {
		size = DefaultProvisionerEvents
	}
	events := make(chan ProvisionerEvent, size)
	return &ProvisionerControl{events: events}, &ProvisionerControlHandle{events: events}
}

// Events returns the event stream. It is closed on unregistration.
func (c *ProvisionerControl) Events() <-chan ProvisionerEvent {
	return c.events
}

// Recv waits for the next event.
func (c *ProvisionerControl) Recv(ctx context.Context) (ProvisionerEvent, error) {
	select {
	case ev, ok := <-c.events:
		if !ok {
			return ProvisionerEvent{}, ErrControlClosed
		}
		return ev, nil
	case <-ctx.Done():
		return ProvisionerEvent{}, ctx.Err()
	}
}

// push queues ev without blocking. It reports whether ev was queued.
func (h *ProvisionerControlHandle) push(ev ProvisionerEvent) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	select {
	case h.events <- ev:
		return true
	default:
		return false
	}
}

func (h *ProvisionerControlHandle) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.events)
}

// DefaultFirstUnicast is the first address handed out by the default
// allocator.
const DefaultFirstUnicast wire.UnicastAddress = 0x00bd

// SequentialAllocator hands out consecutive unicast ranges on one net key.
type SequentialAllocator struct {
	mu       sync.Mutex
	next     wire.UnicastAddress
	netIndex wire.NetKeyIndex
}

// NewSequentialAllocator creates an allocator starting at first.
func NewSequentialAllocator(first wire.UnicastAddress, netIndex wire.NetKeyIndex) *SequentialAllocator {
	return &SequentialAllocator{next: first, netIndex: netIndex}
}

// Allocate reserves count addresses. It implements ProvisionData.
func (a *SequentialAllocator) Allocate(_ context.Context, count uint8) (wire.NetKeyIndex, wire.UnicastAddress, error) {
	if count == 0 {
		return 0, 0, fmt.Errorf("%w: zero elements", ReqInvalidValueLength)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, err := a.next.Offset(int(count) - 1); err != nil {
		return 0, 0, fmt.Errorf("allocate %d addresses: %w", count, err)
	}
	addr := a.next
	next, err := a.next.Offset(int(count))
	if err != nil {
		// The range ends at the last unicast address.
		next = 0x8000
	}
	a.next = next
	return a.netIndex, addr, nil
}

// registeredProvisioner is the Provisioner1 interface of an application.
type registeredProvisioner struct {
	session *Session
	path    dbus.ObjectPath
	control *ProvisionerControlHandle
	data    ProvisionData
}

func newRegisteredProvisioner(s *Session, path dbus.ObjectPath, p *Provisioner) *registeredProvisioner {
	data := p.ProvisionData
	if data == nil {
		data = NewSequentialAllocator(DefaultFirstUnicast, 0).Allocate
	}
	return &registeredProvisioner{session: s, path: path, control: p.Control, data: data}
}

func (p *registeredProvisioner) close() {
	if p.control != nil {
		p.control.close()
	}
}

func (p *registeredProvisioner) emit(ev ProvisionerEvent) {
	p.session.config.Metrics.provisionerEvent(ev.Kind.String())
	if p.control == nil {
		return
	}
	if !p.control.push(ev) {
		p.session.warnLog("provisioner: event dropped", "path", p.path, "event", ev.Kind.String())
	}
}

func (p *registeredProvisioner) addNodeComplete(device []byte, unicast uint16, count uint8) *dbus.Error {
	p.session.captureCall(ProvisionerInterface, "AddNodeComplete", p.path,
		fmt.Sprintf("uuid=%x unicast=0x%04X count=%d", device, unicast, count))

	id, err := uuid.FromBytes(device)
	if err != nil {
		return p.fail("AddNodeComplete", fmt.Errorf("%w: %w", err, ReqInvalidValueLength))
	}
	addr, err := wire.NewUnicastAddress(unicast)
	if err != nil {
		return p.fail("AddNodeComplete", fmt.Errorf("%w: %w", err, ReqFailed))
	}

	p.session.captureState(log.StateEntityProvisioning, p.path, "PROVISIONING", "ADDED", id.String())
	p.emit(ProvisionerEvent{Kind: EventNodeAdded, Device: id, Unicast: addr, Count: count})
	return nil
}

func (p *registeredProvisioner) addNodeFailed(device []byte, reason string) *dbus.Error {
	p.session.captureCall(ProvisionerInterface, "AddNodeFailed", p.path,
		fmt.Sprintf("uuid=%x reason=%s", device, reason))

	id, err := uuid.FromBytes(device)
	if err != nil {
		return p.fail("AddNodeFailed", fmt.Errorf("%w: %w", err, ReqInvalidValueLength))
	}

	p.session.captureState(log.StateEntityProvisioning, p.path, "PROVISIONING", "FAILED", reason)
	p.emit(ProvisionerEvent{Kind: EventAddFailed, Device: id, Reason: reason})
	return nil
}

func (p *registeredProvisioner) requestProvData(count uint8) (uint16, uint16, *dbus.Error) {
	p.session.captureCall(ProvisionerInterface, "RequestProvData", p.path, fmt.Sprintf("count=%d", count))

	ctx, cancel := p.session.handlerContext()
	defer cancel()

	net, addr, err := p.data(ctx, count)
	if err != nil {
		return 0, 0, p.fail("RequestProvData", err)
	}
	p.session.debugLog("provisioner: assigned addresses",
		"net_index", uint16(net), "unicast", addr.String(), "count", count)
	return uint16(net), uint16(addr), nil
}

func (p *registeredProvisioner) scanResult(rssi int16, data []byte, options map[string]dbus.Variant) *dbus.Error {
	p.session.captureCall(ProvisionerInterface, "ScanResult", p.path, fmt.Sprintf("rssi=%d data=%x", rssi, data))

	ev := ProvisionerEvent{Kind: EventScanResult, RSSI: rssi, Data: data, Options: options}
	if len(data) >= 16 {
		ev.Device, _ = uuid.FromBytes(data[:16])
	}
	p.emit(ev)
	return nil
}

func (p *registeredProvisioner) fail(method string, err error) *dbus.Error {
	req := reqErrorOf(err)
	p.session.captureError(log.LayerApplication, p.path, method, err, &req)
	p.session.debugLog("provisioner: request failed", "method", method, "error", err)
	return req.DBusError()
}

func (p *registeredProvisioner) iface() bus.Interface {
	return bus.Interface{
		Name: ProvisionerInterface,
		Methods: map[string]interface{}{
			"AddNodeComplete": p.addNodeComplete,
			"AddNodeFailed":   p.addNodeFailed,
			"RequestProvData": p.requestProvData,
			"ScanResult":      p.scanResult,
		},
		MethodSpecs: []introspect.Method{
			{Name: "AddNodeComplete", Args: []introspect.Arg{
				{Name: "uuid", Type: "ay", Direction: "in"},
				{Name: "unicast", Type: "q", Direction: "in"},
				{Name: "count", Type: "y", Direction: "in"},
			}},
			{Name: "AddNodeFailed", Args: []introspect.Arg{
				{Name: "uuid", Type: "ay", Direction: "in"},
				{Name: "reason", Type: "s", Direction: "in"},
			}},
			{Name: "RequestProvData", Args: []introspect.Arg{
				{Name: "count", Type: "y", Direction: "in"},
				{Name: "net_index", Type: "q", Direction: "out"},
				{Name: "unicast", Type: "q", Direction: "out"},
			}},
			{Name: "ScanResult", Args: []introspect.Arg{
				{Name: "rssi", Type: "n", Direction: "in"},
				{Name: "data", Type: "ay", Direction: "in"},
				{Name: "options", Type: "a{sv}", Direction: "in"},
			}},
		},
	}
}
