package examples

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/btmesh-go/mesh-go/pkg/mesh"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// ErrProvisioningFailed is returned when the daemon reports a failed
// provisioning attempt.
var ErrProvisioningFailed = errors.New("provisioning failed")

// NodeManager starts provisioning. *mesh.Management implements it.
type NodeManager interface {
	AddNode(ctx context.Context, device uuid.UUID) error
	UnprovisionedScan(ctx context.Context, seconds uint16) error
	UnprovisionedScanCancel(ctx context.Context) error
}

// ProvisionedNode describes a node added to the network.
type ProvisionedNode struct {
	Device  uuid.UUID
	Unicast wire.UnicastAddress
	Count   uint8
}

// ProvisionerDriver provisions devices through a node's Management1
// interface and follows the outcome on a provisioner event stream.
type ProvisionerDriver struct {
	manager NodeManager
	events  *mesh.ProvisionerControl
	logger  *slog.Logger
}

// NewProvisionerDriver creates a driver.
func NewProvisionerDriver(manager NodeManager, events *mesh.ProvisionerControl, logger *slog.Logger) *ProvisionerDriver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ProvisionerDriver{manager: manager, events: events, logger: logger}
}

// Provision adds the device and waits for the outcome. Events of other
// devices are logged and skipped.
func (d *ProvisionerDriver) Provision(ctx context.Context, device uuid.UUID) (ProvisionedNode, error) {
	if err := d.manager.AddNode(ctx, device); err != nil {
		return ProvisionedNode{}, err
	}

	for {
		ev, err := d.events.Recv(ctx)
		if err != nil {
			return ProvisionedNode{}, fmt.Errorf("wait for %s: %w", device, err)
		}

		switch {
		case ev.Kind == mesh.EventScanResult:
			d.logger.Debug("provisioner: scan result", "device", ev.Device, "rssi", ev.RSSI)
		case ev.Device != device:
			d.logger.Debug("provisioner: event for other device", "device", ev.Device, "event", ev.Kind.String())
		case ev.Kind == mesh.EventNodeAdded:
			d.logger.Info("provisioner: node added", "device", device, "unicast", ev.Unicast.String(), "count", ev.Count)
			return ProvisionedNode{Device: device, Unicast: ev.Unicast, Count: ev.Count}, nil
		case ev.Kind == mesh.EventAddFailed:
			return ProvisionedNode{}, fmt.Errorf("%w: %s: %s", ErrProvisioningFailed, device, ev.Reason)
		}
	}
}

// Scan starts a scan of the given number of seconds and calls found for
// each distinct device until ctx is done. The scan is cancelled on return.
func (d *ProvisionerDriver) Scan(ctx context.Context, seconds uint16, found func(mesh.ProvisionerEvent)) error {
	if err := d.manager.UnprovisionedScan(ctx, seconds); err != nil {
		return err
	}
	defer func() {
		if err := d.manager.UnprovisionedScanCancel(context.WithoutCancel(ctx)); err != nil {
			d.logger.Debug("provisioner: cancel scan", "error", err)
		}
	}()

	seen := make(map[uuid.UUID]bool)
	for {
		ev, err := d.events.Recv(ctx)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || errors.Is(err, mesh.ErrControlClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if ev.Kind != mesh.EventScanResult || seen[ev.Device] {
			continue
		}
		seen[ev.Device] = true
		found(ev)
	}
}
