package mesh

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"

	"github.com/btmesh-go/mesh-go/pkg/log"
)

// Management is the Management1 interface of a node.
type Management struct {
	node *Node
}

// AddNode starts provisioning the unprovisioned device with the given UUID.
// The outcome is reported through the application's Provisioner.
func (m *Management) AddNode(ctx context.Context, device uuid.UUID) error {
	if err := m.call(ctx, "AddNode", device[:], map[string]dbus.Variant{}); err != nil {
		return fmt.Errorf("add node %s: %w", device, err)
	}
	m.node.session.captureState(log.StateEntityProvisioning, m.node.path, "", "PROVISIONING", device.String())
	return nil
}

// UnprovisionedScan starts scanning for unprovisioned devices. Results are
// reported through the application's Provisioner. seconds of zero scans
// until cancelled.
func (m *Management) UnprovisionedScan(ctx context.Context, seconds uint16) error {
	options := map[string]dbus.Variant{
		"Seconds": dbus.MakeVariant(seconds),
	}
	if err := m.call(ctx, "UnprovisionedScan", options); err != nil {
		return fmt.Errorf("unprovisioned scan: %w", err)
	}
	return nil
}

// UnprovisionedScanCancel stops a running scan.
func (m *Management) UnprovisionedScanCancel(ctx context.Context) error {
	if err := m.call(ctx, "UnprovisionedScanCancel"); err != nil {
		return fmt.Errorf("cancel unprovisioned scan: %w", err)
	}
	return nil
}

func (m *Management) call(ctx context.Context, method string, args ...interface{}) error {
	s := m.node.session
	ctx, cancel := s.callContext(ctx)
	defer cancel()
	return s.object(m.node.path).CallWithContext(ctx, ManagementInterface+"."+method, 0, args...).Err
}
