package mesh

import (
	"context"
	"fmt"
	"strconv"

	"github.com/godbus/dbus/v5"

	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Network is the daemon's Network1 interface.
type Network struct {
	session *Session
}

// ModelConfiguration is the configuration of one model of an attached
// element, as returned by Attach.
type ModelConfiguration struct {
	ID      uint16
	Options map[string]dbus.Variant
}

// ElementConfiguration is the configuration of one attached element.
type ElementConfiguration struct {
	Index  uint8
	Models []ModelConfiguration
}

// ParseToken parses a node token given as 16 hex digits.
func ParseToken(s string) (uint64, error) {
	token, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidToken, s)
	}
	return token, nil
}

// Attach attaches the registered application to the node identified by
// token. On success every element with a control handle learns its unicast
// address.
func (n *Network) Attach(ctx context.Context, app *ApplicationHandle, token uint64) (*Node, error) {
	if app.Unregistered() {
		return nil, ErrUnregistered
	}
	s := n.session

	ctx, cancel := s.callContext(ctx)
	defer cancel()

	var (
		path   dbus.ObjectPath
		config []ElementConfiguration
	)
	call := s.object(ServicePath).CallWithContext(ctx, NetworkInterface+".Attach", 0, app.Root(), token)
	if err := call.Store(&path, &config); err != nil {
		s.captureError(log.LayerBus, app.Root(), "Attach", err, nil)
		return nil, fmt.Errorf("attach %s: %w", app.Root(), err)
	}

	node := &Node{path: path, session: s, config: config}
	addrs, err := node.Addresses(ctx)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("attach %s: node %s has no addresses", app.Root(), path)
	}

	for i, cell := range app.state.addresses {
		if cell == nil {
			continue
		}
		addr, err := elementAddress(addrs, i)
		if err != nil {
			return nil, fmt.Errorf("attach %s: element %d: %w", app.Root(), i, err)
		}
		cell.store(addr)
	}

	s.captureState(log.StateEntityNode, path, "", "ATTACHED", string(app.Root()))
	s.debugLog("network: attached", "root", app.Root(), "node", path, "primary", addrs[0].String())
	return node, nil
}

// elementAddress returns the address of element i: the i-th reported
// address, or the primary address plus i.
func elementAddress(addrs []wire.UnicastAddress, i int) (wire.UnicastAddress, error) {
	if i < len(addrs) {
		return addrs[i], nil
	}
	return addrs[0].Offset(i)
}
