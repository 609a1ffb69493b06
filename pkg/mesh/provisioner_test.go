package mesh

import (
	"context"
	"errors"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

func provisionerApp(p *Provisioner) Application {
	app := twoElementApp()
	app.Provisioner = p
	return app
}

func TestProvisionerInterfaceExported(t *testing.T) {
	s, conn, _ := newTestSession(t)
	register(t, s, provisionerApp(&Provisioner{}))

	ifaces, err := conn.Interfaces("/app/application")
	require.NoError(t, err)
	assert.Contains(t, ifaces, ProvisionerInterface)
	assert.Contains(t, ifaces, ApplicationInterface)
}

func TestRequestProvDataDefaultAllocator(t *testing.T) {
	s, conn, _ := newTestSession(t)
	register(t, s, provisionerApp(&Provisioner{}))

	body, err := conn.Call("/app/application", ProvisionerInterface, "RequestProvData", uint8(2))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uint16(0), uint16(0x00bd)}, body)

	body, err = conn.Call("/app/application", ProvisionerInterface, "RequestProvData", uint8(1))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uint16(0), uint16(0x00bf)}, body)

	_, err = conn.Call("/app/application", ProvisionerInterface, "RequestProvData", uint8(0))
	requireReqError(t, err, ReqInvalidValueLength)
}

func TestRequestProvDataDelegate(t *testing.T) {
	s, conn, _ := newTestSession(t)
	register(t, s, provisionerApp(&Provisioner{
		ProvisionData: func(_ context.Context, count uint8) (wire.NetKeyIndex, wire.UnicastAddress, error) {
			if count > 4 {
				return 0, 0, ReqNotPermitted
			}
			return 1, 0x0200, nil
		},
	}))

	body, err := conn.Call("/app/application", ProvisionerInterface, "RequestProvData", uint8(3))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{uint16(1), uint16(0x0200)}, body)

	_, err = conn.Call("/app/application", ProvisionerInterface, "RequestProvData", uint8(5))
	requireReqError(t, err, ReqNotPermitted)
}

func TestProvisionerEvents(t *testing.T) {
	reg := newTestMetrics(t)
	s, conn, _ := newTestSession(t, func(c *Config) { c.Metrics = reg })
	control, handle := NewProvisionerControl(0)
	h := register(t, s, provisionerApp(&Provisioner{Control: handle}))

	device := uuid.MustParse("f0e1d2c3-b4a5-9687-7869-5a4b3c2d1e0f")

	_, err := conn.Call("/app/application", ProvisionerInterface, "AddNodeComplete", device[:], uint16(0x00bd), uint8(2))
	require.NoError(t, err)
	_, err = conn.Call("/app/application", ProvisionerInterface, "AddNodeFailed", device[:], "timeout")
	require.NoError(t, err)
	beacon := append(append([]byte{}, device[:]...), 0x00, 0x00)
	_, err = conn.Call("/app/application", ProvisionerInterface, "ScanResult", int16(-60), beacon, map[string]dbus.Variant{})
	require.NoError(t, err)

	ev, err := control.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, EventNodeAdded, ev.Kind)
	assert.Equal(t, device, ev.Device)
	assert.Equal(t, wire.UnicastAddress(0x00bd), ev.Unicast)
	assert.Equal(t, uint8(2), ev.Count)

	ev, err = control.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, EventAddFailed, ev.Kind)
	assert.Equal(t, "timeout", ev.Reason)

	ev, err = control.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, EventScanResult, ev.Kind)
	assert.Equal(t, int16(-60), ev.RSSI)
	assert.Equal(t, device, ev.Device)

	assert.Equal(t, 1.0, counterValue(t, reg.provisioner.WithLabelValues("node_added")))
	assert.Equal(t, 1.0, counterValue(t, reg.provisioner.WithLabelValues("scan_result")))

	require.NoError(t, h.Unregister())
	_, err = control.Recv(t.Context())
	assert.ErrorIs(t, err, ErrControlClosed)
}

func TestProvisionerRejectsMalformedCallbacks(t *testing.T) {
	s, conn, _ := newTestSession(t)
	register(t, s, provisionerApp(&Provisioner{}))

	_, err := conn.Call("/app/application", ProvisionerInterface, "AddNodeComplete", []byte{0x01}, uint16(0x00bd), uint8(1))
	requireReqError(t, err, ReqInvalidValueLength)

	device := uuid.New()
	_, err = conn.Call("/app/application", ProvisionerInterface, "AddNodeComplete", device[:], uint16(0xC000), uint8(1))
	requireReqError(t, err, ReqFailed)

	_, err = conn.Call("/app/application", ProvisionerInterface, "AddNodeFailed", []byte{}, "bad-pdu")
	requireReqError(t, err, ReqInvalidValueLength)
}

func TestProvisionerEventsDroppedWhenFull(t *testing.T) {
	s, conn, _ := newTestSession(t)
	control, handle := NewProvisionerControl(1)
	register(t, s, provisionerApp(&Provisioner{Control: handle}))

	for i := 0; i < 3; i++ {
		_, err := conn.Call("/app/application", ProvisionerInterface, "ScanResult", int16(-70), []byte{0x01}, map[string]dbus.Variant{})
		require.NoError(t, err)
	}

	assert.Len(t, control.Events(), 1)
}

func TestSequentialAllocator(t *testing.T) {
	a := NewSequentialAllocator(0x7FFD, 2)

	net, addr, err := a.Allocate(t.Context(), 2)
	require.NoError(t, err)
	assert.Equal(t, wire.NetKeyIndex(2), net)
	assert.Equal(t, wire.UnicastAddress(0x7FFD), addr)

	_, addr, err = a.Allocate(t.Context(), 1)
	require.NoError(t, err)
	assert.Equal(t, wire.UnicastAddress(0x7FFF), addr)

	_, _, err = a.Allocate(t.Context(), 1)
	assert.ErrorIs(t, err, wire.ErrInvalidAddress)

	_, _, err = a.Allocate(t.Context(), 0)
	assert.True(t, errors.Is(err, ReqInvalidValueLength))
}

func TestProvisionerEventKindString(t *testing.T) {
	assert.Equal(t, "node_added", EventNodeAdded.String())
	assert.Equal(t, "add_failed", EventAddFailed.String())
	assert.Equal(t, "scan_result", EventScanResult.String())
	assert.Equal(t, "unknown(9)", ProvisionerEventKind(9).String())
}
