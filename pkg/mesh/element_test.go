package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btmesh-go/mesh-go/internal/testharness/mock"
	"github.com/btmesh-go/mesh-go/pkg/log"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/sensor"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// sensorGet is a Sensor Get for the temperature property.
var sensorGet = []byte{0x82, 0x31, 0x4F, 0x00}

func receive(conn *mock.Bus, path dbus.ObjectPath, source uint16, destination interface{}, data []byte) error {
	_, err := conn.Call(path, ElementInterface, "MessageReceived",
		source, uint16(0), dbus.MakeVariant(destination), data)
	return err
}

func requireReqError(t *testing.T, err error, want ReqError) {
	t.Helper()
	var dbusErr *dbus.Error
	require.ErrorAs(t, err, &dbusErr)
	assert.Equal(t, want.DBusName(), dbusErr.Name)
}

func TestMessageReceivedDelivers(t *testing.T) {
	s, conn, rec := newTestSession(t)
	control, handle := NewElementControl()
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	require.NoError(t, receive(conn, "/app/ele00", 0x0042, uint16(0xC000), sensorGet))

	ctx, cancel := context.WithTimeout(t.Context(), time.Second)
	defer cancel()
	msg, err := control.Recv(ctx)
	require.NoError(t, err)

	assert.Equal(t, wire.UnicastAddress(0x0042), msg.Source)
	assert.Equal(t, wire.AddressGroup, msg.Destination.Kind())
	assert.Equal(t, wire.AppKeyIndex(0), msg.KeyIndex)
	assert.Equal(t, wire.TwoOctet(0x82, 0x31), msg.Payload.Opcode)

	server := sensor.NewServer(sensor.Config{})
	m, parsed, err := msg.Parse(server)
	require.NoError(t, err)
	assert.Equal(t, sensor.ServerID, m.Identifier())
	assert.Equal(t, sensor.Get{PropertyID: 0x004F}, parsed)

	events := rec.byCategory(log.CategoryMessage)
	require.Len(t, events, 1)
	assert.Equal(t, log.DirectionIn, events[0].Direction)
	assert.Equal(t, uint16(0x0042), events[0].Source)
	assert.Equal(t, "0x8231", events[0].Message.Opcode)
	assert.Equal(t, "SIG(0x1100)", events[0].Message.Model)
	assert.NotNil(t, events[0].Message.Delivery)
}

func TestMessageReceivedLabelDestination(t *testing.T) {
	s, conn, _ := newTestSession(t)
	control, handle := NewElementControl()
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	label := uuid.MustParse("00112233-4455-6677-8899-aabbccddeeff")
	require.NoError(t, receive(conn, "/app/ele00", 0x0042, label[:], sensorGet))

	msg, err := control.Recv(t.Context())
	require.NoError(t, err)
	got, ok := msg.Destination.Label()
	require.True(t, ok)
	assert.Equal(t, label, got)
	assert.Equal(t, wire.AddressVirtual, msg.Destination.Kind())
}

func TestMessageReceivedRejects(t *testing.T) {
	tests := []struct {
		name        string
		source      uint16
		keyIndex    uint16
		destination interface{}
		data        []byte
		want        ReqError
	}{
		{"UnassignedSource", 0x0000, 0, uint16(0x0001), sensorGet, ReqFailed},
		{"GroupSource", 0xC000, 0, uint16(0x0001), sensorGet, ReqFailed},
		{"KeyIndexOutOfRange", 0x0042, 0x1000, uint16(0x0001), sensorGet, ReqFailed},
		{"ShortLabel", 0x0042, 0, []byte{0x01, 0x02}, sensorGet, ReqFailed},
		{"WrongDestinationType", 0x0042, 0, "nope", sensorGet, ReqFailed},
		{"EmptyPayload", 0x0042, 0, uint16(0x0001), nil, ReqInvalidValueLength},
		{"RFUOpcode", 0x0042, 0, uint16(0x0001), []byte{0x7F}, ReqFailed},
		{"PayloadTooLong", 0x0042, 0, uint16(0x0001), make([]byte, wire.MaxAccessPayloadSize+1), ReqInvalidValueLength},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, conn, rec := newTestSession(t)
			control, handle := NewElementControl()
			register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

			_, err := conn.Call("/app/ele00", ElementInterface, "MessageReceived",
				tt.source, tt.keyIndex, dbus.MakeVariant(tt.destination), tt.data)
			requireReqError(t, err, tt.want)

			select {
			case msg := <-control.Messages():
				t.Fatalf("unexpected message %+v", msg)
			default:
			}
			assert.Empty(t, rec.byCategory(log.CategoryMessage))
			assert.Len(t, rec.byCategory(log.CategoryError), 1)
		})
	}
}

func TestMessageReceivedWithoutConsumer(t *testing.T) {
	reg := newTestMetrics(t)
	s, conn, rec := newTestSession(t, func(c *Config) { c.Metrics = reg })
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", nil)}})

	done := make(chan error, 3)
	go func() {
		for i := 0; i < 3; i++ {
			done <- receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet)
		}
	}()

	for i := 0; i < 3; i++ {
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("routing without a consumer blocked")
		}
	}
	assert.Len(t, rec.byCategory(log.CategoryMessage), 3)
	assert.Equal(t, 3.0, counterValue(t, reg.dropped.WithLabelValues("no_consumer")))
}

func TestMessageReceivedWaitsForConsumer(t *testing.T) {
	s, conn, _ := newTestSession(t)
	control, handle := NewElementControl()
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	first := []byte{0x82, 0x31, 0x01, 0x00}
	second := []byte{0x82, 0x31, 0x02, 0x00}

	require.NoError(t, receive(conn, "/app/ele00", 0x0042, uint16(0x0001), first))

	done := make(chan error, 1)
	go func() { done <- receive(conn, "/app/ele00", 0x0042, uint16(0x0001), second) }()

	select {
	case err := <-done:
		t.Fatalf("second delivery returned before the first was drained: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	msg, err := control.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, first[2:], msg.Payload.Parameters)

	require.NoError(t, <-done)
	msg, err = control.Recv(t.Context())
	require.NoError(t, err)
	assert.Equal(t, second[2:], msg.Payload.Parameters)
}

func TestMessageReceivedKeepsOrderUnderConcurrentCalls(t *testing.T) {
	s, conn, rec := newTestSession(t)
	control, handle := NewElementControl()
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	// Every call runs on its own goroutine, as on a real connection.
	const n = 200
	replies := make([]<-chan mock.Reply, n)
	for i := range n {
		replies[i] = conn.Go("/app/ele00", ElementInterface, "MessageReceived",
			uint16(0x0042), uint16(0), dbus.MakeVariant(uint16(0x0001)), []byte{0x82, 0x31, byte(i), byte(i >> 8)})
	}

	for i := range n {
		if i%20 == 0 {
			time.Sleep(2 * time.Millisecond)
		}
		msg, err := control.Recv(t.Context())
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i), byte(i >> 8)}, msg.Payload.Parameters, "message %d out of order", i)
	}
	for i, r := range replies {
		assert.NoError(t, (<-r).Err, "call %d", i)
	}

	assert.Zero(t, s.order.pending("/app/ele00"))
	assert.Len(t, rec.byCategory(log.CategoryMessage), n)
}

func TestMessageReceivedQueuedCallTimesOut(t *testing.T) {
	s, conn, _ := newTestSession(t, func(c *Config) {
		c.CallTimeout = 50 * time.Millisecond
		c.DeliveryTimeout = time.Second
	})
	_, handle := NewElementControl()
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	// The first message fills the channel and the second waits for space,
	// holding the element's turn. The third never gets it.
	require.NoError(t, receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet))
	second := conn.Go("/app/ele00", ElementInterface, "MessageReceived",
		uint16(0x0042), uint16(0), dbus.MakeVariant(uint16(0x0001)), sensorGet)
	third := conn.Go("/app/ele00", ElementInterface, "MessageReceived",
		uint16(0x0042), uint16(0), dbus.MakeVariant(uint16(0x0001)), sensorGet)

	for _, r := range []<-chan mock.Reply{second, third} {
		select {
		case reply := <-r:
			requireReqError(t, reply.Err, ReqInProgress)
		case <-time.After(time.Second):
			t.Fatal("queued call was not bounded by the call timeout")
		}
	}
	assert.Zero(t, s.order.pending("/app/ele00"))
}

func TestMessageReceivedDeliveryTimeout(t *testing.T) {
	reg := newTestMetrics(t)
	s, conn, _ := newTestSession(t, func(c *Config) {
		c.DeliveryTimeout = 20 * time.Millisecond
		c.Metrics = reg
	})
	control, handle := NewElementControl()
	register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	require.NoError(t, receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet))
	err := receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet)
	requireReqError(t, err, ReqInProgress)
	assert.Equal(t, 1.0, counterValue(t, reg.deliveryTimeouts))

	// The first message is still queued.
	_, err = control.Recv(t.Context())
	require.NoError(t, err)
}

func TestControlClosedOnUnregister(t *testing.T) {
	s, conn, _ := newTestSession(t)
	control, handle := NewElementControl()
	h := register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	require.NoError(t, receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet))
	require.NoError(t, h.Unregister())

	// Queued messages remain readable.
	_, err := control.Recv(t.Context())
	require.NoError(t, err)

	_, err = control.Recv(t.Context())
	assert.ErrorIs(t, err, ErrControlClosed)

	_, err = handle.deliver(t.Context(), ElementMessage{}, time.Millisecond)
	assert.ErrorIs(t, err, ErrControlClosed)
}

func TestPendingDeliveryFailsOnUnregister(t *testing.T) {
	s, conn, _ := newTestSession(t)
	_, handle := NewElementControl()
	h := register(t, s, Application{Path: "/app/application", Elements: []Element{sensorElement("/app/ele00", handle)}})

	require.NoError(t, receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet))

	done := make(chan error, 1)
	go func() { done <- receive(conn, "/app/ele00", 0x0042, uint16(0x0001), sensorGet) }()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, h.Unregister())
	select {
	case err := <-done:
		requireReqError(t, err, ReqFailed)
	case <-time.After(time.Second):
		t.Fatal("pending delivery not released by unregister")
	}
}

func TestElementAddress(t *testing.T) {
	control, handle := NewElementControl()

	_, err := control.Address()
	assert.ErrorIs(t, err, ErrNotRegistered)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = control.WaitAddress(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	assert.True(t, handle.address.store(0x00bd))
	assert.False(t, handle.address.store(0x00be))

	addr, err := control.WaitAddress(t.Context())
	require.NoError(t, err)
	assert.Equal(t, wire.UnicastAddress(0x00bd), addr)
}

func TestElementProperties(t *testing.T) {
	e := &registeredElement{
		element: Element{
			Path: "/app/ele01",
			Models: []model.Model{
				model.Opaque{ID: model.SIG(0x0000)},
				model.Opaque{ID: model.Vendor(0x05F1, 0x0001), Publication: true},
			},
			Location: 0x0100,
		},
		index: 1,
	}

	props := e.properties()
	assert.Equal(t, uint8(1), props["Index"].Value())
	assert.Equal(t, uint16(0x0100), props["Location"].Value())

	sig := props["Models"].Value().([]modelConfig)
	require.Len(t, sig, 1)
	assert.Equal(t, uint16(0x0000), sig[0].ID)
	assert.Equal(t, false, sig[0].Options["Publish"].Value())

	vendor := props["VendorModels"].Value().([]vendorModelConfig)
	require.Len(t, vendor, 1)
	assert.Equal(t, uint16(0x05F1), vendor[0].Company)
	assert.Equal(t, uint16(0x0001), vendor[0].ID)
	assert.Equal(t, true, vendor[0].Options["Publish"].Value())
}
