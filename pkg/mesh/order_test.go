package mesh

import (
	"context"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btmesh-go/mesh-go/internal/testharness/mock"
)

func incomingCall(t *testing.T, serial uint32, path dbus.ObjectPath, iface, method string) *dbus.Message {
	t.Helper()
	msg, err := mock.NewCallMessage(serial, path, iface, method)
	require.NoError(t, err)
	return msg
}

func TestInboundOrderReleasesInArrivalOrder(t *testing.T) {
	o := newInboundOrder()
	require.True(t, o.open("/app/ele00"))
	assert.False(t, o.open("/app/ele00"))

	first := incomingCall(t, 1, "/app/ele00", ElementInterface, "MessageReceived")
	second := incomingCall(t, 2, "/app/ele00", ElementInterface, "MessageReceived")
	o.intercept(first)
	o.intercept(second)
	assert.Equal(t, 2, o.pending("/app/ele00"))

	waiting := make(chan func(), 1)
	go func() {
		done, err := o.wait(t.Context(), "/app/ele00", second)
		assert.NoError(t, err)
		waiting <- done
	}()

	select {
	case <-waiting:
		t.Fatal("second call ran before the first finished")
	case <-time.After(20 * time.Millisecond):
	}

	done, err := o.wait(t.Context(), "/app/ele00", first)
	require.NoError(t, err)
	done()

	select {
	case done := <-waiting:
		done()
	case <-time.After(time.Second):
		t.Fatal("second call not released")
	}
	assert.Zero(t, o.pending("/app/ele00"))
}

func TestInboundOrderIgnoresOtherCalls(t *testing.T) {
	o := newInboundOrder()
	o.open("/app/ele00")

	tests := []struct {
		name string
		msg  *dbus.Message
	}{
		{"ClosedPath", incomingCall(t, 1, "/app/ele01", ElementInterface, "MessageReceived")},
		{"OtherInterface", incomingCall(t, 2, "/app/ele00", ApplicationInterface, "JoinComplete")},
		{"OtherMethod", incomingCall(t, 3, "/app/ele00", ElementInterface, "Ping")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o.intercept(tt.msg)
			assert.Zero(t, o.pending("/app/ele00"))

			// Unsequenced calls pass straight through.
			done, err := o.wait(t.Context(), "/app/ele00", tt.msg)
			require.NoError(t, err)
			done()
		})
	}
}

func TestInboundOrderWaitTimeout(t *testing.T) {
	o := newInboundOrder()
	o.open("/app/ele00")
	first := incomingCall(t, 1, "/app/ele00", ElementInterface, "MessageReceived")
	second := incomingCall(t, 2, "/app/ele00", ElementInterface, "MessageReceived")
	third := incomingCall(t, 3, "/app/ele00", ElementInterface, "MessageReceived")
	for _, msg := range []*dbus.Message{first, second, third} {
		o.intercept(msg)
	}

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err := o.wait(ctx, "/app/ele00", second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, o.pending("/app/ele00"))

	// The abandoned call does not hold up the one behind it.
	done, err := o.wait(t.Context(), "/app/ele00", first)
	require.NoError(t, err)
	done()

	done, err = o.wait(t.Context(), "/app/ele00", third)
	require.NoError(t, err)
	done()
	assert.Zero(t, o.pending("/app/ele00"))
}

func TestInboundOrderCloseReleasesWaiters(t *testing.T) {
	o := newInboundOrder()
	o.open("/app/ele00")
	first := incomingCall(t, 1, "/app/ele00", ElementInterface, "MessageReceived")
	second := incomingCall(t, 2, "/app/ele00", ElementInterface, "MessageReceived")
	o.intercept(first)
	o.intercept(second)

	released := make(chan error, 1)
	go func() {
		done, err := o.wait(t.Context(), "/app/ele00", second)
		if err == nil {
			done()
		}
		released <- err
	}()

	o.close("/app/ele00")
	select {
	case err := <-released:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("close did not release the waiting call")
	}
	assert.Zero(t, o.pending("/app/ele00"))

	// A new registration of the same path starts with an empty queue.
	assert.True(t, o.open("/app/ele00"))
	assert.Zero(t, o.pending("/app/ele00"))
}
