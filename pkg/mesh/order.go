package mesh

import (
	"context"
	"sync"

	"github.com/godbus/dbus/v5"
)

// messageReceivedSignature is the body signature of Element1.MessageReceived.
const messageReceivedSignature = "qqvay"

// callKey identifies an incoming call on a connection.
type callKey struct {
	sender string
	serial uint32
}

func callKeyOf(msg *dbus.Message) callKey {
	sender, _ := msg.Headers[dbus.FieldSender].Value().(string)
	return callKey{sender: sender, serial: msg.Serial()}
}

// ticket is the place of one MessageReceived call in its element's queue.
type ticket struct {
	key  callKey
	turn chan struct{}
	up   bool
}

func (t *ticket) release() {
	if !t.up {
		t.up = true
		close(t.turn)
	}
}

// inboundOrder hands MessageReceived calls to their element one at a time,
// in the order the connection read them. The bus runs every incoming call
// on its own goroutine; intercept runs on the reader goroutine and fixes
// the order before that happens.
type inboundOrder struct {
	mu     sync.Mutex
	queues map[dbus.ObjectPath][]*ticket
}

func newInboundOrder() *inboundOrder {
	return &inboundOrder{queues: make(map[dbus.ObjectPath][]*ticket)}
}

// open starts sequencing calls to the element at path. It reports false if
// path was already open.
func (o *inboundOrder) open(path dbus.ObjectPath) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.queues[path]; ok {
		return false
	}
	o.queues[path] = nil
	return true
}

// close stops sequencing calls to path and lets every waiting call go.
func (o *inboundOrder) close(path dbus.ObjectPath) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, t := range o.queues[path] {
		t.release()
	}
	delete(o.queues, path)
}

// intercept queues msg if it is a MessageReceived call for an open element.
// It is installed as the connection's incoming interceptor.
func (o *inboundOrder) intercept(msg *dbus.Message) {
	if msg.Type != dbus.TypeMethodCall {
		return
	}
	member, _ := msg.Headers[dbus.FieldMember].Value().(string)
	iface, _ := msg.Headers[dbus.FieldInterface].Value().(string)
	if member != "MessageReceived" || iface != ElementInterface {
		return
	}
	// A call with the wrong body never reaches the handler and would hold
	// the queue.
	if v, ok := msg.Headers[dbus.FieldSignature]; ok {
		if sig, _ := v.Value().(dbus.Signature); sig.String() != messageReceivedSignature {
			return
		}
	}
	path, _ := msg.Headers[dbus.FieldPath].Value().(dbus.ObjectPath)

	o.mu.Lock()
	defer o.mu.Unlock()
	queue, ok := o.queues[path]
	if !ok {
		return
	}
	t := &ticket{key: callKeyOf(msg), turn: make(chan struct{})}
	if len(queue) == 0 {
		t.release()
	}
	o.queues[path] = append(queue, t)
}

// wait blocks until the call described by msg is first in its element's
// queue. The returned function must be called once the call has been
// handled. Calls that were never queued pass straight through.
func (o *inboundOrder) wait(ctx context.Context, path dbus.ObjectPath, msg *dbus.Message) (func(), error) {
	key := callKeyOf(msg)

	o.mu.Lock()
	var t *ticket
	for _, q := range o.queues[path] {
		if q.key == key {
			t = q
			break
		}
	}
	o.mu.Unlock()
	if t == nil {
		return func() {}, nil
	}

	select {
	case <-t.turn:
		return func() { o.done(path, t) }, nil
	case <-ctx.Done():
		o.done(path, t)
		return nil, ctx.Err()
	}
}

// done removes t from the queue and gives the turn to the next call.
func (o *inboundOrder) done(path dbus.ObjectPath, t *ticket) {
	o.mu.Lock()
	defer o.mu.Unlock()

	queue := o.queues[path]
	for i, q := range queue {
		if q != t {
			continue
		}
		queue = append(queue[:i:i], queue[i+1:]...)
		if i == 0 && len(queue) > 0 {
			queue[0].release()
		}
		break
	}
	if _, ok := o.queues[path]; ok {
		o.queues[path] = queue
	}
}

// pending returns the number of calls queued for path.
func (o *inboundOrder) pending(path dbus.ObjectPath) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.queues[path])
}
