package mesh

import (
	"context"
	"sync"
	"time"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// addressCell holds the unicast address of an element. It is written once,
// when the application is attached to a node.
type addressCell struct {
	mu    sync.Mutex
	addr  wire.UnicastAddress
	ready chan struct{}
	set   bool
}

func newAddressCell() *addressCell {
	return &addressCell{ready: make(chan struct{})}
}

// store sets the address unless it was set before. It reports whether the
// value was stored.
func (c *addressCell) store(addr wire.UnicastAddress) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.set {
		return false
	}
	c.addr = addr
	c.set = true
	close(c.ready)
	return true
}

func (c *addressCell) load() (wire.UnicastAddress, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.set {
		return 0, ErrNotRegistered
	}
	return c.addr, nil
}

// ElementControl receives the messages of an element.
type ElementControl struct {
	messages <-chan ElementMessage
	address  *addressCell
}

// ElementControlHandle is stored in Element.Control to connect the element
// to its ElementControl once registered.
type ElementControlHandle struct {
	messages chan ElementMessage
	address  *addressCell

	mu       sync.RWMutex
	done     chan struct{}
	doneOnce sync.Once
	closed   bool
	bound    bool
}

// NewElementControl creates an ElementControl and its handle. The channel
// between them holds one message.
func NewElementControl() (*ElementControl, *ElementControlHandle) {
	messages := make(chan ElementMessage, 1)
	address := newAddressCell()
	return &ElementControl{messages: messages, address: address},
		&ElementControlHandle{messages: messages, address: address, done: make(chan struct{})}
}

// Messages returns the channel of inbound messages. It is closed when the
// application owning the element is unregistered.
func (c *ElementControl) Messages() <-chan ElementMessage {
	return c.messages
}

// Recv waits for the next message.
func (c *ElementControl) Recv(ctx context.Context) (ElementMessage, error) {
	select {
	case msg, ok := <-c.messages:
		if !ok {
			return ElementMessage{}, ErrControlClosed
		}
		return msg, nil
	case <-ctx.Done():
		return ElementMessage{}, ctx.Err()
	}
}

// Address returns the unicast address assigned to the element, or
// ErrNotRegistered before the application was attached.
func (c *ElementControl) Address() (wire.UnicastAddress, error) {
	return c.address.load()
}

// WaitAddress waits until the element has an address.
func (c *ElementControl) WaitAddress(ctx context.Context) (wire.UnicastAddress, error) {
	select {
	case <-c.address.ready:
		return c.address.load()
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// bind marks the handle as used by a registration. A handle serves one
// element of one registration.
func (h *ElementControlHandle) bind() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed || h.bound {
		return ErrControlClosed
	}
	h.bound = true
	return nil
}

// unbind releases a binding that did not lead to a registration.
func (h *ElementControlHandle) unbind() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.bound = false
}

// deliver sends msg to the consumer, waiting at most timeout. It returns
// how long the send waited.
func (h *ElementControlHandle) deliver(ctx context.Context, msg ElementMessage, timeout time.Duration) (time.Duration, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return 0, ErrControlClosed
	}

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case h.messages <- msg:
		return time.Since(start), nil
	case <-timer.C:
		return time.Since(start), ReqInProgress
	case <-h.done:
		return time.Since(start), ErrControlClosed
	case <-ctx.Done():
		return time.Since(start), ReqInProgress
	}
}

// close ends the message stream. Pending deliveries fail.
func (h *ElementControlHandle) close() {
	// Wake pending deliveries before taking the write lock they hold.
	h.doneOnce.Do(func() { close(h.done) })

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	close(h.messages)
}
