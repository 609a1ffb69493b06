package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies the bus session that captured the event (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction indicates message flow relative to the application.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// ObjectPath is the D-Bus object the event concerns, e.g. an element.
	ObjectPath string `cbor:"6,keyasint,omitempty"`

	// Source is the unicast address of the sender (inbound messages).
	Source uint16 `cbor:"7,keyasint,omitempty"`

	// Destination is the mesh destination, as printed by wire.Address.
	Destination string `cbor:"8,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Message     *MessageEvent     `cbor:"10,keyasint,omitempty"` // Access messages
	Call        *CallEvent        `cbor:"11,keyasint,omitempty"` // Daemon method calls
	StateChange *StateChangeEvent `cbor:"12,keyasint,omitempty"` // Registration lifecycle
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates a message from the daemon.
	DirectionIn Direction = 0
	// DirectionOut indicates a message to the daemon.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which layer captured the event.
type Layer uint8

const (
	// LayerBus is the D-Bus method call layer.
	LayerBus Layer = 0
	// LayerAccess is the access message layer (opcode and parameters).
	LayerAccess Layer = 1
	// LayerApplication is the application registration layer.
	LayerApplication Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerBus:
		return "BUS"
	case LayerAccess:
		return "ACCESS"
	case LayerApplication:
		return "APPLICATION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates an access message.
	CategoryMessage Category = 0
	// CategoryCall indicates a method call from or to the daemon.
	CategoryCall Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryCall:
		return "CALL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// MessageEvent captures an access message.
type MessageEvent struct {
	// Opcode is the printed opcode, e.g. "0x8231".
	Opcode string `cbor:"1,keyasint"`

	// KeyIndex is the application key index the message was secured with.
	KeyIndex uint16 `cbor:"2,keyasint"`

	// Parameters are the raw message parameters.
	Parameters []byte `cbor:"3,keyasint,omitempty"`

	// Size is the access payload size (opcode and parameters).
	Size int `cbor:"4,keyasint"`

	// Model is the model that handled or sent the message, if known.
	Model string `cbor:"5,keyasint,omitempty"`

	// Method is the D-Bus method carrying the message (MessageReceived,
	// Publish or Send).
	Method string `cbor:"6,keyasint,omitempty"`

	// Delivery is how long an inbound message waited for its consumer.
	// Stored as nanoseconds.
	Delivery *time.Duration `cbor:"7,keyasint,omitempty"`
}

// CallEvent captures a method call between the application and the daemon
// that is not an access message.
type CallEvent struct {
	// Interface is the D-Bus interface, e.g. org.bluez.mesh.Provisioner1.
	Interface string `cbor:"1,keyasint"`

	// Method is the method name.
	Method string `cbor:"2,keyasint"`

	// Args is a printable summary of the arguments.
	Args string `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent captures application and node lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityApplication indicates an application registration change.
	StateEntityApplication StateEntity = 0
	// StateEntityNode indicates a node attach change.
	StateEntityNode StateEntity = 1
	// StateEntityProvisioning indicates a provisioning change.
	StateEntityProvisioning StateEntity = 2
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityApplication:
		return "APPLICATION"
	case StateEntityNode:
		return "NODE"
	case StateEntityProvisioning:
		return "PROVISIONING"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Name is the D-Bus error name returned to the daemon (if any).
	Name string `cbor:"3,keyasint,omitempty"`

	// Context describes what operation was being performed.
	Context string `cbor:"4,keyasint,omitempty"`
}
