package model

import (
	"errors"

	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Model errors.
var (
	ErrModelNotFound  = errors.New("model not found")
	ErrDuplicateModel = errors.New("duplicate model name")
)

// Model is a typed message processor bound to a model identifier.
// Implementations must be safe for concurrent use; Parse is side-effect free.
type Model interface {
	// Identifier returns the model identifier. Constant per type.
	Identifier() ModelIdentifier

	// SupportsSubscription reports whether the model accepts subscriptions.
	SupportsSubscription() bool

	// SupportsPublication reports whether the model publishes messages.
	SupportsPublication() bool

	// Parse decodes parameters of a message with the given opcode.
	// It returns (nil, nil) if the opcode does not belong to this model.
	Parse(opcode wire.Opcode, parameters []byte) (Message, error)
}

// Message is a typed access message that can be sent by a model.
type Message interface {
	// Opcode returns the opcode of the message.
	Opcode() wire.Opcode

	// EmitParameters appends the message parameters to buf.
	EmitParameters(buf *wire.Buffer) error
}

// Encode writes the opcode and parameters of msg into a bounded buffer.
// Nothing is returned if either step overflows.
func Encode(msg Message) ([]byte, error) {
	buf := wire.NewBuffer(wire.MaxAccessPayloadSize)
	if err := msg.Opcode().Emit(buf); err != nil {
		return nil, err
	}
	if err := msg.EmitParameters(buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseAny offers a message to each model in order and returns the first
// model that recognizes the opcode, together with the decoded message.
func ParseAny(models []Model, opcode wire.Opcode, parameters []byte) (Model, Message, error) {
	for _, m := range models {
		msg, err := m.Parse(opcode, parameters)
		if err != nil {
			return m, nil, err
		}
		if msg != nil {
			return m, msg, nil
		}
	}
	return nil, nil, nil
}
