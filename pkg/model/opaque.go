package model

import "github.com/btmesh-go/mesh-go/pkg/wire"

// Opaque is a model that only declares its identity. Messages of opaque
// models are handled by the daemon (e.g. the foundation models) or by the
// application directly, so Parse never claims an opcode.
type Opaque struct {
	ID           ModelIdentifier
	Subscription bool
	Publication  bool
}

// Identifier returns the model identifier.
func (o Opaque) Identifier() ModelIdentifier { return o.ID }

// SupportsSubscription reports whether subscriptions are accepted.
func (o Opaque) SupportsSubscription() bool { return o.Subscription }

// SupportsPublication reports whether the model publishes.
func (o Opaque) SupportsPublication() bool { return o.Publication }

// Parse never recognizes an opcode.
func (o Opaque) Parse(wire.Opcode, []byte) (Message, error) {
	return nil, nil
}

// Foundation models.
var (
	ConfigurationServer Model = Opaque{ID: ConfigurationServerID}
	ConfigurationClient Model = Opaque{ID: ConfigurationClientID}
	HealthServer        Model = Opaque{ID: HealthServerID, Publication: true}
	HealthClient        Model = Opaque{ID: HealthClientID, Subscription: true}
)

// Compile-time interface satisfaction check.
var _ Model = Opaque{}
