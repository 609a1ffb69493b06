package mesh

import (
	"log/slog"
	"time"

	"github.com/btmesh-go/mesh-go/pkg/log"
)

// Daemon names.
const (
	ServiceName = "org.bluez.mesh"
	ServicePath = "/org/bluez/mesh"

	NetworkInterface        = "org.bluez.mesh.Network1"
	NodeInterface           = "org.bluez.mesh.Node1"
	ManagementInterface     = "org.bluez.mesh.Management1"
	ApplicationInterface    = "org.bluez.mesh.Application1"
	ElementInterface        = "org.bluez.mesh.Element1"
	ProvisionerInterface    = "org.bluez.mesh.Provisioner1"
	ProvisionAgentInterface = "org.bluez.mesh.ProvisionAgent1"
)

// Default timeouts.
const (
	DefaultCallTimeout     = 120 * time.Second
	DefaultDeliveryTimeout = 5 * time.Second
)

// Config configures a Session.
type Config struct {
	// Service is the bus name of the mesh daemon.
	Service string

	// CallTimeout bounds calls to the daemon that carry no deadline of
	// their own, and the handling of calls from the daemon.
	CallTimeout time.Duration

	// DeliveryTimeout bounds how long an inbound message waits for its
	// consumer before the daemon is answered with InProgress.
	DeliveryTimeout time.Duration

	// Logger for operational logging (optional).
	Logger *slog.Logger

	// ProtocolLogger for structured event capture (optional).
	ProtocolLogger log.Logger

	// Metrics collects session metrics (optional).
	Metrics *Metrics
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		Service:         ServiceName,
		CallTimeout:     DefaultCallTimeout,
		DeliveryTimeout: DefaultDeliveryTimeout,
	}
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Service == "" {
		c.Service = def.Service
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = def.CallTimeout
	}
	if c.DeliveryTimeout <= 0 {
		c.DeliveryTimeout = def.DeliveryTimeout
	}
	return c
}
