package sensor

import (
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Sensor model identifiers.
var (
	ServerID      = model.SIG(0x1100)
	SetupServerID = model.SIG(0x1101)
	ClientID      = model.SIG(0x1102)
)

// Server is the Sensor Server model. It receives Get and DescriptorGet
// requests and publishes Status messages.
type Server struct {
	Config Config
}

// NewServer creates a sensor server exposing the sensors of cfg.
func NewServer(cfg Config) *Server {
	return &Server{Config: cfg}
}

// Identifier returns ServerID.
func (s *Server) Identifier() model.ModelIdentifier { return ServerID }

// SupportsSubscription returns true.
func (s *Server) SupportsSubscription() bool { return true }

// SupportsPublication returns true.
func (s *Server) SupportsPublication() bool { return true }

// Parse decodes Get and DescriptorGet requests.
func (s *Server) Parse(opcode wire.Opcode, params []byte) (model.Message, error) {
	switch opcode {
	case OpcodeGet:
		property, err := parseOptionalProperty(params)
		if err != nil {
			return nil, err
		}
		return Get{PropertyID: property}, nil
	case OpcodeDescriptorGet:
		property, err := parseOptionalProperty(params)
		if err != nil {
			return nil, err
		}
		return DescriptorGet{PropertyID: property}, nil
	default:
		return nil, nil
	}
}

// Describe answers a DescriptorGet from the server configuration.
func (s *Server) Describe(req DescriptorGet) DescriptorStatus {
	if req.PropertyID == 0 {
		return DescriptorStatus{Descriptors: append([]Descriptor(nil), s.Config.Descriptors...)}
	}
	d, ok := s.Config.Descriptor(req.PropertyID)
	if !ok {
		return DescriptorStatus{Unknown: req.PropertyID}
	}
	return DescriptorStatus{Descriptors: []Descriptor{d}}
}

// Client is the Sensor Client model. It receives Status and
// DescriptorStatus messages.
type Client struct {
	Config Config
}

// NewClient creates a sensor client decoding readings with cfg.
func NewClient(cfg Config) *Client {
	return &Client{Config: cfg}
}

// Identifier returns ClientID.
func (c *Client) Identifier() model.ModelIdentifier { return ClientID }

// SupportsSubscription returns true.
func (c *Client) SupportsSubscription() bool { return true }

// SupportsPublication returns true.
func (c *Client) SupportsPublication() bool { return true }

// Parse decodes Status and DescriptorStatus messages.
func (c *Client) Parse(opcode wire.Opcode, params []byte) (model.Message, error) {
	switch opcode {
	case OpcodeStatus:
		status, err := parseStatus(c.Config, params)
		if err != nil {
			return nil, err
		}
		return status, nil
	case OpcodeDescriptorStatus:
		status, err := parseDescriptorStatus(params)
		if err != nil {
			return nil, err
		}
		return status, nil
	default:
		return nil, nil
	}
}

// Compile-time interface satisfaction checks.
var (
	_ model.Model = (*Server)(nil)
	_ model.Model = (*Client)(nil)
)
