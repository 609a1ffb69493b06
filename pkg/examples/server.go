package examples

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/godbus/dbus/v5"

	"github.com/btmesh-go/mesh-go/pkg/mesh"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/sensor"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// DefaultPublishInterval is the period of SensorServer publications.
const DefaultPublishInterval = 16 * time.Second

// Publisher publishes model messages from an element. *mesh.Node
// implements it.
type Publisher interface {
	Publish(ctx context.Context, elementPath dbus.ObjectPath, m model.Model, msg model.Message) error
}

// Sender sends model messages to an address. *mesh.Node implements it.
type Sender interface {
	Send(ctx context.Context, elementPath dbus.ObjectPath, destination wire.Address, keyIndex wire.AppKeyIndex, msg model.Message) error
}

// Reading returns the current temperature.
type Reading func() Temperature

// ServerConfig configures a SensorServer.
type ServerConfig struct {
	// Element is the path of the element hosting the sensor server.
	Element dbus.ObjectPath

	// Interval between publications. Defaults to DefaultPublishInterval.
	Interval time.Duration

	// Reading returns the value to publish. Defaults to a constant 21.0°C.
	Reading Reading

	// Clock drives the publication ticker. Defaults to the wall clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// SensorServer publishes temperature readings periodically and on demand.
type SensorServer struct {
	config  ServerConfig
	model   *sensor.Server
	trigger chan struct{}

	mu        sync.Mutex
	published int
}

// NewSensorServer creates a sensor server.
func NewSensorServer(config ServerConfig) *SensorServer {
	if config.Interval <= 0 {
		config.Interval = DefaultPublishInterval
	}
	if config.Reading == nil {
		config.Reading = func() Temperature { return Temperature{Celsius: 21.0} }
	}
	if config.Clock == nil {
		config.Clock = clock.New()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &SensorServer{
		config:  config,
		model:   sensor.NewServer(TemperatureConfig()),
		trigger: make(chan struct{}, 1),
	}
}

// Model returns the sensor server model to place on the element.
func (s *SensorServer) Model() *sensor.Server {
	return s.model
}

// Element returns the element for registration.
func (s *SensorServer) Element(control *mesh.ElementControlHandle) mesh.Element {
	return mesh.Element{
		Path:    s.config.Element,
		Models:  []model.Model{s.model},
		Control: control,
	}
}

// Trigger requests an immediate publication. Requests made while one is
// pending are merged.
func (s *SensorServer) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Published returns the number of successful publications.
func (s *SensorServer) Published() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published
}

// status returns a Sensor Status carrying reading.
func (s *SensorServer) status(reading Temperature) sensor.Status {
	return sensor.NewStatus(s.model.Config, &reading)
}

// Run publishes a reading every interval and on each Trigger until ctx is
// done. Publication failures are logged.
func (s *SensorServer) Run(ctx context.Context, pub Publisher) error {
	ticker := s.config.Clock.Ticker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-s.trigger:
		}
		s.publish(ctx, pub)
	}
}

func (s *SensorServer) publish(ctx context.Context, pub Publisher) {
	reading := s.config.Reading()
	if err := pub.Publish(ctx, s.config.Element, s.model, s.status(reading)); err != nil {
		s.config.Logger.Warn("sensor server: publish failed", "element", s.config.Element, "error", err)
		return
	}

	s.mu.Lock()
	s.published++
	s.mu.Unlock()
	s.config.Logger.Info("sensor server: published", "element", s.config.Element, "reading", reading.Celsius)
}

// Serve answers Sensor Get and Sensor Descriptor Get requests received by
// the element until the control is closed or ctx is done.
func (s *SensorServer) Serve(ctx context.Context, control *mesh.ElementControl, sender Sender) error {
	for {
		msg, err := control.Recv(ctx)
		if errors.Is(err, mesh.ErrControlClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		_, parsed, err := msg.Parse(s.model)
		if err != nil {
			s.config.Logger.Warn("sensor server: malformed request", "source", msg.Source.String(), "error", err)
			continue
		}

		var reply model.Message
		switch req := parsed.(type) {
		case sensor.Get:
			if req.PropertyID != 0 && req.PropertyID != PropertyTemperature {
				reply = sensor.Status{Unknown: req.PropertyID}
				break
			}
			reply = s.status(s.config.Reading())
		case sensor.DescriptorGet:
			reply = s.model.Describe(req)
		default:
			s.config.Logger.Debug("sensor server: ignoring message", "opcode", msg.Payload.Opcode.String())
			continue
		}

		dst := wire.NewAddress(uint16(msg.Source))
		if err := sender.Send(ctx, s.config.Element, dst, msg.KeyIndex, reply); err != nil {
			s.config.Logger.Warn("sensor server: reply failed", "destination", dst.String(), "error", err)
		}
	}
}
