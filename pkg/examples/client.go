package examples

import (
	"context"
	"errors"
	"log/slog"

	"github.com/godbus/dbus/v5"

	"github.com/btmesh-go/mesh-go/pkg/mesh"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/sensor"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

// Report is a temperature reading received from a sensor server.
type Report struct {
	Source      wire.UnicastAddress
	Destination wire.Address
	Temperature Temperature
}

// SensorClient receives sensor status messages on an element.
type SensorClient struct {
	path   dbus.ObjectPath
	model  *sensor.Client
	logger *slog.Logger
}

// NewSensorClient creates a sensor client for the element at path.
func NewSensorClient(path dbus.ObjectPath, logger *slog.Logger) *SensorClient {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SensorClient{
		path:   path,
		model:  sensor.NewClient(TemperatureConfig()),
		logger: logger,
	}
}

// Element returns the element for registration.
func (c *SensorClient) Element(control *mesh.ElementControlHandle) mesh.Element {
	return mesh.Element{
		Path:    c.path,
		Models:  []model.Model{c.model},
		Control: control,
	}
}

// Run calls report for every temperature reading received on control until
// the control is closed or ctx is done. Messages that fail to decode are
// logged and skipped.
func (c *SensorClient) Run(ctx context.Context, control *mesh.ElementControl, report func(Report)) error {
	for {
		msg, err := control.Recv(ctx)
		if errors.Is(err, mesh.ErrControlClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}

		_, parsed, err := msg.Parse(c.model)
		if err != nil {
			c.logger.Warn("sensor client: malformed message",
				"source", msg.Source.String(), "opcode", msg.Payload.Opcode.String(), "error", err)
			continue
		}

		status, ok := parsed.(sensor.Status)
		if !ok {
			c.logger.Debug("sensor client: ignoring message",
				"source", msg.Source.String(), "opcode", msg.Payload.Opcode.String())
			continue
		}

		temp, ok := status.Data.(*Temperature)
		if !ok || len(status.Properties) == 0 {
			continue
		}
		report(Report{Source: msg.Source, Destination: msg.Destination, Temperature: *temp})
	}
}
