package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/btmesh-go/mesh-go/internal/appconfig"
	"github.com/btmesh-go/mesh-go/pkg/mesh"
)

const defaultDefinition = `root: /mesh_receiver
elements:
  - models: [sensor-client, health-client]
`

func newReceiveCommand() *cobra.Command {
	var (
		token  string
		config string
	)

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Register an application from a definition file and print what it receives",
		Long: `Registers the application described by a YAML definition, attaches it to
the node and prints every message its elements receive. Without --config a
single element with a Sensor Client and a Health Client is registered at
/mesh_receiver.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loadDefinition(config)
			if err != nil {
				return err
			}
			app, err := def.Build(appconfig.NewRegistry())
			if err != nil {
				return err
			}
			controls := attachControls(&app)

			var events *mesh.ProvisionerControl
			if app.Provisioner != nil {
				var h *mesh.ProvisionerControlHandle
				events, h = mesh.NewProvisionerControl(mesh.DefaultProvisionerEvents)
				app.Provisioner.Control = h
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			handle, _, err := rt.register(ctx, def.RootPath(), app, token)
			if err != nil {
				return err
			}
			defer handle.Unregister()

			out := &syncWriter{w: cmd.OutOrStdout()}
			g, gctx := errgroup.WithContext(ctx)
			for i, control := range controls {
				element := app.Elements[i]
				g.Go(func() error { return receiveLoop(gctx, out, element, control) })
			}
			if events != nil {
				g.Go(func() error { return printProvisionerEvents(gctx, out, events) })
			}
			g.Go(func() error { return watchHandle(gctx, handle) })
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Node token (16 hex digits)")
	cmd.Flags().StringVar(&config, "config", "", "Application definition file (YAML)")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func loadDefinition(file string) (*appconfig.Definition, error) {
	if file == "" {
		return appconfig.Parse([]byte(defaultDefinition))
	}
	return appconfig.Load(file)
}

// attachControls gives every element of app a control and returns the
// receiving ends in element order.
func attachControls(app *mesh.Application) []*mesh.ElementControl {
	controls := make([]*mesh.ElementControl, len(app.Elements))
	for i := range app.Elements {
		control, handle := mesh.NewElementControl()
		app.Elements[i].Control = handle
		controls[i] = control
	}
	return controls
}

// receiveLoop prints the messages of one element until its control is
// closed or ctx is done.
func receiveLoop(ctx context.Context, w io.Writer, element mesh.Element, control *mesh.ElementControl) error {
	for {
		msg, err := control.Recv(ctx)
		if errors.Is(err, mesh.ErrControlClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		printMessage(w, element.Path, msg, element.Models)
	}
}

func printProvisionerEvents(ctx context.Context, w io.Writer, events *mesh.ProvisionerControl) error {
	for {
		ev, err := events.Recv(ctx)
		if errors.Is(err, mesh.ErrControlClosed) || errors.Is(err, context.Canceled) {
			return nil
		}
		if err != nil {
			return err
		}
		printProvisionerEvent(w, ev)
	}
}

func printProvisionerEvent(w io.Writer, ev mesh.ProvisionerEvent) {
	switch ev.Kind {
	case mesh.EventNodeAdded:
		fmt.Fprintf(w, "node added: %s unicast %s elements %d\n", ev.Device, ev.Unicast.String(), ev.Count)
	case mesh.EventAddFailed:
		fmt.Fprintf(w, "add failed: %s: %s\n", ev.Device, ev.Reason)
	case mesh.EventScanResult:
		fmt.Fprintf(w, "unprovisioned device: %s rssi %d\n", ev.Device, ev.RSSI)
	default:
		fmt.Fprintf(w, "%s\n", ev.Kind.String())
	}
}

// syncWriter serializes writes from the receive loops.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}
