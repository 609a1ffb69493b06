package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chzyer/readline"
	"github.com/godbus/dbus/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/btmesh-go/mesh-go/pkg/examples"
	"github.com/btmesh-go/mesh-go/pkg/mesh"
	"github.com/btmesh-go/mesh-go/pkg/model"
)

// errUnregistered is returned by run loops when the application was
// removed while running.
var errUnregistered = errors.New("application unregistered")

func newSensorServerCommand() *cobra.Command {
	var (
		token       string
		root        string
		interval    time.Duration
		temperature float64
		interactive bool
	)

	cmd := &cobra.Command{
		Use:   "sensor-server",
		Short: "Publish temperature readings from a sensor server element",
		Long: `Registers an application with one element hosting a Sensor Server and
publishes the configured temperature periodically. In interactive mode
pressing enter publishes immediately.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			rootPath := dbus.ObjectPath(root)
			control, handle := mesh.NewElementControl()
			server := examples.NewSensorServer(examples.ServerConfig{
				Element:  elementPath(rootPath, 0),
				Interval: interval,
				Reading:  func() examples.Temperature { return examples.Temperature{Celsius: temperature} },
				Logger:   logger,
			})

			app := mesh.Application{
				Path:     applicationPath(rootPath),
				Elements: []mesh.Element{server.Element(handle)},
			}
			appHandle, node, err := rt.register(ctx, rootPath, app, token)
			if err != nil {
				return err
			}
			defer appHandle.Unregister()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return server.Run(gctx, node) })
			g.Go(func() error { return server.Serve(gctx, control, node) })
			g.Go(func() error { return watchHandle(gctx, appHandle) })
			if interactive {
				g.Go(func() error {
					return runConsole(gctx, cancel, "Press enter to publish, Ctrl-D to exit", func(string) { server.Trigger() })
				})
			}

			server.Trigger()
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Node token (16 hex digits)")
	cmd.Flags().StringVar(&root, "root", "/mesh_server", "Root object path of the application")
	cmd.Flags().DurationVar(&interval, "interval", examples.DefaultPublishInterval, "Publication interval")
	cmd.Flags().Float64Var(&temperature, "temperature", 21.0, "Published temperature in degrees Celsius")
	cmd.Flags().BoolVar(&interactive, "interactive", true, "Publish on enter")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func newSensorClientCommand() *cobra.Command {
	var (
		token string
		root  string
	)

	cmd := &cobra.Command{
		Use:   "sensor-client",
		Short: "Print temperature readings received by a sensor client element",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := openRuntime(ctx)
			if err != nil {
				return err
			}
			defer closeRuntime(rt)

			rootPath := dbus.ObjectPath(root)
			control, handle := mesh.NewElementControl()
			client := examples.NewSensorClient(elementPath(rootPath, 0), logger)

			app := mesh.Application{
				Path:     applicationPath(rootPath),
				Elements: []mesh.Element{client.Element(handle)},
			}
			appHandle, _, err := rt.register(ctx, rootPath, app, token)
			if err != nil {
				return err
			}
			defer appHandle.Unregister()

			out := cmd.OutOrStdout()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return client.Run(gctx, control, func(r examples.Report) { printReport(out, r) })
			})
			g.Go(func() error { return watchHandle(gctx, appHandle) })
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Node token (16 hex digits)")
	cmd.Flags().StringVar(&root, "root", "/mesh_client", "Root object path of the application")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func printReport(w io.Writer, r examples.Report) {
	fmt.Fprintf(w, "%s -> %s: %s\n", r.Source.String(), r.Destination.String(), r.Temperature.String())
}

// printMessage writes a received message, decoded by the first model that
// claims it, or its raw opcode and parameters.
func printMessage(w io.Writer, element dbus.ObjectPath, msg mesh.ElementMessage, models []model.Model) {
	m, parsed, err := msg.Parse(models...)
	switch {
	case err != nil:
		fmt.Fprintf(w, "%s: %s -> %s: malformed %s: %v\n", element, msg.Source.String(), msg.Destination.String(), msg.Payload.Opcode.String(), err)
	case m == nil:
		fmt.Fprintf(w, "%s: %s -> %s: opcode %s params %x\n", element, msg.Source.String(), msg.Destination.String(), msg.Payload.Opcode.String(), msg.Payload.Parameters)
	default:
		fmt.Fprintf(w, "%s: %s -> %s: %s %+v\n", element, msg.Source.String(), msg.Destination.String(), m.Identifier().String(), parsed)
	}
}

func applicationPath(root dbus.ObjectPath) dbus.ObjectPath {
	return childPath(root, "application")
}

func elementPath(root dbus.ObjectPath, index int) dbus.ObjectPath {
	return childPath(root, fmt.Sprintf("ele%02d", index))
}

func childPath(root dbus.ObjectPath, name string) dbus.ObjectPath {
	if root == "/" {
		return dbus.ObjectPath("/" + name)
	}
	return root + dbus.ObjectPath("/"+name)
}

// watchHandle returns errUnregistered when the application goes away
// before ctx is done.
func watchHandle(ctx context.Context, handle *mesh.ApplicationHandle) error {
	select {
	case <-handle.Done():
		return errUnregistered
	case <-ctx.Done():
		return nil
	}
}

// runConsole calls onLine for every line typed until EOF or ctx is done.
// EOF cancels the command.
func runConsole(ctx context.Context, cancel context.CancelFunc, banner string, onLine func(string)) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "mesh> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	stop := context.AfterFunc(ctx, func() { rl.Close() })
	defer stop()

	fmt.Fprintln(rl.Stdout(), banner)
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err != nil {
			cancel()
			return nil
		}
		onLine(line)
	}
}

// closeRuntime closes rt and logs failures.
func closeRuntime(rt *runtime) {
	if err := rt.Close(); err != nil {
		logger.Warn("Failed to close session", "error", err)
	}
}
