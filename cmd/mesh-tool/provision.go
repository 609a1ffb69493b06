package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chzyer/readline"
	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/btmesh-go/mesh-go/pkg/examples"
	"github.com/btmesh-go/mesh-go/pkg/mesh"
	"github.com/btmesh-go/mesh-go/pkg/model"
	"github.com/btmesh-go/mesh-go/pkg/wire"
)

type provisionOptions struct {
	token        string
	root         string
	device       string
	scan         uint16
	follow       bool
	firstUnicast uint16
	netIndex     uint16
}

func newProvisionCommand() *cobra.Command {
	var opts provisionOptions

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Provision a device or scan for unprovisioned devices",
		Long: `Registers a provisioner application, attaches it to the node and either
adds the device given by --uuid to the network or scans for unprovisioned
devices for --scan seconds. Prompts of the daemon's provisioning agent are
answered on the terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.device == "") == (opts.scan == 0) {
				return errors.New("exactly one of --uuid and --scan is required")
			}
			return runProvision(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.token, "token", "", "Node token (16 hex digits)")
	cmd.Flags().StringVar(&opts.root, "root", "/mesh/cfgclient", "Root object path of the application")
	cmd.Flags().StringVar(&opts.device, "uuid", "", "UUID of the device to provision")
	cmd.Flags().Uint16Var(&opts.scan, "scan", 0, "Scan for unprovisioned devices for this many seconds")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "Keep printing provisioner events after provisioning")
	cmd.Flags().Uint16Var(&opts.firstUnicast, "first-unicast", uint16(mesh.DefaultFirstUnicast), "First unicast address assigned to new nodes")
	cmd.Flags().Uint16Var(&opts.netIndex, "net-index", 0, "Network key index for new nodes")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runProvision(ctx context.Context, cmd *cobra.Command, opts provisionOptions) error {
	var device uuid.UUID
	if opts.device != "" {
		var err error
		if device, err = uuid.Parse(opts.device); err != nil {
			return fmt.Errorf("invalid --uuid: %w", err)
		}
	}
	first, err := wire.NewUnicastAddress(opts.firstUnicast)
	if err != nil {
		return err
	}
	netIndex, err := wire.NewNetKeyIndex(opts.netIndex)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(ctx)
	defer stop()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	rt, err := openRuntime(ctx)
	if err != nil {
		return err
	}
	defer closeRuntime(rt)

	events, eventsHandle := mesh.NewProvisionerControl(mesh.DefaultProvisionerEvents)
	root := dbus.ObjectPath(opts.root)
	app := mesh.Application{
		Path: applicationPath(root),
		Elements: []mesh.Element{{
			Path:   elementPath(root, 0),
			Models: []model.Model{model.ConfigurationServer, model.ConfigurationClient},
		}},
		Provisioner: &mesh.Provisioner{
			Control:       eventsHandle,
			ProvisionData: mesh.NewSequentialAllocator(first, netIndex).Allocate,
		},
		Agent: newTerminalAgent(rl, rl.Stdout()),
	}

	handle, node, err := rt.register(ctx, root, app, opts.token)
	if err != nil {
		return err
	}
	defer handle.Unregister()

	out := cmd.OutOrStdout()
	driver := examples.NewProvisionerDriver(node.Management(), events, logger)

	if opts.scan > 0 {
		scanCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.scan)*time.Second)
		defer cancel()
		return driver.Scan(scanCtx, opts.scan, func(ev mesh.ProvisionerEvent) { printProvisionerEvent(out, ev) })
	}

	added, err := driver.Provision(ctx, device)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Provisioned %s at %s (%d elements)\n", added.Device, added.Unicast.String(), added.Count)
	if !opts.follow {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return printProvisionerEvents(gctx, out, events) })
	g.Go(func() error { return watchHandle(gctx, handle) })
	return g.Wait()
}
