// Command mesh-tool runs Bluetooth mesh applications against the BlueZ
// mesh daemon and inspects the protocol logs they write.
//
// Usage:
//
//	mesh-tool <command> [flags]
//
// Examples:
//
//	# Publish a temperature every 16 seconds and on enter
//	mesh-tool sensor-server --token 0123456789abcdef
//
//	# Print temperatures published to the client element
//	mesh-tool sensor-client --token fedcba9876543210
//
//	# Provision a device and record the protocol exchange
//	mesh-tool provision --token 0123456789abcdef --uuid 5f4e... --protocol-log prov.mlog
//
//	# Inspect the recording
//	mesh-tool log view --category message prov.mlog
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/btmesh-go/mesh-go/pkg/mesh"
)

var (
	// Global flags
	logLevel        string
	protocolLog     string
	metricsAddr     string
	serviceName     string
	callTimeout     time.Duration
	deliveryTimeout time.Duration

	logger *slog.Logger
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mesh-tool",
		Short: "Bluetooth mesh applications for the BlueZ mesh daemon",
		Long: `mesh-tool registers mesh applications with the BlueZ mesh daemon over
D-Bus, attaches them to provisioned nodes and exchanges sensor messages.
It can also provision new devices and inspect protocol log files.`,
		PersistentPreRunE: initializeLogger,
		SilenceUsage:      true,
	}

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&protocolLog, "protocol-log", "", "Write protocol events to this file (CBOR)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9090)")
	rootCmd.PersistentFlags().StringVar(&serviceName, "service", mesh.ServiceName, "Bus name of the mesh daemon")
	rootCmd.PersistentFlags().DurationVar(&callTimeout, "call-timeout", mesh.DefaultCallTimeout, "Timeout of calls to the daemon")
	rootCmd.PersistentFlags().DurationVar(&deliveryTimeout, "delivery-timeout", mesh.DefaultDeliveryTimeout, "How long a received message waits for its consumer")

	rootCmd.AddCommand(newReceiveCommand())
	rootCmd.AddCommand(newSensorServerCommand())
	rootCmd.AddCommand(newSensorClientCommand())
	rootCmd.AddCommand(newProvisionCommand())
	rootCmd.AddCommand(newModelsCommand())
	rootCmd.AddCommand(newLogCommand())

	return rootCmd
}

// initializeLogger sets up the operational logger from --log-level.
func initializeLogger(cmd *cobra.Command, args []string) error {
	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}
	logger = slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", s)
	}
}
