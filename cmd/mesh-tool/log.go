package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/btmesh-go/mesh-go/cmd/mesh-tool/commands"
)

func newLogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect protocol log files written with --protocol-log",
	}

	cmd.AddCommand(newLogViewCommand())
	cmd.AddCommand(newLogStatsCommand())
	cmd.AddCommand(newLogExportCommand())
	cmd.AddCommand(newLogFilterCommand())

	return cmd
}

// addFilterFlags binds the event filter flags shared by the log commands.
func addFilterFlags(cmd *cobra.Command, opts *commands.FilterOptions) {
	cmd.Flags().StringVar(&opts.SessionID, "session", "", "Only events of this session ID")
	cmd.Flags().StringVar(&opts.Layer, "layer", "", "Only events of this layer (bus, access, application)")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "Only events in this direction (in, out)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "Only events of this category (message, call, state, error)")
	cmd.Flags().StringVar(&opts.Path, "path", "", "Only events of this object path or below")
	cmd.Flags().StringVar(&opts.Opcode, "opcode", "", "Only messages with this opcode (e.g. 0x52)")
	cmd.Flags().StringVar(&opts.TimeStart, "since", "", "Only events at or after this time (RFC 3339)")
	cmd.Flags().StringVar(&opts.TimeEnd, "until", "", "Only events before this time (RFC 3339)")
}

func newLogViewCommand() *cobra.Command {
	var opts commands.FilterOptions

	cmd := &cobra.Command{
		Use:   "view <file.mlog>",
		Short: "View a log file in human-readable format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.Build()
			if err != nil {
				return err
			}
			return commands.RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	addFilterFlags(cmd, &opts)
	return cmd
}

func newLogStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.mlog>",
		Short: "Show statistics about a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}

func newLogExportCommand() *cobra.Command {
	var (
		opts   commands.FilterOptions
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export <file.mlog>",
		Short: "Export a log file to JSON lines or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.Build()
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return commands.RunExport(args[0], format, filter, w)
		},
	}
	addFilterFlags(cmd, &opts)
	cmd.Flags().StringVar(&format, "format", "jsonl", "Output format (jsonl, csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}

func newLogFilterCommand() *cobra.Command {
	var (
		opts   commands.FilterOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "filter <file.mlog>",
		Short: "Write the matching events of a log file to a new log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := opts.Build()
			if err != nil {
				return err
			}
			count, err := commands.RunFilter(args[0], output, filter)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Filtered %d events to %s\n", count, output)
			return nil
		},
	}
	addFilterFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output log file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}
