package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chanaccess/cas-go/cmd/pvlog/commands"
	"github.com/chanaccess/cas-go/pkg/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pvlog",
		Short: "Process variable protocol log analyzer.",
		Long: `Reads the CBOR protocol logs written by pvserver --protocol-log.

Every command takes the log file as its only argument.`,
		SilenceUsage: true,
	}

	root.AddCommand(newViewCmd(), newExportCmd(), newFilterCmd(), newStatsCmd())
	version.AttachCobraVersionCommand(root)

	return root
}

// addFilterFlags binds the flags shared by view, export and filter.
func addFilterFlags(cmd *cobra.Command, opts *commands.FilterOptions) {
	cmd.Flags().StringVar(&opts.Layer, "layer", "", "filter by layer (transport, wire, engine)")
	cmd.Flags().StringVar(&opts.Direction, "direction", "", "filter by direction (in, out)")
	cmd.Flags().StringVar(&opts.Category, "category", "", "filter by category (event, write, interest, lifecycle, error)")
	cmd.Flags().StringVar(&opts.PV, "pv", "", "filter by PV name or pattern (TEMP:*)")
	cmd.Flags().StringVar(&opts.Events, "events", "", "keep monitor events carrying any of these events (value|archive|alarm|property)")
	cmd.Flags().StringVar(&opts.ConnID, "conn-id", "", "filter by connection ID")
	cmd.Flags().StringVar(&opts.TimeStart, "time-start", "", "only events at or after this RFC3339 time")
	cmd.Flags().StringVar(&opts.TimeEnd, "time-end", "", "only events before this RFC3339 time")
}

func newViewCmd() *cobra.Command {
	var opts commands.FilterOptions

	cmd := &cobra.Command{
		Use:   "view [flags] <file.plog>",
		Short: "View log file in human-readable format.",
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

func newExportCmd() *cobra.Command {
	var opts commands.ExportOptions

	cmd := &cobra.Command{
		Use:   "export [flags] <file.plog>",
		Short: "Export log file to JSON lines or CSV.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := commands.RunExport(args[0], opts, cmd.OutOrStdout())
			return err
		},
	}
	addFilterFlags(cmd, &opts.Filter)
	cmd.Flags().StringVar(&opts.Format, "format", "jsonl", "output format (jsonl, csv)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: stdout)")

	return cmd
}

func newFilterCmd() *cobra.Command {
	var (
		opts   commands.FilterOptions
		output string
	)

	cmd := &cobra.Command{
		Use:   "filter [flags] <file.plog>",
		Short: "Filter log file and write the matching events to a new file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.New("output file required (-o)")
			}
			n, err := commands.RunFilter(args[0], output, opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d events to %s\n", n, output)
			return nil
		},
	}
	addFilterFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (required)")

	return cmd
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <file.plog>",
		Short: "Show per-PV statistics about the log file.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return commands.RunStats(args[0], cmd.OutOrStdout())
		},
	}
}
