package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/chanaccess/cas-go/pkg/version"
)

// options are the command line settings of pvserver.
type options struct {
	dbPath      string
	logLevel    string
	protocolLog string
	simulate    bool
	simTick     time.Duration
	interactive bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "pvserver",
		Short: "Serve process variables from a YAML database.",
		Long: `Loads a PV database, creates its PVs and aliases, and serves them until
interrupted.

PVs with a simulate block are driven by producers when --simulate is set or
after "sim start" in the console. With --protocol-log every protocol event
is appended to a CBOR log readable by pvlog.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return run(ctx, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.dbPath, "db", "d", "", "path to the PV database (YAML)")
	cmd.Flags().StringVarP(&opts.logLevel, "log-level", "l", "info", "log level: debug, info, warn, error")
	cmd.Flags().StringVar(&opts.protocolLog, "protocol-log", "", "append protocol events to this file")
	cmd.Flags().BoolVar(&opts.simulate, "simulate", false, "start the producers of simulated PVs")
	cmd.Flags().DurationVar(&opts.simTick, "sim-tick", time.Second, "update interval of simulated PVs")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "run the operator console")
	_ = cmd.MarkFlagRequired("db")

	version.AttachCobraVersionCommand(cmd)

	return cmd
}

// Execute runs the pvserver CLI and exits with non-zero status on error.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
