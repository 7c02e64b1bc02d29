// Package commands defines the CLI command structure and flag bindings.
//
// This package contains cobra command definitions that handle argument parsing,
// flag binding, and validation. Command execution is delegated to handler
// functions in the handlers package.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeseed/cmd/nodeseed/handlers"
	"github.com/imamik/nodeseed/internal/config"
)

// Root returns the root command for the nodeseed CLI.
//
// Global flags are bound to one handlers.Options value shared by every
// subcommand.
func Root() *cobra.Command {
	opts := &handlers.Options{}

	cmd := &cobra.Command{
		Use:           "nodeseed",
		Short:         "Provision cloud VMs and bootstrap them over SSH",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.Out = cmd.OutOrStdout()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultConfigFilename, "Path to configuration file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show polling and retry progress and debug logs")
	cmd.PersistentFlags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")

	// Provisioning
	cmd.AddCommand(Create(opts))
	cmd.AddCommand(Destroy(opts))

	// Inspection
	cmd.AddCommand(Images(opts))
	cmd.AddCommand(Sizes(opts))
	cmd.AddCommand(List(opts))

	cmd.AddCommand(Version())

	return cmd
}
