package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeseed/cmd/nodeseed/handlers"
)

// Destroy returns the destroy command.
func Destroy(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "destroy <name>",
		Short: "Delete a VM created by nodeseed",
		Long: `Destroy deletes the named VM. Only VMs carrying the nodeseed labels of the
configured tenant are considered.

Example:
  nodeseed destroy web1

WARNING: This operation is irreversible.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Destroy(cmd.Context(), opts, args[0])
		},
	}
}
