package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeseed/cmd/nodeseed/handlers"
)

// Create returns the create command.
func Create(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "create [names...]",
		Short: "Create VMs and bootstrap them",
		Long: `Create provisions the VMs defined in the configuration file and runs the
bootstrap script on each of them.

Every VM goes through the same steps:
  1. Authenticate against the provider
  2. Resolve the image and size names against the provider catalog
  3. Submit the create request and wait for a network address
  4. Connect over SSH and run the bootstrap script

Without arguments every configured VM is created. Up to "concurrency" VMs
are provisioned at the same time. A VM that fails after it was created is
left running and reported, never deleted.

Example:
  nodeseed create -c nodeseed.yaml
  nodeseed create web1 web2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return handlers.Create(cmd.Context(), opts, args)
		},
	}
}
