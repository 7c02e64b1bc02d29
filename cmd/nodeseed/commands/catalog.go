package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/nodeseed/cmd/nodeseed/handlers"
)

// Images returns the images command.
func Images(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List the images offered by the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Images(cmd.Context(), opts)
		},
	}
}

// Sizes returns the sizes command.
func Sizes(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sizes",
		Short: "List the machine sizes offered by the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Sizes(cmd.Context(), opts)
		},
	}
}

// List returns the list command.
func List(opts *handlers.Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the VMs created by nodeseed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.List(cmd.Context(), opts)
		},
	}
}
