// Package cli wires the optionsworth commands.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// NewRootCommand returns the optionsworth command tree. Running it without a
// subcommand starts the web server.
func NewRootCommand(ctx context.Context) *cobra.Command {
	root := &cobra.Command{
		Use:           "optionsworth",
		Short:         "How much are my options worth?",
		Long:          "Estimate the after-tax value of employee stock options, in the browser or from a portfolio file.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetContext(ctx)

	serve := newServeCommand()
	root.AddCommand(serve, newValueCommand(), newEventsCommand(), newVersionCommand())

	// bare "optionsworth" behaves like "optionsworth serve"
	root.Flags().AddFlagSet(serve.Flags())
	root.PreRunE = serve.PreRunE
	root.RunE = serve.RunE
	return root
}
