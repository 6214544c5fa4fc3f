package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	output  string
	noColor bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "ccreconcile",
		Short:         "Reconcile Catalyst Center objects against a declarative config",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&flags.output, "output", "o", formatTable, "Report format: table or json")
	cmd.PersistentFlags().BoolVar(&flags.noColor, "no-color", false, "Disable colored output")

	cmd.AddCommand(newApplyCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newKindsCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
