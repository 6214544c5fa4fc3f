package main

import (
	"fmt"

	"github.com/spf13/cobra"

	appreconcile "github.com/alexisbeaulieu97/ccreconcile/internal/application/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/config"
	"github.com/alexisbeaulieu97/ccreconcile/internal/domain/reconcile"
	"github.com/alexisbeaulieu97/ccreconcile/internal/resources"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <args-file>",
		Short: "Check the argument file and config items without contacting the controller",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateArgsPath(args[0]); err != nil {
				return err
			}

			moduleArgs, err := config.ParseArgs(args[0])
			if err != nil {
				return err
			}

			service := appreconcile.NewService(resources.Default(), nil)
			if err := service.Validate(cmd.Context(), moduleArgs); err != nil {
				printViolations(cmd, err, root.noColor)
				return fmt.Errorf("configuration is invalid")
			}

			fmt.Fprintln(cmd.OutOrStdout(), newPalette(root.noColor).ok.Render(
				fmt.Sprintf("configuration is valid: %d item(s)", len(moduleArgs.Config))))
			return nil
		},
	}
}

func printViolations(cmd *cobra.Command, err error, noColor bool) {
	p := newPalette(noColor)
	out := cmd.ErrOrStderr()

	domainErr := reconcile.AsDomainError(err)
	violations, _ := domainErr.Context["violations"].([]string)
	if len(violations) == 0 {
		fmt.Fprintln(out, p.failed.Render(domainErr.Error()))
		return
	}
	fmt.Fprintln(out, p.failed.Render(domainErr.Message))
	for _, v := range violations {
		fmt.Fprintf(out, "  - %s\n", v)
	}
}
