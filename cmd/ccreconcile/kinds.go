package main

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/alexisbeaulieu97/ccreconcile/internal/resources"
)

func newKindsCmd(root *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List the object kinds this build can reconcile",
		RunE: func(cmd *cobra.Command, args []string) error {
			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(tableStyle(root.noColor))
			t.AppendHeader(table.Row{"KIND", "NATURAL KEY", "COLLECTION", "MIN VERSION", "FIELDS"})

			for _, res := range resources.Default().List() {
				spec := res.Spec()
				t.AppendRow(table.Row{
					spec.Kind,
					spec.NaturalKey,
					res.Collection().Path,
					res.MinVersion(),
					strings.Join(spec.FieldNames(), ", "),
				})
			}
			t.Render()
			return nil
		},
	}
}
