package main

import (
	"fmt"

	"github.com/callaudit/callaudit/internal/audit"
	"github.com/callaudit/callaudit/internal/models"
	"github.com/spf13/cobra"
)

func newSchemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema <audit-type>",
		Short: "Print the strict response schemas an audit type sends to the model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseAuditType(args[0])
			if err != nil {
				return err
			}

			schemas, err := audit.ResponseSchemas(t)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, s := range schemas {
				doc, err := s.JSON()
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "# %s: %s\n%s\n", s.Name, s.Description, doc) //nolint:errcheck
			}
			return nil
		},
	}
}
