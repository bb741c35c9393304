package schema

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tablevet/tablevet/cmd/internal/cmdutil"
	"github.com/tablevet/tablevet/schemaio"
)

func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Inspect and reformat schema documents.",
	}
	cmd.AddCommand(fmtCommand())
	cmd.AddCommand(checkCommand())
	return cmd
}

func fmtCommand() *cobra.Command {
	var toJSON bool
	cmd := &cobra.Command{
		Use:   "fmt <schema file>",
		Short: "Parse a schema document and re-emit it normalized.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			tbl, err := cmdutil.LoadSchema(context.Background(), logger, args[0])
			if err != nil {
				return err
			}
			if toJSON {
				return schemaio.ToJSON(cmd.OutOrStdout(), tbl)
			}
			return schemaio.ToYAML(cmd.OutOrStdout(), tbl)
		},
	}
	cmd.PersistentFlags().BoolVar(
		&toJSON,
		"json",
		false,
		"whether to emit JSON instead of YAML",
	)
	cmdutil.RegisterLoggerFlags(cmd)
	return cmd
}

func checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <schema file>",
		Short: "Check that a schema document parses and is well formed.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			tbl, err := cmdutil.LoadSchema(context.Background(), logger, args[0])
			if err != nil {
				return err
			}
			numChecks := len(tbl.Checks())
			for _, col := range tbl.Columns() {
				numChecks += len(col.Checks)
			}
			name := tbl.Name()
			if name == "" {
				name = "schema"
			}
			fmt.Fprintf(
				cmd.OutOrStdout(),
				"%s: ok (%d columns, %d checks)\n",
				name, tbl.NumColumns(), numChecks,
			)
			return nil
		},
	}
	cmdutil.RegisterLoggerFlags(cmd)
	return cmd
}
