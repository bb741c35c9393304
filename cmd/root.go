package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	schemacmd "github.com/tablevet/tablevet/cmd/schema"
	"github.com/tablevet/tablevet/cmd/validate"
)

var rootCmd = &cobra.Command{
	Use:   "tablevet",
	Short: "Schema validation for tabular data",
	Long:  `tablevet validates tabular data from CSV files and SQL databases against declarative schemas.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(validate.Command())
	rootCmd.AddCommand(schemacmd.Command())
}
