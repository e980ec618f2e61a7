// File: cmd/validate.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/scenario-cli/internal/scenario"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file|name>",
		Short: "Check a scenario file without launching a browser",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := scenario.Resolve(args[0])
			if err != nil {
				return usageErrorf("%w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Scenario %q is valid: %d steps against %s\n", sc.Name, len(sc.Steps), sc.Path)
			return nil
		},
	}
}
