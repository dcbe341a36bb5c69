// ABOUTME: version subcommand
// ABOUTME: Prints the product name and version
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/visual-lock/visuallock/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s by %s\n", version.Product, version.Version, version.Manufacturer)
		},
	}
}
