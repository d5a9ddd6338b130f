package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the gateway version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("gateway %s (commit: %s, built: %s)\n", Version, Commit, Date)
		return nil
	},
}
