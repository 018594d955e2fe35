package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/pseudoshell/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pseudoshell %s\n", version.String())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
