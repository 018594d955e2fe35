package cmd

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/pseudoshell/internal/transport"
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive session on the console",
	Long: `Start an interactive session reading from standard input.

This is also what running pseudoshell without a command does.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRepl(cmd)
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

func runRepl(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	console := transport.NewConsole(cmd.InOrStdin(), cmd.OutOrStdout())
	sh, err := newShell(console, cmd.OutOrStdout(), console.Interactive(), "console")
	if err != nil {
		return err
	}

	if err := sh.Run(ctx); err != nil && !endOfInput(err) {
		return err
	}
	return nil
}
