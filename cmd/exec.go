package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/pseudoshell/internal/config"
	"github.com/itsmostafa/pseudoshell/internal/transport"
)

var execEcho bool

var execCmd = &cobra.Command{
	Use:   "exec FILE",
	Short: "Run a script through a session",
	Long: `Feed FILE to a session line by line, exactly as if it had been typed.

Use '-' to read the script from standard input. The session ends at the
first top-level 'end', a shut keyword or the end of the file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var in io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open script: %w", err)
			}
			defer f.Close()
			in = f
		}

		if cmd.Flags().Changed("echo") {
			if execEcho {
				cfg.Shell.Echo = config.EchoAlways
			} else {
				cfg.Shell.Echo = config.EchoNever
			}
		}

		console := transport.NewConsole(in, cmd.OutOrStdout())
		sh, err := newShell(console, cmd.OutOrStdout(), false, "script")
		if err != nil {
			return err
		}

		if err := sh.Run(cmd.Context()); err != nil && !endOfInput(err) {
			return err
		}
		return nil
	},
}

func init() {
	execCmd.Flags().BoolVar(&execEcho, "echo", true, "Show each executed unit before its output")
	rootCmd.AddCommand(execCmd)
}
