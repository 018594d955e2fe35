package cmd

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/itsmostafa/pseudoshell/internal/pseudoshell"
	"github.com/itsmostafa/pseudoshell/internal/server"
	"github.com/itsmostafa/pseudoshell/internal/transport"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve sessions over TCP",
	Long: `Listen for TCP connections and run an independent session on each.

Every connection gets its own environment; nothing is shared between
clients. Connect with any line-based client such as nc or telnet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := cfg.Server.Listen
		if listenAddr != "" {
			addr = listenAddr
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(
			func(t *transport.Conn) (*pseudoshell.Shell, error) {
				return newShell(t, t, true, "tcp")
			},
			server.WithIdleTimeout(cfg.GetIdleTimeout()),
			server.WithMaxSessions(cfg.Server.MaxSessions),
			server.WithLogger(logger.Named("server")),
		)

		fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", ln.Addr())
		return srv.Serve(ctx, ln)
	},
}

func init() {
	serveCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "Address to listen on (overrides server.listen)")
	rootCmd.AddCommand(serveCmd)
}
