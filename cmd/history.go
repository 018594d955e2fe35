package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/itsmostafa/pseudoshell/internal/transcript"
)

var (
	historyLimit int
	historyList  bool
)

var historyCmd = &cobra.Command{
	Use:   "history [SESSION]",
	Short: "Show recorded session transcripts",
	Long: `Show the most recent units executed in a recorded session.

Without SESSION the latest session is shown. Use --list to list every
recorded session instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store := transcript.NewStore(cfg.Transcript.Dir)
		out := cmd.OutOrStdout()
		st := newHistoryStyles(lipgloss.NewRenderer(out))

		sessions, err := store.Sessions()
		if err != nil {
			return err
		}

		if historyList {
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  %s  %-7s %s\n",
					s.SessionID,
					s.StartedAt.Format("2006-01-02 15:04:05"),
					s.Transport,
					st.dim.Render(fmt.Sprintf("%d units, %d failed", s.Units, s.Failures)),
				)
			}
			return nil
		}

		var id string
		switch {
		case len(args) == 1:
			id = args[0]
		case len(sessions) > 0:
			id = sessions[len(sessions)-1].SessionID
		default:
			fmt.Fprintln(out, "No recorded sessions.")
			return nil
		}

		entries, err := store.RecentHistory(id, historyLimit)
		if err != nil {
			return err
		}
		printEntries(out, st, entries)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of entries to show")
	historyCmd.Flags().BoolVar(&historyList, "list", false, "List recorded sessions")
	rootCmd.AddCommand(historyCmd)
}

type historyStyles struct {
	dim lipgloss.Style
	ok  lipgloss.Style
	bad lipgloss.Style
}

func newHistoryStyles(r *lipgloss.Renderer) historyStyles {
	return historyStyles{
		dim: r.NewStyle().Foreground(lipgloss.Color("240")),
		ok:  r.NewStyle().Foreground(lipgloss.Color("42")),
		bad: r.NewStyle().Foreground(lipgloss.Color("196")),
	}
}

func printEntries(w io.Writer, st historyStyles, entries []transcript.Entry) {
	for _, e := range entries {
		mark := st.ok.Render("ok")
		if !e.Success {
			mark = st.bad.Render("failed")
		}
		fmt.Fprintf(w, "%s %s %s\n", st.dim.Render(fmt.Sprintf("#%d", e.Seq)), st.dim.Render(e.Timestamp.Format("15:04:05")), mark)
		for _, line := range strings.Split(strings.TrimRight(e.Source, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
		if e.Output != "" {
			for _, line := range strings.Split(e.Output, "\n") {
				fmt.Fprintf(w, "    %s\n", st.dim.Render(line))
			}
		}
	}
}
