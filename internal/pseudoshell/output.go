package pseudoshell

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// styles renders everything the shell pushes besides raw transcripts.
type styles struct {
	title   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	err     lipgloss.Style
	header  lipgloss.Style
	mark    lipgloss.Style
}

func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("160")),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("240")),
		success: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		err: r.NewStyle().
			Foreground(lipgloss.Color("196")),
		header: r.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("160")).
			Padding(0, 1),
		mark: r.NewStyle().
			Bold(true).
			Underline(true).
			Foreground(lipgloss.Color("220")),
	}
}

// banner renders the session header.
func (st styles) banner(version, session, welcome string, names Names, keywords []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s  %s %s",
		st.dim.Render("Pseudoshell:"), st.title.Render(version),
		st.dim.Render("Session:"), session,
	)
	if welcome != "" {
		b.WriteString("\n" + welcome)
	}
	fmt.Fprintf(&b, "\n%s %s", st.dim.Render("Reserved names:"), strings.Join(names.List(), " "))
	fmt.Fprintf(&b, "\n%s %s", st.dim.Render("Keywords:"), strings.Join(keywords, " "))
	return st.header.Render(b.String())
}

func (st styles) result(res Result) string {
	if res.Success {
		return res.Text
	}
	return st.err.Render(res.Text)
}

// syntaxError highlights the rejected line under the error message.
func (st styles) syntaxError(line string, err error) string {
	return fmt.Sprintf("%s\n    %s", st.err.Render(err.Error()), st.mark.Render(line))
}

// traceback styles each line on its own so lines keep their own width.
func (st styles) traceback(tb string) string {
	lines := strings.Split(tb, "\n")
	for i, line := range lines {
		lines[i] = st.err.Render(line)
	}
	return strings.Join(lines, "\n")
}

// fatal reports an unexpected failure and shows the history that was not
// executed.
func (st styles) fatal(err error, history string) string {
	msg := st.err.Render(fmt.Sprintf("Fatal exception: %v", err))
	if history == "" {
		return msg
	}
	return msg + "\n" + st.dim.Render("Not executed:") + "\n" + strings.TrimRight(history, "\n")
}

func (st styles) exit(reason string) string {
	if reason == "" {
		return st.success.Render("Session closed.")
	}
	return st.success.Render("Session closed: " + reason)
}
