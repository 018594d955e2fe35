// Package transport provides the pull/push endpoints shell sessions run
// over: the local console and network connections.
package transport

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

// Console reads operator lines from in and writes output to out. Prompts are
// only written when in is an interactive terminal.
type Console struct {
	mu          sync.Mutex
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// NewConsole creates a console transport.
func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: IsTerminal(in),
	}
}

// IsTerminal reports whether r is a file attached to a terminal.
func IsTerminal(r any) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Interactive reports whether the console is attached to a terminal.
func (c *Console) Interactive() bool {
	return c.interactive
}

// Pull reads the next line without its line terminator. A final line with no
// terminator is returned before io.EOF.
func (c *Console) Pull(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return readLine(c.in)
}

// Push writes text followed by a newline.
func (c *Console) Push(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return writeChunk(c.out, text)
}

// Prompt writes the prompt when the console is interactive.
func (c *Console) Prompt(ctx context.Context, text string) error {
	if !c.interactive {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, text)
	return err
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

func writeChunk(w io.Writer, text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w, text)
	return err
}
