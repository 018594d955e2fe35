package cmd

import (
	"errors"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmostafa/pseudoshell/internal/config"
	"github.com/itsmostafa/pseudoshell/internal/pseudoshell"
	"github.com/itsmostafa/pseudoshell/internal/transcript"
)

// newShell builds a configured session over t. Output printed outside of
// line execution goes to stdout.
func newShell(t pseudoshell.Transport, stdout io.Writer, interactive bool, kind string) (*pseudoshell.Shell, error) {
	id := uuid.New().String()
	log := logger.With(zap.String("session", id), zap.String("transport", kind))

	env := pseudoshell.NewEnvironment(
		pseudoshell.WithNames(cfg.Shell.Names),
		pseudoshell.WithLineTimeout(cfg.GetLineTimeout()),
		pseudoshell.WithStdout(stdout),
		pseudoshell.WithEnvLogger(log),
	)

	opts := []pseudoshell.Option{
		pseudoshell.WithSession(id),
		pseudoshell.WithWelcome(cfg.Shell.Welcome),
		pseudoshell.WithPrompt(cfg.Shell.Prompt),
		pseudoshell.WithShutKeywords(cfg.Shell.ShutKeywords...),
		pseudoshell.WithEcho(echoFor(cfg.Shell.Echo, interactive)),
		pseudoshell.WithLogger(log),
		pseudoshell.WithRenderer(lipgloss.NewRenderer(stdout)),
	}

	if cfg.Transcript.Enabled && !noHistory {
		rec, err := transcript.NewStore(cfg.Transcript.Dir).Open(id, kind)
		if err != nil {
			env.Close()
			return nil, err
		}
		opts = append(opts, pseudoshell.WithRecorder(rec))
	}

	return pseudoshell.New(env, t, opts...), nil
}

// echoFor decides whether transcripts are pushed back. Operators at a
// terminal already see what they typed.
func echoFor(mode string, interactive bool) bool {
	switch mode {
	case config.EchoAlways:
		return true
	case config.EchoNever:
		return false
	default:
		return !interactive
	}
}

// endOfInput reports whether a session ended because its input ran out,
// which is how scripts and piped sessions finish.
func endOfInput(err error) bool {
	var ioErr *pseudoshell.IOError
	return errors.As(err, &ioErr) && errors.Is(err, io.EOF)
}
