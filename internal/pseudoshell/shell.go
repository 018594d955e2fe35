// Package pseudoshell implements a line-oriented interactive interpreter.
// Operators type statements for the embedded runtime plus for, while and if
// blocks closed by end keywords, one line at a time, over an injectable
// pull/push transport.
package pseudoshell

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsmostafa/pseudoshell/internal/version"
)

// Transport produces operator input and receives shell output.
type Transport interface {
	// Pull returns the next line of input.
	Pull(ctx context.Context) (string, error)
	// Push emits one chunk of output.
	Push(ctx context.Context, text string) error
}

// Prompter is implemented by transports that show prompts differently from
// output chunks. Other transports receive prompts through Push.
type Prompter interface {
	Prompt(ctx context.Context, text string) error
}

// Funcs adapts a pair of functions to a Transport.
type Funcs struct {
	PullFunc func(ctx context.Context) (string, error)
	PushFunc func(ctx context.Context, text string) error
}

func (f Funcs) Pull(ctx context.Context) (string, error) {
	return f.PullFunc(ctx)
}

func (f Funcs) Push(ctx context.Context, text string) error {
	return f.PushFunc(ctx, text)
}

// Recorder persists the transcript of executed top-level units.
type Recorder interface {
	Record(source, output string, success bool) error
}

// Shell drives a session: it owns the environment and the transport and runs
// the top-level loop.
type Shell struct {
	env        *Environment
	transport  Transport
	welcome    string
	shut       map[string]bool
	promptText string
	echo       bool
	session    string
	logger     *zap.Logger
	recorder   Recorder
	styles     styles

	// runCtx is the context of the running session, used by calls made from
	// evaluated code through the bridge.
	runCtx context.Context
}

// Option configures a Shell.
type Option func(*Shell)

// WithWelcome sets the text shown in the banner.
func WithWelcome(text string) Option {
	return func(s *Shell) { s.welcome = text }
}

// WithShutKeywords sets input lines that end the session immediately.
func WithShutKeywords(words ...string) Option {
	return func(s *Shell) {
		for _, w := range words {
			if w = strings.TrimSpace(w); w != "" {
				s.shut[w] = true
			}
		}
	}
}

// WithPrompt sets the top-level prompt.
func WithPrompt(p string) Option {
	return func(s *Shell) { s.promptText = p }
}

// WithEcho controls whether transcripts are pushed back. Terminals that
// already show what was typed usually turn it off.
func WithEcho(on bool) Option {
	return func(s *Shell) { s.echo = on }
}

// WithSession sets the session identifier instead of a random one.
func WithSession(id string) Option {
	return func(s *Shell) { s.session = id }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Shell) { s.logger = l }
}

// WithRecorder records every executed top-level unit.
func WithRecorder(r Recorder) Option {
	return func(s *Shell) { s.recorder = r }
}

// WithRenderer renders styled output for the given renderer.
func WithRenderer(r *lipgloss.Renderer) Option {
	return func(s *Shell) { s.styles = newStyles(r) }
}

// New creates a shell over env and t and binds it into env's bridge slot.
func New(env *Environment, t Transport, opts ...Option) *Shell {
	s := &Shell{
		env:        env,
		transport:  t,
		shut:       make(map[string]bool),
		promptText: ">>> ",
		echo:       true,
		session:    uuid.New().String(),
		logger:     zap.NewNop(),
		styles:     newStyles(lipgloss.DefaultRenderer()),
		runCtx:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	env.OnRefresh(s.refresh)
	s.refresh()
	return s
}

// Session returns the session identifier.
func (s *Shell) Session() string {
	return s.session
}

// Environment returns the environment of the shell.
func (s *Shell) Environment() *Environment {
	return s.env
}

// Pull reads the next line from the transport.
func (s *Shell) Pull(ctx context.Context) (string, error) {
	line, err := s.transport.Pull(ctx)
	if err != nil {
		return "", &IOError{Method: "pull", Err: err}
	}
	return line, nil
}

// Push sends text to the transport.
func (s *Shell) Push(ctx context.Context, text string) error {
	if err := s.transport.Push(ctx, text); err != nil {
		return &IOError{Method: "push", Err: err}
	}
	return nil
}

// Run shows the banner, runs the top-level loop until an end keyword or an
// exit request and shows the exit message. The environment is closed when
// Run returns. Only transport failures are returned.
func (s *Shell) Run(ctx context.Context) error {
	s.runCtx = ctx
	defer s.env.Close()

	s.env.ensureBuiltins()
	s.refresh()
	s.logger.Info("session started", zap.String("session", s.session))

	if err := s.Push(ctx, s.banner()); err != nil {
		return err
	}

	err := newLoop(s, 0, "", nil).Run(ctx)

	var reason string
	var exit *ExitError
	switch {
	case err == nil:
	case errors.As(err, &exit):
		reason = exit.Reason
	default:
		s.logger.Warn("session aborted", zap.String("session", s.session), zap.Error(err))
		return err
	}

	s.logger.Info("session ended", zap.String("session", s.session), zap.String("reason", reason))
	return s.Push(ctx, s.styles.exit(reason))
}

func (s *Shell) prompt(ctx context.Context, depth int) error {
	text := s.promptText
	if depth > 0 {
		text = strings.Repeat(indentUnit, depth) + "... "
	}
	if p, ok := s.transport.(Prompter); ok {
		if err := p.Prompt(ctx, text); err != nil {
			return &IOError{Method: "push", Err: err}
		}
		return nil
	}
	return s.Push(ctx, text)
}

// keywords lists the control words recognised at every prompt.
func (s *Shell) keywords() []string {
	words := []string{"help", "end", "endfor", "endwhile", "endif"}
	shut := make([]string, 0, len(s.shut))
	for w := range s.shut {
		shut = append(shut, w)
	}
	sort.Strings(shut)
	return append(words, shut...)
}

func (s *Shell) banner() string {
	return s.styles.banner(version.Version, s.session, s.welcome, s.env.names, s.keywords())
}

func (s *Shell) helpText() string {
	n := s.env.names
	return strings.Join([]string{
		"Type one statement per line; it runs as soon as it is complete.",
		"Blocks:",
		"    for <target> in <expression>:   ...   end | endfor",
		"    while <condition>:              ...   end | endwhile",
		"    if <condition>:  elif <condition>:  else:   ...   end | endif",
		"    for and while accept one else: clause, run once the loop is over.",
		"Bare expressions show their value and store it in " + n.LastValue + ".",
		"Use 'x = await promise' to wait for a promise, e.g. await sleep(100).",
		"print(...) output is captured; exit() ends the session.",
		"Reserved names: " + strings.Join(n.List(), " "),
		"Type 'end' at the top level to leave.",
	}, "\n")
}

func (s *Shell) record(source string, res Result) {
	if s.recorder == nil || source == "" {
		return
	}
	if err := s.recorder.Record(source, res.Text, res.Success); err != nil {
		s.logger.Warn("failed to record transcript", zap.Error(err))
	}
}

// refresh rebinds the bridge slot with a fresh snapshot of the environment.
func (s *Shell) refresh() {
	b := &bridge{shell: s, Session: s.session, names: s.env.Globals()}
	if err := s.env.Set(s.env.names.Bridge, b); err != nil {
		s.logger.Debug("failed to bind bridge", zap.Error(err))
	}
}

// bridge is what evaluated code sees in the bridge slot.
type bridge struct {
	shell   *Shell
	Session string
	names   []string
}

// Push sends text to the operator right away.
func (b *bridge) Push(text string) error {
	return b.shell.Push(b.shell.runCtx, text)
}

// Exit ends the session.
func (b *bridge) Exit(reason string) {
	b.shell.env.requestExit(reason)
}

// Globals returns the global names as of the last refresh.
func (b *bridge) Globals() []string {
	return b.names
}
