package pseudoshell

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// indentUnit is the per-depth indentation of transcripts and prompts.
const indentUnit = "    "

// Executable is a unit of a block body: a Line or a nested Loop.
type Executable interface {
	Exec(ctx context.Context) (Result, error)
}

// blockKind is the closed set of structures a Loop can be: for, while and
// if. A nil kind is the plain loop used at the top level.
type blockKind interface {
	name() string
	addClause(l *Loop, clause, line string) error
	exec(ctx context.Context, l *Loop) (Result, error)
}

// Loop reads a block of lines and executes it. At depth 0 every statement or
// structure is executed as soon as it has been read; deeper loops only
// accumulate their body until the parent executes them.
type Loop struct {
	shell    *Shell
	depth    int
	caller   string
	history  string
	buffer   []Executable
	endwords map[string]bool
	// elseIndex is the buffer index where the else body starts, -1 if none.
	elseIndex int
	kind      blockKind
	closed    bool
}

func newLoop(s *Shell, depth int, caller string, kind blockKind) *Loop {
	l := &Loop{
		shell:     s,
		depth:     depth,
		caller:    caller,
		endwords:  map[string]bool{"end": true},
		elseIndex: -1,
		kind:      kind,
	}
	if kind != nil {
		l.endwords["end"+kind.name()] = true
	}
	if caller != "" {
		l.record(caller, depth-1)
	}
	return l
}

// Depth returns the nesting level, 0 being the interactive top level.
func (l *Loop) Depth() int {
	return l.depth
}

// History returns the transcript of everything read so far.
func (l *Loop) History() string {
	return l.history
}

// Len returns the number of units in the body.
func (l *Loop) Len() int {
	return len(l.buffer)
}

// Run reads lines until an end keyword closes the loop.
func (l *Loop) Run(ctx context.Context) error {
	s := l.shell
	if l.history != "" && s.echo {
		if err := s.Push(ctx, l.history); err != nil {
			return err
		}
	}

	for !l.closed {
		if err := s.prompt(ctx, l.depth); err != nil {
			return err
		}
		raw, err := s.Pull(ctx)
		if err != nil {
			return err
		}
		line := strings.TrimSpace(raw)

		switch {
		case line == "":
			continue
		case s.shut[line]:
			return &ExitError{Reason: line}
		case l.endwords[line]:
			l.record(line, l.depth-1)
			l.closed = true
			continue
		case line == "help":
			if err := s.Push(ctx, s.helpText()); err != nil {
				return err
			}
			continue
		}

		if err := l.add(ctx, line); err != nil {
			if IsExit(err) {
				return err
			}
			s.logger.Debug("line rejected", zap.String("line", line), zap.Error(err))
			if err := s.Push(ctx, s.styles.syntaxError(line, err)); err != nil {
				return err
			}
			continue
		}

		if l.depth == 0 {
			if err := l.flush(ctx); err != nil {
				return err
			}
		} else if s.echo {
			if err := s.Push(ctx, l.history); err != nil {
				return err
			}
		}
	}
	return nil
}

// add appends line to the buffer, reading a whole nested structure when the
// line opens one. The buffer and history are only touched on success.
func (l *Loop) add(ctx context.Context, line string) error {
	if strings.HasSuffix(line, ":") {
		word := firstWord(line)
		switch word {
		case "for", "while", "if":
			kind, err := parseHeader(word, line)
			if err != nil {
				return err
			}
			child := newLoop(l.shell, l.depth+1, line, kind)
			if err := child.Run(ctx); err != nil {
				return err
			}
			l.buffer = append(l.buffer, child)
			l.history += child.history
			return nil
		case "else", "elif":
			if l.kind == nil {
				return &SyntaxError{Line: line, Msg: fmt.Sprintf("%q outside of a block", word)}
			}
			if err := l.kind.addClause(l, word, line); err != nil {
				return err
			}
			l.record(line, l.depth-1)
			return nil
		default:
			return &SyntaxError{Line: line, Msg: fmt.Sprintf("unknown block %q", word)}
		}
	}

	if isBlockHeader(line) {
		return &SyntaxError{Line: line, Msg: "expected ':' at the end of the block header"}
	}
	l.buffer = append(l.buffer, NewLine(l.shell.env, line))
	l.record(line, l.depth)
	return nil
}

// flush executes what has been read at depth 0, reports it and starts a new
// read cycle whatever the outcome.
func (l *Loop) flush(ctx context.Context) error {
	s := l.shell
	transcript := l.history
	defer l.reset()

	res, err := l.safeExec(ctx)
	if IsExit(err) {
		return err
	}

	var execErr *ExecutionError
	switch {
	case err == nil:
		s.logger.Debug("unit executed", zap.Int("units", len(l.buffer)))
		if s.echo {
			if err := s.Push(ctx, transcript); err != nil {
				return err
			}
		}
		if strings.TrimSpace(res.Text) != "" {
			if err := s.Push(ctx, s.styles.result(res)); err != nil {
				return err
			}
		}
		s.record(transcript, res)
	case errors.As(err, &execErr):
		s.logger.Debug("execution failed", zap.String("source", execErr.Source), zap.Error(execErr.Err))
		if s.echo {
			if err := s.Push(ctx, transcript); err != nil {
				return err
			}
		}
		tb := execErr.OriginalTraceback()
		if err := s.Push(ctx, s.styles.traceback(tb)); err != nil {
			return err
		}
		s.record(transcript, Failure(tb))
	default:
		s.logger.Error("fatal exception", zap.Error(err))
		if err := s.Push(ctx, s.styles.fatal(err, transcript)); err != nil {
			return err
		}
		s.record(transcript, Failure(err.Error()))
	}
	return nil
}

// safeExec runs Exec, turning a panic into an error.
func (l *Loop) safeExec(ctx context.Context) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during execution: %v", r)
		}
	}()
	return l.Exec(ctx)
}

func (l *Loop) reset() {
	l.buffer = nil
	l.history = ""
	l.elseIndex = -1
}

// Exec executes the block. A plain loop executes its whole buffer.
func (l *Loop) Exec(ctx context.Context) (Result, error) {
	if l.kind == nil {
		return l.ExecBuffer(ctx, 0, -1)
	}
	return l.kind.exec(ctx, l)
}

// ExecBuffer executes buffer[start:end] in order and joins the non-empty
// results. A negative end means the end of the buffer. The first failure
// aborts the pass.
func (l *Loop) ExecBuffer(ctx context.Context, start, end int) (Result, error) {
	if end < 0 || end > len(l.buffer) {
		end = len(l.buffer)
	}
	if start > end {
		start = end
	}
	results := NewResultsList()
	for _, unit := range l.buffer[start:end] {
		res, err := unit.Exec(ctx)
		if err != nil {
			return Result{}, err
		}
		if res.Truthy() {
			results.Append(res)
		}
	}
	return results.Join("\n"), nil
}

// provisional evaluates expr into the provisional slot and returns its value.
func (l *Loop) provisional(ctx context.Context, expr string) (goja.Value, error) {
	env := l.shell.env
	slot := env.names.Provisional
	if _, err := NewLine(env, slot+" = "+expr).Exec(ctx); err != nil {
		return nil, err
	}
	return env.Get(slot), nil
}

func (l *Loop) record(line string, depth int) {
	if depth < 0 {
		depth = 0
	}
	l.history += strings.Repeat(indentUnit, depth) + line + "\n"
}

// isBlockHeader reports whether line starts like a shell block header. The
// runtime's own statements, such as "for (...)" or "if (...)", are not
// headers.
func isBlockHeader(line string) bool {
	word := firstWord(line)
	switch word {
	case "for", "while", "if", "elif", "else":
	default:
		return false
	}
	if word == "else" || word == "elif" {
		return true
	}
	return !strings.HasPrefix(strings.TrimSpace(line[len(word):]), "(")
}
