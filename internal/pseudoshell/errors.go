package pseudoshell

import (
	"errors"
	"fmt"
	"strings"
)

// ExitError is a deliberate request to end the session, either from evaluated
// code or from a shut keyword.
type ExitError struct {
	Reason string
}

func (e *ExitError) Error() string {
	if e.Reason == "" {
		return "shell exit"
	}
	return "shell exit: " + e.Reason
}

// IOError reports a failure of the transport itself. It ends the session.
type IOError struct {
	Method string // "pull" or "push"
	Err    error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("shell %s failed: %v", e.Method, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// IsExit reports whether err terminates the session: an ExitError or an
// IOError anywhere in its chain.
func IsExit(err error) bool {
	var exit *ExitError
	var ioErr *IOError
	return errors.As(err, &exit) || errors.As(err, &ioErr)
}

// SyntaxError reports a malformed block header or an illegal clause.
type SyntaxError struct {
	Line string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error: %s", e.Msg)
}

// ExecutionError wraps a failure raised by evaluated operator source.
type ExecutionError struct {
	Source string
	Err    error
	// Frames lists call frames outermost first. The first one is always
	// the evaluation frame of the line itself.
	Frames []string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution of %q failed: %v", e.Source, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// OriginalTraceback renders the traceback of the wrapped failure without the
// leading evaluation frame.
func (e *ExecutionError) OriginalTraceback() string {
	var b strings.Builder
	b.WriteString("Traceback (most recent call last):\n")
	frames := e.Frames
	if len(frames) > 0 {
		frames = frames[1:]
	}
	for _, f := range frames {
		b.WriteString("  at ")
		b.WriteString(f)
		b.WriteByte('\n')
	}
	b.WriteString(errorMessage(e.Err))
	return b.String()
}
