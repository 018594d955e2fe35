package pseudoshell

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"unicode"

	"github.com/dop251/goja"
)

var awaitPattern = regexp.MustCompile(`\bawait\b`)

// statementKeywords start lines that cannot be the right-hand side of an
// assignment, so they are never auto-captured.
var statementKeywords = map[string]bool{
	"var": true, "let": true, "const": true, "function": true, "async": true,
	"class": true, "return": true, "throw": true, "import": true, "export": true,
	"delete": true, "debugger": true, "if": true, "for": true, "while": true,
	"do": true, "switch": true, "try": true, "break": true, "continue": true,
}

// Line is a single source line evaluated against a shared Environment.
type Line struct {
	env    *Environment
	text   string
	result Result
}

// NewLine binds text to env.
func NewLine(env *Environment, text string) *Line {
	return &Line{env: env, text: text}
}

// Text returns the raw source of the line.
func (l *Line) Text() string {
	return l.text
}

// Write collects output printed while the line executes. A lone newline is
// dropped.
func (l *Line) Write(p []byte) (int, error) {
	if s := string(p); s != "\n" {
		l.result.Text += s
	}
	return len(p), nil
}

// Exec evaluates the line. Printed output becomes the result text; a bare
// expression that printed nothing shows its value instead.
func (l *Line) Exec(ctx context.Context) (Result, error) {
	l.result = NewResult("")
	restore := l.env.SetStdout(l)
	defer restore()

	src, err := l.awaitRewrite(ctx, l.text)
	if err != nil {
		return l.result, err
	}

	names := l.env.names
	if autoCapture(src) {
		src = names.LastValue + " = " + src
	}

	_, err = l.env.Eval(ctx, src)
	l.env.refreshBindings()
	if err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return l.result, exit
		}
		return l.result, newExecutionError(l.text, err)
	}

	if v := l.env.Get(names.LastValue); v != nil && !goja.IsUndefined(v) {
		if l.result.Text == "" {
			l.result.Text = repr(v)
		}
		l.env.Delete(names.LastValue)
	}
	return l.result, nil
}

// awaitRewrite evaluates the awaited expression of src into the coroutine
// slot, waits for it to settle and returns src reading from the slot
// instead. Lines without a top-level await are returned unchanged.
func (l *Line) awaitRewrite(ctx context.Context, src string) (string, error) {
	loc := awaitPattern.FindStringIndex(src)
	if loc == nil || strings.Contains(src[:loc[0]], "{") {
		return src, nil
	}
	left := strings.TrimSpace(src[:loc[0]])
	right := strings.TrimSpace(src[loc[1]:])
	slot := l.env.names.Coroutine

	inner := NewLine(l.env, slot+" = "+right)
	res, err := inner.Exec(ctx)
	l.result.Text += res.Text
	if err != nil {
		return "", err
	}

	resolved, err := l.env.Resolve(ctx, l.env.Get(slot))
	if err != nil {
		var exit *ExitError
		if errors.As(err, &exit) {
			return "", exit
		}
		return "", newExecutionError(l.text, err)
	}
	if err := l.env.Set(slot, resolved); err != nil {
		return "", newExecutionError(l.text, err)
	}

	if left == "" {
		return slot, nil
	}
	return left + " " + slot, nil
}

// autoCapture reports whether src is a bare expression whose value should be
// stored in the last-value slot. Anything containing '=' or ':' counts as a
// statement, even comparisons such as a == b.
func autoCapture(src string) bool {
	if strings.TrimSpace(src) == "" || strings.ContainsAny(src, "=:") {
		return false
	}
	return !statementKeywords[firstWord(src)]
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '$')
	})
	if end < 0 {
		return s
	}
	return s[:end]
}
