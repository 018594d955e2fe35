package pseudoshell

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted feeds fixed lines and collects everything pushed.
type scripted struct {
	lines   []string
	pushed  []string
	prompts []string
}

func (s *scripted) Pull(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scripted) Push(ctx context.Context, text string) error {
	s.pushed = append(s.pushed, text)
	return nil
}

func (s *scripted) Prompt(ctx context.Context, text string) error {
	s.prompts = append(s.prompts, text)
	return nil
}

// outputs returns what was pushed between the banner and the exit message.
func (s *scripted) outputs() []string {
	if len(s.pushed) < 2 {
		return nil
	}
	return s.pushed[1 : len(s.pushed)-1]
}

func (s *scripted) last() string {
	if len(s.pushed) == 0 {
		return ""
	}
	return s.pushed[len(s.pushed)-1]
}

type memRecorder struct {
	sources []string
	results []Result
}

func (r *memRecorder) Record(source, output string, success bool) error {
	r.sources = append(r.sources, source)
	r.results = append(r.results, Result{Text: output, Success: success})
	return nil
}

func newTestShell(t *testing.T, lines []string, opts ...Option) (*Shell, *scripted) {
	t.Helper()
	tr := &scripted{lines: lines}
	env := NewEnvironment(WithStdout(io.Discard))
	base := []Option{
		WithEcho(false),
		WithSession("test-session"),
		WithRenderer(lipgloss.NewRenderer(io.Discard)),
	}
	return New(env, tr, append(base, opts...)...), tr
}

func runShell(t *testing.T, lines []string, opts ...Option) *scripted {
	t.Helper()
	sh, tr := newTestShell(t, lines, opts...)
	require.NoError(t, sh.Run(context.Background()))
	return tr
}

func TestShell_ExpressionScenario(t *testing.T) {
	tr := runShell(t, []string{"x = 5", "x + 1", "end"})

	assert.Equal(t, []string{"6"}, tr.outputs())
	assert.Contains(t, tr.pushed[0], "test-session")
	assert.Contains(t, tr.last(), "Session closed.")
}

func TestShell_ForLoop(t *testing.T) {
	tr := runShell(t, []string{
		"total = 0",
		"for i in range(3):",
		"print(i)",
		"total += i",
		"end",
		"total",
		"end",
	})

	if diff := cmp.Diff([]string{"0\n1\n2", "3"}, tr.outputs()); diff != "" {
		t.Errorf("outputs mismatch (-want +got):\n%s", diff)
	}
}

func TestShell_ForLoopDestructuringAndElse(t *testing.T) {
	tr := runShell(t, []string{
		"for k, v in Object.entries({a: 1, b: 2}):",
		"print(k, v)",
		"else:",
		"print('done')",
		"endfor",
		"end",
	})

	assert.Equal(t, []string{"a 1\nb 2\ndone"}, tr.outputs())
}

func TestShell_ForLoopOverNonIterable(t *testing.T) {
	tr := runShell(t, []string{"for x in 42:", "print(x)", "end", "end"})

	require.Len(t, tr.outputs(), 1)
	assert.Contains(t, tr.outputs()[0], "Traceback")
}

func TestShell_WhileWithElse(t *testing.T) {
	tr := runShell(t, []string{
		"n = 0",
		"while n < 3:",
		"n += 1",
		"print(n)",
		"else:",
		"print('done')",
		"endwhile",
		"end",
	})

	assert.Equal(t, []string{"1\n2\n3\ndone"}, tr.outputs())
}

func TestShell_IfElifElse(t *testing.T) {
	lines := func(x string) []string {
		return []string{
			"x = " + x,
			"if x == 1:",
			"print('one')",
			"elif x == 2:",
			"print('two')",
			"else:",
			"print('other')",
			"end",
			"end",
		}
	}

	assert.Equal(t, []string{"one"}, runShell(t, lines("1")).outputs())
	assert.Equal(t, []string{"two"}, runShell(t, lines("2")).outputs())
	assert.Equal(t, []string{"other"}, runShell(t, lines("3")).outputs())
}

func TestShell_IfWithoutMatchShowsNothing(t *testing.T) {
	tr := runShell(t, []string{"if false:", "print('no')", "end", "end"})

	assert.Empty(t, tr.outputs())
}

func TestShell_NestedBlocks(t *testing.T) {
	tr := runShell(t, []string{
		"for i in range(4):",
		"if i % 2 == 0:",
		"print(i)",
		"end",
		"end",
		"end",
	})

	// Every pass yields one result, empty or not.
	assert.Equal(t, []string{"0\n\n2\n"}, tr.outputs())
}

func TestShell_NestedPrompts(t *testing.T) {
	sh, tr := newTestShell(t, []string{"if true:", "for i in range(1):", "i", "end", "end", "end"})
	require.NoError(t, sh.Run(context.Background()))

	want := []string{">>> ", "    ... ", "        ... ", "        ... ", "    ... ", ">>> "}
	assert.Equal(t, want, tr.prompts)
}

func TestShell_SyntaxErrorKeepsSessionGoing(t *testing.T) {
	tr := runShell(t, []string{"for i range(3):", "else:", "1 + 2", "end"})

	out := tr.outputs()
	require.Len(t, out, 3)
	assert.Contains(t, out[0], "syntax error")
	assert.Contains(t, out[0], "for i range(3):")
	assert.Contains(t, out[1], "syntax error")
	assert.Equal(t, "3", out[2])
}

func TestShell_TracebackIsReported(t *testing.T) {
	rec := &memRecorder{}
	tr := runShell(t, []string{
		"function f() { throw new Error('boom') }",
		"f()",
		"'still alive'",
		"end",
	}, WithRecorder(rec))

	out := tr.outputs()
	require.Len(t, out, 2)
	assert.Contains(t, out[0], "Traceback (most recent call last):")
	assert.Contains(t, out[0], "Error: boom")
	assert.Equal(t, `"still alive"`, out[1])

	require.Len(t, rec.results, 3)
	assert.False(t, rec.results[1].Success)
	assert.True(t, rec.results[2].Success)
}

func TestShell_ErrorInsideBlockAbortsIt(t *testing.T) {
	tr := runShell(t, []string{
		"for i in range(3):",
		"print(i)",
		"if i == 1:",
		"missing()",
		"end",
		"end",
		"end",
	})

	require.Len(t, tr.outputs(), 1)
	assert.Contains(t, tr.outputs()[0], "ReferenceError")
}

func TestShell_ShutKeyword(t *testing.T) {
	tr := runShell(t, []string{"x = 1", "quit", "never read"}, WithShutKeywords("quit"))

	assert.Contains(t, tr.last(), "Session closed: quit")
}

func TestShell_ShutKeywordInsideBlock(t *testing.T) {
	tr := runShell(t, []string{"while true:", "quit"}, WithShutKeywords("quit"))

	assert.Contains(t, tr.last(), "Session closed: quit")
}

func TestShell_ExitFromCode(t *testing.T) {
	tr := runShell(t, []string{"exit('done')", "never read"})

	assert.Contains(t, tr.last(), "Session closed: done")
}

func TestShell_ExitInsideLoop(t *testing.T) {
	tr := runShell(t, []string{
		"for i in range(10):",
		"if i == 2:",
		"exit()",
		"end",
		"end",
	})

	assert.Contains(t, tr.last(), "Session closed.")
}

func TestShell_ExitFromIterator(t *testing.T) {
	sh, tr := newTestShell(t, []string{
		"function* g() { yield 1; exit('bye'); yield 2 }",
		"for x in g():",
		"print(x)",
		"end",
		"print('after')",
	})
	require.NoError(t, sh.Run(context.Background()))

	for _, out := range tr.pushed {
		assert.NotContains(t, out, "Fatal exception")
	}
	assert.Contains(t, tr.last(), "Session closed: bye")
	assert.Equal(t, []string{"print('after')"}, tr.lines, "the session ends before reading further")
}

func TestShell_Echo(t *testing.T) {
	tr := runShell(t, []string{"if true:", "1", "end", "end"}, WithEcho(true))

	out := tr.outputs()
	require.NotEmpty(t, out)
	assert.Contains(t, out, "if true:\n")
	assert.Contains(t, out, "if true:\n    1\nend\n")
	assert.Equal(t, "1", out[len(out)-1])
}

func TestShell_Help(t *testing.T) {
	tr := runShell(t, []string{"help", "end"})

	require.Len(t, tr.outputs(), 1)
	assert.Contains(t, tr.outputs()[0], "Reserved names: _shell _ _coro _prov _item")
}

func TestShell_Bridge(t *testing.T) {
	tr := runShell(t, []string{
		"_shell.push('direct')",
		"_shell.session",
		"y = 1",
		"_shell.globals()",
		"end",
	})

	assert.Equal(t, []string{"direct", `"test-session"`, `["y"]`}, tr.outputs())
}

func TestShell_Recorder(t *testing.T) {
	rec := &memRecorder{}
	runShell(t, []string{"x = 5", "x + 1", "end"}, WithRecorder(rec))

	assert.Equal(t, []string{"x = 5\n", "x + 1\n"}, rec.sources)
	assert.Equal(t, []Result{NewResult(""), NewResult("6")}, rec.results)
}

func TestShell_PullFailureIsIOError(t *testing.T) {
	env := NewEnvironment(WithStdout(io.Discard))
	broken := errors.New("broken pipe")
	tr := Funcs{
		PullFunc: func(ctx context.Context) (string, error) { return "", broken },
		PushFunc: func(ctx context.Context, text string) error { return nil },
	}

	err := New(env, tr).Run(context.Background())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "pull", ioErr.Method)
	assert.ErrorIs(t, err, broken)
}

func TestShell_PushFailureIsIOError(t *testing.T) {
	env := NewEnvironment(WithStdout(io.Discard))
	broken := errors.New("closed")
	tr := Funcs{
		PullFunc: func(ctx context.Context) (string, error) { return "end", nil },
		PushFunc: func(ctx context.Context, text string) error { return broken },
	}

	err := New(env, tr).Run(context.Background())
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "push", ioErr.Method)
}

func TestShell_EndOfInput(t *testing.T) {
	sh, _ := newTestShell(t, []string{"x = 1"})

	err := sh.Run(context.Background())
	assert.ErrorIs(t, err, io.EOF)
	assert.True(t, IsExit(err))
}

func TestShell_CancelInterruptsEndlessLoop(t *testing.T) {
	sh, _ := newTestShell(t, []string{"while true:", "n = 1", "end", "end"})
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := sh.Run(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestShell_Await(t *testing.T) {
	tr := runShell(t, []string{"v = await sleep(5).then(() => 41)", "v + 1", "end"})

	assert.Equal(t, []string{"42"}, tr.outputs())
}

func TestShell_Keywords(t *testing.T) {
	sh, _ := newTestShell(t, nil, WithShutKeywords("quit", " exit ", ""))
	defer sh.Environment().Close()

	assert.Equal(t, []string{"help", "end", "endfor", "endwhile", "endif", "exit", "quit"}, sh.keywords())
}

func TestLoop_AddRejectsHeaderWithoutColon(t *testing.T) {
	sh, _ := newTestShell(t, nil)
	defer sh.Environment().Close()
	l := newLoop(sh, 0, "", nil)

	err := l.add(context.Background(), "for i in range(3)")
	var syn *SyntaxError
	require.True(t, errors.As(err, &syn))
	assert.Zero(t, l.Len(), "buffer unchanged")
	assert.Empty(t, l.History(), "history unchanged")

	require.NoError(t, l.add(context.Background(), "for (let i = 0; i < 1; i++) {}"))
	assert.Equal(t, 1, l.Len(), "runtime for statements are ordinary lines")
}

func TestLoop_ClauseErrors(t *testing.T) {
	tests := []struct {
		name  string
		kind  blockKind
		lines []string
	}{
		{"else outside block", nil, []string{"else:"}},
		{"elif in for", &forBlock{variter: "i", iterator: "range(1)"}, []string{"elif x:"}},
		{"duplicate else", &whileBlock{condition: "false"}, []string{"else:", "else:"}},
		{"elif after else", &ifBlock{branches: []ifBranch{{condition: "true"}}}, []string{"else:", "elif x:"}},
		{"malformed else", &forBlock{variter: "i", iterator: "range(1)"}, []string{"else if:"}},
		{"unknown block", nil, []string{"switch x:"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sh, _ := newTestShell(t, nil)
			defer sh.Environment().Close()
			l := newLoop(sh, 1, "", tt.kind)

			var err error
			for _, line := range tt.lines {
				if err = l.add(context.Background(), line); err != nil {
					break
				}
			}
			var syn *SyntaxError
			assert.True(t, errors.As(err, &syn), "got %v", err)
		})
	}
}

func TestForBlock_OneResultPerPass(t *testing.T) {
	sh, _ := newTestShell(t, nil)
	defer sh.Environment().Close()

	kind, err := parseHeader("for", "for i in range(3):")
	require.NoError(t, err)
	l := newLoop(sh, 1, "for i in range(3):", kind)
	l.buffer = append(l.buffer, NewLine(sh.env, "i * 10"))

	results, err := kind.(*forBlock).iterate(context.Background(), l)
	require.NoError(t, err)
	assert.Equal(t, 3, results.Len())
	assert.Equal(t, "0\n10\n20", results.Join("\n").Text)
}

func TestParseHeader(t *testing.T) {
	kind, err := parseHeader("for", "for (a, b) in pairs :")
	require.NoError(t, err)
	fb := kind.(*forBlock)
	assert.Equal(t, "pairs", fb.iterator)
	assert.Equal(t, "[a, b]", fb.target())

	kind, err = parseHeader("while", "while i < 10:")
	require.NoError(t, err)
	assert.Equal(t, "i < 10", kind.(*whileBlock).condition)

	for _, line := range []string{"for x:", "while:", "if :"} {
		_, err := parseHeader(firstWord(line), line)
		assert.Error(t, err, line)
	}
}

func TestIsBlockHeader(t *testing.T) {
	assert.True(t, isBlockHeader("for i in x"))
	assert.True(t, isBlockHeader("else"))
	assert.False(t, isBlockHeader("for (;;) {}"))
	assert.False(t, isBlockHeader("if(x) y()"))
	assert.False(t, isBlockHeader("format(x)"))
}
