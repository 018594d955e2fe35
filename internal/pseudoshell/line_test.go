package pseudoshell

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execLine(t *testing.T, env *Environment, src string) (Result, error) {
	t.Helper()
	return NewLine(env, src).Exec(context.Background())
}

func TestLine_BareExpressionShowsValue(t *testing.T) {
	env := newTestEnv(t)

	res, err := execLine(t, env, "1 + 1")
	require.NoError(t, err)
	assert.Equal(t, NewResult("2"), res)
	assert.Nil(t, env.Get("_"), "the last-value slot is cleared")

	res, err = execLine(t, env, "'abc'")
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, res.Text)
}

func TestLine_AssignmentIsSilent(t *testing.T) {
	env := newTestEnv(t)

	res, err := execLine(t, env, "x = 5")
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, int64(5), env.Get("x").ToInteger())
}

func TestLine_ComparisonIsNotCaptured(t *testing.T) {
	env := newTestEnv(t)
	_, err := execLine(t, env, "a = 1; b = 1")
	require.NoError(t, err)

	res, err := execLine(t, env, "a == b")
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Nil(t, env.Get("_"))
}

func TestLine_PrintIsCaptured(t *testing.T) {
	env := newTestEnv(t)

	res, err := execLine(t, env, "print('hi')")
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Text, "the lone newline is dropped")

	res, err = execLine(t, env, "sys.stdout.write('a\\n')")
	require.NoError(t, err)
	assert.Equal(t, "a\n", res.Text, "output written together with text keeps its newline")
}

func TestLine_PrintWinsOverValue(t *testing.T) {
	env := newTestEnv(t)

	res, err := execLine(t, env, "(print('side'), 42)")
	require.NoError(t, err)
	assert.Equal(t, "side", res.Text)
}

func TestLine_SinkRestoredAfterFailure(t *testing.T) {
	env := newTestEnv(t)
	before := env.Stdout()

	_, err := execLine(t, env, "print('partial'); throw new Error('x')")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, "print('partial'); throw new Error('x')", execErr.Source)
	assert.Equal(t, before, env.Stdout())
}

func TestLine_Exit(t *testing.T) {
	env := newTestEnv(t)

	_, err := execLine(t, env, "exit('done')")
	var exit *ExitError
	require.True(t, errors.As(err, &exit))
	assert.Equal(t, "done", exit.Reason)
	assert.True(t, IsExit(err))
}

func TestLine_Await(t *testing.T) {
	env := newTestEnv(t)

	_, err := execLine(t, env, "v = await Promise.resolve(7)")
	require.NoError(t, err)
	assert.Equal(t, int64(7), env.Get("v").ToInteger())

	res, err := execLine(t, env, "await sleep(5).then(() => 'late')")
	require.NoError(t, err)
	assert.Equal(t, `"late"`, res.Text)
}

func TestLine_AwaitInsideFunctionIsLeftAlone(t *testing.T) {
	env := newTestEnv(t)

	_, err := execLine(t, env, "f = async () => { return await Promise.resolve(1) }")
	require.NoError(t, err)
	res, err := execLine(t, env, "f()")
	require.NoError(t, err)
	assert.Equal(t, "[Promise fulfilled]", res.Text)
}

func TestLine_AwaitRejected(t *testing.T) {
	env := newTestEnv(t)

	_, err := execLine(t, env, "await Promise.reject('nope')")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	var rej *RejectionError
	assert.True(t, errors.As(err, &rej))
}

func TestLine_AwaitHonoursLineTimeout(t *testing.T) {
	env := newTestEnv(t, WithLineTimeout(50*time.Millisecond))
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	start := time.Now()
	_, err := NewLine(env, "x = await new Promise(function () {})").Exec(ctx)
	elapsed := time.Since(start)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, elapsed, time.Second)
	assert.NoError(t, ctx.Err())
}

func TestExecutionError_TracebackDropsEvaluationFrame(t *testing.T) {
	env := newTestEnv(t)
	_, err := execLine(t, env, "function f() { throw new Error('boom') }")
	require.NoError(t, err)

	_, err = execLine(t, env, "f()")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.GreaterOrEqual(t, len(execErr.Frames), 2)

	tb := execErr.OriginalTraceback()
	assert.True(t, strings.HasPrefix(tb, "Traceback (most recent call last):\n"))
	assert.Equal(t, len(execErr.Frames)-1, strings.Count(tb, "  at "))
	assert.Contains(t, tb, "at f (")
	assert.True(t, strings.HasSuffix(tb, "Error: boom"))
}

func TestAutoCapture(t *testing.T) {
	tests := []struct {
		src  string
		want bool
	}{
		{"x + 1", true},
		{"f()", true},
		{"x = 1", false},
		{"a == b", false},
		{"x ? 1 : 2", false},
		{"", false},
		{"let y", false},
		{"var z", false},
		{"function g() {}", false},
		{"throw 1", false},
		{"delete x", false},
		{"forEach(x)", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, autoCapture(tt.src), tt.src)
	}
}

func TestFirstWord(t *testing.T) {
	assert.Equal(t, "for", firstWord("  for i in x:"))
	assert.Equal(t, "if", firstWord("if(x)"))
	assert.Equal(t, "$el", firstWord("$el.x"))
	assert.Equal(t, "", firstWord("(1)"))
	assert.Equal(t, "word", firstWord("word"))
}
