package pseudoshell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// scriptName is the source name every evaluated line runs under.
const scriptName = "<shell>"

var errEnvironmentClosed = errors.New("environment closed")

// Names holds the reserved identifiers the shell uses inside the runtime.
// Operators must not use them as ordinary variables.
type Names struct {
	Bridge      string `yaml:"bridge"`
	LastValue   string `yaml:"last_value"`
	Coroutine   string `yaml:"coroutine"`
	Provisional string `yaml:"provisional"`
	Item        string `yaml:"item"`
}

// DefaultNames returns the standard reserved identifiers.
func DefaultNames() Names {
	return Names{
		Bridge:      "_shell",
		LastValue:   "_",
		Coroutine:   "_coro",
		Provisional: "_prov",
		Item:        "_item",
	}
}

// List returns the reserved identifiers in a stable order.
func (n Names) List() []string {
	return []string{n.Bridge, n.LastValue, n.Coroutine, n.Provisional, n.Item}
}

func (n Names) withDefaults() Names {
	d := DefaultNames()
	if n.Bridge == "" {
		n.Bridge = d.Bridge
	}
	if n.LastValue == "" {
		n.LastValue = d.LastValue
	}
	if n.Coroutine == "" {
		n.Coroutine = d.Coroutine
	}
	if n.Provisional == "" {
		n.Provisional = d.Provisional
	}
	if n.Item == "" {
		n.Item = d.Item
	}
	return n
}

// Environment is the persistent namespace of one shell session. It owns a
// goja runtime whose global object holds every binding made by evaluated
// lines. An Environment must only be used from one goroutine at a time.
type Environment struct {
	vm      *goja.Runtime
	names   Names
	stdout  io.Writer
	timeout time.Duration
	logger  *zap.Logger

	builtins map[string]goja.Value
	refresh  func()
	exit     *ExitError

	jobs      chan func()
	done      chan struct{}
	closeOnce sync.Once
}

// EnvOption configures an Environment.
type EnvOption func(*Environment)

// WithNames overrides the reserved identifiers. Empty fields keep their
// defaults.
func WithNames(n Names) EnvOption {
	return func(e *Environment) { e.names = n.withDefaults() }
}

// WithLineTimeout bounds the evaluation time of every single line.
func WithLineTimeout(d time.Duration) EnvOption {
	return func(e *Environment) { e.timeout = d }
}

// WithStdout sets the real output sink that print writes to outside of line
// execution.
func WithStdout(w io.Writer) EnvOption {
	return func(e *Environment) { e.stdout = w }
}

// WithEnvLogger sets the logger used by the environment.
func WithEnvLogger(l *zap.Logger) EnvOption {
	return func(e *Environment) { e.logger = l }
}

// NewEnvironment creates an environment with the builtins installed.
func NewEnvironment(opts ...EnvOption) *Environment {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	e := &Environment{
		vm:       vm,
		names:    DefaultNames(),
		stdout:   os.Stdout,
		logger:   zap.NewNop(),
		builtins: make(map[string]goja.Value),
		jobs:     make(chan func(), 64),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.installBuiltins()
	e.ensureBuiltins()
	return e
}

// Names returns the reserved identifiers of this environment.
func (e *Environment) Names() Names {
	return e.names
}

// Runtime exposes the underlying goja runtime.
func (e *Environment) Runtime() *goja.Runtime {
	return e.vm
}

// Stdout returns the current output sink.
func (e *Environment) Stdout() io.Writer {
	return e.stdout
}

// SetStdout replaces the output sink and returns a function restoring the
// previous one.
func (e *Environment) SetStdout(w io.Writer) (restore func()) {
	prev := e.stdout
	e.stdout = w
	return func() { e.stdout = prev }
}

// Set binds name to a Go value.
func (e *Environment) Set(name string, v any) error {
	return e.vm.Set(name, v)
}

// Get returns the value bound to name, or nil when unbound.
func (e *Environment) Get(name string) goja.Value {
	return e.vm.Get(name)
}

// Delete removes a global binding.
func (e *Environment) Delete(name string) {
	_ = e.vm.GlobalObject().Delete(name)
}

// Globals returns the sorted names of the operator's global bindings,
// leaving out builtins and reserved identifiers.
func (e *Environment) Globals() []string {
	reserved := make(map[string]bool)
	for _, n := range e.names.List() {
		reserved[n] = true
	}
	var names []string
	for _, k := range e.vm.GlobalObject().Keys() {
		if _, ok := e.builtins[k]; ok || reserved[k] {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Close releases the environment. Pending timers are abandoned.
func (e *Environment) Close() {
	e.closeOnce.Do(func() { close(e.done) })
}

// OnRefresh registers fn to run after every line evaluation.
func (e *Environment) OnRefresh(fn func()) {
	e.refresh = fn
}

func (e *Environment) refreshBindings() {
	if e.refresh != nil {
		e.refresh()
	}
}

// Eval runs src in the global scope. Cancellation of ctx and the line
// timeout interrupt the runtime.
func (e *Environment) Eval(ctx context.Context, src string) (goja.Value, error) {
	e.drain()

	ctx, cancel := e.lineContext(ctx)
	defer cancel()
	stop := e.watch(ctx)
	v, err := e.vm.RunScript(scriptName, src)
	stop()

	if exit := e.takeExit(); exit != nil {
		return nil, exit
	}
	return v, err
}

// lineContext bounds ctx by the line timeout, when one is set.
func (e *Environment) lineContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout > 0 {
		return context.WithTimeout(ctx, e.timeout)
	}
	return context.WithCancel(ctx)
}

// watch interrupts the runtime once ctx is done. The returned function
// stops watching and clears any pending interrupt.
func (e *Environment) watch(ctx context.Context) (stop func()) {
	done := make(chan struct{})
	watched := make(chan struct{})
	go func() {
		defer close(watched)
		select {
		case <-ctx.Done():
			e.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-watched
		e.vm.ClearInterrupt()
	}
}

// Resolve returns v unchanged unless it is a promise, in which case it
// suspends until the promise settles, running queued runtime jobs meanwhile.
func (e *Environment) Resolve(ctx context.Context, v goja.Value) (goja.Value, error) {
	p, ok := promiseOf(v)
	if !ok {
		return v, nil
	}
	ctx, cancel := e.lineContext(ctx)
	defer cancel()
	stop := e.watch(ctx)
	defer stop()

	for p.State() == goja.PromiseStatePending {
		select {
		case job := <-e.jobs:
			if err := e.runJob(job); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-e.done:
			return nil, errEnvironmentClosed
		}
	}
	if exit := e.takeExit(); exit != nil {
		return nil, exit
	}
	if p.State() == goja.PromiseStateRejected {
		return nil, &RejectionError{Reason: p.Result()}
	}
	return p.Result(), nil
}

// runJob runs a queued job, turning a runtime interrupt raised by the
// callbacks it settles into an error.
func (e *Environment) runJob(job func()) (err error) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		e.vm.ClearInterrupt()
		if exit := e.takeExit(); exit != nil {
			err = exit
			return
		}
		if rerr, ok := r.(error); ok {
			var interrupted *goja.InterruptedError
			if errors.As(rerr, &interrupted) {
				err = interrupted
				return
			}
		}
		panic(r)
	}()
	job()
	return nil
}

// RejectionError carries the reason of a rejected promise.
type RejectionError struct {
	Reason goja.Value
}

func (e *RejectionError) Error() string {
	if e.Reason == nil {
		return "promise rejected"
	}
	return "promise rejected: " + e.Reason.String()
}

func promiseOf(v goja.Value) (*goja.Promise, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}
	p, ok := v.Export().(*goja.Promise)
	return p, ok
}

// enqueue hands job to the session goroutine. It gives up once the
// environment is closed.
func (e *Environment) enqueue(job func()) {
	select {
	case e.jobs <- job:
	case <-e.done:
	}
}

// drain runs every job already queued without blocking.
func (e *Environment) drain() {
	for {
		select {
		case job := <-e.jobs:
			job()
		default:
			return
		}
	}
}

func (e *Environment) requestExit(reason string) {
	e.exit = &ExitError{Reason: reason}
	e.vm.Interrupt(e.exit)
}

func (e *Environment) takeExit() *ExitError {
	exit := e.exit
	e.exit = nil
	return exit
}

// newExecutionError wraps err raised while evaluating src, collecting the
// runtime stack outermost first.
func newExecutionError(src string, err error) *ExecutionError {
	ee := &ExecutionError{Source: src, Err: err}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		stack := ex.Stack()
		for i := len(stack) - 1; i >= 0; i-- {
			var b bytes.Buffer
			stack[i].Write(&b)
			ee.Frames = append(ee.Frames, b.String())
		}
	}
	return ee
}

func errorMessage(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		return ex.Value().String()
	}
	if err == nil {
		return ""
	}
	return fmt.Sprint(err)
}

// iterate collects the values produced by iterating v with the runtime's
// iteration protocol. An exit requested by iterator code is returned as the
// *ExitError.
func (e *Environment) iterate(ctx context.Context, v goja.Value) (values []goja.Value, err error) {
	ctx, cancel := e.lineContext(ctx)
	defer cancel()
	stop := e.watch(ctx)
	defer func() {
		r := recover()
		stop()
		if exit := e.takeExit(); exit != nil {
			values, err = nil, exit
			return
		}
		if r == nil {
			return
		}
		if rerr, ok := r.(error); ok {
			var interrupted *goja.InterruptedError
			if errors.As(rerr, &interrupted) {
				values, err = nil, interrupted
				return
			}
		}
		if ctx.Err() != nil {
			values, err = nil, ctx.Err()
			return
		}
		panic(r)
	}()

	ex := e.vm.Try(func() {
		e.vm.ForOf(v, func(cur goja.Value) bool {
			values = append(values, cur)
			return true
		})
	})
	if ex != nil {
		return nil, ex
	}
	return values, nil
}
