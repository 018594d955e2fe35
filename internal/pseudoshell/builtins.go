package pseudoshell

import (
	"io"
	"strings"
	"time"

	"github.com/dop251/goja"
)

// installBuiltins prepares the builtin values of the runtime. They are bound
// into the global object by ensureBuiltins.
func (e *Environment) installBuiltins() {
	vm := e.vm

	e.builtins["print"] = vm.ToValue(e.print)

	console := vm.NewObject()
	_ = console.Set("log", e.print)
	e.builtins["console"] = console

	// sys.stdout.write looks the sink up on every call so that redirections
	// made after installation are honoured.
	stdout := vm.NewObject()
	_ = stdout.Set("write", func(call goja.FunctionCall) goja.Value {
		n, _ := io.WriteString(e.stdout, call.Argument(0).String())
		return vm.ToValue(n)
	})
	sys := vm.NewObject()
	_ = sys.Set("stdout", stdout)
	e.builtins["sys"] = sys

	e.builtins["exit"] = vm.ToValue(func(call goja.FunctionCall) goja.Value {
		var reason string
		if len(call.Arguments) > 0 && !goja.IsUndefined(call.Argument(0)) {
			reason = call.Argument(0).String()
		}
		e.requestExit(reason)
		return goja.Undefined()
	})

	e.builtins["sleep"] = vm.ToValue(e.sleep)
	e.builtins["range"] = vm.ToValue(e.rangeOf)
}

// ensureBuiltins binds every builtin that is missing from the global object.
func (e *Environment) ensureBuiltins() {
	global := e.vm.GlobalObject()
	for name, v := range e.builtins {
		if cur := global.Get(name); cur == nil || goja.IsUndefined(cur) {
			_ = global.Set(name, v)
		}
	}
}

// print writes its arguments separated by spaces, then a newline as a
// separate write.
func (e *Environment) print(call goja.FunctionCall) goja.Value {
	parts := make([]string, len(call.Arguments))
	for i, arg := range call.Arguments {
		parts[i] = display(arg)
	}
	w := e.stdout
	_, _ = io.WriteString(w, strings.Join(parts, " "))
	_, _ = io.WriteString(w, "\n")
	return goja.Undefined()
}

// sleep returns a promise fulfilled after the given number of milliseconds.
func (e *Environment) sleep(call goja.FunctionCall) goja.Value {
	ms := call.Argument(0).ToInteger()
	p, resolve, _ := e.vm.NewPromise()
	go func() {
		t := time.NewTimer(time.Duration(ms) * time.Millisecond)
		defer t.Stop()
		select {
		case <-t.C:
		case <-e.done:
			return
		}
		e.enqueue(func() {
			if err := resolve(goja.Undefined()); err != nil {
				e.logger.Debug("sleep resolution failed")
			}
		})
	}()
	return e.vm.ToValue(p)
}

// rangeOf mirrors range(stop) and range(start, stop[, step]).
func (e *Environment) rangeOf(call goja.FunctionCall) goja.Value {
	var start, stop, step int64 = 0, 0, 1
	switch len(call.Arguments) {
	case 0:
		panic(e.vm.NewTypeError("range expected at least 1 argument, got 0"))
	case 1:
		stop = call.Argument(0).ToInteger()
	default:
		start = call.Argument(0).ToInteger()
		stop = call.Argument(1).ToInteger()
		if len(call.Arguments) > 2 {
			step = call.Argument(2).ToInteger()
		}
	}
	if step == 0 {
		panic(e.vm.NewTypeError("range() arg 3 must not be zero"))
	}

	var items []any
	for i := start; (step > 0 && i < stop) || (step < 0 && i > stop); i += step {
		items = append(items, i)
	}
	return e.vm.NewArray(items...)
}
