package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Runtime wraps a goja VM with a browser-shaped global scope
type Runtime struct {
	vm     *goja.Runtime
	config Config
	logger *zap.Logger
	mu     sync.Mutex
	url    string

	dom    *DOM
	timers *timerQueue

	// Console output
	console   []LogEntry
	consoleMu sync.Mutex

	scriptErrors []ScriptError
	closed       bool
}

// New creates a new sandboxed runtime with an empty document loaded
func New(config Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runtime{
		config: config,
		logger: logger,
	}
	if err := r.init(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Runtime) init() error {
	r.vm = goja.New()
	r.url = r.config.URL
	r.console = []LogEntry{}
	r.scriptErrors = nil
	r.timers = newTimerQueue()

	if r.config.MaxCallStack > 0 {
		r.vm.SetMaxCallStackSize(r.config.MaxCallStack)
	}

	if err := r.setupGlobals(); err != nil {
		return err
	}

	dom, err := newDOM(r)
	if err != nil {
		return fmt.Errorf("failed to set up DOM: %w", err)
	}
	r.dom = dom
	return nil
}

// VM returns the underlying goja runtime. It must only be used from the
// goroutine currently driving the Runtime.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// DOM returns the document bindings.
func (r *Runtime) DOM() *DOM {
	return r.dom
}

// LoadDocument replaces the current document with html.
func (r *Runtime) LoadDocument(html string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	return r.dom.load(html)
}

// Execute runs one classic script with the configured timeout. JavaScript
// exceptions are returned unchanged and also recorded in ScriptErrors.
func (r *Runtime) Execute(ctx context.Context, name, script string) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	start := time.Now()
	consoleMark := r.consoleLen()
	externalMark := len(r.dom.external)

	var val goja.Value
	err := r.guard(ctx, func() error {
		var err error
		val, err = r.vm.RunScript(name, script)
		return err
	})

	result := &Result{
		Duration:        time.Since(start),
		Console:         r.consoleSince(consoleMark),
		ExternalScripts: append([]string{}, r.dom.external[externalMark:]...),
	}

	if err != nil {
		err = r.fail(name, err)
		result.Error = err
		return result, err
	}

	result.Value = r.exportValue(val)
	return result, nil
}

// Navigate points location and document.URL at rawURL without loading
// anything. Reset restores the configured URL.
func (r *Runtime) Navigate(rawURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	r.url = rawURL
	if err := r.setupLocation(); err != nil {
		return err
	}
	return r.dom.bindLocation(r.dom.document)
}

// Dispatch fires event on the named target ("document" or "window") and, for
// window, calls the matching on<event> handler property.
func (r *Runtime) Dispatch(ctx context.Context, target, event string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}

	var obj *goja.Object
	switch target {
	case "document":
		obj = r.dom.document
	case "window":
		obj = r.vm.GlobalObject()
	default:
		return fmt.Errorf("unknown event target %q", target)
	}

	return r.guard(ctx, func() error {
		r.dom.listeners.dispatch(obj, event)
		if target == "window" {
			if handler, ok := goja.AssertFunction(obj.Get("on" + event)); ok {
				r.invoke(target+".on"+event, handler, obj, r.dom.listeners.event(event))
			}
		}
		return nil
	})
}

// RunTimers drains the timer queue on a virtual clock and returns the number
// of callbacks run.
func (r *Runtime) RunTimers(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, ErrClosed
	}

	ran := 0
	err := r.guard(ctx, func() error {
		ran = r.timers.drain(r, r.config.TimerBudget, r.config.IntervalRuns)
		return nil
	})
	return ran, err
}

// PendingTimers returns the number of timers still scheduled, including
// intervals that have runs left.
func (r *Runtime) PendingTimers() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0
	}
	return r.timers.pending()
}

// Console returns all console output since the last Reset
func (r *Runtime) Console() []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console...)
}

// ScriptErrors returns every uncaught error since the last Reset.
func (r *Runtime) ScriptErrors() []ScriptError {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ScriptError{}, r.scriptErrors...)
}

// ExternalScripts returns the src of every external script that was
// inserted since the last Reset. They are never fetched.
func (r *Runtime) ExternalScripts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.dom.external...)
}

// guard runs fn while a watchdog interrupts the VM on timeout or ctx
// cancellation. Interrupts are reported as ErrInterrupted.
func (r *Runtime) guard(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		var expired <-chan time.Time
		if r.config.Timeout > 0 {
			timer := time.NewTimer(r.config.Timeout)
			defer timer.Stop()
			expired = timer.C
		}
		select {
		case <-expired:
			r.vm.Interrupt("execution timeout exceeded")
		case <-ctx.Done():
			r.vm.Interrupt("context cancelled")
		case <-stop:
		}
	}()

	err := r.protect(fn)
	close(stop)
	<-done
	r.vm.ClearInterrupt()

	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%w: %v", ErrInterrupted, interrupted.Value())
	}
	return err
}

// protect turns an uncatchable panic escaping a host call into an error.
func (r *Runtime) protect(fn func() error) (err error) {
	defer func() {
		if x := recover(); x != nil {
			e, ok := x.(error)
			if !ok {
				panic(x)
			}
			err = e
		}
	}()
	return fn()
}

// fail records err against name and returns it.
func (r *Runtime) fail(name string, err error) error {
	r.scriptErrors = append(r.scriptErrors, ScriptError{Script: name, Message: r.describe(err)})
	r.logger.Debug("Script error", zap.String("script", name), zap.Error(err))
	return err
}

// runNested executes a script inserted by a running script. Exceptions are
// recorded and swallowed, interrupts keep unwinding.
func (r *Runtime) runNested(name, src string) {
	if _, err := r.vm.RunScript(name, src); err != nil {
		if _, ok := err.(*goja.Exception); !ok {
			panic(err)
		}
		r.fail(name, err)
	}
}

// invoke calls fn with this and args, recording an exception under name.
func (r *Runtime) invoke(name string, fn goja.Callable, this goja.Value, args ...goja.Value) {
	if _, err := fn(this, args...); err != nil {
		if _, ok := err.(*goja.Exception); !ok {
			panic(err)
		}
		r.fail(name, err)
	}
}

func (r *Runtime) describe(err error) string {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err.Error()
	}
	msg := "uncaught exception"
	r.vm.Try(func() { msg = ex.Error() })
	return msg
}

// setupGlobals configures global objects and security
func (r *Runtime) setupGlobals() error {
	// Remove dangerous globals
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := r.vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}

	global := r.vm.GlobalObject()
	for _, name := range []string{"window", "self"} {
		if err := global.Set(name, global); err != nil {
			return err
		}
	}

	console := r.vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, r.makeConsoleFunc(level)); err != nil {
			return err
		}
	}
	if err := r.vm.Set("console", console); err != nil {
		return err
	}

	if err := r.setupLocation(); err != nil {
		return err
	}
	return r.timers.install(r)
}

// makeConsoleFunc creates a console function
func (r *Runtime) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		if !r.config.EnableConsole {
			return goja.Undefined()
		}

		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}

		r.consoleMu.Lock()
		r.console = append(r.console, LogEntry{
			Level:   level,
			Message: strings.Join(parts, " "),
			Time:    time.Now(),
		})
		r.consoleMu.Unlock()

		return goja.Undefined()
	}
}

func (r *Runtime) consoleLen() int {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return len(r.console)
}

func (r *Runtime) consoleSince(mark int) []LogEntry {
	r.consoleMu.Lock()
	defer r.consoleMu.Unlock()
	return append([]LogEntry{}, r.console[mark:]...)
}

// exportValue converts goja value to Go value
func (r *Runtime) exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	var out interface{}
	r.vm.Try(func() { out = val.Export() })
	return out
}

// Reset discards the VM and document and starts from a fresh global scope
func (r *Runtime) Reset() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	return r.init()
}

// Close releases resources
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.vm = nil
	r.dom = nil
	r.timers = nil
	r.console = nil
	return nil
}
