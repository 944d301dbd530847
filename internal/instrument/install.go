package instrument

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Options configure Install.
type Options struct {
	// ResultGlobal is the global name of the result object. Defaults to
	// DefaultResultGlobal.
	ResultGlobal string

	Render   RenderOptions
	Logger   *zap.Logger
	OnAppend AppendFunc
}

type target struct {
	hook  Hook
	owner *goja.Object
}

// Install instruments vm with every hook in cat and returns the Store the
// hooks write to. When vm already carries a result object from an earlier
// Install, nothing is modified and the existing Store is returned.
//
// Every hook is resolved and checked before anything is wrapped, and the
// result object is bound only once every wrap took. A failed Install leaves
// vm as it found it. Install must run on the goroutine that owns vm, before
// untrusted script runs.
func Install(vm *goja.Runtime, cat Catalogue, opts Options) (*Store, error) {
	name := opts.ResultGlobal
	if name == "" {
		name = DefaultResultGlobal
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if store, found := lookupResult(vm, name); found {
		if store == nil {
			return nil, fmt.Errorf("%w: %s", ErrForeignResult, name)
		}
		logger.Info("Instrumentation already installed", zap.String("global", name))
		return store, nil
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}

	store := NewStore(cat.Sinks())
	if opts.OnAppend != nil {
		store.OnAppend(opts.OnAppend)
	}
	wrapper := NewWrapper(vm, NewBuilder(vm, NewRenderer(vm, opts.Render)), store, logger)

	targets := make([]target, 0, len(cat.Hooks))
	for _, h := range cat.Hooks {
		owner, err := resolveOwner(vm, h.Owner)
		if err != nil {
			return nil, &ConfigError{Hook: h, Err: err}
		}
		if err := wrapper.check(owner, h); err != nil {
			return nil, &ConfigError{Hook: h, Err: err}
		}
		targets = append(targets, target{hook: h, owner: owner})
	}

	var undo []func() error
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			if err := undo[i](); err != nil {
				logger.Warn("Failed to restore hooked member", zap.Error(err))
			}
		}
	}

	for _, t := range targets {
		restore, err := wrapper.snapshot(t.owner, t.hook.Member)
		if err == nil {
			switch t.hook.Kind {
			case KindCallable:
				err = wrapper.WrapCallable(t.owner, t.hook.Member, t.hook.Sink)
			case KindSetter:
				err = wrapper.WrapSetter(t.owner, t.hook.Member, t.hook.Sink)
			}
		}
		if err != nil {
			rollback()
			return nil, &ConfigError{Hook: t.hook, Err: err}
		}
		undo = append(undo, restore)
	}

	if err := bindResult(vm, name, store); err != nil {
		rollback()
		return nil, fmt.Errorf("failed to bind result global: %w", err)
	}

	logger.Info("Instrumentation installed",
		zap.String("global", name),
		zap.Int("hooks", len(targets)),
		zap.Int("sinks", len(store.Sinks())),
	)
	return store, nil
}

// Installed returns the Store bound under name, if any.
func Installed(vm *goja.Runtime, name string) (*Store, bool) {
	if name == "" {
		name = DefaultResultGlobal
	}
	store, _ := lookupResult(vm, name)
	return store, store != nil
}

// check verifies a hook's target without modifying it.
func (w *Wrapper) check(owner *goja.Object, h Hook) error {
	switch h.Kind {
	case KindCallable:
		if _, err := w.callable(owner, h.Member); err != nil {
			return err
		}
		_, err := w.slot(owner, h.Member)
		return err
	case KindSetter:
		_, err := w.accessor(owner, h.Member)
		return err
	}
	return fmt.Errorf("%w: unknown kind %q", ErrInvalidHook, h.Kind)
}

// resolveOwner walks a dotted path from the global object. "globalThis" at
// the start names the global object itself.
func resolveOwner(vm *goja.Runtime, path string) (*goja.Object, error) {
	cur := vm.GlobalObject()
	parts := strings.Split(path, ".")
	if parts[0] == "globalThis" {
		parts = parts[1:]
	}
	for _, part := range parts {
		var val goja.Value
		if ex := vm.Try(func() { val = cur.Get(part) }); ex != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMissingOwner, path, ex)
		}
		obj, ok := val.(*goja.Object)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingOwner, path)
		}
		cur = obj
	}
	return cur, nil
}
