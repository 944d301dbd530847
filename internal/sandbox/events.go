package sandbox

import "github.com/dop251/goja"

// listeners keeps addEventListener registrations per target object.
type listeners struct {
	r        *Runtime
	byTarget map[*goja.Object]map[string][]goja.Value
}

func newListeners(r *Runtime) *listeners {
	return &listeners{r: r, byTarget: make(map[*goja.Object]map[string][]goja.Value)}
}

func (l *listeners) add(target *goja.Object, event string, fn goja.Value) {
	if _, ok := goja.AssertFunction(fn); !ok {
		return
	}
	events := l.byTarget[target]
	if events == nil {
		events = make(map[string][]goja.Value)
		l.byTarget[target] = events
	}
	for _, existing := range events[event] {
		if existing.SameAs(fn) {
			return
		}
	}
	events[event] = append(events[event], fn)
}

func (l *listeners) remove(target *goja.Object, event string, fn goja.Value) {
	events := l.byTarget[target]
	kept := events[event][:0]
	for _, existing := range events[event] {
		if !existing.SameAs(fn) {
			kept = append(kept, existing)
		}
	}
	if events != nil {
		events[event] = kept
	}
}

func (l *listeners) count(target *goja.Object, event string) int {
	return len(l.byTarget[target][event])
}

// dispatch calls every listener registered for event on target, in
// registration order. Listeners added during dispatch do not run.
func (l *listeners) dispatch(target *goja.Object, event string) {
	registered := append([]goja.Value{}, l.byTarget[target][event]...)
	for _, fn := range registered {
		call, _ := goja.AssertFunction(fn)
		l.r.invoke(event+" listener", call, target, l.event(event))
	}
}

// event builds a minimal Event object.
func (l *listeners) event(event string) goja.Value {
	vm := l.r.vm
	obj := vm.NewObject()
	_ = obj.Set("type", event)
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	_ = obj.Set("preventDefault", noop)
	_ = obj.Set("stopPropagation", noop)
	return obj
}

// bind defines addEventListener and removeEventListener on obj for events
// targeting owner. With owner nil the call's receiver is the target.
func (l *listeners) bind(obj, owner *goja.Object, resolve func(goja.Value) *goja.Object) error {
	target := func(call goja.FunctionCall) *goja.Object {
		if owner != nil {
			return owner
		}
		return resolve(call.This)
	}
	if err := obj.Set("addEventListener", func(call goja.FunctionCall) goja.Value {
		l.add(target(call), call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	}); err != nil {
		return err
	}
	return obj.Set("removeEventListener", func(call goja.FunctionCall) goja.Value {
		l.remove(target(call), call.Argument(0).String(), call.Argument(1))
		return goja.Undefined()
	})
}
