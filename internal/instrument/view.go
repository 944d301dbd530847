package instrument

import "github.com/dop251/goja"

// DefaultResultGlobal is the global name under which the log is visible to scripts.
const DefaultResultGlobal = "script_instrumentation_result"

// resultView exposes a Store to JavaScript as a read-only object whose keys
// are sink identifiers. Every read builds fresh arrays of {stack, args}.
type resultView struct {
	vm    *goja.Runtime
	store *Store
}

func (v *resultView) Get(key string) goja.Value {
	if !v.store.Has(key) {
		return nil
	}
	seq := v.store.Get(key)
	items := make([]interface{}, len(seq))
	for i, obs := range seq {
		args := make([]interface{}, len(obs.Args))
		for j, a := range obs.Args {
			args[j] = a
		}
		entry := v.vm.NewObject()
		_ = entry.Set("stack", obs.Stack)
		_ = entry.Set("args", v.vm.NewArray(args...))
		items[i] = entry
	}
	return v.vm.NewArray(items...)
}

func (v *resultView) Set(string, goja.Value) bool { return false }

func (v *resultView) Has(key string) bool { return v.store.Has(key) }

func (v *resultView) Delete(string) bool { return false }

func (v *resultView) Keys() []string { return v.store.Sinks() }

// bindResult defines the read-only result global on vm.
func bindResult(vm *goja.Runtime, name string, store *Store) error {
	obj := vm.NewDynamicObject(&resultView{vm: vm, store: store})
	return vm.GlobalObject().DefineDataProperty(name, obj, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE)
}

// lookupResult checks vm for an installed result global. found reports
// whether the name is taken at all.
func lookupResult(vm *goja.Runtime, name string) (store *Store, found bool) {
	var val goja.Value
	if ex := vm.Try(func() { val = vm.GlobalObject().Get(name) }); ex != nil {
		return nil, true
	}
	if val == nil || goja.IsUndefined(val) {
		return nil, false
	}
	obj, ok := val.(*goja.Object)
	if !ok {
		return nil, true
	}
	if view, ok := obj.Export().(*resultView); ok {
		return view.store, true
	}
	return nil, true
}
