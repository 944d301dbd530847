package instrument

import (
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Wrapper installs observing decorators over callables and setters.
type Wrapper struct {
	vm      *goja.Runtime
	builder *Builder
	store   *Store
	logger  *zap.Logger

	objectCtor     *goja.Object
	ownDescriptor  goja.Callable
	defineProperty goja.Callable
	isExtensible   goja.Callable
}

// NewWrapper creates a wrapper feeding store. The Object reflection helpers
// are captured now so scripts cannot redirect later lookups.
func NewWrapper(vm *goja.Runtime, builder *Builder, store *Store, logger *zap.Logger) *Wrapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Wrapper{vm: vm, builder: builder, store: store, logger: logger}
	if ctor, ok := vm.Get("Object").(*goja.Object); ok {
		w.objectCtor = ctor
		w.ownDescriptor, _ = goja.AssertFunction(ctor.Get("getOwnPropertyDescriptor"))
		w.defineProperty, _ = goja.AssertFunction(ctor.Get("defineProperty"))
		w.isExtensible, _ = goja.AssertFunction(ctor.Get("isExtensible"))
	}
	return w
}

func (w *Wrapper) observe(sink string, args []goja.Value) {
	obs := w.builder.Build(args)
	if err := w.store.Append(sink, obs); err != nil {
		w.logger.Warn("Dropped observation", zap.String("sink", sink), zap.Error(err))
		return
	}
	w.logger.Debug("Observed sink call", zap.String("sink", sink), zap.Int("args", len(args)))
}

// WrapCallable replaces owner[member] with a proxy that records each call or
// construction under sink before forwarding to the original. An own member
// keeps its attributes. An inherited one is shadowed by a plain own property.
func (w *Wrapper) WrapCallable(owner *goja.Object, member, sink string) error {
	target, err := w.callable(owner, member)
	if err != nil {
		return err
	}
	s, err := w.slot(owner, member)
	if err != nil {
		return err
	}
	var defErr error
	if ex := w.vm.Try(func() {
		defErr = owner.DefineDataProperty(member, w.decorate(target, sink), s.writable, s.configurable, s.enumerable)
	}); ex != nil {
		return ex
	}
	return defErr
}

func (w *Wrapper) decorate(target *goja.Object, sink string) goja.Value {
	call, _ := goja.AssertFunction(target)
	traps := &goja.ProxyTrapConfig{
		Apply: func(_ *goja.Object, this goja.Value, args []goja.Value) goja.Value {
			w.observe(sink, args)
			res, err := call(this, args...)
			if err != nil {
				panic(err)
			}
			return res
		},
	}
	if construct, ok := goja.AssertConstructor(target); ok {
		traps.Construct = func(_ *goja.Object, args []goja.Value, newTarget *goja.Object) *goja.Object {
			w.observe(sink, args)
			res, err := construct(newTarget, args...)
			if err != nil {
				panic(err)
			}
			return res
		}
	}
	return w.vm.ToValue(w.vm.NewProxy(target, traps))
}

// WrapSetter replaces the accessor named property, own or inherited, with one
// on owner whose setter records the assigned value under sink. The original
// getter is kept as is.
func (w *Wrapper) WrapSetter(owner *goja.Object, property, sink string) error {
	acc, err := w.accessor(owner, property)
	if err != nil {
		return err
	}
	setter := w.decorateSetter(acc.setter, sink)
	var getter goja.Value
	if acc.getter != nil {
		getter = acc.getter
	}
	var defErr error
	if ex := w.vm.Try(func() {
		defErr = owner.DefineAccessorProperty(property, getter, setter, acc.configurable, acc.enumerable)
	}); ex != nil {
		return ex
	}
	return defErr
}

func (w *Wrapper) decorateSetter(target *goja.Object, sink string) goja.Value {
	set, _ := goja.AssertFunction(target)
	return w.vm.ToValue(w.vm.NewProxy(target, &goja.ProxyTrapConfig{
		Apply: func(_ *goja.Object, this goja.Value, args []goja.Value) goja.Value {
			w.observe(sink, args)
			res, err := set(this, args...)
			if err != nil {
				panic(err)
			}
			return res
		},
	}))
}

// callable resolves owner[member] and checks that it can be called.
func (w *Wrapper) callable(owner *goja.Object, member string) (*goja.Object, error) {
	var val goja.Value
	if ex := w.vm.Try(func() { val = owner.Get(member) }); ex != nil {
		return nil, ex
	}
	obj, ok := val.(*goja.Object)
	if !ok {
		return nil, ErrMissingCallable
	}
	if _, ok := goja.AssertFunction(obj); !ok {
		return nil, ErrMissingCallable
	}
	return obj, nil
}

// slot holds the attributes a wrapped callable is defined with.
type slot struct {
	writable     goja.Flag
	configurable goja.Flag
	enumerable   goja.Flag
}

// slot reports how owner[member] can be redefined. A read-only member that
// cannot be reconfigured is rejected, as is an own accessor that is not
// configurable.
func (w *Wrapper) slot(owner *goja.Object, member string) (slot, error) {
	desc, err := w.descriptor(owner, member)
	if err != nil {
		return slot{}, err
	}
	if desc == nil {
		if !w.extensible(owner) {
			return slot{}, ErrNotExtensible
		}
		return slot{writable: goja.FLAG_TRUE, configurable: goja.FLAG_TRUE, enumerable: goja.FLAG_TRUE}, nil
	}

	var s slot
	var data, writable, configurable bool
	if ex := w.vm.Try(func() {
		wv := desc.Get("writable")
		data = wv != nil && !goja.IsUndefined(wv)
		writable = data && wv.ToBoolean()
		configurable = desc.Get("configurable").ToBoolean()
		s.configurable = toFlag(desc.Get("configurable"))
		s.enumerable = toFlag(desc.Get("enumerable"))
	}); ex != nil {
		return slot{}, ex
	}

	switch {
	case data && !writable && !configurable:
		return slot{}, ErrNotWritable
	case !data && !configurable:
		return slot{}, ErrNotConfigurable
	case data:
		s.writable = toFlag(desc.Get("writable"))
	default:
		s.writable = goja.FLAG_TRUE
	}
	return s, nil
}

// descriptor returns owner's own descriptor for key, or nil.
func (w *Wrapper) descriptor(owner *goja.Object, key string) (*goja.Object, error) {
	if w.ownDescriptor == nil {
		return nil, ErrNotConfigurable
	}
	desc, err := w.ownDescriptor(w.objectCtor, owner, w.vm.ToValue(key))
	if err != nil {
		return nil, err
	}
	if desc == nil || goja.IsUndefined(desc) {
		return nil, nil
	}
	return desc.ToObject(w.vm), nil
}

func (w *Wrapper) extensible(o *goja.Object) bool {
	if w.isExtensible == nil {
		return true
	}
	res, err := w.isExtensible(w.objectCtor, o)
	return err == nil && res.ToBoolean()
}

// snapshot records owner's own descriptor for key and returns a function that
// puts it back, deleting the key when there was none.
func (w *Wrapper) snapshot(owner *goja.Object, key string) (func() error, error) {
	desc, err := w.descriptor(owner, key)
	if err != nil {
		return nil, err
	}
	return func() error {
		if desc == nil {
			return owner.Delete(key)
		}
		if w.defineProperty == nil {
			return ErrNotConfigurable
		}
		_, err := w.defineProperty(w.objectCtor, owner, w.vm.ToValue(key), desc)
		return err
	}, nil
}

type accessor struct {
	getter       *goja.Object
	setter       *goja.Object
	configurable goja.Flag
	enumerable   goja.Flag
}

// accessor finds the first descriptor for property along owner's prototype
// chain, the way __lookupSetter__ does. A data property or a missing setter
// is an error.
func (w *Wrapper) accessor(owner *goja.Object, property string) (*accessor, error) {
	if w.ownDescriptor == nil {
		return nil, ErrMissingSetter
	}

	own := true
	for o := owner; o != nil; o, own = o.Prototype(), false {
		desc, err := w.ownDescriptor(w.objectCtor, o, w.vm.ToValue(property))
		if err != nil {
			return nil, err
		}
		if desc == nil || goja.IsUndefined(desc) {
			continue
		}

		var acc *accessor
		var configurable bool
		if ex := w.vm.Try(func() {
			d := desc.ToObject(w.vm)
			acc = &accessor{
				enumerable: toFlag(d.Get("enumerable")),
			}
			configurable = d.Get("configurable").ToBoolean()
			acc.configurable = toFlag(d.Get("configurable"))
			if g, ok := d.Get("get").(*goja.Object); ok {
				acc.getter = g
			}
			if s, ok := d.Get("set").(*goja.Object); ok {
				acc.setter = s
			}
		}); ex != nil {
			return nil, ex
		}

		if acc.setter == nil {
			return nil, ErrMissingSetter
		}
		if own && !configurable {
			return nil, ErrNotConfigurable
		}
		if !own && !w.extensible(owner) {
			return nil, ErrNotExtensible
		}
		if !own {
			// Shadowing an inherited accessor creates a fresh own property.
			acc.configurable, acc.enumerable = goja.FLAG_TRUE, goja.FLAG_TRUE
		}
		return acc, nil
	}
	return nil, ErrMissingSetter
}

func toFlag(v goja.Value) goja.Flag {
	if v != nil && v.ToBoolean() {
		return goja.FLAG_TRUE
	}
	return goja.FLAG_FALSE
}
