package instrument

import "github.com/dop251/goja"

// enumerate lists the enumerable string keys of obj and its prototypes in
// for-in order. An own property, enumerable or not, hides the same key further
// up the chain. Objects whose key listing throws contribute nothing.
func (r *Renderer) enumerate(obj *goja.Object) []string {
	if obj == nil {
		return nil
	}

	var keys []string
	shadowed := make(map[string]struct{})
	for o := obj; o != nil; o = r.prototype(o) {
		var enumerable, own []string
		if ex := r.vm.Try(func() {
			enumerable = o.Keys()
			own = o.GetOwnPropertyNames()
		}); ex != nil {
			return keys
		}
		for _, k := range enumerable {
			if _, hidden := shadowed[k]; !hidden {
				keys = append(keys, k)
			}
		}
		for _, k := range own {
			shadowed[k] = struct{}{}
		}
	}
	return keys
}

func (r *Renderer) prototype(o *goja.Object) *goja.Object {
	var proto *goja.Object
	if ex := r.vm.Try(func() { proto = o.Prototype() }); ex != nil {
		return nil
	}
	return proto
}
