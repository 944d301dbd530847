package instrument

import (
	"reflect"
	"strings"
	"unicode/utf8"

	"github.com/dop251/goja"
)

const (
	// MaxDepth is the nesting level at which member values stop being expanded.
	MaxDepth = 3

	// Separator joins member descriptions. \u0013 does not occur in ordinary text.
	Separator = ",\u0013"

	unreadable   = "[unreadable]"
	unrenderable = "[unrenderable]"
	truncated    = "…[truncated]"
)

// RenderOptions tune argument rendering.
type RenderOptions struct {
	// MaxLength truncates each rendered argument to this many bytes. Zero means unbounded.
	MaxLength int

	// MemberFallback makes over-depth members render themselves instead of
	// their containing object.
	MemberFallback bool
}

// Renderer turns arbitrary runtime values into text. Every strategy is
// tried under the runtime's exception handler; a strategy that throws simply
// yields no result.
type Renderer struct {
	vm        *goja.Runtime
	stringify goja.Callable
	opts      RenderOptions
}

// NewRenderer binds a renderer to vm. JSON.stringify is captured now so that
// later changes to the global JSON object do not affect rendering.
func NewRenderer(vm *goja.Runtime, opts RenderOptions) *Renderer {
	r := &Renderer{vm: vm, opts: opts}
	if json, ok := vm.Get("JSON").(*goja.Object); ok {
		r.stringify, _ = goja.AssertFunction(json.Get("stringify"))
	}
	return r
}

// Render returns the text form of v. It never fails.
func (r *Renderer) Render(v goja.Value) string {
	return r.truncate(r.render(v, 0))
}

func (r *Renderer) render(v goja.Value, depth int) string {
	if s, ok := r.simple(v, false); ok {
		return s
	}

	obj := r.toObject(v)
	keys := r.enumerate(obj)
	parts := make([]string, 0, len(keys))
	var whole string
	if depth >= MaxDepth && !r.opts.MemberFallback && len(keys) > 0 {
		// Over depth, the containing object stands in for every member.
		whole, _ = r.simple(v, true)
	}
	for _, key := range keys {
		var text string
		switch {
		case depth < MaxDepth:
			if member, ok := r.member(obj, key); ok {
				text = r.render(member, depth+1)
			} else {
				text = unreadable
			}
		case r.opts.MemberFallback:
			if member, ok := r.member(obj, key); ok {
				text, _ = r.simple(member, true)
			} else {
				text = unreadable
			}
		default:
			text = whole
		}
		parts = append(parts, key+" : "+text)
	}
	return strings.Join(parts, Separator)
}

// simple runs the non-recursive strategies: primitive text, outerHTML,
// innerHTML, JSON. With force set it falls back to String(v).
func (r *Renderer) simple(v goja.Value, force bool) (string, bool) {
	if isPrimitive(v) {
		if v == nil {
			return "undefined", true
		}
		return v.String(), true
	}
	if s, ok := r.markup(v, "outerHTML"); ok {
		return s, true
	}
	if s, ok := r.markup(v, "innerHTML"); ok {
		return s, true
	}
	if s, ok := r.json(v); ok {
		return s, true
	}
	if force {
		return r.forceString(v), true
	}
	return "", false
}

func isPrimitive(v goja.Value) bool {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return true
	}
	switch v.(type) {
	case *goja.Object, *goja.Symbol:
		return false
	}
	t := v.ExportType()
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.String, reflect.Int64, reflect.Float64:
		return true
	}
	return false
}

func (r *Renderer) markup(v goja.Value, prop string) (text string, ok bool) {
	ex := r.vm.Try(func() {
		val := v.ToObject(r.vm).Get(prop)
		if val == nil || goja.IsUndefined(val) {
			return
		}
		text, ok = val.String(), true
	})
	if ex != nil {
		return "", false
	}
	return text, ok
}

func (r *Renderer) json(v goja.Value) (string, bool) {
	if r.stringify == nil {
		return "", false
	}
	res, err := r.stringify(goja.Undefined(), v)
	if err != nil {
		rethrowUncatchable(err)
		return "", false
	}
	if res == nil || goja.IsUndefined(res) {
		return "", false
	}
	return res.String(), true
}

func (r *Renderer) forceString(v goja.Value) string {
	var text string
	if ex := r.vm.Try(func() { text = v.String() }); ex != nil {
		return unrenderable
	}
	return text
}

func (r *Renderer) toObject(v goja.Value) *goja.Object {
	if obj, ok := v.(*goja.Object); ok {
		return obj
	}
	var obj *goja.Object
	if ex := r.vm.Try(func() { obj = v.ToObject(r.vm) }); ex != nil {
		return nil
	}
	return obj
}

func (r *Renderer) member(obj *goja.Object, key string) (goja.Value, bool) {
	var val goja.Value
	if ex := r.vm.Try(func() { val = obj.Get(key) }); ex != nil {
		return nil, false
	}
	if val == nil {
		val = goja.Undefined()
	}
	return val, true
}

func (r *Renderer) truncate(s string) string {
	max := r.opts.MaxLength
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncated
}

// rethrowUncatchable lets interrupts and stack overflows keep unwinding.
func rethrowUncatchable(err error) {
	if _, ok := err.(*goja.Exception); !ok {
		panic(err)
	}
}
