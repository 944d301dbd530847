package sandbox

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/GriffinCanCode/sinkwatch/internal/page"
)

const blankDocument = "<!DOCTYPE html><html><head></head><body></body></html>"

// reflected maps a JS property to the content attribute it mirrors.
type reflected struct {
	prop string
	attr string
}

// class describes one element interface exposed as a global constructor.
type class struct {
	name   string
	parent string
	tags   []string
	props  []reflected
}

var classes = []class{
	{name: "HTMLElement"},
	{name: "HTMLScriptElement", parent: "HTMLElement", tags: []string{"script"},
		props: []reflected{{"src", "src"}, {"type", "type"}}},
	{name: "HTMLInputElement", parent: "HTMLElement", tags: []string{"input"},
		props: []reflected{{"formAction", "formaction"}, {"name", "name"}, {"type", "type"}, {"value", "value"}}},
	{name: "HTMLButtonElement", parent: "HTMLElement", tags: []string{"button"},
		props: []reflected{{"formAction", "formaction"}, {"name", "name"}, {"type", "type"}}},
	{name: "HTMLFormElement", parent: "HTMLElement", tags: []string{"form"},
		props: []reflected{{"action", "action"}, {"method", "method"}}},
	{name: "HTMLAnchorElement", parent: "HTMLElement", tags: []string{"a"},
		props: []reflected{{"href", "href"}, {"target", "target"}}},
	{name: "HTMLIFrameElement", parent: "HTMLElement", tags: []string{"iframe"},
		props: []reflected{{"src", "src"}, {"srcdoc", "srcdoc"}}},
}

// DOM binds a goquery document to JavaScript host objects. Element wrappers
// are cached per node so the same node always yields the same object.
type DOM struct {
	r  *Runtime
	vm *goja.Runtime

	doc      *goquery.Document
	document *goja.Object
	protos   map[string]*goja.Object
	byTag    map[string]*goja.Object

	elements map[*html.Node]*goja.Object
	nodes    map[*goja.Object]*html.Node

	// created holds script elements made by createElement; only those run
	// when inserted. started marks scripts that already ran or were recorded.
	created map[*html.Node]bool
	started map[*html.Node]bool

	listeners *listeners
	external  []string
	cookies   []cookie
	dynamic   int
}

type cookie struct {
	name  string
	value string
}

func newDOM(r *Runtime) (*DOM, error) {
	d := &DOM{
		r:         r,
		vm:        r.vm,
		protos:    make(map[string]*goja.Object),
		byTag:     make(map[string]*goja.Object),
		listeners: newListeners(r),
	}

	for _, c := range classes {
		if err := d.defineClass(c); err != nil {
			return nil, fmt.Errorf("failed to define %s: %w", c.name, err)
		}
	}
	if err := d.defineElementMembers(d.protos["HTMLElement"]); err != nil {
		return nil, err
	}
	if err := d.defineDocument(); err != nil {
		return nil, err
	}

	global := d.vm.GlobalObject()
	if err := d.listeners.bind(global, global, nil); err != nil {
		return nil, err
	}

	if err := d.load(blankDocument); err != nil {
		return nil, err
	}
	return d, nil
}

// load parses markup into a fresh document. Host prototypes and the
// document object survive; element wrappers do not.
func (d *DOM) load(markup string) error {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("failed to parse document: %w", err)
	}
	d.doc = doc
	d.elements = make(map[*html.Node]*goja.Object)
	d.nodes = make(map[*goja.Object]*html.Node)
	d.created = make(map[*html.Node]bool)
	d.started = make(map[*html.Node]bool)
	return nil
}

// Document returns the current goquery document.
func (d *DOM) Document() *goquery.Document {
	return d.doc
}

// HTML renders the current document.
func (d *DOM) HTML() (string, error) {
	return goquery.OuterHtml(d.doc.Selection)
}

func (d *DOM) defineClass(c class) error {
	vm := d.vm
	ctor := vm.ToValue(func(goja.FunctionCall) goja.Value {
		panic(vm.NewTypeError("Illegal constructor"))
	}).(*goja.Object)

	proto := vm.NewObject()
	if c.parent != "" {
		if err := proto.SetPrototype(d.protos[c.parent]); err != nil {
			return err
		}
	}
	if err := ctor.DefineDataProperty("prototype", proto, goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
		return err
	}
	if err := proto.DefineDataProperty("constructor", ctor, goja.FLAG_TRUE, goja.FLAG_FALSE, goja.FLAG_TRUE); err != nil {
		return err
	}

	for _, p := range c.props {
		attr := p.attr
		if err := d.accessor(proto, p.prop,
			func(n *html.Node) goja.Value { return d.vm.ToValue(attrOr(n, attr)) },
			func(n *html.Node, v goja.Value) { setAttr(n, attr, v.String()) },
		); err != nil {
			return err
		}
	}
	if c.name == "HTMLScriptElement" {
		if err := d.accessor(proto, "text",
			func(n *html.Node) goja.Value { return d.vm.ToValue(selection(n).Text()) },
			func(n *html.Node, v goja.Value) { selection(n).SetText(v.String()) },
		); err != nil {
			return err
		}
	}

	d.protos[c.name] = proto
	for _, tag := range c.tags {
		d.byTag[tag] = proto
	}
	return d.vm.Set(c.name, ctor)
}

func (d *DOM) defineElementMembers(proto *goja.Object) error {
	accessors := []struct {
		name string
		get  func(*html.Node) goja.Value
		set  func(*html.Node, goja.Value)
	}{
		{"innerHTML", d.innerHTML, func(n *html.Node, v goja.Value) { selection(n).SetHtml(v.String()) }},
		{"outerHTML", d.outerHTML, d.setOuterHTML},
		{"textContent", func(n *html.Node) goja.Value { return d.vm.ToValue(selection(n).Text()) },
			func(n *html.Node, v goja.Value) { selection(n).SetText(v.String()) }},
		{"id", func(n *html.Node) goja.Value { return d.vm.ToValue(attrOr(n, "id")) },
			func(n *html.Node, v goja.Value) { setAttr(n, "id", v.String()) }},
		{"className", func(n *html.Node) goja.Value { return d.vm.ToValue(attrOr(n, "class")) },
			func(n *html.Node, v goja.Value) { setAttr(n, "class", v.String()) }},
		{"tagName", func(n *html.Node) goja.Value { return d.vm.ToValue(strings.ToUpper(n.Data)) }, nil},
		{"parentNode", func(n *html.Node) goja.Value { return d.wrap(n.Parent) }, nil},
	}
	for _, a := range accessors {
		if err := d.accessor(proto, a.name, a.get, a.set); err != nil {
			return err
		}
	}

	methods := map[string]func(*html.Node, goja.FunctionCall) goja.Value{
		"setAttribute": func(n *html.Node, call goja.FunctionCall) goja.Value {
			setAttr(n, strings.ToLower(call.Argument(0).String()), call.Argument(1).String())
			return goja.Undefined()
		},
		"getAttribute": func(n *html.Node, call goja.FunctionCall) goja.Value {
			if v, ok := attr(n, strings.ToLower(call.Argument(0).String())); ok {
				return d.vm.ToValue(v)
			}
			return goja.Null()
		},
		"hasAttribute": func(n *html.Node, call goja.FunctionCall) goja.Value {
			_, ok := attr(n, strings.ToLower(call.Argument(0).String()))
			return d.vm.ToValue(ok)
		},
		"removeAttribute": func(n *html.Node, call goja.FunctionCall) goja.Value {
			selection(n).RemoveAttr(strings.ToLower(call.Argument(0).String()))
			return goja.Undefined()
		},
		"insertAdjacentHTML": d.insertAdjacentHTML,
		"appendChild":        d.appendChild,
		"remove": func(n *html.Node, _ goja.FunctionCall) goja.Value {
			if n.Parent != nil {
				n.Parent.RemoveChild(n)
			}
			return goja.Undefined()
		},
		"querySelector": func(n *html.Node, call goja.FunctionCall) goja.Value {
			return d.first(selection(n).Find(call.Argument(0).String()))
		},
		"querySelectorAll": func(n *html.Node, call goja.FunctionCall) goja.Value {
			return d.all(selection(n).Find(call.Argument(0).String()))
		},
	}
	for name, fn := range methods {
		fn := fn
		if err := proto.Set(name, func(call goja.FunctionCall) goja.Value {
			return fn(d.element(call.This), call)
		}); err != nil {
			return err
		}
	}

	return d.listeners.bind(proto, nil, func(this goja.Value) *goja.Object {
		d.element(this)
		return this.(*goja.Object)
	})
}

func (d *DOM) defineDocument() error {
	vm := d.vm
	document := vm.NewObject()

	methods := map[string]func(goja.FunctionCall) goja.Value{
		"write": func(call goja.FunctionCall) goja.Value {
			d.write(joinArgs(call), "")
			return goja.Undefined()
		},
		"writeln": func(call goja.FunctionCall) goja.Value {
			d.write(joinArgs(call), "\n")
			return goja.Undefined()
		},
		"createElement": func(call goja.FunctionCall) goja.Value {
			return d.createElement(call.Argument(0).String())
		},
		"getElementById": func(call goja.FunctionCall) goja.Value {
			return d.wrap(findByID(d.root(), call.Argument(0).String()))
		},
		"querySelector": func(call goja.FunctionCall) goja.Value {
			return d.first(d.doc.Find(call.Argument(0).String()))
		},
		"querySelectorAll": func(call goja.FunctionCall) goja.Value {
			return d.all(d.doc.Find(call.Argument(0).String()))
		},
		"getElementsByTagName": func(call goja.FunctionCall) goja.Value {
			return d.all(d.doc.Find(strings.ToLower(call.Argument(0).String())))
		},
	}
	for name, fn := range methods {
		if err := document.Set(name, fn); err != nil {
			return err
		}
	}

	getters := map[string]func() goja.Value{
		"body":            func() goja.Value { return d.first(d.doc.Find("body")) },
		"head":            func() goja.Value { return d.first(d.doc.Find("head")) },
		"documentElement": func() goja.Value { return d.first(d.doc.Find("html")) },
		"readyState":      func() goja.Value { return vm.ToValue("complete") },
	}
	for name, get := range getters {
		get := get
		getter := vm.ToValue(func(goja.FunctionCall) goja.Value { return get() })
		if err := document.DefineAccessorProperty(name, getter, nil, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
			return err
		}
	}

	cookieGet := vm.ToValue(func(goja.FunctionCall) goja.Value { return vm.ToValue(d.cookieString()) })
	cookieSet := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		d.setCookie(call.Argument(0).String())
		return goja.Undefined()
	})
	if err := document.DefineAccessorProperty("cookie", cookieGet, cookieSet, goja.FLAG_TRUE, goja.FLAG_TRUE); err != nil {
		return err
	}

	if err := d.listeners.bind(document, document, nil); err != nil {
		return err
	}
	if err := d.bindLocation(document); err != nil {
		return err
	}

	d.document = document
	return vm.Set("document", document)
}

func (d *DOM) bindLocation(document *goja.Object) error {
	loc := d.vm.Get("location")
	if loc == nil {
		return nil
	}
	if err := document.Set("location", loc); err != nil {
		return err
	}
	return document.Set("URL", loc.ToObject(d.vm).Get("href"))
}

// accessor defines an enumerable, configurable accessor on proto whose
// receiver must be an element.
func (d *DOM) accessor(proto *goja.Object, name string, get func(*html.Node) goja.Value, set func(*html.Node, goja.Value)) error {
	getter := d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return get(d.element(call.This))
	})
	var setter goja.Value
	if set != nil {
		setter = d.vm.ToValue(func(call goja.FunctionCall) goja.Value {
			set(d.element(call.This), call.Argument(0))
			return goja.Undefined()
		})
	}
	return proto.DefineAccessorProperty(name, getter, setter, goja.FLAG_TRUE, goja.FLAG_TRUE)
}

// wrap returns the JS object for n, creating and caching it on first use.
func (d *DOM) wrap(n *html.Node) goja.Value {
	if n == nil {
		return goja.Null()
	}
	switch n.Type {
	case html.DocumentNode:
		return d.document
	case html.ElementNode:
	default:
		return goja.Null()
	}

	if obj, ok := d.elements[n]; ok {
		return obj
	}
	obj := d.vm.NewObject()
	proto, ok := d.byTag[n.Data]
	if !ok {
		proto = d.protos["HTMLElement"]
	}
	_ = obj.SetPrototype(proto)
	d.elements[n] = obj
	d.nodes[obj] = n
	return obj
}

// element resolves a receiver to its node or throws.
func (d *DOM) element(v goja.Value) *html.Node {
	if obj, ok := v.(*goja.Object); ok {
		if n, ok := d.nodes[obj]; ok {
			return n
		}
	}
	panic(d.vm.NewTypeError("Illegal invocation"))
}

func (d *DOM) first(sel *goquery.Selection) goja.Value {
	if sel.Length() == 0 {
		return goja.Null()
	}
	return d.wrap(sel.Nodes[0])
}

func (d *DOM) all(sel *goquery.Selection) goja.Value {
	items := make([]interface{}, 0, sel.Length())
	for _, n := range sel.Nodes {
		items = append(items, d.wrap(n))
	}
	return d.vm.NewArray(items...)
}

func (d *DOM) root() *html.Node {
	return d.doc.Nodes[0]
}

func (d *DOM) body() *html.Node {
	if sel := d.doc.Find("body"); sel.Length() > 0 {
		return sel.Nodes[0]
	}
	if sel := d.doc.Find("html"); sel.Length() > 0 {
		return sel.Nodes[0]
	}
	return d.root()
}

func (d *DOM) connected(n *html.Node) bool {
	for ; n != nil; n = n.Parent {
		if n == d.root() {
			return true
		}
	}
	return false
}

func (d *DOM) innerHTML(n *html.Node) goja.Value {
	s, err := selection(n).Html()
	if err != nil {
		panic(d.vm.NewGoError(err))
	}
	return d.vm.ToValue(s)
}

func (d *DOM) outerHTML(n *html.Node) goja.Value {
	s, err := goquery.OuterHtml(selection(n))
	if err != nil {
		panic(d.vm.NewGoError(err))
	}
	return d.vm.ToValue(s)
}

func (d *DOM) setOuterHTML(n *html.Node, v goja.Value) {
	if n.Parent == nil {
		return
	}
	if n.Parent.Type == html.DocumentNode {
		panic(d.vm.NewTypeError("Failed to set outerHTML: the element has no parent element"))
	}
	selection(n).ReplaceWithHtml(v.String())
}

func (d *DOM) insertAdjacentHTML(n *html.Node, call goja.FunctionCall) goja.Value {
	markup := call.Argument(1).String()
	sel := selection(n)
	switch strings.ToLower(call.Argument(0).String()) {
	case "beforebegin":
		if n.Parent != nil {
			sel.BeforeHtml(markup)
		}
	case "afterbegin":
		sel.PrependHtml(markup)
	case "beforeend":
		sel.AppendHtml(markup)
	case "afterend":
		if n.Parent != nil {
			sel.AfterHtml(markup)
		}
	default:
		panic(d.vm.NewTypeError("insertAdjacentHTML: invalid position %q", call.Argument(0).String()))
	}
	return goja.Undefined()
}

func (d *DOM) appendChild(n *html.Node, call goja.FunctionCall) goja.Value {
	childVal := call.Argument(0)
	child := d.element(childVal)
	for p := n; p != nil; p = p.Parent {
		if p == child {
			panic(d.vm.NewTypeError("appendChild: the new child is an ancestor of the parent"))
		}
	}
	if child.Parent != nil {
		child.Parent.RemoveChild(child)
	}
	n.AppendChild(child)

	if d.connected(n) {
		d.runInserted(child, func(s *html.Node) bool { return d.created[s] })
	}
	return childVal
}

func (d *DOM) createElement(tag string) goja.Value {
	tag = strings.ToLower(tag)
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	if n.DataAtom == atom.Script {
		d.created[n] = true
	}
	return d.wrap(n)
}

// write parses markup in body context and appends it to the body. Scripts
// in the markup run synchronously.
func (d *DOM) write(markup, suffix string) {
	body := d.body()
	nodes, err := html.ParseFragment(strings.NewReader(markup+suffix), body)
	if err != nil {
		panic(d.vm.NewGoError(err))
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	for _, n := range nodes {
		d.runInserted(n, func(*html.Node) bool { return true })
	}
}

// runInserted runs, in tree order, every script in the subtree at n that
// runnable accepts and that has not started yet. External scripts are
// recorded instead.
func (d *DOM) runInserted(n *html.Node, runnable func(*html.Node) bool) {
	var scripts []*html.Node
	var walk func(*html.Node)
	walk = func(c *html.Node) {
		if c.Type == html.ElementNode && c.DataAtom == atom.Script && !d.started[c] && runnable(c) {
			scripts = append(scripts, c)
		}
		for k := c.FirstChild; k != nil; k = k.NextSibling {
			walk(k)
		}
	}
	walk(n)

	for _, s := range scripts {
		d.started[s] = true
		if !page.RunnableType(attrOr(s, "type")) {
			continue
		}
		if src, ok := attr(s, "src"); ok && src != "" {
			d.external = append(d.external, src)
			continue
		}
		d.dynamic++
		d.r.runNested(fmt.Sprintf("dynamic-script-%d.js", d.dynamic), selection(s).Text())
	}
}

func (d *DOM) cookieString() string {
	parts := make([]string, len(d.cookies))
	for i, c := range d.cookies {
		parts[i] = c.name + "=" + c.value
	}
	return strings.Join(parts, "; ")
}

func (d *DOM) setCookie(s string) {
	pair := strings.TrimSpace(strings.SplitN(s, ";", 2)[0])
	name, value, _ := strings.Cut(pair, "=")
	name = strings.TrimSpace(name)
	for i := range d.cookies {
		if d.cookies[i].name == name {
			d.cookies[i].value = value
			return
		}
	}
	d.cookies = append(d.cookies, cookie{name: name, value: value})
}

func selection(n *html.Node) *goquery.Selection {
	return goquery.NewDocumentFromNode(n).Selection
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func attrOr(n *html.Node, key string) string {
	v, _ := attr(n, key)
	return v
}

func setAttr(n *html.Node, key, val string) {
	for i := range n.Attr {
		if n.Attr[i].Namespace == "" && n.Attr[i].Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		if v, ok := attr(n, "id"); ok && v == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func joinArgs(call goja.FunctionCall) string {
	var b strings.Builder
	for _, arg := range call.Arguments {
		b.WriteString(arg.String())
	}
	return b.String()
}
