package sandbox

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = `<!DOCTYPE html>
<html><head><title>t</title></head>
<body>
<div id="main" class="box"><p>hello</p></div>
<form id="f" action="/submit"><input id="i" formaction="/x"><button id="b">go</button></form>
<a id="link" href="/home">home</a>
</body></html>`

func loaded(t *testing.T) *Runtime {
	t.Helper()
	rt := newRuntime(t)
	require.NoError(t, rt.LoadDocument(testPage))
	return rt
}

func TestElementLookup(t *testing.T) {
	rt := loaded(t)

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{name: "getElementById", script: `document.getElementById("main").className`, want: "box"},
		{name: "missing id", script: `document.getElementById("nope")`, want: nil},
		{name: "querySelector", script: `document.querySelector("#main p").textContent`, want: "hello"},
		{name: "querySelectorAll", script: `document.querySelectorAll("input, button").length`, want: int64(2)},
		{name: "element scope", script: `document.getElementById("f").querySelector("button").id`, want: "b"},
		{name: "tagName", script: `document.body.tagName`, want: "BODY"},
		{name: "identity", script: `document.getElementById("main") === document.querySelector(".box")`, want: true},
		{name: "parentNode", script: `document.getElementById("i").parentNode.id`, want: "f"},
		{name: "readyState", script: `document.readyState`, want: "complete"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, rt, tt.script))
		})
	}
}

func TestElementPrototypes(t *testing.T) {
	rt := loaded(t)

	tests := []struct {
		script string
		want   interface{}
	}{
		{`document.getElementById("i") instanceof HTMLInputElement`, true},
		{`document.getElementById("i") instanceof HTMLElement`, true},
		{`document.getElementById("b") instanceof HTMLButtonElement`, true},
		{`document.getElementById("f") instanceof HTMLFormElement`, true},
		{`document.getElementById("link") instanceof HTMLAnchorElement`, true},
		{`document.createElement("script") instanceof HTMLScriptElement`, true},
		{`document.createElement("iframe") instanceof HTMLIFrameElement`, true},
		{`Object.getPrototypeOf(document.getElementById("main")) === HTMLElement.prototype`, true},
		{`Object.getOwnPropertyNames(document.getElementById("main")).length`, int64(0)},
		{`typeof Object.getOwnPropertyDescriptor(HTMLElement.prototype, "innerHTML").set`, "function"},
		{`Object.getOwnPropertyDescriptor(HTMLElement.prototype, "tagName").set`, nil},
		{`try { new HTMLElement(); false } catch (e) { e instanceof TypeError }`, true},
		{`try { HTMLElement.prototype.innerHTML; false } catch (e) { e instanceof TypeError }`, true},
	}

	for _, tt := range tests {
		t.Run(tt.script, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, rt, tt.script))
		})
	}
}

func TestReflectedAttributes(t *testing.T) {
	rt := loaded(t)

	assert.Equal(t, "/submit", run(t, rt, `document.getElementById("f").action`))
	assert.Equal(t, "/x", run(t, rt, `document.getElementById("i").formAction`))
	assert.Equal(t, "/home", run(t, rt, `document.getElementById("link").href`))

	run(t, rt, `
		var f = document.getElementById("f");
		f.action = "/other";
		f.setAttribute("data-x", "1");
		f.removeAttribute("id");
	`)

	html, err := rt.DOM().HTML()
	require.NoError(t, err)
	assert.Contains(t, html, `action="/other"`)
	assert.Contains(t, html, `data-x="1"`)
	assert.NotContains(t, html, `id="f"`)
	assert.Equal(t, nil, run(t, rt, `f.getAttribute("id")`))
	assert.Equal(t, true, run(t, rt, `f.hasAttribute("data-x")`))
}

func TestMarkupAccessors(t *testing.T) {
	rt := loaded(t)

	assert.Equal(t, "<p>hello</p>", run(t, rt, `document.getElementById("main").innerHTML`))
	assert.Equal(t, `<div id="main" class="box"><p>hello</p></div>`, run(t, rt, `document.getElementById("main").outerHTML`))

	run(t, rt, `document.getElementById("main").innerHTML = "<b>bold</b>"`)
	assert.Equal(t, "bold", run(t, rt, `document.querySelector("#main b").textContent`))

	run(t, rt, `document.getElementById("main").insertAdjacentHTML("beforeend", "<i>it</i>")`)
	assert.Equal(t, "<b>bold</b><i>it</i>", run(t, rt, `document.getElementById("main").innerHTML`))

	run(t, rt, `document.getElementById("link").outerHTML = "<span id='s'>x</span>"`)
	assert.Equal(t, nil, run(t, rt, `document.getElementById("link")`))
	assert.Equal(t, "x", run(t, rt, `document.getElementById("s").textContent`))

	_, err := rt.Execute(context.Background(), "bad.js", `document.body.insertAdjacentHTML("sideways", "x")`)
	assert.Error(t, err)
}

func TestInsertedMarkupScriptsStayInert(t *testing.T) {
	rt := loaded(t)

	run(t, rt, `
		var ran = 0;
		document.body.innerHTML += "<script>ran++</script>";
		document.body.insertAdjacentHTML("beforeend", "<script>ran++</script>");
	`)
	assert.Equal(t, int64(0), run(t, rt, "ran"))
}

func TestAppendChildRunsCreatedScripts(t *testing.T) {
	rt := loaded(t)

	res, err := rt.Execute(context.Background(), "loader.js", `
		var ran = [];
		var s = document.createElement("script");
		s.text = "ran.push('inline')";
		document.body.appendChild(s);
		document.body.appendChild(s);

		var ext = document.createElement("script");
		ext.src = "https://cdn.example/lib.js";
		document.head.appendChild(ext);

		var detached = document.createElement("div");
		var inner = document.createElement("script");
		inner.text = "ran.push('later')";
		detached.appendChild(inner);
		ran.push("before");
		document.body.appendChild(detached);

		var data = document.createElement("script");
		data.type = "application/json";
		data.text = "ran.push('json')";
		document.body.appendChild(data);
		ran.join()
	`)
	require.NoError(t, err)

	assert.Equal(t, "inline,before,later", res.Value)
	assert.Equal(t, []string{"https://cdn.example/lib.js"}, res.ExternalScripts)
	assert.Equal(t, []string{"https://cdn.example/lib.js"}, rt.ExternalScripts())
}

func TestInsertedScriptErrorsDoNotPropagate(t *testing.T) {
	rt := loaded(t)

	assert.Equal(t, "after", run(t, rt, `
		var s = document.createElement("script");
		s.text = "throw new Error('inner')";
		document.body.appendChild(s);
		"after"
	`))

	errs := rt.ScriptErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "dynamic-script-1.js", errs[0].Script)
}

func TestDocumentWrite(t *testing.T) {
	rt := loaded(t)

	run(t, rt, `
		var wrote = 0;
		document.write("<p id='w'>written</p><script>wrote++</script>");
		document.writeln("<script src='/ext.js'></script>");
	`)

	assert.Equal(t, int64(1), run(t, rt, "wrote"))
	assert.Equal(t, "written", run(t, rt, `document.getElementById("w").textContent`))
	assert.Equal(t, []string{"/ext.js"}, rt.ExternalScripts())
}

func TestAppendChildRejectsCycles(t *testing.T) {
	rt := loaded(t)

	_, err := rt.Execute(context.Background(), "cycle.js", `
		var main = document.getElementById("main");
		main.querySelector("p").appendChild(main);
	`)
	assert.Error(t, err)
}

func TestRemoveAndCookies(t *testing.T) {
	rt := loaded(t)

	run(t, rt, `document.getElementById("main").remove()`)
	assert.Equal(t, nil, run(t, rt, `document.getElementById("main")`))

	run(t, rt, `document.cookie = "a=1; path=/"; document.cookie = "b=2"; document.cookie = "a=3"`)
	assert.Equal(t, "a=3; b=2", run(t, rt, "document.cookie"))
}

func TestElementListeners(t *testing.T) {
	rt := loaded(t)

	run(t, rt, `
		var b = document.getElementById("b");
		function onClick() {}
		b.addEventListener("click", onClick);
		b.addEventListener("click", onClick);
	`)

	obj := rt.VM().Get("b").ToObject(rt.VM())
	assert.Equal(t, 1, rt.DOM().listeners.count(obj, "click"))

	run(t, rt, `b.removeEventListener("click", onClick)`)
	assert.Equal(t, 0, rt.DOM().listeners.count(obj, "click"))
}
