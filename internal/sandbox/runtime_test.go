package sandbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	rt, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func run(t *testing.T, rt *Runtime, src string) interface{} {
	t.Helper()
	res, err := rt.Execute(context.Background(), "test.js", src)
	require.NoError(t, err)
	return res.Value
}

func TestRuntimeExecution(t *testing.T) {
	rt := newRuntime(t)

	tests := []struct {
		name   string
		script string
		want   interface{}
	}{
		{name: "simple return", script: "42", want: int64(42)},
		{name: "string operations", script: "'hello'.toUpperCase()", want: "HELLO"},
		{name: "window is global", script: "window === globalThis && self === window", want: true},
		{name: "node globals removed", script: "typeof require + typeof process", want: "undefinedundefined"},
		{name: "location", script: "location.href", want: "about:blank"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, run(t, rt, tt.script))
		})
	}
}

func TestRuntimeConsole(t *testing.T) {
	rt := newRuntime(t)

	res, err := rt.Execute(context.Background(), "a.js", "console.log('hello', 1); console.warn('careful')")
	require.NoError(t, err)

	require.Len(t, res.Console, 2)
	assert.Equal(t, "log", res.Console[0].Level)
	assert.Equal(t, "hello 1", res.Console[0].Message)
	assert.Equal(t, "warn", res.Console[1].Level)

	run(t, rt, "console.error('again')")
	assert.Len(t, rt.Console(), 3)
}

func TestRuntimeScriptErrorRecorded(t *testing.T) {
	rt := newRuntime(t)

	res, err := rt.Execute(context.Background(), "bad.js", "throw new Error('boom')")
	require.Error(t, err)
	assert.Equal(t, err, res.Error)

	errs := rt.ScriptErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "bad.js", errs[0].Script)
	assert.Contains(t, errs[0].Message, "boom")
}

func TestRuntimeTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeout = 50 * time.Millisecond
	rt, err := New(cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	_, err = rt.Execute(context.Background(), "loop.js", "for (;;) {}")
	assert.ErrorIs(t, err, ErrInterrupted)

	// The runtime stays usable after an interrupt.
	assert.Equal(t, int64(2), run(t, rt, "1 + 1"))
}

func TestRuntimeContextCancelled(t *testing.T) {
	rt := newRuntime(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := rt.Execute(ctx, "a.js", "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRuntimeReset(t *testing.T) {
	rt := newRuntime(t)

	run(t, rt, "var leaked = 1; console.log('x')")
	require.NoError(t, rt.Reset())

	assert.Equal(t, "undefined", run(t, rt, "typeof leaked"))
	assert.Empty(t, rt.Console())
}

func TestRuntimeClosed(t *testing.T) {
	rt, err := New(DefaultConfig(), nil)
	require.NoError(t, err)
	require.NoError(t, rt.Close())

	_, err = rt.Execute(context.Background(), "a.js", "1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRuntimeLocationFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "https://example.com/path?q=1#frag"
	rt, err := New(cfg, nil)
	require.NoError(t, err)
	defer rt.Close()

	assert.Equal(t, "#frag", run(t, rt, "location.hash"))
	assert.Equal(t, "?q=1", run(t, rt, "location.search"))
	assert.Equal(t, "https://example.com", run(t, rt, "location.origin"))
	assert.Equal(t, "https://example.com/path?q=1#frag", run(t, rt, "document.URL"))
}

func TestRuntimeNavigate(t *testing.T) {
	rt := newRuntime(t)

	require.NoError(t, rt.Navigate("http://shop.test:8080/cart"))
	assert.Equal(t, "shop.test", run(t, rt, "location.hostname"))
	assert.Equal(t, "8080", run(t, rt, "location.port"))
	assert.Equal(t, "http://shop.test:8080/cart", run(t, rt, "document.location.href"))
	assert.Equal(t, "http://shop.test:8080/cart", run(t, rt, "document.URL"))

	require.NoError(t, rt.Reset())
	assert.Equal(t, "about:blank", run(t, rt, "location.href"))
}

func TestDispatch(t *testing.T) {
	rt := newRuntime(t)

	run(t, rt, `
		var seen = [];
		document.addEventListener("DOMContentLoaded", function(e) { seen.push("doc:" + e.type) });
		window.addEventListener("load", function() { seen.push("win") });
		window.onload = function() { seen.push("onload") };
		window.addEventListener("load", function() { throw new Error("listener") });
	`)

	ctx := context.Background()
	require.NoError(t, rt.Dispatch(ctx, "document", "DOMContentLoaded"))
	require.NoError(t, rt.Dispatch(ctx, "window", "load"))

	assert.Equal(t, "doc:DOMContentLoaded,win,onload", run(t, rt, "seen.join()"))
	require.Len(t, rt.ScriptErrors(), 1)
	assert.Equal(t, "load listener", rt.ScriptErrors()[0].Script)

	assert.Error(t, rt.Dispatch(ctx, "nowhere", "load"))
}
