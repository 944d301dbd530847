package instrument

import (
	"strings"
	"testing"

	"github.com/dop251/goja"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCapturesStackAndArgs(t *testing.T) {
	vm := goja.New()
	b := NewBuilder(vm, NewRenderer(vm, RenderOptions{}))

	var obs Observation
	require.NoError(t, vm.Set("probe", func(call goja.FunctionCall) goja.Value {
		obs = b.Build(call.Arguments)
		return goja.Undefined()
	}))

	_, err := vm.RunScript("page.js", "function outer() { probe(1, 'x', {a: 1}) }\nouter()")
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "x", `{"a":1}`}, obs.Args)
	assert.True(t, strings.HasPrefix(obs.Stack, "Error"))
	assert.Contains(t, obs.Stack, "outer (page.js:1:")
}

func TestBuildNoArgs(t *testing.T) {
	vm := goja.New()
	b := NewBuilder(vm, NewRenderer(vm, RenderOptions{}))

	var obs Observation
	require.NoError(t, vm.Set("probe", func(call goja.FunctionCall) goja.Value {
		obs = b.Build(call.Arguments)
		return goja.Undefined()
	}))

	_, err := vm.RunString("probe()")
	require.NoError(t, err)

	assert.Empty(t, obs.Args)
	assert.NotEmpty(t, obs.Stack)
}
