package instrument

import (
	"bytes"

	"github.com/dop251/goja"
)

// Observation is one recorded call into a sink.
type Observation struct {
	Stack string   `json:"stack" yaml:"stack"`
	Args  []string `json:"args" yaml:"args"`
}

func (o Observation) clone() Observation {
	return Observation{Stack: o.Stack, Args: append([]string(nil), o.Args...)}
}

// Builder packages intercepted arguments into Observations.
type Builder struct {
	vm       *goja.Runtime
	renderer *Renderer
}

// NewBuilder creates a builder for vm.
func NewBuilder(vm *goja.Runtime, renderer *Renderer) *Builder {
	return &Builder{vm: vm, renderer: renderer}
}

// Build captures the current call stack and renders args in order.
// It must be called from Go code invoked by a running script.
func (b *Builder) Build(args []goja.Value) Observation {
	stack := b.stack()
	rendered := make([]string, len(args))
	for i, arg := range args {
		rendered[i] = b.renderer.Render(arg)
	}
	return Observation{Stack: stack, Args: rendered}
}

// stack formats the live call stack the way Error().stack reads.
func (b *Builder) stack() string {
	frames := b.vm.CaptureCallStack(0, nil)
	var buf bytes.Buffer
	buf.WriteString("Error")
	for i := range frames {
		buf.WriteString("\n    at ")
		frames[i].Write(&buf)
	}
	return buf.String()
}
