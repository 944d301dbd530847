package instrument

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// Kind selects how a hook intercepts its target.
type Kind string

const (
	KindCallable Kind = "callable"
	KindSetter   Kind = "setter"
)

// Hook names one capability to monitor. Owner is a dotted path resolved from
// the global object ("globalThis", "document", "HTMLElement.prototype").
type Hook struct {
	Sink   string `json:"sink" yaml:"sink" toml:"sink"`
	Owner  string `json:"owner" yaml:"owner" toml:"owner"`
	Member string `json:"member" yaml:"member" toml:"member"`
	Kind   Kind   `json:"kind" yaml:"kind" toml:"kind"`
}

// Catalogue is the ordered list of hooks to install. Several hooks may share
// one sink identifier.
type Catalogue struct {
	Hooks []Hook `json:"hooks" yaml:"hooks" toml:"hooks"`
}

// DefaultCatalogue returns the built-in set of evaluation, timer, DOM and
// navigation sinks.
func DefaultCatalogue() Catalogue {
	return Catalogue{Hooks: []Hook{
		{Sink: "eval", Owner: "globalThis", Member: "eval", Kind: KindCallable},
		{Sink: "setTimeout", Owner: "globalThis", Member: "setTimeout", Kind: KindCallable},
		{Sink: "setInterval", Owner: "globalThis", Member: "setInterval", Kind: KindCallable},
		{Sink: "Function", Owner: "globalThis", Member: "Function", Kind: KindCallable},
		{Sink: "document_write", Owner: "document", Member: "write", Kind: KindCallable},
		{Sink: "document_writeln", Owner: "document", Member: "writeln", Kind: KindCallable},
		{Sink: "HTMLElement_insertAdjacentHTML", Owner: "HTMLElement.prototype", Member: "insertAdjacentHTML", Kind: KindCallable},
		{Sink: "HTMLElement_addEventListener", Owner: "HTMLElement.prototype", Member: "addEventListener", Kind: KindCallable},
		{Sink: "HTMLElement_setAttribute", Owner: "HTMLElement.prototype", Member: "setAttribute", Kind: KindCallable},
		{Sink: "HTMLElement_innerHTML_set", Owner: "HTMLElement.prototype", Member: "innerHTML", Kind: KindSetter},
		{Sink: "HTMLElement_outerHTML_set", Owner: "HTMLElement.prototype", Member: "outerHTML", Kind: KindSetter},
		{Sink: "HTMLScriptElement_src_set", Owner: "HTMLScriptElement.prototype", Member: "src", Kind: KindSetter},
		{Sink: "HTMLInputElement_formAction_set", Owner: "HTMLInputElement.prototype", Member: "formAction", Kind: KindSetter},
		{Sink: "HTMLInputElement_formAction_set", Owner: "HTMLButtonElement.prototype", Member: "formAction", Kind: KindSetter},
		{Sink: "HTMLFormElement_action_set", Owner: "HTMLFormElement.prototype", Member: "action", Kind: KindSetter},
	}}
}

// Sinks returns the distinct sink identifiers in first-seen order.
func (c Catalogue) Sinks() []string {
	seen := make(map[string]struct{}, len(c.Hooks))
	sinks := make([]string, 0, len(c.Hooks))
	for _, h := range c.Hooks {
		if _, ok := seen[h.Sink]; ok {
			continue
		}
		seen[h.Sink] = struct{}{}
		sinks = append(sinks, h.Sink)
	}
	return sinks
}

// Validate rejects empty fields, unknown kinds and hooks targeting the same
// member twice.
func (c Catalogue) Validate() error {
	targets := make(map[string]struct{}, len(c.Hooks))
	for _, h := range c.Hooks {
		if h.Sink == "" || h.Owner == "" || h.Member == "" {
			return &ConfigError{Hook: h, Err: fmt.Errorf("%w: sink, owner and member are required", ErrInvalidHook)}
		}
		if h.Kind != KindCallable && h.Kind != KindSetter {
			return &ConfigError{Hook: h, Err: fmt.Errorf("%w: unknown kind %q", ErrInvalidHook, h.Kind)}
		}
		key := h.Owner + "." + h.Member
		if _, dup := targets[key]; dup {
			return &ConfigError{Hook: h, Err: fmt.Errorf("%w: %s is hooked twice", ErrInvalidHook, key)}
		}
		targets[key] = struct{}{}
	}
	return nil
}

// LoadCatalogue reads a catalogue file. The format follows the extension:
// .yaml/.yml or .toml.
func LoadCatalogue(path string) (Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Catalogue{}, fmt.Errorf("failed to read catalogue: %w", err)
	}
	return ParseCatalogue(data, strings.TrimPrefix(filepath.Ext(path), "."))
}

// ParseCatalogue decodes a catalogue in the given format ("yaml", "yml" or "toml").
func ParseCatalogue(data []byte, format string) (Catalogue, error) {
	var c Catalogue
	switch strings.ToLower(format) {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &c); err != nil {
			return Catalogue{}, fmt.Errorf("failed to parse YAML catalogue: %w", err)
		}
	case "toml":
		if err := toml.Unmarshal(data, &c); err != nil {
			return Catalogue{}, fmt.Errorf("failed to parse TOML catalogue: %w", err)
		}
	default:
		return Catalogue{}, fmt.Errorf("unsupported catalogue format %q", format)
	}
	if err := c.Validate(); err != nil {
		return Catalogue{}, err
	}
	return c, nil
}
