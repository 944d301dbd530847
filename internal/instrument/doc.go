/*
Package instrument records how script running in a goja runtime exercises a
catalogue of dangerous capabilities.

# Overview

Every call into a monitored capability (eval, timers, DOM mutation setters,
navigation targets) produces one Observation: the call stack at the moment of
interception plus a textual rendering of each argument. Observations are
appended, in call order, to a Store keyed by sink identifier.

# Architecture

The engine is layered, leaves first:

 1. Renderer: converts any goja.Value into a bounded string and never fails
 2. Builder: captures the stack once and renders the argument list
 3. Store: append-only sink -> []Observation log, also visible to JS
 4. Wrapper: replaces callables and setters with observing decorators
 5. Install: applies a Catalogue once per runtime

# Wrapping Model

Callables are replaced with a goja Proxy over the original function. The
proxy's apply and construct traps record the call and then forward to the
original with the original receiver, arguments and new.target, so length,
name, prototype and constructibility are unchanged. Setters are replaced the
same way while the original getter is re-attached untouched.

Errors thrown by an original are rethrown as the same *goja.Exception, so the
caller sees the identical value.

# Usage Example

	vm := goja.New()
	store, err := instrument.Install(vm, instrument.DefaultCatalogue(), instrument.Options{})
	if err != nil {
		return err
	}

	vm.RunString(`eval("1 + 1")`)
	for _, obs := range store.Get("eval") {
		fmt.Println(obs.Args, obs.Stack)
	}

Installing twice on the same runtime is a no-op that returns the existing
Store.
*/
package instrument
