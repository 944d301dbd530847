/*
Package sandbox provides the browser-shaped JavaScript environment pages run in.

# Overview

Each Runtime owns one goja VM whose global scope looks enough like a browser
window for ordinary page scripts to run:

  - window, self, location, navigator and console
  - document with write, createElement, querySelector and friends
  - HTMLElement and its subtypes as constructors with real prototypes
  - setTimeout and setInterval on a virtual clock
  - addEventListener on window, document and elements

Node.js style globals (require, process, module, exports) are removed.

# Architecture

 1. Runtime: goja VM, console capture, watchdog interrupts
 2. DOM: goquery document with per-node element wrappers
 3. Timers: heap ordered by due time, drained without sleeping
 4. Pool: reusable runtimes, reset on release

Accessors such as innerHTML and src live on the prototypes, not on element
instances, so they can be replaced once for every element.

# Script Insertion

A script element created with document.createElement runs synchronously when
it is appended to a connected node. Markup passed to document.write runs its
scripts too. Scripts that arrive through innerHTML, outerHTML or
insertAdjacentHTML stay inert, as in browsers. Scripts with a src attribute are
recorded and never fetched.

# Usage Example

	rt, err := sandbox.New(sandbox.DefaultConfig(), logger)
	if err != nil {
		return err
	}
	defer rt.Close()

	if err := rt.LoadDocument(markup); err != nil {
		return err
	}
	if _, err := rt.Execute(ctx, "inline-1.js", src); err != nil {
		log.Warn("script failed", zap.Error(err))
	}
	rt.Dispatch(ctx, "document", "DOMContentLoaded")
	rt.RunTimers(ctx)
*/
package sandbox
