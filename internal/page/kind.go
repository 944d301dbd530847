package page

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Kind classifies analysis input.
type Kind string

const (
	KindHTML    Kind = "html"
	KindScript  Kind = "script"
	KindUnknown Kind = "unknown"
)

// DetectKind classifies data by file extension first and content second.
// Plain text that is not markup is treated as a script.
func DetectKind(name string, data []byte) Kind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".html", ".htm", ".xhtml":
		return KindHTML
	case ".js", ".mjs", ".cjs":
		return KindScript
	}

	mt := mimetype.Detect(data)
	switch {
	case mt.Is("text/html"):
		return KindHTML
	case mt.Is("text/javascript"), mt.Is("application/javascript"):
		return KindScript
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return KindScript
		}
	}
	return KindUnknown
}
