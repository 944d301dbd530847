package page

import (
	"fmt"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Script is one <script> element in document order.
type Script struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	Src   string `json:"src,omitempty" yaml:"src,omitempty"`
	Type  string `json:"type,omitempty" yaml:"type,omitempty"`
	Text  string `json:"-" yaml:"-"`
}

// External reports whether the script is loaded from src.
func (s Script) External() bool {
	return s.Src != ""
}

// Runnable reports whether a browser would execute the script as classic JavaScript.
func (s Script) Runnable() bool {
	return RunnableType(s.Type)
}

// Scripts lists every script element in document order. Inline scripts are
// named inline-<n>.js after their position.
func (d *Document) Scripts() []Script {
	nodes, err := htmlquery.QueryAll(d.doc.Nodes[0], "//script")
	if err != nil {
		return nil
	}

	scripts := make([]Script, 0, len(nodes))
	for i, n := range nodes {
		s := Script{
			Index: i,
			Src:   strings.TrimSpace(htmlquery.SelectAttr(n, "src")),
			Type:  htmlquery.SelectAttr(n, "type"),
		}
		if s.External() {
			s.Name = s.Src
		} else {
			s.Name = fmt.Sprintf("inline-%d.js", i+1)
			s.Text = scriptText(n)
		}
		scripts = append(scripts, s)
	}
	return scripts
}

func scriptText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}

// RunnableType reports whether a script type attribute denotes classic JavaScript.
func RunnableType(t string) bool {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "", "text/javascript", "application/javascript", "text/ecmascript",
		"application/ecmascript", "application/x-javascript", "text/jscript":
		return true
	}
	return false
}
