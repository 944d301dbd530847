package page

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"io"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// MaxSize limits page input to 10MB
const MaxSize = 10 * 1024 * 1024

var (
	ErrEmpty    = errors.New("page is empty")
	ErrTooLarge = fmt.Errorf("page exceeds maximum size of %d bytes", MaxSize)
)

var titlePolicy = bluemonday.StrictPolicy()

// Document is a parsed page decoded to UTF-8.
type Document struct {
	Source  string
	Charset string
	HTML    string

	doc *goquery.Document
}

// Parse decodes and parses data. The charset comes from contentType when it
// names one and is detected otherwise.
func Parse(data []byte, source, contentType string) (*Document, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxSize {
		return nil, ErrTooLarge
	}

	cs := declaredCharset(contentType)
	if cs == "" {
		cs = DetectCharset(data)
	}

	var decoded []byte
	reader, err := charset.NewReader(bytes.NewReader(data), "text/html; charset="+cs)
	if err == nil {
		decoded, err = io.ReadAll(reader)
	}
	if err != nil {
		// Fallback to the raw bytes
		decoded = data
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(decoded))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", source, err)
	}

	return &Document{
		Source:  source,
		Charset: cs,
		HTML:    string(decoded),
		doc:     doc,
	}, nil
}

// DetectCharset guesses the charset of data, defaulting to utf-8
func DetectCharset(data []byte) string {
	detector := chardet.NewTextDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

func declaredCharset(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(params["charset"])
}

// Title returns the document title as plain text with any markup stripped.
func (d *Document) Title() string {
	title := d.doc.Find("title").First().Text()
	return strings.TrimSpace(html.UnescapeString(titlePolicy.Sanitize(title)))
}

// Query exposes the parsed document.
func (d *Document) Query() *goquery.Document {
	return d.doc
}
