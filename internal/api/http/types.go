package http

import (
	"errors"
	"strings"
)

var (
	errNoInput    = errors.New("one of html, script or url is required")
	errManyInputs = errors.New("only one of html, script or url may be set")
)

// AnalyzeRequest is the body of POST /analyze. Exactly one of HTML, Script
// and URL is set.
type AnalyzeRequest struct {
	HTML   string `json:"html"`
	Script string `json:"script"`
	URL    string `json:"url"`
	// Name labels inline input in the report, e.g. "checkout.html".
	Name string `json:"name"`
}

// Validate enforces the exactly-one-input rule
func (r *AnalyzeRequest) Validate() error {
	set := 0
	for _, v := range []string{r.HTML, r.Script, r.URL} {
		if strings.TrimSpace(v) != "" {
			set++
		}
	}
	switch {
	case set == 0:
		return errNoInput
	case set > 1:
		return errManyInputs
	}
	return nil
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}
