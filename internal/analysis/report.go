package analysis

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/sinkwatch/internal/id"
	"github.com/GriffinCanCode/sinkwatch/internal/instrument"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

var (
	ErrUnknownFormat      = errors.New("unknown report format")
	ErrUnknownCompression = errors.New("unknown report compression")
	ErrInvalidReport      = errors.New("invalid report")
)

// ScriptStatus is what happened to one top-level script
type ScriptStatus string

const (
	StatusExecuted ScriptStatus = "executed"
	StatusFailed   ScriptStatus = "failed"
	StatusTimeout  ScriptStatus = "timeout"
	StatusExternal ScriptStatus = "external"
	StatusSkipped  ScriptStatus = "skipped"
)

// ScriptRun records one top-level script of the analysed input
type ScriptRun struct {
	Name     string        `json:"name" yaml:"name"`
	Status   ScriptStatus  `json:"status" yaml:"status"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
	Duration time.Duration `json:"duration_ns,omitempty" yaml:"duration_ns,omitempty"`
}

// Report is the outcome of one analysis
type Report struct {
	ID        string        `json:"id" yaml:"id"`
	Source    string        `json:"source" yaml:"source"`
	Kind      page.Kind     `json:"kind" yaml:"kind"`
	Title     string        `json:"title,omitempty" yaml:"title,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at"`
	Duration  time.Duration `json:"duration_ns" yaml:"duration_ns"`

	Scripts         []ScriptRun `json:"scripts" yaml:"scripts"`
	ExternalScripts []string    `json:"external_scripts" yaml:"external_scripts"`
	TimersRun       int         `json:"timers_run" yaml:"timers_run"`
	TimersPending   int         `json:"timers_pending" yaml:"timers_pending"`

	Observations map[string][]instrument.Observation `json:"observations" yaml:"observations"`
	Counts       map[string]int                      `json:"counts" yaml:"counts"`
	Total        int                                 `json:"total" yaml:"total"`

	ScriptErrors []sandbox.ScriptError `json:"script_errors" yaml:"script_errors"`
	Console      []sandbox.LogEntry    `json:"console" yaml:"console"`
}

func newReport(kind page.Kind, source string) *Report {
	return &Report{
		ID:              id.NewReportID(),
		Source:          source,
		Kind:            kind,
		StartedAt:       time.Now(),
		Scripts:         []ScriptRun{},
		ExternalScripts: []string{},
	}
}

// collect copies the final runtime and store state into r
func (r *Report) collect(rt *sandbox.Runtime, store *instrument.Store) {
	r.Observations = store.Snapshot()
	r.Counts = make(map[string]int, len(r.Observations))
	r.Total = 0
	for sink, obs := range r.Observations {
		r.Counts[sink] = len(obs)
		r.Total += len(obs)
	}

	seen := make(map[string]bool, len(r.ExternalScripts))
	for _, src := range r.ExternalScripts {
		seen[src] = true
	}
	for _, src := range rt.ExternalScripts() {
		if !seen[src] {
			seen[src] = true
			r.ExternalScripts = append(r.ExternalScripts, src)
		}
	}

	r.ScriptErrors = rt.ScriptErrors()
	r.Console = rt.Console()
}

// Hits returns the sinks that recorded at least one observation, in
// catalogue order.
func (r *Report) Hits(cat instrument.Catalogue) []string {
	var hits []string
	for _, sink := range cat.Sinks() {
		if r.Counts[sink] > 0 {
			hits = append(hits, sink)
		}
	}
	return hits
}

// Format names a report encoding
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Compression names a report compression
type Compression string

const (
	CompressNone Compression = ""
	CompressGzip Compression = "gzip"
	CompressZstd Compression = "zstd"
)

// ParseFormat accepts json, yaml or yml
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
}

// ParseCompression accepts none, gzip or zstd
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressNone, nil
	case "gzip", "gz":
		return CompressGzip, nil
	case "zstd", "zst":
		return CompressZstd, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCompression, s)
}

// Extension returns the file suffix for the format and compression
func Extension(format Format, compression Compression) string {
	ext := "." + string(format)
	switch compression {
	case CompressGzip:
		ext += ".gz"
	case CompressZstd:
		ext += ".zst"
	}
	return ext
}

// Marshal encodes r. JSON map keys are sorted so output is stable.
func (r *Report) Marshal(format Format) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return sonic.ConfigStd.MarshalIndent(r, "", "  ")
	case FormatYAML:
		return yaml.Marshal(r)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
}

// Encode writes r to w in format, optionally compressed
func (r *Report) Encode(w io.Writer, format Format, compression Compression) error {
	data, err := r.Marshal(format)
	if err != nil {
		return err
	}

	switch compression {
	case CompressNone:
		_, err = w.Write(data)
		return err
	case CompressGzip:
		gz := gzip.NewWriter(w)
		if _, err := gz.Write(data); err != nil {
			gz.Close()
			return err
		}
		return gz.Close()
	case CompressZstd:
		zw, err := zstd.NewWriter(w)
		if err != nil {
			return err
		}
		if _, err := zw.Write(data); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return fmt.Errorf("%w: %s", ErrUnknownCompression, compression)
}

// Decode reads a report written by Encode. A report whose ID is not a
// report identifier is rejected with ErrInvalidReport.
func Decode(rd io.Reader, format Format, compression Compression) (*Report, error) {
	switch compression {
	case CompressNone:
	case CompressGzip:
		gz, err := gzip.NewReader(rd)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		rd = gz
	case CompressZstd:
		zr, err := zstd.NewReader(rd)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		rd = zr
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownCompression, compression)
	}

	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}

	var r Report
	switch format {
	case FormatJSON, "":
		err = sonic.Unmarshal(data, &r)
	case FormatYAML:
		err = yaml.Unmarshal(data, &r)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, err
	}
	if prefix, _, err := id.Parse(r.ID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReport, err)
	} else if prefix != id.ReportPrefix {
		return nil, fmt.Errorf("%w: identifier %q is not a report", ErrInvalidReport, r.ID)
	}
	return &r, nil
}
