package analysis

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sinkwatch/internal/instrument"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

func sampleReport() *Report {
	r := newReport(page.KindHTML, "index.html")
	r.StartedAt = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r.Duration = 1500 * time.Millisecond
	r.Scripts = []ScriptRun{{Name: "inline-1.js", Status: StatusExecuted}}
	r.Observations = map[string][]instrument.Observation{
		"eval":           {{Stack: "at inline-1.js:1:1(2)", Args: []string{"1+1"}}},
		"document_write": {},
	}
	r.Counts = map[string]int{"eval": 1, "document_write": 0}
	r.Total = 1
	r.ScriptErrors = []sandbox.ScriptError{{Script: "inline-2.js", Message: "Error: boom"}}
	r.Console = []sandbox.LogEntry{}
	return r
}

func TestReportEncoding(t *testing.T) {
	tests := []struct {
		format      Format
		compression Compression
	}{
		{FormatJSON, CompressNone},
		{FormatJSON, CompressGzip},
		{FormatYAML, CompressZstd},
	}

	want := sampleReport()
	for _, tt := range tests {
		t.Run(Extension(tt.format, tt.compression), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, want.Encode(&buf, tt.format, tt.compression))

			got, err := Decode(&buf, tt.format, tt.compression)
			require.NoError(t, err)
			assert.Equal(t, want.ID, got.ID)
			assert.Equal(t, want.Observations["eval"], got.Observations["eval"])
			assert.Equal(t, want.ScriptErrors, got.ScriptErrors)
			assert.Equal(t, want.Duration, got.Duration)
			assert.True(t, want.StartedAt.Equal(got.StartedAt))
		})
	}
}

func TestDecodeRejectsBadID(t *testing.T) {
	for _, bad := range []string{"", "rpt_notaulid", "usr_01J9Z3Q8W2X5N7K4B6C8D0F2H4"} {
		r := sampleReport()
		r.ID = bad

		var buf bytes.Buffer
		require.NoError(t, r.Encode(&buf, FormatJSON, CompressNone))

		_, err := Decode(&buf, FormatJSON, CompressNone)
		assert.ErrorIs(t, err, ErrInvalidReport, bad)
	}
}

func TestReportJSONIsStable(t *testing.T) {
	r := sampleReport()

	a, err := r.Marshal(FormatJSON)
	require.NoError(t, err)
	b, err := r.Marshal(FormatJSON)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Less(t, bytes.Index(a, []byte(`"document_write"`)), bytes.Index(a, []byte(`"eval"`)))
	assert.Contains(t, string(a), `"status": "executed"`)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	c, err := ParseCompression("zst")
	require.NoError(t, err)
	assert.Equal(t, CompressZstd, c)
	assert.Equal(t, ".yaml.zst", Extension(FormatYAML, c))

	_, err = ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownCompression)
}
