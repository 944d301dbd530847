package analysis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/sinkwatch/internal/instrument"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

type fakeRecorder struct {
	mu           sync.Mutex
	analyses     []string
	observations map[string]int
	scriptErrors int
}

func (f *fakeRecorder) RecordAnalysis(kind, status string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyses = append(f.analyses, kind+":"+status)
}

func (f *fakeRecorder) RecordObservation(sink string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.observations == nil {
		f.observations = map[string]int{}
	}
	f.observations[sink]++
}

func (f *fakeRecorder) RecordScriptErrors(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scriptErrors += n
}

func newAnalyzer(t *testing.T, cfg sandbox.Config, opts Options, rec Recorder) *Analyzer {
	t.Helper()
	pool, err := sandbox.NewPool(cfg, 1, time.Second, nil)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	a, err := New(pool, opts, nil, rec)
	require.NoError(t, err)
	return a
}

const landing = `<!DOCTYPE html>
<html>
<head>
  <title>Landing</title>
  <script src="https://cdn.test/a.js"></script>
</head>
<body>
  <div id="out"></div>
  <script>
    document.getElementById("out").innerHTML = "<b>" + location.hash + "</b>";
    eval("1+1");
  </script>
  <script>throw new Error("boom")</script>
  <script type="application/json">{"eval": 1}</script>
  <script>
    document.addEventListener("DOMContentLoaded", function() { document.write("<p>late</p>") });
    setTimeout("var t = 1", 10);
    var s = document.createElement("script");
    s.src = "https://evil.test/x.js";
    document.body.appendChild(s);
  </script>
</body>
</html>`

func TestAnalyzeDocument(t *testing.T) {
	rec := &fakeRecorder{}
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{}, rec)

	report, err := a.Analyze(context.Background(), Input{
		Name: "https://shop.test/landing#promo",
		Kind: page.KindHTML,
		Data: []byte(landing),
	})
	require.NoError(t, err)

	assert.NotEmpty(t, report.ID)
	assert.Equal(t, page.KindHTML, report.Kind)
	assert.Equal(t, "Landing", report.Title)

	statuses := make([]ScriptStatus, 0, len(report.Scripts))
	for _, s := range report.Scripts {
		statuses = append(statuses, s.Status)
	}
	assert.Equal(t, []ScriptStatus{StatusExternal, StatusExecuted, StatusFailed, StatusSkipped, StatusExecuted}, statuses)
	assert.Equal(t, "inline-3.js", report.Scripts[2].Name)
	assert.Contains(t, report.Scripts[2].Error, "boom")

	assert.Equal(t, []string{"<b>#promo</b>"}, report.Observations["HTMLElement_innerHTML_set"][0].Args)
	assert.Equal(t, []string{"1+1"}, report.Observations["eval"][0].Args)
	assert.Equal(t, []string{"<p>late</p>"}, report.Observations["document_write"][0].Args)
	assert.Equal(t, []string{"var t = 1", "10"}, report.Observations["setTimeout"][0].Args)
	assert.Equal(t, []string{"https://evil.test/x.js"}, report.Observations["HTMLScriptElement_src_set"][0].Args)
	assert.Equal(t, 0, report.Counts["Function"])
	assert.Equal(t, 5, report.Total)

	assert.Equal(t, []string{"https://cdn.test/a.js", "https://evil.test/x.js"}, report.ExternalScripts)
	assert.Equal(t, 1, report.TimersRun)
	require.Len(t, report.ScriptErrors, 1)
	assert.Equal(t, "inline-3.js", report.ScriptErrors[0].Script)

	assert.Equal(t, []string{"html:success"}, rec.analyses)
	assert.Equal(t, 1, rec.observations["eval"])
	assert.Equal(t, 1, rec.scriptErrors)

	assert.Equal(t, []string{
		"eval",
		"setTimeout",
		"document_write",
		"HTMLElement_innerHTML_set",
		"HTMLScriptElement_src_set",
	}, report.Hits(instrument.DefaultCatalogue()))
}

func TestAnalyzeScript(t *testing.T) {
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{}, nil)

	report, err := a.Analyze(context.Background(), Input{
		Name: "payload.js",
		Data: []byte(`var f = new Function("a", "return a"); f(eval("2")); console.log("done");`),
	})
	require.NoError(t, err)

	assert.Equal(t, page.KindScript, report.Kind)
	assert.Equal(t, []string{"a", "return a"}, report.Observations["Function"][0].Args)
	assert.Equal(t, []string{"2"}, report.Observations["eval"][0].Args)
	require.Len(t, report.Console, 1)
	assert.Equal(t, "done", report.Console[0].Message)
	assert.Empty(t, report.ScriptErrors)
}

func TestAnalyzeTimeoutContinues(t *testing.T) {
	cfg := sandbox.DefaultConfig()
	cfg.Timeout = 100 * time.Millisecond
	a := newAnalyzer(t, cfg, Options{}, nil)

	doc, err := page.Parse([]byte(`<script>while (true) {}</script><script>eval("after")</script>`), "loop.html", "text/html")
	require.NoError(t, err)

	report, err := a.AnalyzeDocument(context.Background(), doc)
	require.NoError(t, err)

	require.Len(t, report.Scripts, 2)
	assert.Equal(t, StatusTimeout, report.Scripts[0].Status)
	assert.Equal(t, StatusExecuted, report.Scripts[1].Status)
	assert.Equal(t, 1, report.Counts["eval"])
}

func TestAnalyzeCancelled(t *testing.T) {
	rec := &fakeRecorder{}
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.AnalyzeScript(ctx, "x.js", "1")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"script:error"}, rec.analyses)
}

func TestAnalyzeIsolated(t *testing.T) {
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{}, nil)

	first, err := a.AnalyzeScript(context.Background(), "a.js", `eval("1"); var leaked = 1;`)
	require.NoError(t, err)
	second, err := a.AnalyzeScript(context.Background(), "b.js", `if (typeof leaked !== "undefined") eval("leak");`)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Counts["eval"])
	assert.Equal(t, 0, second.Counts["eval"])
	assert.NotEqual(t, first.ID, second.ID)
}

func TestAnalyzeLifecycleOptions(t *testing.T) {
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{SkipLifecycle: true, SkipTimers: true}, nil)

	report, err := a.AnalyzeScript(context.Background(), "a.js", `
		window.addEventListener("load", function() { eval("load") });
		setTimeout(function() { eval("timer") }, 0);
	`)
	require.NoError(t, err)

	assert.Equal(t, 0, report.Counts["eval"])
	assert.Equal(t, 0, report.TimersRun)
	assert.Equal(t, 1, report.TimersPending)
}

func TestAnalyzeCustomCatalogue(t *testing.T) {
	cat := instrument.Catalogue{Hooks: []instrument.Hook{
		{Sink: "dynamic_code", Owner: "globalThis", Member: "eval", Kind: instrument.KindCallable},
	}}
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{Catalogue: cat}, nil)
	assert.Equal(t, cat, a.Catalogue())

	report, err := a.AnalyzeScript(context.Background(), "a.js", `eval("x=1")`)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"dynamic_code": 1}, report.Counts)
}

func TestNewRejectsInvalidCatalogue(t *testing.T) {
	pool, err := sandbox.NewPool(sandbox.DefaultConfig(), 1, time.Second, nil)
	require.NoError(t, err)
	defer pool.Close()

	_, err = New(pool, Options{Catalogue: instrument.Catalogue{Hooks: []instrument.Hook{{Sink: "x"}}}}, nil, nil)
	assert.Error(t, err)
}

func TestAnalyzeUnsupportedInput(t *testing.T) {
	a := newAnalyzer(t, sandbox.DefaultConfig(), Options{}, nil)

	_, err := a.Analyze(context.Background(), Input{Name: "image", Data: []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")})
	assert.ErrorIs(t, err, ErrUnsupportedInput)
}
