package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sinkwatch/internal/instrument"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
	"github.com/GriffinCanCode/sinkwatch/internal/sandbox"
)

var ErrUnsupportedInput = errors.New("input is neither HTML nor JavaScript")

// Recorder receives analysis metrics. *monitoring.Metrics satisfies it.
type Recorder interface {
	RecordAnalysis(kind, status string, duration time.Duration)
	RecordObservation(sink string)
	RecordScriptErrors(n int)
}

type nopRecorder struct{}

func (nopRecorder) RecordAnalysis(string, string, time.Duration) {}
func (nopRecorder) RecordObservation(string)                     {}
func (nopRecorder) RecordScriptErrors(int)                       {}

// Options configure an Analyzer
type Options struct {
	Catalogue    instrument.Catalogue
	Render       instrument.RenderOptions
	ResultGlobal string

	// SkipLifecycle disables the DOMContentLoaded and load events.
	SkipLifecycle bool
	// SkipTimers leaves queued timers unrun.
	SkipTimers bool
}

// Input is one unit of analysis. Kind is detected from Name and Data when empty.
type Input struct {
	Name        string
	Kind        page.Kind
	Data        []byte
	ContentType string
}

// Analyzer runs pages and scripts in instrumented sandboxes
type Analyzer struct {
	pool     *sandbox.Pool
	opts     Options
	logger   *zap.Logger
	recorder Recorder
}

// New creates an analyzer drawing runtimes from pool. The catalogue is
// validated up front so a bad one fails here rather than per analysis.
func New(pool *sandbox.Pool, opts Options, logger *zap.Logger, recorder Recorder) (*Analyzer, error) {
	if len(opts.Catalogue.Hooks) == 0 {
		opts.Catalogue = instrument.DefaultCatalogue()
	}
	if err := opts.Catalogue.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Analyzer{pool: pool, opts: opts, logger: logger, recorder: recorder}, nil
}

// Catalogue returns the hooks installed for every analysis
func (a *Analyzer) Catalogue() instrument.Catalogue {
	return a.opts.Catalogue
}

// Analyze dispatches in to AnalyzeDocument or AnalyzeScript by kind
func (a *Analyzer) Analyze(ctx context.Context, in Input) (*Report, error) {
	kind := in.Kind
	if kind == "" {
		kind = page.DetectKind(in.Name, in.Data)
	}

	switch kind {
	case page.KindHTML:
		doc, err := page.Parse(in.Data, in.Name, in.ContentType)
		if err != nil {
			return nil, err
		}
		return a.AnalyzeDocument(ctx, doc)
	case page.KindScript:
		return a.AnalyzeScript(ctx, in.Name, string(in.Data))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedInput, in.Name)
	}
}

// AnalyzeDocument loads doc into a sandbox and runs its classic scripts in
// document order. External scripts are listed, never fetched.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, doc *page.Document) (*Report, error) {
	return a.run(ctx, page.KindHTML, doc.Source, func(s *session) error {
		s.report.Title = doc.Title()
		if err := s.rt.LoadDocument(doc.HTML); err != nil {
			return err
		}

		for _, script := range doc.Scripts() {
			switch {
			case script.External():
				s.report.ExternalScripts = append(s.report.ExternalScripts, script.Src)
				s.skip(script.Name, StatusExternal)
			case !script.Runnable():
				s.skip(script.Name, StatusSkipped)
			default:
				if err := s.execute(script.Name, script.Text); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// AnalyzeScript runs a single script against an empty document
func (a *Analyzer) AnalyzeScript(ctx context.Context, name, src string) (*Report, error) {
	if name == "" {
		name = "script.js"
	}
	return a.run(ctx, page.KindScript, name, func(s *session) error {
		return s.execute(name, src)
	})
}

func (a *Analyzer) run(ctx context.Context, kind page.Kind, source string, body func(*session) error) (*Report, error) {
	report := newReport(kind, source)
	logger := a.logger.With(zap.String("analysis", report.ID), zap.String("source", source))

	err := a.pool.With(ctx, func(rt *sandbox.Runtime) error {
		if isWebURL(source) {
			if err := rt.Navigate(source); err != nil {
				return err
			}
		}

		store, err := instrument.Install(rt.VM(), a.opts.Catalogue, instrument.Options{
			ResultGlobal: a.opts.ResultGlobal,
			Render:       a.opts.Render,
			Logger:       logger,
			OnAppend: func(sink string, _ instrument.Observation) {
				a.recorder.RecordObservation(sink)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to instrument sandbox: %w", err)
		}

		s := &session{ctx: ctx, rt: rt, report: report}
		if err := body(s); err != nil {
			return err
		}
		if err := a.lifecycle(s); err != nil {
			return err
		}

		report.collect(rt, store)
		return nil
	})

	report.Duration = time.Since(report.StartedAt)
	status := "success"
	if err != nil {
		status = "error"
	}
	a.recorder.RecordAnalysis(string(kind), status, report.Duration)
	if err != nil {
		logger.Warn("Analysis failed", zap.Error(err))
		return nil, err
	}

	a.recorder.RecordScriptErrors(len(report.ScriptErrors))
	logger.Info("Analysis complete",
		zap.Int("observations", report.Total),
		zap.Int("script_errors", len(report.ScriptErrors)),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (a *Analyzer) lifecycle(s *session) error {
	if !a.opts.SkipLifecycle {
		for _, ev := range []struct{ target, name string }{
			{"document", "DOMContentLoaded"},
			{"window", "load"},
		} {
			if err := s.rt.Dispatch(s.ctx, ev.target, ev.name); err != nil && !s.tolerable(err) {
				return err
			}
		}
	}
	if !a.opts.SkipTimers {
		ran, err := s.rt.RunTimers(s.ctx)
		if err != nil && !s.tolerable(err) {
			return err
		}
		s.report.TimersRun = ran
	}
	s.report.TimersPending = s.rt.PendingTimers()
	return nil
}

// session is the state of one analysis on one runtime
type session struct {
	ctx    context.Context
	rt     *sandbox.Runtime
	report *Report
}

func (s *session) skip(name string, status ScriptStatus) {
	s.report.Scripts = append(s.report.Scripts, ScriptRun{Name: name, Status: status})
}

// execute runs one script. A throwing or timed-out script is recorded and
// the analysis carries on; cancellation and sandbox failures abort it.
func (s *session) execute(name, src string) error {
	start := time.Now()
	_, err := s.rt.Execute(s.ctx, name, src)
	run := ScriptRun{Name: name, Status: StatusExecuted, Duration: time.Since(start)}

	if err != nil {
		if ctxErr := s.ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !s.tolerable(err) {
			return err
		}
		run.Status = StatusFailed
		if errors.Is(err, sandbox.ErrInterrupted) {
			run.Status = StatusTimeout
		}
		run.Error = err.Error()
	}
	s.report.Scripts = append(s.report.Scripts, run)
	return nil
}

// tolerable reports whether err came from script behaviour rather than
// from the caller or the sandbox itself.
func (s *session) tolerable(err error) bool {
	if s.ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, sandbox.ErrClosed)
}

func isWebURL(source string) bool {
	u, err := url.Parse(source)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
