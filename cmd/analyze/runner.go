package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sinkwatch/internal/analysis"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
)

type documentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*page.Document, error)
}

// runner analyses targets one by one and writes their reports
type runner struct {
	analyzer    *analysis.Analyzer
	fetcher     documentFetcher
	logger      *zap.Logger
	deadline    time.Duration
	format      analysis.Format
	compression analysis.Compression
	outDir      string
	stdout      io.Writer
}

func (r *runner) analyze(ctx context.Context, target string) (*analysis.Report, error) {
	if r.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	if isURL(target) {
		doc, err := r.fetcher.Fetch(ctx, target)
		if err != nil {
			return nil, err
		}
		return r.analyzer.AnalyzeDocument(ctx, doc)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return r.analyzer.Analyze(ctx, analysis.Input{Name: target, Data: data})
}

func (r *runner) write(target string, report *analysis.Report) error {
	if r.outDir == "" {
		return report.Encode(r.stdout, r.format, r.compression)
	}

	path := reportPath(r.outDir, target, analysis.Extension(r.format, r.compression))
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Encode(f, r.format, r.compression); err != nil {
		f.Close()
		return err
	}
	r.logger.Debug("Report written",
		zap.String("target", target),
		zap.String("path", path),
		zap.Int("observations", report.Total),
	)
	return f.Close()
}
