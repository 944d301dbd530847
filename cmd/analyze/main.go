package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/sinkwatch/internal/analysis"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/config"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/server"
	"github.com/GriffinCanCode/sinkwatch/internal/logging"
	"github.com/GriffinCanCode/sinkwatch/internal/page"
)

// Exit codes
const (
	exitOK     = 0
	exitFailed = 1
	exitHits   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	catalogue := flag.String("catalogue", "", "Hook catalogue file (.yaml or .toml)")
	outDir := flag.String("out", "", "Write one report per input into this directory instead of stdout")
	format := flag.String("format", "json", "Report format: json or yaml")
	compress := flag.String("compress", "", "Report compression: gzip or zstd")
	pattern := flag.String("glob", "", "Analyse files matching a doublestar pattern, e.g. 'site/**/*.html'")
	dir := flag.String("dir", "", "Analyse every HTML and JavaScript file under a directory")
	failOnHit := flag.Bool("fail-on-hit", false, "Exit with status 2 when any sink was reached")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	cfg := config.LoadOrDefault()
	if *catalogue != "" {
		cfg.Instrument.CataloguePath = *catalogue
	}
	// Reports may go to stdout, so logs go to stderr
	logCfg := logging.DevelopmentConfig()
	logCfg.Level = "warn"
	logCfg.OutputPaths = []string{"stderr"}
	logCfg.Name = "analyze"
	if *verbose {
		logCfg.Level = "debug"
	}

	logger, err := logging.New(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return exitFailed
	}
	defer logger.Sync()

	fmtOpt, err := analysis.ParseFormat(*format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	compression, err := analysis.ParseCompression(*compress)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	if compression != analysis.CompressNone && *outDir == "" {
		fmt.Fprintln(os.Stderr, "-compress requires -out")
		return exitFailed
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	targets, err := collectTargets(ctx, flag.Args(), *pattern, *dir)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	if len(targets) == 0 {
		fmt.Fprintln(os.Stderr, "usage: analyze [flags] <file|url>...")
		flag.PrintDefaults()
		return exitFailed
	}

	analyzer, pool, err := server.NewAnalyzer(cfg, logger.Logger, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailed
	}
	defer pool.Close()

	if *outDir != "" {
		if err := os.MkdirAll(*outDir, 0o755); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return exitFailed
		}
	}

	r := &runner{
		analyzer:    analyzer,
		fetcher:     page.NewFetcher(server.FetchConfig(cfg), logger.Named("fetch")),
		logger:      logger.Logger,
		deadline:    cfg.Server.Deadline,
		format:      fmtOpt,
		compression: compression,
		outDir:      *outDir,
		stdout:      os.Stdout,
	}

	code := exitOK
	for _, target := range targets {
		report, err := r.analyze(ctx, target)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return exitFailed
			}
			logger.Error("Analysis failed", zap.String("target", target), zap.Error(err))
			code = exitFailed
			continue
		}
		if err := r.write(target, report); err != nil {
			logger.Error("Failed to write report", zap.String("target", target), zap.Error(err))
			code = exitFailed
			continue
		}
		if *failOnHit && report.Total > 0 && code == exitOK {
			code = exitHits
		}
	}
	return code
}
