/*
Package analysis runs pages and scripts inside instrumented sandboxes and
reports which sinks they reached.

# Flow

Each analysis borrows a runtime from a sandbox.Pool and:

 1. points location at the source when it is an http(s) URL
 2. installs the catalogue with instrument.Install
 3. loads the document and runs its classic scripts in document order
 4. fires DOMContentLoaded on document and load on window
 5. drains the timer queue
 6. snapshots the observation store into a Report

A script that throws or times out is recorded in Report.Scripts and the
next one still runs. Context cancellation aborts the whole analysis.
Runtimes are reset on release, so nothing leaks between analyses.

# Reports

Reports encode to JSON (sonic, sorted keys) or YAML and may be gzip or zstd
compressed:

	report, err := analyzer.Analyze(ctx, analysis.Input{Name: "index.html", Data: data})
	if err != nil {
		return err
	}
	return report.Encode(os.Stdout, analysis.FormatJSON, analysis.CompressNone)
*/
package analysis
