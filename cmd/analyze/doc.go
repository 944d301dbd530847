// Command analyze runs pages and scripts through the instrumented sandbox from
// the command line and prints one report per input.
//
//	analyze index.html app.js
//	analyze -dir ./site -out reports -format yaml -compress zstd
//	analyze -glob 'dist/**/*.js' -fail-on-hit
//	analyze https://example.com/
//
// Inputs are analysed in order: URLs as given, then files sorted by path.
// The exit status is 1 when any input failed and 2 with -fail-on-hit when a
// sink was reached.
package main
