package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/sinkwatch/internal/analysis"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/config"
	"github.com/GriffinCanCode/sinkwatch/internal/infrastructure/server"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestCollectTargets(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "index.html"), "<p>hi</p>")
	writeFile(t, filepath.Join(root, "js", "app.js"), "1")
	writeFile(t, filepath.Join(root, "js", "vendor", "lib.mjs"), "1")
	writeFile(t, filepath.Join(root, "notes.txt"), "skip")

	t.Run("directory", func(t *testing.T) {
		targets, err := collectTargets(context.Background(), nil, "", root)
		require.NoError(t, err)
		assert.Equal(t, []string{
			filepath.Join(root, "index.html"),
			filepath.Join(root, "js", "app.js"),
			filepath.Join(root, "js", "vendor", "lib.mjs"),
		}, targets)
	})

	t.Run("glob", func(t *testing.T) {
		targets, err := collectTargets(context.Background(), nil, filepath.Join(root, "**", "*.js"), "")
		require.NoError(t, err)
		assert.Equal(t, []string{filepath.Join(root, "js", "app.js")}, targets)
	})

	t.Run("urls first and duplicates dropped", func(t *testing.T) {
		app := filepath.Join(root, "js", "app.js")
		targets, err := collectTargets(context.Background(),
			[]string{app, "https://b.test/", "https://a.test/"},
			filepath.Join(root, "js", "*.js"), "")
		require.NoError(t, err)
		assert.Equal(t, []string{"https://b.test/", "https://a.test/", app}, targets)
	})

	t.Run("bad glob", func(t *testing.T) {
		_, err := collectTargets(context.Background(), nil, "[", "")
		assert.Error(t, err)
	})
}

func TestReportPath(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"site/index.html", "site_index.html.json"},
		{"https://shop.test/a/b.html?x=1", "shop.test_a_b.html.json"},
		{"https://shop.test/", "shop.test.json"},
		{"/abs/app.js", "abs_app.js.json"},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			assert.Equal(t, filepath.Join("out", tt.want), reportPath("out", tt.target, ".json"))
		})
	}
}

func TestRunner(t *testing.T) {
	cfg := config.Default()
	cfg.Sandbox.PoolSize = 1
	analyzer, pool, err := server.NewAnalyzer(cfg, zap.NewNop(), nil)
	require.NoError(t, err)
	defer pool.Close()

	root := t.TempDir()
	input := filepath.Join(root, "page.html")
	writeFile(t, input, `<html><body><script>setTimeout(function() {}, 0); eval("2")</script></body></html>`)

	t.Run("stdout", func(t *testing.T) {
		var out bytes.Buffer
		r := &runner{analyzer: analyzer, logger: zap.NewNop(), format: analysis.FormatJSON, stdout: &out}

		report, err := r.analyze(context.Background(), input)
		require.NoError(t, err)
		require.NoError(t, r.write(input, report))

		decoded, err := analysis.Decode(&out, analysis.FormatJSON, analysis.CompressNone)
		require.NoError(t, err)
		assert.Equal(t, 1, decoded.Counts["eval"])
		assert.Equal(t, 1, decoded.Counts["setTimeout"])
	})

	t.Run("out dir", func(t *testing.T) {
		outDir := t.TempDir()
		r := &runner{
			analyzer:    analyzer,
			logger:      zap.NewNop(),
			format:      analysis.FormatYAML,
			compression: analysis.CompressZstd,
			outDir:      outDir,
		}

		report, err := r.analyze(context.Background(), input)
		require.NoError(t, err)
		require.NoError(t, r.write(input, report))

		f, err := os.Open(reportPath(outDir, input, ".yaml.zst"))
		require.NoError(t, err)
		defer f.Close()
		decoded, err := analysis.Decode(f, analysis.FormatYAML, analysis.CompressZstd)
		require.NoError(t, err)
		assert.Equal(t, report.ID, decoded.ID)
		assert.Equal(t, 2, decoded.Total)
	})

	t.Run("missing file", func(t *testing.T) {
		r := &runner{analyzer: analyzer, logger: zap.NewNop()}
		_, err := r.analyze(context.Background(), filepath.Join(root, "missing.js"))
		assert.Error(t, err)
	})
}
