package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
)

var analysable = map[string]bool{
	".html":  true,
	".htm":   true,
	".xhtml": true,
	".js":    true,
	".mjs":   true,
	".cjs":   true,
}

// isURL reports whether target should be fetched rather than read
func isURL(target string) bool {
	u, err := url.Parse(target)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// collectTargets expands positional arguments, a glob pattern and a directory
// walk into one sorted, duplicate-free list. URLs keep their argument order
// ahead of files.
func collectTargets(ctx context.Context, args []string, pattern, dir string) ([]string, error) {
	var urls []string
	files := make(map[string]struct{})

	for _, arg := range args {
		if isURL(arg) {
			urls = append(urls, arg)
			continue
		}
		files[filepath.Clean(arg)] = struct{}{}
	}

	if pattern != "" {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("glob failed: %w", err)
		}
		for _, m := range matches {
			files[filepath.Clean(m)] = struct{}{}
		}
	}

	if dir != "" {
		found, err := walkDir(ctx, dir)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			files[f] = struct{}{}
		}
	}

	sorted := make([]string, 0, len(files))
	for f := range files {
		sorted = append(sorted, f)
	}
	sort.Strings(sorted)
	return append(urls, sorted...), nil
}

// walkDir lists analysable files under root without following symlinks
func walkDir(ctx context.Context, root string) ([]string, error) {
	var (
		mu    sync.Mutex
		found []string
	)
	conf := fastwalk.Config{Follow: false}

	err := fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil || d.IsDir() {
			return nil
		}
		if !analysable[strings.ToLower(filepath.Ext(p))] {
			return nil
		}

		mu.Lock()
		found = append(found, filepath.Clean(p))
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk failed: %w", err)
	}
	return found, nil
}

// reportPath names the report file for target inside outDir
func reportPath(outDir, target, ext string) string {
	name := target
	if isURL(target) {
		u, _ := url.Parse(target)
		name = u.Host + u.Path
	}
	name = strings.Trim(name, "/")
	if name == "" {
		name = "index"
	}

	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", "?", "_", "*", "_")
	return filepath.Join(outDir, r.Replace(name)+ext)
}
