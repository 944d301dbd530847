// Package id generates prefixed, lexicographically sortable report
// identifiers backed by ULIDs.
//
// Reports written by one process sort in creation order, which keeps
// directories of reports readable:
//
//	rpt_01J9Z3Q8W2X5N7K4B6C8D0F2H4
package id

import (
	"crypto/rand"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// ReportPrefix marks analysis report identifiers
const ReportPrefix = "rpt"

// Generator generates ULIDs. Identifiers from one generator increase
// strictly, even within the same millisecond.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the process-wide generator
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator with monotonic cryptographic entropy
func NewGenerator() *Generator {
	return NewGeneratorWithEntropy(rand.Reader)
}

// NewGeneratorWithEntropy creates a generator reading from entropy, mainly for tests
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{entropy: ulid.Monotonic(entropy, 0)}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a "prefix_ULID" string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewReportID generates a report identifier from the default generator
func NewReportID() string {
	return Default().GenerateWithPrefix(ReportPrefix)
}

// Parse splits a prefixed identifier and decodes its ULID part
func Parse(s string) (prefix string, u ulid.ULID, err error) {
	prefix, raw, ok := strings.Cut(s, "_")
	if !ok {
		return "", ulid.ULID{}, fmt.Errorf("identifier %q has no prefix", s)
	}
	u, err = ulid.Parse(raw)
	if err != nil {
		return "", ulid.ULID{}, fmt.Errorf("identifier %q: %w", s, err)
	}
	return prefix, u, nil
}
