// Package id provides handle generation for registered pipeline components.
//
// Handles are prefixed ULIDs:
//   - Lexicographic sortability: handles sort by creation time
//   - Prefixed kinds: src_*, flt_*, dsp_* make shell output and logs readable
//   - Stable: a handle never changes for the lifetime of its instance
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

// ============================================================================
// Handle Types
// ============================================================================

// Handle identifies a registered component instance
type Handle string

const (
	SourcePrefix  = "src"
	FilterPrefix  = "flt"
	DisplayPrefix = "dsp"
	RequestPrefix = "req"
)

func (h Handle) String() string { return string(h) }

// Prefix returns the kind prefix of the handle, or "" if it has none
func (h Handle) Prefix() string {
	prefix, _, ok := strings.Cut(string(h), "_")
	if !ok {
		return ""
	}
	return prefix
}

// ============================================================================
// ULID Generator
// ============================================================================

// Generator generates ULIDs with optional prefixes
type Generator struct {
	entropy   io.Reader
	entropyMu sync.Mutex
}

var (
	defaultGenerator *Generator
	once             sync.Once
)

// Default returns the shared generator instance
func Default() *Generator {
	once.Do(func() {
		defaultGenerator = NewGenerator()
	})
	return defaultGenerator
}

// NewGenerator creates a generator backed by crypto/rand with monotonic entropy,
// so handles minted within the same millisecond still sort in creation order
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// NewGeneratorWithEntropy creates a generator with custom entropy source
// Useful for testing with deterministic entropy
func NewGeneratorWithEntropy(entropy io.Reader) *Generator {
	return &Generator{
		entropy: entropy,
	}
}

// Generate creates a new ULID
func (g *Generator) Generate() ulid.ULID {
	g.entropyMu.Lock()
	defer g.entropyMu.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), g.entropy)
}

// GenerateWithPrefix creates a prefixed ULID string
func (g *Generator) GenerateWithPrefix(prefix string) string {
	return fmt.Sprintf("%s_%s", prefix, g.Generate().String())
}

// NewHandle mints a handle with the given kind prefix
func (g *Generator) NewHandle(prefix string) Handle {
	return Handle(g.GenerateWithPrefix(prefix))
}

// NewHandle mints a handle from the shared generator
func NewHandle(prefix string) Handle {
	return Default().NewHandle(prefix)
}

// NewRequestID mints an identifier for HTTP request tracing
func NewRequestID() string {
	return Default().GenerateWithPrefix(RequestPrefix)
}

// ============================================================================
// Validation
// ============================================================================

// IsValid checks if a handle has the form prefix_ULID
func IsValid(h Handle) bool {
	_, raw, ok := strings.Cut(string(h), "_")
	if !ok {
		return false
	}
	_, err := ulid.Parse(raw)
	return err == nil
}

// Timestamp extracts the creation time embedded in a handle
func Timestamp(h Handle) (time.Time, error) {
	_, raw, ok := strings.Cut(string(h), "_")
	if !ok {
		return time.Time{}, fmt.Errorf("handle %q has no prefix", h)
	}
	parsed, err := ulid.Parse(raw)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()), nil
}
