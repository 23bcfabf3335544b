package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/shared/id"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

// Kind classifies registered instances
type Kind string

const (
	KindSource  Kind = "source"
	KindFilter  Kind = "filter"
	KindDisplay Kind = "display"
)

// Kinds lists all kinds in teardown order
var Kinds = []Kind{KindDisplay, KindFilter, KindSource}

// ParseKind converts user input into a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindSource, KindFilter, KindDisplay:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown component kind %q", s)
}

func (k Kind) prefix() string {
	switch k {
	case KindSource:
		return id.SourcePrefix
	case KindFilter:
		return id.FilterPrefix
	default:
		return id.DisplayPrefix
	}
}

// Entry records one registered instance
type Entry struct {
	Handle       id.Handle   `json:"handle"`
	Kind         Kind        `json:"kind"`
	Name         string      `json:"name"`
	Instance     interface{} `json:"-"`
	RegisteredAt time.Time   `json:"registered_at"`
	order        uint64
}

// Detacher removes a handle from a structure that references it
type Detacher func(h id.Handle) error

// Closer is implemented by instances that release resources on teardown
type Closer interface {
	Close() error
}

// Observer receives registry size changes (metrics hook)
type Observer func(kind Kind, count int)

// Registry is the handle-keyed catalog
type Registry struct {
	mu        sync.RWMutex
	entries   map[id.Handle]*Entry // Protected by mu
	detachers map[Kind]Detacher    // Protected by mu
	counter   uint64               // Protected by mu
	gen       *id.Generator
	observer  Observer
	logger    *zap.Logger
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		entries:   make(map[id.Handle]*Entry),
		detachers: make(map[Kind]Detacher),
		gen:       id.Default(),
		logger:    logger.Named("registry"),
	}
}

// WithObserver installs a size observer
func (r *Registry) WithObserver(obs Observer) *Registry {
	r.observer = obs
	return r
}

// SetDetacher installs the cascade hook for a kind
func (r *Registry) SetDetacher(kind Kind, fn Detacher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detachers[kind] = fn
}

// Register adds an instance and returns its handle
func (r *Registry) Register(kind Kind, name string, instance interface{}) (id.Handle, error) {
	return r.RegisterWith(kind, name, instance, nil)
}

// RegisterWith adds an instance and runs attach under the registry lock.
// If attach fails the registration is rolled back.
func (r *Registry) RegisterWith(kind Kind, name string, instance interface{}, attach func(id.Handle) error) (id.Handle, error) {
	if instance == nil {
		return "", fmt.Errorf("%w: nil %s instance", types.ErrInvalidConfig, kind)
	}
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", types.ErrInvalidConfig, kind)
	}

	r.mu.Lock()
	h := r.gen.NewHandle(kind.prefix())
	if attach != nil {
		if err := attach(h); err != nil {
			r.mu.Unlock()
			return "", fmt.Errorf("attach %s %s: %w", kind, name, err)
		}
	}
	r.counter++
	r.entries[h] = &Entry{
		Handle:       h,
		Kind:         kind,
		Name:         name,
		Instance:     instance,
		RegisteredAt: time.Now(),
		order:        r.counter,
	}
	count := r.countLocked(kind)
	r.mu.Unlock()

	r.notify(kind, count)
	r.logger.Debug("Registered component",
		zap.String("kind", string(kind)),
		zap.String("name", name),
		zap.String("handle", h.String()),
	)
	return h, nil
}

// Unregister removes an entry, detaching it from referencing structures first.
// A failing detacher leaves the entry registered.
func (r *Registry) Unregister(h id.Handle) error {
	r.mu.Lock()
	entry, ok := r.entries[h]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("handle %s: %w", h, types.ErrNotFound)
	}
	if detach := r.detachers[entry.Kind]; detach != nil {
		if err := detach(h); err != nil {
			r.mu.Unlock()
			return fmt.Errorf("detach %s %s: %w", entry.Kind, h, err)
		}
	}
	delete(r.entries, h)
	count := r.countLocked(entry.Kind)
	r.mu.Unlock()

	r.notify(entry.Kind, count)
	r.logger.Debug("Unregistered component",
		zap.String("kind", string(entry.Kind)),
		zap.String("name", entry.Name),
		zap.String("handle", h.String()),
	)
	return nil
}

// Get returns the entry for a handle
func (r *Registry) Get(h id.Handle) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[h]
	if !ok {
		return Entry{}, fmt.Errorf("handle %s: %w", h, types.ErrNotFound)
	}
	return *entry, nil
}

// Lookup resolves a handle or, failing that, the earliest entry of kind with the given name
func (r *Registry) Lookup(kind Kind, handleOrName string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if entry, ok := r.entries[id.Handle(handleOrName)]; ok && entry.Kind == kind {
		return *entry, nil
	}
	var found *Entry
	for _, entry := range r.entries {
		if entry.Kind != kind || entry.Name != handleOrName {
			continue
		}
		if found == nil || entry.order < found.order {
			found = entry
		}
	}
	if found == nil {
		return Entry{}, fmt.Errorf("%s %q: %w", kind, handleOrName, types.ErrNotFound)
	}
	return *found, nil
}

// List returns handles of a kind in registration order; empty kind lists everything
func (r *Registry) List(kind Kind) []id.Handle {
	entries := r.Entries(kind)
	handles := make([]id.Handle, len(entries))
	for i, e := range entries {
		handles[i] = e.Handle
	}
	return handles
}

// Entries returns copies of the entries of a kind in registration order
func (r *Registry) Entries(kind Kind) []Entry {
	r.mu.RLock()
	entries := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if kind == "" || e.Kind == kind {
			entries = append(entries, *e)
		}
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].order < entries[j].order
	})
	return entries
}

// Len returns the number of entries
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Stats returns entry counts per kind
func (r *Registry) Stats() map[Kind]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		stats[k] = 0
	}
	for _, e := range r.entries {
		stats[e.Kind]++
	}
	return stats
}

// Close unregisters everything (displays, then filters, then sources) and
// closes instances that implement Closer. Returns the first error seen.
func (r *Registry) Close() error {
	var firstErr error
	for _, kind := range Kinds {
		for _, entry := range r.Entries(kind) {
			if err := r.Unregister(entry.Handle); err != nil && firstErr == nil {
				firstErr = err
			}
			if closer, ok := entry.Instance.(Closer); ok {
				if err := closer.Close(); err != nil {
					r.logger.Warn("Failed to close component",
						zap.String("handle", entry.Handle.String()),
						zap.Error(err),
					)
					if firstErr == nil {
						firstErr = err
					}
				}
			}
		}
	}
	return firstErr
}

// countLocked counts entries of a kind (caller must hold lock)
func (r *Registry) countLocked(kind Kind) int {
	n := 0
	for _, e := range r.entries {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Registry) notify(kind Kind, count int) {
	if r.observer != nil {
		r.observer(kind, count)
	}
}
