// Package agent holds the text-processing agents that consume normalized
// records. Agents are pure: they never talk to connectors directly.
package agent

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/nhle/omninexus/internal/model"
)

// ErrUnknownType is returned by the registry for unregistered agent types.
var ErrUnknownType = errors.New("unknown agent type")

// Params carries per-run integer overrides such as num_keywords.
type Params map[string]int

// Agent processes a batch of records and returns a result map.
type Agent interface {
	ID() string
	Type() string
	GetMetadata() map[string]any

	// Execute reads payload content from records. Records without string
	// content are counted as skipped, never rejected.
	Execute(records []model.Record, params Params) (map[string]any, error)
}

// wordPattern matches runs of letters, digits and underscores.
var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Constructor builds an agent from its configuration.
type Constructor func(id string, cfg map[string]any) (Agent, error)

// Option customizes a Registry.
type Option func(*Registry)

// WithConstructor registers a constructor under typeName.
func WithConstructor(typeName string, c Constructor) Option {
	return func(r *Registry) {
		r.Register(typeName, c)
	}
}

// Registry maps agent type names to constructors.
type Registry struct {
	mu    sync.RWMutex
	types map[string]Constructor
}

// NewRegistry builds a registry with the provided options applied.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{types: make(map[string]Constructor)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// DefaultRegistry returns a registry holding the built-in agents.
func DefaultRegistry() *Registry {
	return NewRegistry(
		WithConstructor(TypeWordCounter, NewWordCounter),
		WithConstructor(TypeKeywordExtractor, NewKeywordExtractor),
	)
}

// Register adds (or replaces) an agent type.
func (r *Registry) Register(typeName string, c Constructor) {
	key := strings.ToLower(strings.TrimSpace(typeName))
	if key == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[key] = c
}

// Types returns the registered type names in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Create instantiates the agent named by typeName.
func (r *Registry) Create(id, typeName string, cfg map[string]any) (Agent, error) {
	r.mu.RLock()
	c, ok := r.types[strings.ToLower(strings.TrimSpace(typeName))]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)",
			ErrUnknownType, typeName, strings.Join(r.Types(), ", "))
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	return c(id, cfg)
}
