package connector

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nhle/omninexus/internal/model"
)

// Constructor builds and validates a connector instance. It must return
// either a fully validated connector or an error, never both.
type Constructor func(id string, cfg model.ConnectorConfig) (Connector, error)

// Option customizes a Registry.
type Option func(*Registry)

type registration struct {
	construct Constructor
	schema    Schema
}

// Registry maps connector type names to constructors. Build one at process
// start and pass it to whatever needs to instantiate connectors.
type Registry struct {
	mu    sync.RWMutex
	types map[string]registration
}

// NewRegistry builds a registry with the provided options applied.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{types: make(map[string]registration)}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// WithConstructor registers a constructor and its schema under typeName.
func WithConstructor(typeName string, schema Schema, c Constructor) Option {
	return func(r *Registry) {
		r.Register(typeName, schema, c)
	}
}

// Register adds (or replaces) a connector type.
func (r *Registry) Register(typeName string, schema Schema, c Constructor) {
	key := normalizeType(typeName)
	if key == "" || c == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[key] = registration{construct: c, schema: schema}
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

// Schema returns the configuration schema for typeName.
func (r *Registry) Schema(typeName string) (Schema, error) {
	r.mu.RLock()
	reg, ok := r.types[normalizeType(typeName)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %s)",
			ErrUnknownType, typeName, strings.Join(r.Types(), ", "))
	}
	return reg.schema, nil
}

// Create instantiates the connector named by cfg's type. The caller's map is
// cloned first, so validation-time defaults never leak back into it.
func (r *Registry) Create(id string, cfg model.ConnectorConfig) (Connector, error) {
	if cfg == nil {
		return nil, NewError(KindConfiguration, id, "create",
			errors.New("configuration must be a map"))
	}
	typeName := cfg.Type()
	if strings.TrimSpace(typeName) == "" {
		return nil, NewError(KindConfiguration, id, "create",
			fmt.Errorf("configuration must include a %q key", model.TypeKey))
	}

	r.mu.RLock()
	reg, ok := r.types[normalizeType(typeName)]
	r.mu.RUnlock()
	if !ok {
		return nil, NewError(KindConfiguration, id, "create",
			fmt.Errorf("%w %q (available: %s)",
				ErrUnknownType, typeName, strings.Join(r.Types(), ", ")))
	}

	c, err := reg.construct(id, cfg.Clone())
	if err != nil {
		if KindOf(err) == 0 {
			err = NewError(KindConfiguration, id, "create", err)
		}
		return nil, err
	}
	if c == nil {
		return nil, NewError(KindConfiguration, id, "create",
			fmt.Errorf("constructor for %q returned no connector", typeName))
	}
	return c, nil
}

func normalizeType(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
