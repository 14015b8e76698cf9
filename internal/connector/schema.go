package connector

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nhle/omninexus/internal/model"
)

// FieldType names the accepted value type of a configuration key.
type FieldType string

const (
	TypeString        FieldType = "string"
	TypeInteger       FieldType = "integer"
	TypeBoolean       FieldType = "boolean"
	TypeDirectoryPath FieldType = "directorypath"
)

// Field describes one configuration key.
type Field struct {
	Name        string    `json:"name"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description"`

	// DefaultFunc computes a default from the partially validated
	// configuration. It takes precedence over Default.
	DefaultFunc func(cfg model.ConnectorConfig) any `json:"-"`

	// Check runs after type conversion and may reject the value.
	Check func(v any) error `json:"-"`
}

// Schema is the ordered list of configuration keys a connector accepts.
// Fields are applied in order, so a DefaultFunc may read earlier fields.
type Schema []Field

// Field returns the field named name.
func (s Schema) Field(name string) (Field, bool) {
	for _, f := range s {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Apply validates cfg against the schema, converting values to their
// declared types and filling defaults in place. Keys not in the schema are
// left untouched. The returned error is a configuration error naming the
// offending key.
func (s Schema) Apply(connectorID string, cfg model.ConnectorConfig) error {
	if cfg == nil {
		return NewError(KindConfiguration, connectorID, "validate",
			errors.New("configuration must be a map"))
	}

	for _, f := range s {
		raw, present := cfg[f.Name]
		if present && raw == nil {
			present = false
		}
		if present {
			if str, ok := raw.(string); ok && strings.TrimSpace(str) == "" {
				present = false
			}
		}

		if !present {
			if f.Required {
				return NewError(KindConfiguration, connectorID, "validate",
					fmt.Errorf("configuration key %q is required", f.Name))
			}
			def := f.Default
			if f.DefaultFunc != nil {
				def = f.DefaultFunc(cfg)
			}
			if def != nil {
				cfg[f.Name] = def
			}
			continue
		}

		v, err := convert(f.Type, raw)
		if err != nil {
			return NewError(KindConfiguration, connectorID, "validate",
				fmt.Errorf("configuration key %q: %w", f.Name, err))
		}
		if f.Check != nil {
			if err := f.Check(v); err != nil {
				return NewError(KindConfiguration, connectorID, "validate",
					fmt.Errorf("configuration key %q: %w", f.Name, err))
			}
		}
		cfg[f.Name] = v
	}

	return nil
}

// convert coerces a decoded YAML/JSON value to the declared field type.
func convert(t FieldType, raw any) (any, error) {
	switch t {
	case TypeString:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string, got %T", raw)
		}
		return strings.TrimSpace(s), nil
	case TypeInteger:
		return toInt(raw)
	case TypeBoolean:
		return toBool(raw)
	case TypeDirectoryPath:
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("must be a string, got %T", raw)
		}
		return resolveDir(s)
	default:
		return raw, nil
	}
}

func toInt(raw any) (int, error) {
	switch v := raw.(type) {
	case int:
		return v, nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("must be an integer, got %v", v)
		}
		return int(v), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, fmt.Errorf("must be an integer, got %q", v)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("must be an integer, got %T", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "t", "yes", "y", "1":
			return true, nil
		case "false", "f", "no", "n", "0":
			return false, nil
		}
		return false, fmt.Errorf("must be a boolean (true/false), got %q", v)
	default:
		return false, fmt.Errorf("must be a boolean (true/false), got %T", raw)
	}
}

func resolveDir(p string) (string, error) {
	p = strings.TrimSpace(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolving %q: %w", p, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%q is not a valid directory or is inaccessible: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", abs)
	}
	return abs, nil
}

// IntRange returns a Check accepting integers in [lo, hi].
func IntRange(lo, hi int) func(any) error {
	return func(v any) error {
		n, _ := v.(int)
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d, got %d", lo, hi, n)
		}
		return nil
	}
}
