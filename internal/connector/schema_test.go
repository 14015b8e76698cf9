package connector

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/omninexus/internal/model"
)

func TestSchema_Apply(t *testing.T) {
	schema := Schema{
		{Name: "host", Type: TypeString, Required: true},
		{Name: "tls", Type: TypeBoolean, Default: true},
		{
			Name: "port",
			Type: TypeInteger,
			DefaultFunc: func(cfg model.ConnectorConfig) any {
				if cfg.Bool("tls") {
					return 993
				}
				return 143
			},
			Check: IntRange(1, 65535),
		},
	}

	t.Run("fills defaults in order", func(t *testing.T) {
		cfg := model.ConnectorConfig{"host": "mail.example.com", "tls": false}

		require.NoError(t, schema.Apply("c", cfg))

		assert.Equal(t, 143, cfg["port"])
		assert.Equal(t, false, cfg["tls"])
	})

	t.Run("converts string and float forms", func(t *testing.T) {
		cfg := model.ConnectorConfig{"host": " h ", "tls": "yes", "port": float64(1143)}

		require.NoError(t, schema.Apply("c", cfg))

		assert.Equal(t, "h", cfg["host"])
		assert.Equal(t, true, cfg["tls"])
		assert.Equal(t, 1143, cfg["port"])
	})

	t.Run("is idempotent", func(t *testing.T) {
		cfg := model.ConnectorConfig{"host": "h", "port": "2000"}

		require.NoError(t, schema.Apply("c", cfg))
		first := cfg.Clone()
		require.NoError(t, schema.Apply("c", cfg))

		assert.Equal(t, first, cfg)
	})

	t.Run("required key missing", func(t *testing.T) {
		err := schema.Apply("c", model.ConnectorConfig{"host": "   "})

		require.Error(t, err)
		assert.True(t, IsConfigurationError(err))
		assert.Contains(t, err.Error(), `"host"`)
	})

	t.Run("wrong type", func(t *testing.T) {
		err := schema.Apply("c", model.ConnectorConfig{"host": 42})

		assert.True(t, IsConfigurationError(err))
	})

	t.Run("range check", func(t *testing.T) {
		err := schema.Apply("c", model.ConnectorConfig{"host": "h", "port": 70000})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "between 1 and 65535")
	})

	t.Run("invalid boolean", func(t *testing.T) {
		err := schema.Apply("c", model.ConnectorConfig{"host": "h", "tls": "maybe"})

		assert.True(t, IsConfigurationError(err))
	})

	t.Run("nil config", func(t *testing.T) {
		assert.True(t, IsConfigurationError(schema.Apply("c", nil)))
	})
}

func TestSchema_DirectoryPath(t *testing.T) {
	schema := Schema{{Name: "path", Type: TypeDirectoryPath, Required: true}}

	t.Run("resolves relative path to absolute", func(t *testing.T) {
		dir := t.TempDir()
		wd, err := os.Getwd()
		require.NoError(t, err)
		rel, err := filepath.Rel(wd, dir)
		require.NoError(t, err)
		cfg := model.ConnectorConfig{"path": rel}

		require.NoError(t, schema.Apply("c", cfg))

		assert.True(t, filepath.IsAbs(cfg.String("path")))
		assert.Equal(t, filepath.Clean(dir), cfg.String("path"))
	})

	t.Run("rejects a file", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "file.txt")
		require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

		err := schema.Apply("c", model.ConnectorConfig{"path": f})

		assert.True(t, IsConfigurationError(err))
	})

	t.Run("rejects missing directory", func(t *testing.T) {
		err := schema.Apply("c", model.ConnectorConfig{"path": filepath.Join(t.TempDir(), "nope")})

		assert.True(t, IsConfigurationError(err))
	})
}

func TestSchema_Field(t *testing.T) {
	s := Schema{{Name: "a"}, {Name: "b"}}

	f, ok := s.Field("b")
	assert.True(t, ok)
	assert.Equal(t, "b", f.Name)

	_, ok = s.Field("c")
	assert.False(t, ok)
}
