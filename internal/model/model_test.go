package model

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	a := NewRecord("notes", "file:///tmp/a.txt")
	b := NewRecord("notes", "file:///tmp/a.txt")

	assert.NotEqual(t, a.ItemID, b.ItemID)
	assert.Equal(t, time.UTC, a.RetrievedAt.Location())
	assert.NoError(t, a.Validate())

	_, ok := a.Content()
	assert.False(t, ok)
}

func TestRecordValidate(t *testing.T) {
	r := NewRecord("", "")
	r.Payload[PayloadContent] = 42

	err := r.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing connector_id")
	assert.Contains(t, err.Error(), "missing source_uri")
	assert.Contains(t, err.Error(), "payload content must be a string")
}

func TestConnectorConfig(t *testing.T) {
	c := ConnectorConfig{"type": "imap", "port": 993.0, "use_ssl": true, "server": "mx"}

	assert.Equal(t, "imap", c.Type())
	assert.Equal(t, 993, c.Int("port"))
	assert.True(t, c.Bool("use_ssl"))
	assert.Equal(t, "", c.String("missing"))

	clone := c.Clone()
	clone["server"] = "other"
	assert.Equal(t, "mx", c.String("server"))
}

func TestLoadConfig(t *testing.T) {
	t.Run("missing file yields defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))

		require.NoError(t, err)
		assert.Equal(t, 60, cfg.Sync.TimeoutSec)
		assert.Equal(t, 300, cfg.Sync.IntervalSec)
		assert.Empty(t, cfg.Connectors)
	})

	t.Run("reads connectors and env overrides", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
datastore:
  path: /tmp/omni.db
connectors:
  Work:
    type: imap
    server: imap.example.com
    port: 993
`), 0o644))
		t.Setenv("OMNINEXUS_SYNC_TIMEOUT_SEC", "15")

		cfg, err := LoadConfig(path)

		require.NoError(t, err)
		assert.Equal(t, "/tmp/omni.db", cfg.Datastore.Path)
		assert.Equal(t, 15, cfg.Sync.TimeoutSec)
		require.Contains(t, cfg.Connectors, "work")
		assert.Equal(t, "imap", cfg.Connectors["work"].Type())
		assert.Equal(t, 993, cfg.Connectors["work"].Int("port"))
	})

	t.Run("save then load", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "config.yaml")
		in := &AppConfig{
			Datastore: DatastoreConfig{Path: "/data/omni.db"},
			Log:       LogConfig{Verbose: true},
			Sync:      SyncConfig{TimeoutSec: 10, IntervalSec: 20},
			Connectors: map[string]ConnectorConfig{
				"notes": {"type": "local_files", "path": "/notes"},
			},
		}

		require.NoError(t, SaveConfig(path, in))
		out, err := LoadConfig(path)

		require.NoError(t, err)
		assert.True(t, out.Log.Verbose)
		assert.Equal(t, 20, out.Sync.IntervalSec)
		assert.Equal(t, "/notes", out.Connectors["notes"].String("path"))
	})
}
