package local

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/logger"
	"github.com/nhle/omninexus/internal/model"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// fixtureDir lays out a.txt, b.md, c.jpg and sub/d.txt.
func fixtureDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), []byte("hello world"))
	writeFile(t, filepath.Join(dir, "b.md"), []byte("# Title\ntext"))
	writeFile(t, filepath.Join(dir, "c.jpg"), []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00})
	writeFile(t, filepath.Join(dir, "sub", "d.txt"), []byte("nested"))
	return dir
}

func filenames(res connector.Result) []string {
	var out []string
	for _, r := range res.Records {
		out = append(out, r.Metadata["filename"].(string))
	}
	sort.Strings(out)
	return out
}

func TestNew(t *testing.T) {
	t.Run("fills defaults and resolves path", func(t *testing.T) {
		dir := t.TempDir()
		cfg := model.ConnectorConfig{"type": TypeName, "path": dir + string(filepath.Separator) + "."}

		c, err := New("docs", cfg)

		require.NoError(t, err)
		assert.Equal(t, filepath.Clean(dir), c.Path())
		assert.False(t, c.Recursive())
		assert.Equal(t, "utf-8", cfg["encoding"])
		var _ connector.Connector = c
	})

	t.Run("missing path", func(t *testing.T) {
		c, err := New("docs", model.ConnectorConfig{"type": TypeName})

		assert.Nil(t, c)
		assert.True(t, connector.IsConfigurationError(err))
	})

	t.Run("path is not a directory", func(t *testing.T) {
		f := filepath.Join(t.TempDir(), "x.txt")
		writeFile(t, f, []byte("x"))

		_, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": f})

		assert.True(t, connector.IsConfigurationError(err))
	})

	t.Run("recursive must be boolean", func(t *testing.T) {
		_, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": t.TempDir(), "recursive": 3})

		require.Error(t, err)
		assert.Contains(t, err.Error(), `"recursive"`)
	})

	t.Run("unknown encoding", func(t *testing.T) {
		_, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": t.TempDir(), "encoding": "klingon"})

		assert.True(t, connector.IsConfigurationError(err))
	})
}

func TestConnector_QueryData(t *testing.T) {
	ctx := context.Background()

	t.Run("non-recursive returns only top-level text files", func(t *testing.T) {
		dir := fixtureDir(t)
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
		require.NoError(t, err)
		require.True(t, c.Connect(ctx))

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.md"}, filenames(res))
		assert.Equal(t, 2, res.Processed)
		assert.Equal(t, 0, res.Skipped)
	})

	t.Run("recursive includes subdirectories", func(t *testing.T) {
		dir := fixtureDir(t)
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "recursive": true})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.md", "d.txt"}, filenames(res))
	})

	t.Run("records carry content and metadata", func(t *testing.T) {
		dir := fixtureDir(t)
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})
		require.NoError(t, err)

		for _, rec := range res.Records {
			require.NoError(t, rec.Validate())
			assert.Equal(t, "docs", rec.ConnectorID)
			assert.True(t, strings.HasPrefix(rec.SourceURI, "file://"))

			content, ok := rec.Content()
			require.True(t, ok)
			switch rec.Metadata["filename"] {
			case "a.txt":
				assert.Equal(t, "hello world", content)
				assert.Equal(t, "text/plain", rec.Metadata["type"])
				assert.Equal(t, int64(11), rec.Metadata["size_bytes"])
			case "b.md":
				assert.Equal(t, "# Title\ntext", content)
				assert.Equal(t, "text/markdown", rec.Metadata["type"])
			}
		}
	})

	t.Run("source uri is stable and item id is fresh", func(t *testing.T) {
		dir := fixtureDir(t)
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
		require.NoError(t, err)

		first, err := c.QueryData(ctx, connector.QueryParams{})
		require.NoError(t, err)
		second, err := c.QueryData(ctx, connector.QueryParams{})
		require.NoError(t, err)

		byURI := map[string]string{}
		for _, r := range first.Records {
			byURI[r.SourceURI] = r.ItemID
		}
		require.Len(t, second.Records, len(first.Records))
		for _, r := range second.Records {
			prev, ok := byURI[r.SourceURI]
			require.True(t, ok)
			assert.NotEqual(t, prev, r.ItemID)
		}
	})

	t.Run("extension match is case-insensitive", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "NOTES.TXT"), []byte("upper"))
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		assert.Equal(t, ".txt", res.Records[0].Metadata["extension"])
	})

	t.Run("limit caps records", func(t *testing.T) {
		dir := fixtureDir(t)
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "recursive": true})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{Limit: 1})

		require.NoError(t, err)
		assert.Len(t, res.Records, 1)
	})

	t.Run("empty directory yields empty non-nil result", func(t *testing.T) {
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": t.TempDir()})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		assert.NotNil(t, res.Records)
		assert.Empty(t, res.Records)
	})

	t.Run("removed directory fails with empty result", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "gone")
		require.NoError(t, os.Mkdir(dir, 0o755))
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
		require.NoError(t, err)
		require.NoError(t, os.Remove(dir))

		assert.False(t, c.Connect(ctx))
		assert.Error(t, c.LastError())

		res, err := c.QueryData(ctx, connector.QueryParams{})

		assert.Error(t, err)
		assert.NotNil(t, res.Records)
		assert.Empty(t, res.Records)
		assert.Equal(t, "error - path invalid", c.GetMetadata()["status"])
	})

	t.Run("unreadable file is skipped with a warning", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("file permissions are not enforced for root")
		}
		dir := fixtureDir(t)
		locked := filepath.Join(dir, "locked.txt")
		writeFile(t, locked, []byte("secret"))
		require.NoError(t, os.Chmod(locked, 0o000))
		t.Cleanup(func() { _ = os.Chmod(locked, 0o644) })

		var buf strings.Builder
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir},
			WithLogger(logger.New(&buf, false)))
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.md"}, filenames(res))
		assert.Equal(t, 3, res.Processed)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, strings.Count(buf.String(), "[WARN]"))
	})
}

func TestConnector_Decoding(t *testing.T) {
	ctx := context.Background()

	t.Run("invalid utf-8 is skipped with a warning", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "bad.txt"), []byte("ok\xff"))
		writeFile(t, filepath.Join(dir, "good.txt"), []byte("fine"))
		var buf strings.Builder
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir},
			WithLogger(logger.New(&buf, false)))
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		assert.Equal(t, []string{"good.txt"}, filenames(res))
		assert.Equal(t, 2, res.Processed)
		assert.Equal(t, 1, res.Skipped)
		assert.Equal(t, 1, strings.Count(buf.String(), "[WARN]"))
	})

	t.Run("decode failure is a parse error", func(t *testing.T) {
		dir := t.TempDir()
		bad := filepath.Join(dir, "bad.txt")
		writeFile(t, bad, []byte("ok\xff"))
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
		require.NoError(t, err)

		_, err = c.readRecord(bad)

		assert.True(t, connector.IsParseError(err))
	})

	t.Run("invalid sequence in a configured encoding", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "ok.txt"), []byte{'h', 0x00, 'i', 0x00})
		writeFile(t, filepath.Join(dir, "lone.txt"), []byte{0x00, 0xD8, 'a', 0x00})
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "encoding": "utf-16le"})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		content, _ := res.Records[0].Content()
		assert.Equal(t, "hi", content)
		assert.Equal(t, 1, res.Skipped)
	})

	t.Run("configured legacy encoding", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "latin.txt"), []byte("caf\xe9"))
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "encoding": "windows-1252"})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		require.Len(t, res.Records, 1)
		content, _ := res.Records[0].Content()
		assert.Equal(t, "café", content)
	})
}

func TestConnector_Enumeration(t *testing.T) {
	ctx := context.Background()

	t.Run("hidden entries are ignored", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, "visible.txt"), []byte("a"))
		writeFile(t, filepath.Join(dir, ".hidden.txt"), []byte("b"))
		writeFile(t, filepath.Join(dir, ".git", "notes.md"), []byte("c"))
		writeFile(t, filepath.Join(dir, "sub", "nested.md"), []byte("d"))
		c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "recursive": true})
		require.NoError(t, err)

		res, err := c.QueryData(ctx, connector.QueryParams{})

		require.NoError(t, err)
		assert.Equal(t, []string{"nested.md", "visible.txt"}, filenames(res))
	})

	t.Run("symlinked files are followed", func(t *testing.T) {
		target := filepath.Join(t.TempDir(), "real.txt")
		writeFile(t, target, []byte("linked content"))
		dir := t.TempDir()
		require.NoError(t, os.Symlink(target, filepath.Join(dir, "link.txt")))
		require.NoError(t, os.Symlink(filepath.Join(dir, "missing.txt"), filepath.Join(dir, "dangling.txt")))

		for _, recursive := range []bool{false, true} {
			c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "recursive": recursive})
			require.NoError(t, err)

			res, err := c.QueryData(ctx, connector.QueryParams{})

			require.NoError(t, err)
			require.Len(t, res.Records, 1)
			content, _ := res.Records[0].Content()
			assert.Equal(t, "linked content", content)
		}
	})
}

func TestConnector_GetMetadata(t *testing.T) {
	dir := t.TempDir()
	c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir, "recursive": "yes"})
	require.NoError(t, err)

	meta := c.GetMetadata()

	assert.Equal(t, "docs", meta["connector_id"])
	assert.Equal(t, TypeName, meta["type"])
	assert.Equal(t, true, meta["recursive"])
	assert.Equal(t, []string{".md", ".txt"}, meta["supported_extensions"])
	assert.Equal(t, "ready", meta["status"])
}

func TestConnector_Watch(t *testing.T) {
	dir := t.TempDir()
	c, err := New("docs", model.ConnectorConfig{"type": TypeName, "path": dir})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	records, _, err := c.Watch(ctx)
	require.NoError(t, err)

	writeFile(t, filepath.Join(dir, "ignored.jpg"), []byte("x"))
	writeFile(t, filepath.Join(dir, "new.txt"), []byte("fresh"))

	select {
	case rec := <-records:
		assert.Equal(t, "new.txt", rec.Metadata["filename"])
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch event")
	}

	cancel()
	for range records {
	}
}
