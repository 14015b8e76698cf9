package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/omninexus/internal/model"
	"github.com/nhle/omninexus/internal/store"
	"github.com/nhle/omninexus/tests/testutil"
)

var _ store.Store = (*store.SQLiteStore)(nil)

func TestConnectors(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	cfg := model.ConnectorConfig{"type": "imap", "server": "imap.example.com", "port": 993}
	require.NoError(t, s.UpsertConnector(ctx, "work", cfg))
	require.NoError(t, s.UpsertConnector(ctx, "notes", model.ConnectorConfig{"type": "local_files", "path": "/tmp"}))

	t.Run("get one", func(t *testing.T) {
		got, err := s.GetConnector(ctx, "work")

		require.NoError(t, err)
		assert.Equal(t, "imap", got.Type())
		assert.Equal(t, 993, got.Int("port"))
	})

	t.Run("get all", func(t *testing.T) {
		all, err := s.GetConnectors(ctx)

		require.NoError(t, err)
		assert.Len(t, all, 2)
		assert.Equal(t, "/tmp", all["notes"].String("path"))
	})

	t.Run("missing type is rejected", func(t *testing.T) {
		assert.Error(t, s.UpsertConnector(ctx, "bad", model.ConnectorConfig{"path": "/tmp"}))
	})

	t.Run("missing connector", func(t *testing.T) {
		_, err := s.GetConnector(ctx, "nope")

		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.ErrorIs(t, s.DeleteConnector(ctx, "nope"), store.ErrNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.DeleteConnector(ctx, "notes"))

		_, err := s.GetConnector(ctx, "notes")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestAllowedAgents(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	require.NoError(t, s.UpsertConnector(ctx, "work", model.ConnectorConfig{"type": "imap"}))

	agents, err := s.AllowedAgents(ctx, "work")
	require.NoError(t, err)
	assert.Empty(t, agents)

	require.NoError(t, s.AllowAgent(ctx, "work", "word_counter"))
	require.NoError(t, s.AllowAgent(ctx, "work", "keyword_extractor"))
	require.NoError(t, s.AllowAgent(ctx, "work", "word_counter"))

	agents, err = s.AllowedAgents(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, []string{"keyword_extractor", "word_counter"}, agents)

	// Updating the configuration keeps permissions.
	require.NoError(t, s.UpsertConnector(ctx, "work", model.ConnectorConfig{"type": "imap", "server": "x"}))
	require.NoError(t, s.DisallowAgent(ctx, "work", "word_counter"))

	agents, err = s.AllowedAgents(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, []string{"keyword_extractor"}, agents)

	assert.ErrorIs(t, s.AllowAgent(ctx, "ghost", "word_counter"), store.ErrNotFound)
}

func TestRecords(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)

	older := testutil.TextRecord("docs", "file:///a.txt", "alpha")
	older.RetrievedAt = time.Now().UTC().Add(-time.Hour)
	newer := testutil.TextRecord("docs", "file:///a.txt", "alpha again")
	other := testutil.TextRecord("mail", "imap://u@h/INBOX;UID=1", "hello")
	other.Metadata["uid"] = uint32(1)

	require.NoError(t, s.SaveRecords(ctx, []model.Record{older, newer, other}))

	t.Run("filter by connector, newest first", func(t *testing.T) {
		got, err := s.GetRecords(ctx, store.RecordFilter{ConnectorID: "docs"})

		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, newer.ItemID, got[0].ItemID)
		assert.Equal(t, older.ItemID, got[1].ItemID)
	})

	t.Run("filter by source uri", func(t *testing.T) {
		got, err := s.GetRecords(ctx, store.RecordFilter{SourceURI: "imap://u@h/INBOX;UID=1"})

		require.NoError(t, err)
		require.Len(t, got, 1)
		content, ok := got[0].Content()
		assert.True(t, ok)
		assert.Equal(t, "hello", content)
		assert.Equal(t, float64(1), got[0].Metadata["uid"])
		assert.NoError(t, got[0].Validate())
	})

	t.Run("limit", func(t *testing.T) {
		got, err := s.GetRecords(ctx, store.RecordFilter{Limit: 1})

		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("no match is empty, not nil", func(t *testing.T) {
		got, err := s.GetRecords(ctx, store.RecordFilter{ConnectorID: "none"})

		require.NoError(t, err)
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("invalid record is rejected", func(t *testing.T) {
		err := s.SaveRecords(ctx, []model.Record{{ItemID: "x"}})

		assert.Error(t, err)
	})
}

func TestSyncRuns(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	start := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, s.RecordSyncRun(ctx, model.SyncRun{
		ConnectorID: "work", StartedAt: start, FinishedAt: start.Add(time.Second), Records: 3, Processed: 4, Skipped: 1,
	}))
	require.NoError(t, s.RecordSyncRun(ctx, model.SyncRun{
		ConnectorID: "work", StartedAt: start.Add(30 * time.Second), FinishedAt: start.Add(31 * time.Second), Error: "transport error",
	}))

	runs, err := s.GetSyncRuns(ctx, "work", 10)

	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "transport error", runs[0].Error)
	assert.Equal(t, 3, runs[1].Records)
	assert.Equal(t, 1, runs[1].Skipped)
	assert.NotEmpty(t, runs[1].ID)
}
