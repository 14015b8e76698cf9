package testutil

import (
	"testing"

	"github.com/nhle/omninexus/internal/model"
	"github.com/nhle/omninexus/internal/store"
)

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// TextRecord builds a valid record whose payload content is text.
func TextRecord(connectorID, sourceURI, text string) model.Record {
	r := model.NewRecord(connectorID, sourceURI)
	r.Metadata["type"] = "text/plain"
	r.Payload[model.PayloadContent] = text
	return r
}
