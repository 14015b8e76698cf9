package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nhle/omninexus/internal/model"
)

// RecordSyncRun stores the outcome of one connector query.
func (s *SQLiteStore) RecordSyncRun(ctx context.Context, run model.SyncRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (
			id, connector_id, started_at, finished_at,
			records, processed, skipped, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ConnectorID, run.StartedAt.UTC(), run.FinishedAt.UTC(),
		run.Records, run.Processed, run.Skipped, run.Error,
	)
	if err != nil {
		return fmt.Errorf("recording sync run for %s: %w", run.ConnectorID, err)
	}

	return nil
}

// GetSyncRuns returns the most recent runs for a connector, newest first.
func (s *SQLiteStore) GetSyncRuns(
	ctx context.Context,
	connectorID string,
	limit int,
) ([]model.SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	runs := []model.SyncRun{}
	err := s.db.SelectContext(ctx, &runs, `
		SELECT id, connector_id, started_at, finished_at,
			records, processed, skipped, error
		FROM sync_runs
		WHERE connector_id = ?
		ORDER BY started_at DESC
		LIMIT ?`,
		connectorID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs for %s: %w", connectorID, err)
	}

	return runs, nil
}
