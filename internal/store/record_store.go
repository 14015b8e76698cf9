package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/nhle/omninexus/internal/model"
)

// SaveRecords inserts a batch of records. Re-saving an item ID replaces it.
func (s *SQLiteStore) SaveRecords(ctx context.Context, records []model.Record) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO records (
			item_id, connector_id, source_uri, retrieved_at, metadata, payload
		) VALUES (?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("invalid record %s: %w", r.ItemID, err)
		}

		metadata, err := json.Marshal(r.Metadata)
		if err != nil {
			return fmt.Errorf("marshaling metadata for record %s: %w", r.ItemID, err)
		}
		payload, err := json.Marshal(r.Payload)
		if err != nil {
			return fmt.Errorf("marshaling payload for record %s: %w", r.ItemID, err)
		}

		_, err = stmt.ExecContext(ctx,
			r.ItemID, r.ConnectorID, r.SourceURI, r.RetrievedAt.UTC(),
			string(metadata), string(payload),
		)
		if err != nil {
			return fmt.Errorf("inserting record %s: %w", r.ItemID, err)
		}
	}

	return tx.Commit()
}

// GetRecords retrieves records matching the filter, newest first.
func (s *SQLiteStore) GetRecords(
	ctx context.Context,
	filter RecordFilter,
) ([]model.Record, error) {
	var conditions []string
	var args []interface{}

	if filter.ConnectorID != "" {
		conditions = append(conditions, "connector_id = ?")
		args = append(args, filter.ConnectorID)
	}
	if filter.SourceURI != "" {
		conditions = append(conditions, "source_uri = ?")
		args = append(args, filter.SourceURI)
	}

	query := "SELECT item_id, connector_id, source_uri, retrieved_at, metadata, payload FROM records"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY retrieved_at DESC, rowid DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	records := []model.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// scanRecord scans a record row from a sqlx.Rows result set.
func scanRecord(rows *sqlx.Rows) (model.Record, error) {
	var (
		r           model.Record
		retrievedAt time.Time
		metadata    string
		payload     string
	)

	err := rows.Scan(&r.ItemID, &r.ConnectorID, &r.SourceURI, &retrievedAt, &metadata, &payload)
	if err != nil {
		return model.Record{}, fmt.Errorf("scanning record row: %w", err)
	}
	r.RetrievedAt = retrievedAt.UTC()

	r.Metadata = map[string]any{}
	if err := json.Unmarshal([]byte(metadata), &r.Metadata); err != nil {
		return model.Record{}, fmt.Errorf("unmarshaling metadata for record %s: %w", r.ItemID, err)
	}
	r.Payload = map[string]any{}
	if err := json.Unmarshal([]byte(payload), &r.Payload); err != nil {
		return model.Record{}, fmt.Errorf("unmarshaling payload for record %s: %w", r.ItemID, err)
	}

	return r, nil
}
