package model

import "time"

// SyncRun records the outcome of one query against a connector.
type SyncRun struct {
	ID          string    `json:"id" db:"id"`
	ConnectorID string    `json:"connector_id" db:"connector_id"`
	StartedAt   time.Time `json:"started_at" db:"started_at"`
	FinishedAt  time.Time `json:"finished_at" db:"finished_at"`
	Records     int       `json:"records" db:"records"`
	Processed   int       `json:"processed" db:"processed"`
	Skipped     int       `json:"skipped" db:"skipped"`

	// Error is empty for successful runs.
	Error string `json:"error,omitempty" db:"error"`
}
