package store

import (
	"context"
	"errors"

	"github.com/nhle/omninexus/internal/model"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RecordFilter controls filtering and pagination for record queries.
type RecordFilter struct {
	ConnectorID string
	SourceURI   string
	Limit       int
	Offset      int
}

// Store defines the persistence interface for connector configuration,
// fetched records, and sync history.
type Store interface {
	// === Connectors ===

	UpsertConnector(ctx context.Context, id string, cfg model.ConnectorConfig) error
	GetConnector(ctx context.Context, id string) (model.ConnectorConfig, error)
	GetConnectors(ctx context.Context) (map[string]model.ConnectorConfig, error)
	DeleteConnector(ctx context.Context, id string) error

	// === Agent permissions ===

	AllowAgent(ctx context.Context, connectorID, agentType string) error
	DisallowAgent(ctx context.Context, connectorID, agentType string) error
	AllowedAgents(ctx context.Context, connectorID string) ([]string, error)

	// === Records ===

	SaveRecords(ctx context.Context, records []model.Record) error
	GetRecords(ctx context.Context, filter RecordFilter) ([]model.Record, error)

	// === Sync history ===

	RecordSyncRun(ctx context.Context, run model.SyncRun) error
	GetSyncRuns(ctx context.Context, connectorID string, limit int) ([]model.SyncRun, error)
}
