// Package connector defines the capability contract every content source
// implements, the configuration schema used to validate instances, the error
// taxonomy shared by all connectors, and the registry that builds connector
// instances from configuration.
package connector

import (
	"context"

	"github.com/nhle/omninexus/internal/model"
)

// QueryParams narrows a QueryData call.
type QueryParams struct {
	// Limit caps the number of records returned when positive.
	// Zero means the connector's configured default.
	Limit int
}

// Result is the outcome of a QueryData call.
type Result struct {
	// Records is never nil; it is empty when nothing was fetched.
	Records []model.Record

	// Processed counts origin items the connector attempted to read.
	Processed int

	// Skipped counts items that could not be read or decoded and were
	// left out of Records.
	Skipped int
}

// EmptyResult returns a Result with a non-nil, empty record slice.
func EmptyResult() Result {
	return Result{Records: []model.Record{}}
}

// Connector is the contract that every content source must implement.
//
// An instance is used by one caller at a time: Connect, QueryData and
// Disconnect must not be called concurrently on the same instance.
// Separate instances share no state and may run in parallel.
type Connector interface {
	// ID returns the connector instance identifier.
	ID() string

	// Type returns the registered connector type name.
	Type() string

	// ValidateConfig checks the configuration against GetConfigSchema and
	// fills in resolved defaults. It is run once, during construction.
	ValidateConfig() error

	// Connect establishes any session the source needs. It succeeds
	// immediately when already connected. On failure LastError describes
	// the cause.
	Connect(ctx context.Context) bool

	// Disconnect releases session resources. It is safe to call when not
	// connected and always leaves the instance in a disconnected state.
	Disconnect()

	// LastError returns the error from the most recent failed Connect or
	// QueryData call, or nil.
	LastError() error

	// GetMetadata returns non-secret descriptive facts about the instance.
	GetMetadata() map[string]any

	// QueryData fetches content as normalized records. On failure it
	// returns an empty Result together with the error.
	QueryData(ctx context.Context, params QueryParams) (Result, error)

	// GetConfigSchema describes the accepted configuration keys.
	GetConfigSchema() Schema
}
