package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PayloadContent is the payload key holding the primary decoded text body.
const PayloadContent = "content"

// Record is the normalized unit every connector produces and every agent
// consumes, regardless of where the content came from.
type Record struct {
	// ItemID is generated fresh on every fetch; re-fetching the same origin
	// item yields a new ItemID.
	ItemID string `json:"item_id"`

	// ConnectorID identifies the connector instance that produced the record.
	ConnectorID string `json:"connector_id"`

	// SourceURI locates the item at its origin (file://..., imap://...).
	// It is deterministic for the same origin item.
	SourceURI string `json:"source_uri"`

	// RetrievedAt is when the record was fetched, in UTC.
	RetrievedAt time.Time `json:"retrieved_at"`

	// Metadata holds provenance and technical facts (mime type, size,
	// protocol identifiers). Never primary content.
	Metadata map[string]any `json:"metadata"`

	// Payload holds the content itself. PayloadContent carries the main
	// text body; connectors may add extra keys such as "subject".
	Payload map[string]any `json:"payload"`
}

// NewRecord returns a record with a fresh item ID, the current UTC time and
// empty metadata/payload maps.
func NewRecord(connectorID, sourceURI string) Record {
	return Record{
		ItemID:      uuid.New().String(),
		ConnectorID: connectorID,
		SourceURI:   sourceURI,
		RetrievedAt: time.Now().UTC(),
		Metadata:    make(map[string]any),
		Payload:     make(map[string]any),
	}
}

// Content returns the primary text body and whether it was present as a string.
func (r Record) Content() (string, bool) {
	v, ok := r.Payload[PayloadContent]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Validate reports whether the record carries all required fields.
func (r Record) Validate() error {
	var errs []error
	if r.ItemID == "" {
		errs = append(errs, errors.New("missing item_id"))
	}
	if r.ConnectorID == "" {
		errs = append(errs, errors.New("missing connector_id"))
	}
	if r.SourceURI == "" {
		errs = append(errs, errors.New("missing source_uri"))
	}
	if r.RetrievedAt.IsZero() {
		errs = append(errs, errors.New("missing retrieved_at"))
	}
	if r.Metadata == nil {
		errs = append(errs, errors.New("missing metadata"))
	}
	if r.Payload == nil {
		errs = append(errs, errors.New("missing payload"))
	}
	if v, ok := r.Payload[PayloadContent]; ok {
		if _, isString := v.(string); !isString {
			errs = append(errs, fmt.Errorf("payload content must be a string, got %T", v))
		}
	}
	return errors.Join(errs...)
}
