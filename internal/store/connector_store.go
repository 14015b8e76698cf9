package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/nhle/omninexus/internal/model"
)

// UpsertConnector inserts or replaces a connector's configuration. The
// agent allow-list of an existing connector is preserved.
func (s *SQLiteStore) UpsertConnector(
	ctx context.Context,
	id string,
	cfg model.ConnectorConfig,
) error {
	if id == "" {
		return errors.New("connector id is required")
	}
	if cfg.Type() == "" {
		return fmt.Errorf("connector %s: configuration has no %q", id, model.TypeKey)
	}

	configJSON, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config for connector %s: %w", id, err)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO connectors (id, type, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			config = excluded.config,
			updated_at = excluded.updated_at`,
		id, cfg.Type(), string(configJSON), now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting connector %s: %w", id, err)
	}

	return nil
}

// GetConnector retrieves one connector configuration.
func (s *SQLiteStore) GetConnector(
	ctx context.Context,
	id string,
) (model.ConnectorConfig, error) {
	var configJSON string
	err := s.db.GetContext(ctx, &configJSON, "SELECT config FROM connectors WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connector %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting connector %s: %w", id, err)
	}
	return decodeConfig(id, configJSON)
}

// GetConnectors retrieves every connector configuration keyed by ID.
func (s *SQLiteStore) GetConnectors(
	ctx context.Context,
) (map[string]model.ConnectorConfig, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT id, config FROM connectors ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("querying connectors: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.ConnectorConfig)
	for rows.Next() {
		var id, configJSON string
		if err := rows.Scan(&id, &configJSON); err != nil {
			return nil, fmt.Errorf("scanning connector row: %w", err)
		}
		cfg, err := decodeConfig(id, configJSON)
		if err != nil {
			return nil, err
		}
		out[id] = cfg
	}

	return out, rows.Err()
}

// DeleteConnector removes a connector. Its stored records are kept.
func (s *SQLiteStore) DeleteConnector(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM connectors WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting connector %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("connector %s: %w", id, ErrNotFound)
	}
	return nil
}

// AllowAgent permits agentType to process the connector's records.
func (s *SQLiteStore) AllowAgent(ctx context.Context, connectorID, agentType string) error {
	return s.updateAllowedAgents(ctx, connectorID, func(agents []string) []string {
		for _, a := range agents {
			if a == agentType {
				return agents
			}
		}
		return append(agents, agentType)
	})
}

// DisallowAgent revokes agentType's permission for the connector.
func (s *SQLiteStore) DisallowAgent(ctx context.Context, connectorID, agentType string) error {
	return s.updateAllowedAgents(ctx, connectorID, func(agents []string) []string {
		out := agents[:0]
		for _, a := range agents {
			if a != agentType {
				out = append(out, a)
			}
		}
		return out
	})
}

// AllowedAgents returns the sorted agent types permitted for the connector.
func (s *SQLiteStore) AllowedAgents(ctx context.Context, connectorID string) ([]string, error) {
	var raw string
	err := s.db.GetContext(ctx, &raw,
		"SELECT allowed_agent_types FROM connectors WHERE id = ?", connectorID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connector %s: %w", connectorID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting allowed agents for %s: %w", connectorID, err)
	}
	return decodeAgents(connectorID, raw)
}

func (s *SQLiteStore) updateAllowedAgents(
	ctx context.Context,
	connectorID string,
	update func([]string) []string,
) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.GetContext(ctx, &raw,
		"SELECT allowed_agent_types FROM connectors WHERE id = ?", connectorID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("connector %s: %w", connectorID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("getting allowed agents for %s: %w", connectorID, err)
	}

	agents, err := decodeAgents(connectorID, raw)
	if err != nil {
		return err
	}
	agents = update(agents)
	sort.Strings(agents)

	encoded, err := json.Marshal(agents)
	if err != nil {
		return fmt.Errorf("marshaling allowed agents for %s: %w", connectorID, err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE connectors SET allowed_agent_types = ?, updated_at = ? WHERE id = ?",
		string(encoded), time.Now().UTC(), connectorID,
	)
	if err != nil {
		return fmt.Errorf("updating allowed agents for %s: %w", connectorID, err)
	}

	return tx.Commit()
}

func decodeConfig(id, raw string) (model.ConnectorConfig, error) {
	cfg := model.ConnectorConfig{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config for connector %s: %w", id, err)
		}
	}
	return cfg, nil
}

func decodeAgents(id, raw string) ([]string, error) {
	agents := []string{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &agents); err != nil {
			return nil, fmt.Errorf("unmarshaling allowed agents for %s: %w", id, err)
		}
	}
	return agents, nil
}
