// Package app wires configuration, persistence, credentials and the
// connector and agent registries into the operations the CLI exposes.
package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/nhle/omninexus/internal/agent"
	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/connector/local"
	"github.com/nhle/omninexus/internal/connector/mail"
	"github.com/nhle/omninexus/internal/credential"
	"github.com/nhle/omninexus/internal/logger"
	"github.com/nhle/omninexus/internal/model"
	"github.com/nhle/omninexus/internal/store"
	appsync "github.com/nhle/omninexus/internal/sync"
)

// ErrAgentNotAllowed is returned when an agent runs against a connector
// that has not allow-listed its type.
var ErrAgentNotAllowed = errors.New("agent type not allowed for connector")

// App holds the long-lived services shared by every command.
type App struct {
	cfg        *model.AppConfig
	store      store.Store
	connectors *connector.Registry
	agents     *agent.Registry
	log        *logger.Logger
}

// New builds an App. Mail secrets are resolved through secrets at connect
// time, never read from configuration.
func New(cfg *model.AppConfig, s store.Store, secrets credential.Store, log *logger.Logger) *App {
	log = logger.OrDiscard(log)
	return &App{
		cfg:   cfg,
		store: s,
		connectors: connector.NewRegistry(
			connector.WithConstructor(local.TypeName, local.Schema,
				local.Constructor(local.WithLogger(log))),
			connector.WithConstructor(mail.TypeName, mail.Schema,
				mail.Constructor(secrets, mail.WithLogger(log))),
		),
		agents: agent.DefaultRegistry(),
		log:    log,
	}
}

// Connectors returns the connector registry.
func (a *App) Connectors() *connector.Registry { return a.connectors }

// Agents returns the agent registry.
func (a *App) Agents() *agent.Registry { return a.agents }

// normalizeID trims and lower-cases a connector ID. The config file loader
// lower-cases its keys, so every lookup and write goes through here.
func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// fileConnector returns the config-file entry for an already normalized id.
func (a *App) fileConnector(id string) (model.ConnectorConfig, bool) {
	for fid, c := range a.cfg.Connectors {
		if normalizeID(fid) == id {
			return c, true
		}
	}
	return nil, false
}

// ConnectorConfigs merges the connectors declared in the config file with
// those persisted in the store, keyed by normalized ID. Stored entries win
// on ID collisions.
func (a *App) ConnectorConfigs(ctx context.Context) (map[string]model.ConnectorConfig, error) {
	out := make(map[string]model.ConnectorConfig, len(a.cfg.Connectors))
	for id, c := range a.cfg.Connectors {
		out[normalizeID(id)] = c
	}

	stored, err := a.store.GetConnectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading connectors: %w", err)
	}
	for id, c := range stored {
		out[normalizeID(id)] = c
	}
	return out, nil
}

// ConnectorConfig returns the configuration for one connector instance.
func (a *App) ConnectorConfig(ctx context.Context, id string) (model.ConnectorConfig, error) {
	id = normalizeID(id)
	c, err := a.store.GetConnector(ctx, id)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if c, ok := a.fileConnector(id); ok {
		return c, nil
	}
	return nil, err
}

// AddConnector validates cfg by constructing the connector, then persists
// the caller's (un-defaulted) configuration.
func (a *App) AddConnector(ctx context.Context, id string, cfg model.ConnectorConfig) error {
	id = normalizeID(id)
	if id == "" {
		return connector.NewError(connector.KindConfiguration, id, "add", errors.New("connector id is required"))
	}
	if _, err := a.connectors.Create(id, cfg); err != nil {
		return err
	}
	return a.store.UpsertConnector(ctx, id, cfg)
}

// RemoveConnector deletes a persisted connector instance.
func (a *App) RemoveConnector(ctx context.Context, id string) error {
	return a.store.DeleteConnector(ctx, normalizeID(id))
}

// AllowAgent allow-lists agentType for a connector. A connector declared
// only in the config file is persisted first so the grant has a home.
func (a *App) AllowAgent(ctx context.Context, connectorID, agentType string) error {
	if !slices.Contains(a.agents.Types(), agentType) {
		return fmt.Errorf("%w %q", agent.ErrUnknownType, agentType)
	}
	connectorID = normalizeID(connectorID)
	if err := a.ensureStored(ctx, connectorID); err != nil {
		return err
	}
	return a.store.AllowAgent(ctx, connectorID, agentType)
}

// DisallowAgent removes agentType from a connector's allow-list.
func (a *App) DisallowAgent(ctx context.Context, connectorID, agentType string) error {
	return a.store.DisallowAgent(ctx, normalizeID(connectorID), agentType)
}

// AllowedAgents lists the agent types a connector may feed. Connectors
// that exist only in the config file allow nothing.
func (a *App) AllowedAgents(ctx context.Context, connectorID string) ([]string, error) {
	connectorID = normalizeID(connectorID)
	agents, err := a.store.AllowedAgents(ctx, connectorID)
	if errors.Is(err, store.ErrNotFound) {
		if _, ok := a.fileConnector(connectorID); ok {
			return []string{}, nil
		}
	}
	return agents, err
}

func (a *App) ensureStored(ctx context.Context, id string) error {
	_, err := a.store.GetConnector(ctx, id)
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	c, ok := a.fileConnector(id)
	if !ok {
		return err
	}
	return a.store.UpsertConnector(ctx, id, c)
}

// BuildConnector instantiates one configured connector.
func (a *App) BuildConnector(ctx context.Context, id string) (connector.Connector, error) {
	id = normalizeID(id)
	cfg, err := a.ConnectorConfig(ctx, id)
	if err != nil {
		return nil, err
	}
	return a.connectors.Create(id, cfg)
}

// BuildConnectors instantiates every configured connector, sorted by ID.
// Invalid configurations are logged and skipped.
func (a *App) BuildConnectors(ctx context.Context) ([]connector.Connector, error) {
	cfgs, err := a.ConnectorConfigs(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(cfgs))
	for id := range cfgs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]connector.Connector, 0, len(ids))
	for _, id := range ids {
		c, err := a.connectors.Create(id, cfgs[id])
		if err != nil {
			a.log.Warn("skipping connector %s: %v", id, err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// Query runs a one-shot fetch against a connector and disconnects it.
func (a *App) Query(ctx context.Context, id string, params connector.QueryParams) (connector.Result, error) {
	c, err := a.BuildConnector(ctx, id)
	if err != nil {
		return connector.EmptyResult(), err
	}
	defer c.Disconnect()

	return c.QueryData(ctx, params)
}

// RunAgent fetches records from a connector and feeds them to an agent of
// agentType. The connector must allow-list the agent type.
func (a *App) RunAgent(
	ctx context.Context,
	agentType, connectorID string,
	params agent.Params,
) (map[string]any, error) {
	allowed, err := a.AllowedAgents(ctx, connectorID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, agentType) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrAgentNotAllowed, connectorID, agentType)
	}
	connectorID = normalizeID(connectorID)

	ag, err := a.agents.Create(agentType+"-"+connectorID, agentType, nil)
	if err != nil {
		return nil, err
	}

	res, err := a.Query(ctx, connectorID, connector.QueryParams{})
	if err != nil {
		return nil, err
	}
	a.log.Debug("running %s over %d records from %s", agentType, len(res.Records), connectorID)

	return ag.Execute(res.Records, params)
}

// NewPoller builds a poller with every valid connector registered at the
// configured interval.
func (a *App) NewPoller(ctx context.Context) (*appsync.Poller, error) {
	conns, err := a.BuildConnectors(ctx)
	if err != nil {
		return nil, err
	}

	p := appsync.New(a.store,
		appsync.WithLogger(a.log),
		appsync.WithFetchTimeout(time.Duration(a.cfg.Sync.TimeoutSec)*time.Second),
	)
	interval := time.Duration(a.cfg.Sync.IntervalSec) * time.Second
	for _, c := range conns {
		p.RegisterConnector(c, interval)
	}
	return p, nil
}
