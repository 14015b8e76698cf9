package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"github.com/nhle/omninexus/internal/connector"
	"github.com/nhle/omninexus/internal/logger"
	"github.com/nhle/omninexus/internal/model"
	"github.com/nhle/omninexus/internal/store"
)

// SyncState represents the current state of a connector sync operation.
type SyncState int

const (
	SyncIdle SyncState = iota
	SyncRunning
	SyncError
)

func (s SyncState) String() string {
	switch s {
	case SyncIdle:
		return "idle"
	case SyncRunning:
		return "running"
	case SyncError:
		return "error"
	default:
		return fmt.Sprintf("SyncState(%d)", int(s))
	}
}

// SyncStatus holds the sync state for a single connector instance.
type SyncStatus struct {
	ConnectorID   string
	ConnectorType string
	State         SyncState
	LastSync      time.Time
	Error         error
}

// SyncResult is published when a sync operation completes.
type SyncResult struct {
	ConnectorID string
	Records     []model.Record
	Processed   int
	Skipped     int
	Error       error
	AuthError   *AuthError
}

// AuthError describes a connector whose credentials were missing or rejected.
type AuthError struct {
	ConnectorID string
	Message     string
}

// DefaultFetchTimeout is the maximum time allowed for a single fetch.
const DefaultFetchTimeout = 60 * time.Second

const defaultInterval = 300 * time.Second

// persistTimeout bounds the store writes that follow a fetch. They run
// detached from the fetch deadline.
const persistTimeout = 10 * time.Second

// entry holds a registered connector. Only its own polling goroutine touches
// the connector once the poller is started.
type entry struct {
	conn     connector.Connector
	interval time.Duration
	trigger  chan struct{}
}

// Option customizes a Poller.
type Option func(*Poller)

// WithLogger sets the poller's logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Poller) { p.log = logger.OrDiscard(l) }
}

// WithFetchTimeout bounds each individual fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// Poller orchestrates background polling of registered connectors.
type Poller struct {
	store        store.Store
	log          *logger.Logger
	fetchTimeout time.Duration

	entries  []*entry
	statuses map[string]*SyncStatus
	resultCh chan SyncResult
	stopCh   chan struct{}
	wg       gosync.WaitGroup
	mu       gosync.Mutex
	running  bool
}

// New creates a new Poller that saves fetched records into s.
// A nil store disables persistence.
func New(s store.Store, opts ...Option) *Poller {
	p := &Poller{
		store:        s,
		log:          logger.Discard(),
		fetchTimeout: DefaultFetchTimeout,
		statuses:     make(map[string]*SyncStatus),
		resultCh:     make(chan SyncResult, 16),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RegisterConnector adds a connector instance polled every interval.
// Registering after Start has no effect until the next Start.
func (p *Poller) RegisterConnector(c connector.Connector, interval time.Duration) {
	if interval <= 0 {
		interval = defaultInterval
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.entries = append(p.entries, &entry{
		conn:     c,
		interval: interval,
		trigger:  make(chan struct{}, 1),
	})
	p.statuses[c.ID()] = &SyncStatus{
		ConnectorID:   c.ID(),
		ConnectorType: c.Type(),
		State:         SyncIdle,
	}
}

// Start launches one polling goroutine per registered connector. Each
// goroutine fetches immediately, then on every tick or refresh, until ctx
// ends or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})

	for _, e := range p.entries {
		p.wg.Add(1)
		go p.pollConnector(ctx, e, p.stopCh)
	}
}

// Stop halts all polling goroutines and waits for them to disconnect
// their connectors.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	close(p.stopCh)
	p.running = false
	p.mu.Unlock()

	p.wg.Wait()
}

// Results returns the channel on which completed syncs are published.
// Results are dropped when nobody reads and the buffer is full.
func (p *Poller) Results() <-chan SyncResult {
	return p.resultCh
}

// RefreshAll triggers an immediate poll of all registered connectors.
func (p *Poller) RefreshAll() {
	p.mu.Lock()
	entries := make([]*entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	for _, e := range entries {
		select {
		case e.trigger <- struct{}{}:
		default:
			// a refresh is already pending
		}
	}
}

// Statuses returns the current sync status of all registered connectors
// in registration order.
func (p *Poller) Statuses() []SyncStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	statuses := make([]SyncStatus, 0, len(p.entries))
	for _, e := range p.entries {
		if s, ok := p.statuses[e.conn.ID()]; ok {
			statuses = append(statuses, *s)
		}
	}
	return statuses
}

func (p *Poller) pollConnector(ctx context.Context, e *entry, stop <-chan struct{}) {
	defer p.wg.Done()
	defer e.conn.Disconnect()

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	p.sendResult(p.RunOnce(ctx, e.conn))

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
		case <-e.trigger:
		}
		p.sendResult(p.RunOnce(ctx, e.conn))
	}
}

// RunOnce performs a single fetch against c, saves the records and the run
// outcome to the store, and updates c's status when c is registered.
// It must not be called for a connector whose polling goroutine is running.
func (p *Poller) RunOnce(ctx context.Context, c connector.Connector) SyncResult {
	id := c.ID()
	p.setStatus(id, SyncRunning, nil)

	ctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	run := model.SyncRun{ConnectorID: id, StartedAt: time.Now().UTC()}
	res, err := c.QueryData(ctx, connector.QueryParams{})
	run.FinishedAt = time.Now().UTC()
	run.Records = len(res.Records)
	run.Processed = res.Processed
	run.Skipped = res.Skipped

	out := SyncResult{
		ConnectorID: id,
		Records:     res.Records,
		Processed:   res.Processed,
		Skipped:     res.Skipped,
	}

	persistCtx, cancelPersist := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancelPersist()

	if err == nil && p.store != nil && len(res.Records) > 0 {
		if saveErr := p.store.SaveRecords(persistCtx, res.Records); saveErr != nil {
			err = fmt.Errorf("saving records: %w", saveErr)
		}
	}

	if err != nil {
		run.Error = err.Error()
		out.Error = err
		if connector.IsCredentialError(err) {
			out.AuthError = &AuthError{
				ConnectorID: id,
				Message: fmt.Sprintf(
					"%s: credentials missing or rejected. Run 'omninexus secret set' to update them.", id),
			}
		}
		p.log.Error("sync %s failed: %v", id, err)
		p.setStatus(id, SyncError, err)
	} else {
		p.log.Info("sync %s: %d records (%d processed, %d skipped)",
			id, run.Records, run.Processed, run.Skipped)
		p.setStatus(id, SyncIdle, nil)
	}

	if p.store != nil {
		if recErr := p.store.RecordSyncRun(persistCtx, run); recErr != nil {
			p.log.Warn("recording sync run for %s: %v", id, recErr)
		}
	}

	return out
}

// RunAll polls every registered connector once, concurrently, and
// disconnects each afterwards. Results are returned in registration order
// rather than published on Results. It must not be called while the poller
// is started.
func (p *Poller) RunAll(ctx context.Context) []SyncResult {
	p.mu.Lock()
	entries := make([]*entry, len(p.entries))
	copy(entries, p.entries)
	p.mu.Unlock()

	out := make([]SyncResult, len(entries))
	var wg gosync.WaitGroup
	for i, e := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer e.conn.Disconnect()
			out[i] = p.RunOnce(ctx, e.conn)
		}()
	}
	wg.Wait()
	return out
}

func (p *Poller) setStatus(id string, state SyncState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	status, ok := p.statuses[id]
	if !ok {
		return
	}

	status.State = state
	status.Error = err
	if state == SyncIdle && err == nil {
		status.LastSync = time.Now()
	}
}

// sendResult publishes without blocking the poller.
func (p *Poller) sendResult(r SyncResult) {
	select {
	case p.resultCh <- r:
	default:
		p.log.Debug("dropping sync result for %s: channel full", r.ConnectorID)
	}
}
