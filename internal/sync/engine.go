package sync

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/db"
	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/sync/conflict"
	"github.com/assistpro/shopsync/internal/sync/queue"
	"github.com/assistpro/shopsync/internal/telemetry"
)

const maxErrorHistory = 50

// Options configures optional engine collaborators.
type Options struct {
	Resolver *conflict.Resolver
	Metrics  *telemetry.Metrics
}

// Engine runs push and pull cycles for one tenant. Cycles never overlap:
// direct calls that find a cycle running get SYNC_IN_PROGRESS, triggers
// coalesce into the inbox and run once the current cycle ends.
type Engine struct {
	store    *db.TenantStore
	queue    *queue.Queue
	remote   RemoteStore
	resolver *conflict.Resolver
	metrics  *telemetry.Metrics
	now      func() time.Time

	// cycle is held for the whole of a push or pull.
	cycle sync.Mutex

	mu       sync.RWMutex
	status   SyncStatus
	lastSync *time.Time
	lastPull *time.Time
	lastErr  error
	history  []ErrorRecord
	pending  int
	dead     int
	handler  SyncEventHandler

	inbox      chan struct{}
	triggerMu  sync.Mutex
	wantPull   bool
	lastReason TriggerReason
}

// NewEngine creates an engine bound to the store's tenant.
func NewEngine(store *db.TenantStore, q *queue.Queue, remote RemoteStore, opts Options) *Engine {
	resolver := opts.Resolver
	if resolver == nil {
		resolver = conflict.NewResolver(conflict.StrategyPendingWins)
	}
	return &Engine{
		store:    store,
		queue:    q,
		remote:   remote,
		resolver: resolver,
		metrics:  opts.Metrics,
		now:      time.Now,
		status:   SyncStatusIdle,
		inbox:    make(chan struct{}, 1),
	}
}

// TenantID returns the tenant the engine syncs.
func (e *Engine) TenantID() string {
	return e.store.TenantID()
}

// Trigger records the reason and wakes Run. Repeated triggers while a
// cycle is queued collapse into one.
func (e *Engine) Trigger(reason TriggerReason) {
	e.metrics.RecordTrigger(string(reason))

	e.triggerMu.Lock()
	if reason.wantsPull() {
		e.wantPull = true
	}
	e.lastReason = reason
	e.triggerMu.Unlock()

	select {
	case e.inbox <- struct{}{}:
	default:
	}
}

func (e *Engine) takeTrigger() (TriggerReason, bool) {
	e.triggerMu.Lock()
	defer e.triggerMu.Unlock()
	reason, pull := e.lastReason, e.wantPull
	e.wantPull = false
	return reason, pull
}

// Run consumes triggers until ctx is done. It is the only goroutine that
// syncs in response to triggers.
func (e *Engine) Run(ctx context.Context) {
	logging.Info("[SyncEngine] Started", zap.String("tenant_id", e.TenantID()))
	for {
		select {
		case <-ctx.Done():
			logging.Info("[SyncEngine] Stopped", zap.String("tenant_id", e.TenantID()))
			return
		case <-e.inbox:
			reason, pull := e.takeTrigger()
			e.runCycle(ctx, reason, pull)
		}
	}
}

func (e *Engine) runCycle(ctx context.Context, reason TriggerReason, pull bool) {
	e.cycle.Lock()
	defer e.cycle.Unlock()

	logging.Debug("[SyncEngine] Cycle triggered", zap.String("reason", string(reason)), zap.Bool("pull", pull))
	if reason == TriggerConnectivityRestored || reason == TriggerWake {
		// rows backing off from the outage go out now
		if _, err := e.queue.RetryNow(ctx, e.TenantID()); err != nil {
			logging.Warn("[SyncEngine] Failed to clear backoff", zap.Error(err))
		}
	}
	if _, err := e.push(ctx, reason); err != nil {
		logging.Warn("[SyncEngine] Push cycle aborted", zap.Error(err))
	}
	if !pull || ctx.Err() != nil {
		return
	}
	if _, err := e.pull(ctx, reason); err != nil {
		logging.Warn("[SyncEngine] Pull cycle aborted", zap.Error(err))
	}
}

// PushPending drains the queue once.
func (e *Engine) PushPending(ctx context.Context) (*PushResult, error) {
	if !e.cycle.TryLock() {
		return nil, apperrors.New(apperrors.ErrSyncInProgress, "sync already in progress")
	}
	defer e.cycle.Unlock()
	return e.push(ctx, TriggerManual)
}

// PullAll hydrates the local store once.
func (e *Engine) PullAll(ctx context.Context) (*PullResult, error) {
	if !e.cycle.TryLock() {
		return nil, apperrors.New(apperrors.ErrSyncInProgress, "sync already in progress")
	}
	defer e.cycle.Unlock()
	return e.pull(ctx, TriggerManual)
}

// SetEventHandler sets the event handler for sync notifications.
func (e *Engine) SetEventHandler(handler SyncEventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handler = handler
}

func (e *Engine) emitEvent(event SyncEvent) {
	e.mu.RLock()
	handler := e.handler
	event.Pending = e.pending
	e.mu.RUnlock()

	if handler == nil {
		return
	}
	event.TenantID = e.TenantID()
	if event.Timestamp.IsZero() {
		event.Timestamp = e.now()
	}
	handler.OnSyncEvent(event)
}

// Status returns the current sync status.
func (e *Engine) Status() SyncStatus {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

func (e *Engine) setStatus(status SyncStatus) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

// LastSync returns the timestamp of the last push that left no failures.
func (e *Engine) LastSync() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastSync
}

// LastPull returns the timestamp of the last successful hydration.
func (e *Engine) LastPull() *time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastPull
}

// PendingChanges returns the queue depth seen by the last cycle.
func (e *Engine) PendingChanges() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pending
}

// LastError returns the last sync error.
func (e *Engine) LastError() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.lastErr
}

// ErrorHistory returns recent errors, oldest first.
func (e *Engine) ErrorHistory() []ErrorRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]ErrorRecord, len(e.history))
	copy(out, e.history)
	return out
}

func (e *Engine) recordError(rec ErrorRecord, err error) {
	rec.At = e.now()
	rec.Code = string(apperrors.CodeOf(err))
	rec.Message = err.Error()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastErr = err
	e.history = append(e.history, rec)
	if len(e.history) > maxErrorHistory {
		e.history = e.history[len(e.history)-maxErrorHistory:]
	}
}

// refreshQueueStats updates the cached queue depth and gauges.
func (e *Engine) refreshQueueStats(ctx context.Context) {
	stats, err := e.queue.GetStats(ctx, e.TenantID())
	if err != nil {
		logging.Warn("[SyncEngine] Failed to read queue stats", zap.Error(err))
		return
	}
	e.mu.Lock()
	e.pending = stats.Pending
	e.dead = stats.Dead
	e.mu.Unlock()
	e.metrics.SetQueue(stats.Pending, stats.Dead)
}

// Snapshot is the engine state reported to the status indicator.
type Snapshot struct {
	TenantID  string        `json:"tenantId"`
	Status    SyncStatus    `json:"status"`
	LastSync  *time.Time    `json:"lastSync,omitempty"`
	LastPull  *time.Time    `json:"lastPull,omitempty"`
	LastError string        `json:"lastError,omitempty"`
	Pending   int           `json:"pending"`
	Dead      int           `json:"dead"`
	Errors    []ErrorRecord `json:"errors,omitempty"`
}

// Snapshot reads fresh queue counts and returns the current state.
func (e *Engine) Snapshot(ctx context.Context) Snapshot {
	e.refreshQueueStats(ctx)

	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Snapshot{
		TenantID: e.TenantID(),
		Status:   e.status,
		LastSync: e.lastSync,
		LastPull: e.lastPull,
		Pending:  e.pending,
		Dead:     e.dead,
		Errors:   append([]ErrorRecord(nil), e.history...),
	}
	if e.lastErr != nil {
		s.LastError = e.lastErr.Error()
	}
	return s
}
