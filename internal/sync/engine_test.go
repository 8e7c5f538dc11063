// Package sync tests for sync engine functionality.
package sync

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/assistpro/shopsync/internal/db"
	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/sync/conflict"
	"github.com/assistpro/shopsync/internal/sync/queue"
)

const tenant = "tenant-1"

// remoteCall is one call the fake remote received.
type remoteCall struct {
	Op     string
	Entity models.EntityType
	ID     string
}

// fakeRemote is an in-memory RemoteStore.
type fakeRemote struct {
	mu       sync.Mutex
	rows     map[string]map[models.EntityType]map[string]models.Record
	calls    []remoteCall
	failIDs  map[string]error
	fetchErr error
	offline  bool
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		rows:    make(map[string]map[models.EntityType]map[string]models.Record),
		failIDs: make(map[string]error),
	}
}

func (f *fakeRemote) table(tenantID string, entity models.EntityType) map[string]models.Record {
	byEntity, ok := f.rows[tenantID]
	if !ok {
		byEntity = make(map[models.EntityType]map[string]models.Record)
		f.rows[tenantID] = byEntity
	}
	t, ok := byEntity[entity]
	if !ok {
		t = make(map[string]models.Record)
		byEntity[entity] = t
	}
	return t
}

func (f *fakeRemote) check(tenantID string) error {
	if tenantID == "" {
		return apperrors.New(apperrors.ErrTenantScope, "no tenant")
	}
	if f.offline {
		return apperrors.New(apperrors.ErrRemote, "network unreachable")
	}
	return nil
}

func (f *fakeRemote) FetchAll(_ context.Context, tenantID string, entity models.EntityType) ([]models.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(tenantID); err != nil {
		return nil, err
	}
	if f.fetchErr != nil && entity == models.EntitySales {
		return nil, f.fetchErr
	}
	var out []models.Record
	for _, rec := range f.table(tenantID, entity) {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (f *fakeRemote) UpsertMany(_ context.Context, tenantID string, entity models.EntityType, records []models.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(tenantID); err != nil {
		return err
	}
	for _, rec := range records {
		f.calls = append(f.calls, remoteCall{"upsert", entity, rec.ID()})
		if err := f.failIDs[rec.ID()]; err != nil {
			return err
		}
		stored := rec.Clone()
		stored[models.FieldTenantID] = tenantID
		f.table(tenantID, entity)[rec.ID()] = stored
	}
	return nil
}

func (f *fakeRemote) SoftDelete(_ context.Context, tenantID string, entity models.EntityType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(tenantID); err != nil {
		return err
	}
	f.calls = append(f.calls, remoteCall{"soft_delete", entity, id})
	if rec, ok := f.table(tenantID, entity)[id]; ok {
		rec[models.FieldIsDeleted] = true
	}
	return nil
}

func (f *fakeRemote) HardDelete(_ context.Context, tenantID string, entity models.EntityType, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check(tenantID); err != nil {
		return err
	}
	f.calls = append(f.calls, remoteCall{"hard_delete", entity, id})
	delete(f.table(tenantID, entity), id)
	return nil
}

func (f *fakeRemote) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.offline {
		return errors.New("offline")
	}
	return nil
}

func (f *fakeRemote) get(entity models.EntityType, id string) models.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.table(tenant, entity)[id]
}

func (f *fakeRemote) seed(entity models.EntityType, rec models.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := rec.Clone()
	stored[models.FieldTenantID] = tenant
	f.table(tenant, entity)[rec.ID()] = stored
}

func (f *fakeRemote) callsFor(op string) []remoteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []remoteCall
	for _, c := range f.calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// harness bundles an engine with its local store and queue.
type harness struct {
	engine *Engine
	store  *db.TenantStore
	queue  *queue.Queue
}

func newHarness(t *testing.T, remote RemoteStore, opts Options) *harness {
	t.Helper()
	database, err := db.OpenPath(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store, err := db.NewTenantStore(database, tenant)
	require.NoError(t, err)
	q := queue.New(database, queue.Config{MaxAttempts: 3, BackoffBase: time.Millisecond, BackoffMax: time.Millisecond})
	return &harness{engine: NewEngine(store, q, remote, opts), store: store, queue: q}
}

// save writes a record and its queue row the way the data service does.
func (h *harness) save(t *testing.T, entity models.EntityType, rec models.Record) models.Record {
	t.Helper()
	ctx := context.Background()
	rec = rec.Clone()
	rec.Stamp(tenant, time.Now())
	require.NoError(t, h.store.WithTx(ctx, func(tx *db.TenantStore) error {
		if err := tx.Put(ctx, entity, rec); err != nil {
			return err
		}
		return h.queue.Enqueue(ctx, tx.Querier(), &models.PendingOperation{
			TenantID: tenant, EntityType: entity, RecordID: rec.ID(),
			Action: models.ActionUpsert, Payload: rec,
		})
	}))
	return rec
}

// softDelete flags a record deleted and queues the tombstone.
func (h *harness) softDelete(t *testing.T, entity models.EntityType, rec models.Record) {
	t.Helper()
	ctx := context.Background()
	tomb := rec.Clone()
	tomb[models.FieldIsDeleted] = true
	tomb.Stamp(tenant, time.Now())
	require.NoError(t, h.store.WithTx(ctx, func(tx *db.TenantStore) error {
		if err := tx.Put(ctx, entity, tomb); err != nil {
			return err
		}
		return h.queue.Enqueue(ctx, tx.Querier(), &models.PendingOperation{
			TenantID: tenant, EntityType: entity, RecordID: tomb.ID(),
			Action: models.ActionDelete, Payload: tomb,
		})
	}))
}

func (h *harness) queueSize(t *testing.T) int {
	t.Helper()
	n, err := h.queue.Size(context.Background(), tenant)
	require.NoError(t, err)
	return n
}

// recordingHandler collects events and signals each one on a channel.
type recordingHandler struct {
	mu     sync.Mutex
	events []SyncEvent
	ch     chan SyncEvent
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{ch: make(chan SyncEvent, 64)}
}

func (h *recordingHandler) OnSyncEvent(event SyncEvent) {
	h.mu.Lock()
	h.events = append(h.events, event)
	h.mu.Unlock()
	h.ch <- event
}

func (h *recordingHandler) waitFor(t *testing.T, typ SyncEventType) SyncEvent {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev := <-h.ch:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func (h *recordingHandler) types() []SyncEventType {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SyncEventType, len(h.events))
	for i, ev := range h.events {
		out[i] = ev.Type
	}
	return out
}

func TestNewEngine(t *testing.T) {
	h := newHarness(t, newFakeRemote(), Options{})

	assert.Equal(t, SyncStatusIdle, h.engine.Status())
	assert.Nil(t, h.engine.LastSync())
	assert.Zero(t, h.engine.PendingChanges())
	assert.NoError(t, h.engine.LastError())
	assert.Equal(t, tenant, h.engine.TenantID())
	assert.Equal(t, conflict.StrategyPendingWins, h.engine.resolver.Strategy())
}

func TestPushPending_upsertsAndClearsQueue(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	order := h.save(t, models.EntityOrders, models.Record{"customerName": "Ana", "status": models.OrderStatusPending})
	assert.Equal(t, 1, h.queueSize(t))

	result, err := h.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pushed)
	assert.Zero(t, result.Failed)

	assert.Len(t, remote.callsFor("upsert"), 1)
	assert.Equal(t, "Ana", remote.get(models.EntityOrders, order.ID())["customerName"])
	assert.Zero(t, h.queueSize(t))
	assert.NotNil(t, h.engine.LastSync())
	assert.Equal(t, SyncStatusIdle, h.engine.Status())
}

func TestPushPending_collapsedEditsSendFinalState(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})

	rec := h.save(t, models.EntityProducts, models.Record{"name": "Cabo", "quantity": 1.0})
	rec["quantity"] = 2.0
	h.save(t, models.EntityProducts, rec)
	rec["quantity"] = 3.0
	h.save(t, models.EntityProducts, rec)

	_, err := h.engine.PushPending(context.Background())
	require.NoError(t, err)

	assert.Len(t, remote.callsFor("upsert"), 1)
	assert.Equal(t, 3.0, remote.get(models.EntityProducts, rec.ID())["quantity"])
}

// TestPushPending_skipAndContinue verifies a failing row does not block later rows.
func TestPushPending_skipAndContinue(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	bad := h.save(t, models.EntityOrders, models.Record{"customerName": "bad"})
	good := h.save(t, models.EntityOrders, models.Record{"customerName": "good"})
	remote.failIDs[bad.ID()] = apperrors.New(apperrors.ErrRemote, "connection reset")

	result, err := h.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempted)
	assert.Equal(t, 1, result.Pushed)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Dead)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, bad.ID(), result.Errors[0].RecordID)
	assert.Equal(t, string(apperrors.ErrRemote), result.Errors[0].Code)

	assert.NotNil(t, remote.get(models.EntityOrders, good.ID()))
	op, err := h.queue.Get(ctx, tenant, models.EntityOrders, bad.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, op.Attempts)
	assert.Equal(t, models.OperationPending, op.Status)

	assert.Equal(t, SyncStatusFailed, h.engine.Status())
	assert.Error(t, h.engine.LastError())
	assert.Len(t, h.engine.ErrorHistory(), 1)
	assert.Equal(t, 1, h.engine.PendingChanges())
}

func TestPushPending_deadLettersAfterMaxAttempts(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	rec := h.save(t, models.EntitySales, models.Record{"productName": "x"})
	remote.failIDs[rec.ID()] = apperrors.New(apperrors.ErrRemote, "boom")

	for i := 0; i < 3; i++ {
		time.Sleep(2 * time.Millisecond) // let the backoff elapse
		_, err := h.engine.PushPending(ctx)
		require.NoError(t, err)
	}

	op, err := h.queue.Get(ctx, tenant, models.EntitySales, rec.ID())
	require.NoError(t, err)
	assert.Equal(t, models.OperationDead, op.Status)

	// dead rows are not drained again
	result, err := h.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Zero(t, result.Attempted)
	// but are never silently dropped
	assert.Equal(t, 1, h.queueSize(t))
}

func TestPushPending_nonRetryableIsDeadAtOnce(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})

	rec := h.save(t, models.EntityOrders, models.Record{"customerName": "x"})
	remote.failIDs[rec.ID()] = apperrors.New(apperrors.ErrTenantScope, "owned by another tenant")

	result, err := h.engine.PushPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Dead)
}

// TestPushPending_idempotentReplay sends the same snapshot twice.
func TestPushPending_idempotentReplay(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	rec := h.save(t, models.EntityCustomers, models.Record{"name": "Ana"})
	_, err := h.engine.PushPending(ctx)
	require.NoError(t, err)
	first := remote.get(models.EntityCustomers, rec.ID()).Clone()

	// a crash between the remote ack and MarkDone replays the row
	require.NoError(t, h.queue.Enqueue(ctx, h.store.Querier(), &models.PendingOperation{
		TenantID: tenant, EntityType: models.EntityCustomers, RecordID: rec.ID(),
		Action: models.ActionUpsert, Payload: rec,
	}))
	_, err = h.engine.PushPending(ctx)
	require.NoError(t, err)

	all, err := remote.FetchAll(ctx, tenant, models.EntityCustomers)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Equal(t, first, remote.get(models.EntityCustomers, rec.ID()))
}

// TestPushPending_softDeletedSale covers a sale that is deleted after sync and
// one that is deleted before it ever reached the remote.
func TestPushPending_softDeletedSale(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	synced := h.save(t, models.EntitySales, models.Record{"productName": "Cabo", "finalPrice": 10.0})
	_, err := h.engine.PushPending(ctx)
	require.NoError(t, err)

	h.softDelete(t, models.EntitySales, synced)
	neverSynced := models.Record{"id": models.NewID(), "productName": "Fonte"}
	h.softDelete(t, models.EntitySales, neverSynced)

	_, err = h.engine.PushPending(ctx)
	require.NoError(t, err)

	for _, id := range []string{synced.ID(), neverSynced.ID()} {
		rec := remote.get(models.EntitySales, id)
		require.NotNil(t, rec, "remote row %s must exist", id)
		assert.True(t, rec.IsDeleted())
	}
	assert.Empty(t, remote.callsFor("hard_delete"))
	assert.Zero(t, h.queueSize(t))

	// the local row stays, flagged
	local, err := h.store.Get(ctx, models.EntitySales, synced.ID())
	require.NoError(t, err)
	assert.True(t, local.IsDeleted())
}

func TestPushPending_deleteDispatch(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	product := h.save(t, models.EntityProducts, models.Record{"name": "Cabo"})
	_, err := h.engine.PushPending(ctx)
	require.NoError(t, err)

	require.NoError(t, h.store.WithTx(ctx, func(tx *db.TenantStore) error {
		if err := tx.Delete(ctx, models.EntityProducts, product.ID()); err != nil {
			return err
		}
		if err := h.queue.Enqueue(ctx, tx.Querier(), &models.PendingOperation{
			TenantID: tenant, EntityType: models.EntityProducts, RecordID: product.ID(), Action: models.ActionDelete,
		}); err != nil {
			return err
		}
		// soft-delete entity without snapshot
		return h.queue.Enqueue(ctx, tx.Querier(), &models.PendingOperation{
			TenantID: tenant, EntityType: models.EntityOrders, RecordID: "o-gone", Action: models.ActionDelete,
		})
	}))

	_, err = h.engine.PushPending(ctx)
	require.NoError(t, err)

	assert.Equal(t, []remoteCall{{"hard_delete", models.EntityProducts, product.ID()}}, remote.callsFor("hard_delete"))
	assert.Equal(t, []remoteCall{{"soft_delete", models.EntityOrders, "o-gone"}}, remote.callsFor("soft_delete"))
	assert.Nil(t, remote.get(models.EntityProducts, product.ID()))
}

func TestPushPending_inProgress(t *testing.T) {
	h := newHarness(t, newFakeRemote(), Options{})

	h.engine.cycle.Lock()
	_, err := h.engine.PushPending(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrSyncInProgress))
	_, err = h.engine.PullAll(context.Background())
	assert.True(t, apperrors.Is(err, apperrors.ErrSyncInProgress))
	h.engine.cycle.Unlock()

	_, err = h.engine.PushPending(context.Background())
	assert.NoError(t, err)
}

func TestPullAll_hydratesAndPrunes(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	remote.seed(models.EntityOrders, models.Record{"id": "o1", "customerName": "Ana"})
	remote.seed(models.EntityProducts, models.Record{"id": "p1", "name": "Cabo"})
	remote.seed(models.EntitySettings, models.Record{"id": models.SettingsID, "storeName": "Loja"})

	// stale local row with no pending mutation
	require.NoError(t, h.store.Put(ctx, models.EntityOrders, models.Record{"id": "stale"}))

	result, err := h.engine.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Applied)
	assert.Equal(t, 1, result.Pruned)
	assert.Equal(t, 1, result.Fetched["orders"])

	got, err := h.store.Get(ctx, models.EntityOrders, "o1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got["customerName"])

	_, err = h.store.Get(ctx, models.EntityOrders, "stale")
	assert.True(t, apperrors.Is(err, apperrors.ErrNotFound))

	settings, err := h.store.Get(ctx, models.EntitySettings, models.SettingsID)
	require.NoError(t, err)
	assert.Equal(t, "Loja", settings["storeName"])
	assert.NotNil(t, h.engine.LastPull())
}

type skippedRows []string

func (s skippedRows) Error() string { return "skipped rows" }
func (s skippedRows) SkippedIDs() []string { return s }

func TestPullAll_unreadableRowDisablesPruning(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	remote.seed(models.EntityOrders, models.Record{"id": "o1", "customerName": "Ana"})
	remote.fetchErr = skippedRows{""}
	require.NoError(t, h.store.Put(ctx, models.EntitySales, models.Record{"id": "s1", "finalPrice": 10.0}))

	result, err := h.engine.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Pruned)

	_, err = h.store.Get(ctx, models.EntitySales, "s1")
	assert.NoError(t, err)
	_, err = h.store.Get(ctx, models.EntityOrders, "o1")
	assert.NoError(t, err)
}

func TestPullAll_keepsLocalSettingsWhenRemoteHasNone(t *testing.T) {
	h := newHarness(t, newFakeRemote(), Options{})
	ctx := context.Background()
	require.NoError(t, h.store.Put(ctx, models.EntitySettings, models.Record{"storeName": "Local"}))

	_, err := h.engine.PullAll(ctx)
	require.NoError(t, err)

	got, err := h.store.Get(ctx, models.EntitySettings, models.SettingsID)
	require.NoError(t, err)
	assert.Equal(t, "Local", got["storeName"])
}

// TestPullAll_doesNotRegressPendingEdits verifies a queued local edit survives hydration.
func TestPullAll_doesNotRegressPendingEdits(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	remote.seed(models.EntityOrders, models.Record{"id": "o1", "customerName": "old", "updatedAt": "2024-01-01T00:00:00.000000Z"})
	h.save(t, models.EntityOrders, models.Record{"id": "o1", "customerName": "edited offline"})
	// created offline, not yet on the remote
	created := h.save(t, models.EntityOrders, models.Record{"customerName": "new"})

	result, err := h.engine.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Conflicts)

	got, err := h.store.Get(ctx, models.EntityOrders, "o1")
	require.NoError(t, err)
	assert.Equal(t, "edited offline", got["customerName"])

	_, err = h.store.Get(ctx, models.EntityOrders, created.ID())
	assert.NoError(t, err, "pending record must not be pruned")

	conflicts, err := h.store.ListConflicts(ctx, 10)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "local", conflicts[0].Winner)
	assert.Equal(t, 2, h.queueSize(t))

	// the edit then reaches the remote
	_, err = h.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, "edited offline", remote.get(models.EntityOrders, "o1")["customerName"])
}

func TestPullAll_lastWriteWinsDropsStaleEdit(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{Resolver: conflict.NewResolver(conflict.StrategyLastWriteWins)})
	ctx := context.Background()

	h.save(t, models.EntityOrders, models.Record{"id": "o1", "customerName": "local"})
	future := models.FormatTimestamp(time.Now().Add(time.Hour))
	remote.seed(models.EntityOrders, models.Record{"id": "o1", "customerName": "remote", "updatedAt": future})

	_, err := h.engine.PullAll(ctx)
	require.NoError(t, err)

	got, err := h.store.Get(ctx, models.EntityOrders, "o1")
	require.NoError(t, err)
	assert.Equal(t, "remote", got["customerName"])
	assert.Zero(t, h.queueSize(t))
}

func TestPullAll_fetchFailureWritesNothing(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	ctx := context.Background()

	require.NoError(t, h.store.Put(ctx, models.EntityOrders, models.Record{"id": "local-only"}))
	remote.seed(models.EntityOrders, models.Record{"id": "o1"})
	remote.fetchErr = apperrors.New(apperrors.ErrRemoteTimeout, "slow")

	_, err := h.engine.PullAll(ctx)
	assert.True(t, apperrors.Is(err, apperrors.ErrRemoteTimeout))
	assert.Equal(t, SyncStatusFailed, h.engine.Status())

	ids, err := h.store.IDs(ctx, models.EntityOrders)
	require.NoError(t, err)
	assert.Equal(t, []string{"local-only"}, ids)
}

func TestEvents(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	handler := newRecordingHandler()
	h.engine.SetEventHandler(handler)
	ctx := context.Background()

	h.save(t, models.EntityOrders, models.Record{"customerName": "Ana"})
	_, err := h.engine.PushPending(ctx)
	require.NoError(t, err)

	remote.offline = true
	_, err = h.engine.PullAll(ctx)
	require.Error(t, err)

	assert.Equal(t, []SyncEventType{
		SyncEventStarted, SyncEventCompleted,
		SyncEventStarted, SyncEventFailed,
	}, handler.types())
	assert.Equal(t, tenant, handler.events[1].TenantID)
	assert.Equal(t, 1, handler.events[1].Pushed)
	assert.Equal(t, KindPull, handler.events[3].Kind)
}

func TestTrigger_coalesces(t *testing.T) {
	h := newHarness(t, newFakeRemote(), Options{})

	h.engine.Trigger(TriggerLocalWrite)
	h.engine.Trigger(TriggerLocalWrite)
	h.engine.Trigger(TriggerWake)
	assert.Len(t, h.engine.inbox, 1)

	reason, pull := h.engine.takeTrigger()
	assert.Equal(t, TriggerWake, reason)
	assert.True(t, pull)

	h.engine.Trigger(TriggerLocalWrite)
	_, pull = h.engine.takeTrigger()
	assert.False(t, pull, "post-write triggers only push")
}

func TestRun_pushThenPullOnWake(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	handler := newRecordingHandler()
	h.engine.SetEventHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.engine.Run(ctx)

	remote.seed(models.EntityCustomers, models.Record{"id": "c1", "name": "Remote"})
	rec := h.save(t, models.EntityOrders, models.Record{"customerName": "Ana"})
	h.engine.Trigger(TriggerWake)

	handler.waitFor(t, SyncEventPullCompleted)
	assert.NotNil(t, remote.get(models.EntityOrders, rec.ID()))
	_, err := h.store.Get(context.Background(), models.EntityCustomers, "c1")
	assert.NoError(t, err)
}

func TestRun_localWriteOnlyPushes(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})
	handler := newRecordingHandler()
	h.engine.SetEventHandler(handler)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.engine.Run(ctx)

	h.save(t, models.EntityOrders, models.Record{"customerName": "Ana"})
	h.engine.Trigger(TriggerLocalWrite)

	ev := handler.waitFor(t, SyncEventCompleted)
	assert.Equal(t, KindPush, ev.Kind)
	assert.Equal(t, TriggerLocalWrite, ev.Reason)
	assert.Zero(t, h.queueSize(t))
	for _, typ := range handler.types() {
		assert.NotEqual(t, SyncEventPullCompleted, typ)
	}
}

func TestSnapshot(t *testing.T) {
	remote := newFakeRemote()
	h := newHarness(t, remote, Options{})

	h.save(t, models.EntityOrders, models.Record{"customerName": "Ana"})
	snap := h.engine.Snapshot(context.Background())
	assert.Equal(t, tenant, snap.TenantID)
	assert.Equal(t, SyncStatusIdle, snap.Status)
	assert.Equal(t, 1, snap.Pending)
	assert.Empty(t, snap.LastError)
}
