package sync

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/sync/remote"
)

// switchableRemote fails every call while offline is set.
type switchableRemote struct {
	*remote.Adapter
	offline atomic.Bool
}

func (s *switchableRemote) down() error {
	if s.offline.Load() {
		return apperrors.New(apperrors.ErrRemote, "dial tcp: network is unreachable")
	}
	return nil
}

func (s *switchableRemote) FetchAll(ctx context.Context, tenantID string, entity models.EntityType) ([]models.Record, error) {
	if err := s.down(); err != nil {
		return nil, err
	}
	return s.Adapter.FetchAll(ctx, tenantID, entity)
}

func (s *switchableRemote) UpsertMany(ctx context.Context, tenantID string, entity models.EntityType, records []models.Record) error {
	if err := s.down(); err != nil {
		return err
	}
	return s.Adapter.UpsertMany(ctx, tenantID, entity, records)
}

func (s *switchableRemote) SoftDelete(ctx context.Context, tenantID string, entity models.EntityType, id string) error {
	if err := s.down(); err != nil {
		return err
	}
	return s.Adapter.SoftDelete(ctx, tenantID, entity, id)
}

func (s *switchableRemote) HardDelete(ctx context.Context, tenantID string, entity models.EntityType, id string) error {
	if err := s.down(); err != nil {
		return err
	}
	return s.Adapter.HardDelete(ctx, tenantID, entity, id)
}

func newSQLRemote(t *testing.T) *switchableRemote {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "remote.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = remote.Close(gdb) })

	a := remote.NewAdapter(gdb, 5*time.Second)
	require.NoError(t, a.AutoMigrate(context.Background()))
	return &switchableRemote{Adapter: a}
}

// TestOfflineOrderReachesRemoteOnReconnect creates and edits a service order
// while the remote is unreachable, then restores connectivity.
func TestOfflineOrderReachesRemoteOnReconnect(t *testing.T) {
	rs := newSQLRemote(t)
	h := newHarness(t, rs, Options{})
	handler := newRecordingHandler()
	h.engine.SetEventHandler(handler)
	ctx := context.Background()

	rs.offline.Store(true)
	order := h.save(t, models.EntityOrders, models.Record{
		"customerName": "Ana",
		"deviceModel":  "G8",
		"status":       models.OrderStatusPending,
		"total":        120.0,
		"photos":       []any{},
	})
	result, err := h.engine.PushPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	order["customerName"] = "Ana Souza"
	h.save(t, models.EntityOrders, order)
	assert.Equal(t, 1, h.queueSize(t))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go h.engine.Run(runCtx)

	rs.offline.Store(false)
	h.engine.Trigger(TriggerConnectivityRestored)
	handler.waitFor(t, SyncEventPullCompleted)

	var rows []map[string]any
	require.NoError(t, rs.DB().Table("service_orders").Where("tenant_id = ?", tenant).Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, order.ID(), rows[0]["id"])
	assert.Equal(t, "Ana Souza", rows[0]["customer_name"])

	assert.Zero(t, h.queueSize(t))
	local, err := h.store.Get(ctx, models.EntityOrders, order.ID())
	require.NoError(t, err)
	assert.Equal(t, "Ana Souza", local["customerName"])
	assert.Equal(t, SyncStatusIdle, h.engine.Status())
}

func TestSoftDeletedSaleIsTombstonedRemotely(t *testing.T) {
	rs := newSQLRemote(t)
	h := newHarness(t, rs, Options{})
	ctx := context.Background()

	sale := models.Record{"id": models.NewID(), "productName": "Fonte", "finalPrice": 30.0}
	h.softDelete(t, models.EntitySales, sale)

	_, err := h.engine.PushPending(ctx)
	require.NoError(t, err)

	got, err := rs.FetchAll(ctx, tenant, models.EntitySales)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].IsDeleted())

	_, err = h.engine.PullAll(ctx)
	require.NoError(t, err)
	local, err := h.store.Get(ctx, models.EntitySales, sale["id"].(string))
	require.NoError(t, err)
	assert.True(t, local.IsDeleted())
}

// TestPullSkipsUntranslatableRemoteRow hydrates the readable rows when one
// remote sale carries a malformed price, and leaves the local copy of that
// sale in place.
func TestPullSkipsUntranslatableRemoteRow(t *testing.T) {
	rs := newSQLRemote(t)
	h := newHarness(t, rs, Options{})
	ctx := context.Background()
	now := models.FormatTimestamp(time.Now())

	require.NoError(t, rs.UpsertMany(ctx, tenant, models.EntityOrders, []models.Record{
		{"id": "o1", "tenantId": tenant, "customerName": "Ana", "updatedAt": now},
		{"id": "o2", "tenantId": tenant, "customerName": "Rui", "updatedAt": now},
	}))
	require.NoError(t, rs.DB().Exec(
		"INSERT INTO sales (id, tenant_id, final_price, is_deleted) VALUES (?, ?, ?, ?)",
		"s-bad", tenant, "abc", false,
	).Error)
	require.NoError(t, h.store.Put(ctx, models.EntitySales, models.Record{"id": "s-bad", "finalPrice": 12.0}))

	result, err := h.engine.PullAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched[string(models.EntityOrders)])
	assert.Equal(t, 0, result.Fetched[string(models.EntitySales)])
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Pruned)

	orders, err := h.store.QueryByTenant(ctx, models.EntityOrders)
	require.NoError(t, err)
	assert.Len(t, orders, 2)

	kept, err := h.store.Get(ctx, models.EntitySales, "s-bad")
	require.NoError(t, err)
	assert.Equal(t, 12.0, kept["finalPrice"])
}
