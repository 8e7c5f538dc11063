// Package remote translates local records into the remote relational store
// and back. Every call is tenant-scoped and bounded by a timeout.
package remote

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/telemetry"
)

// DefaultTimeout bounds a single remote call.
const DefaultTimeout = 15 * time.Second

// Adapter is the remote store client used by the sync engine.
type Adapter struct {
	db      *gorm.DB
	timeout time.Duration
	now     func() time.Time
	metrics *telemetry.Metrics
}

// NewAdapter wraps an open gorm handle.
func NewAdapter(db *gorm.DB, timeout time.Duration) *Adapter {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Adapter{db: db, timeout: timeout, now: time.Now}
}

// WithMetrics makes the adapter count skipped rows on m.
func (a *Adapter) WithMetrics(m *telemetry.Metrics) *Adapter {
	a.metrics = m
	return a
}

// DB returns the underlying handle.
func (a *Adapter) DB() *gorm.DB {
	return a.db
}

func requireTenant(tenantID string) error {
	if tenantID == "" {
		return apperrors.New(apperrors.ErrTenantScope, "remote call without tenant id")
	}
	return nil
}

// call runs fn with a bounded context and classifies its error.
func (a *Adapter) call(ctx context.Context, op string, fn func(db *gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	err := fn(a.db.WithContext(ctx))
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperrors.Wrap(apperrors.ErrRemoteTimeout, op+" timed out", err)
	}
	return apperrors.Wrap(apperrors.ErrRemote, op+" failed", err)
}

// FetchAll returns every remote record of the tenant, soft-deleted ones included.
// Rows that cannot be translated are left out and reported through a
// *SkippedRowsError returned with the remaining records.
func (a *Adapter) FetchAll(ctx context.Context, tenantID string, entity models.EntityType) ([]models.Record, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if entity == models.EntitySettings {
		rec, err := a.FetchSettings(ctx, tenantID)
		if err != nil || rec == nil {
			return nil, err
		}
		return []models.Record{rec}, nil
	}
	m, err := MappingFor(entity)
	if err != nil {
		return nil, err
	}

	records := []models.Record{}
	var skipped []string
	err = a.call(ctx, "fetch "+string(entity), func(db *gorm.DB) error {
		rows, err := db.Table(m.Table).Select(m.Columns()).Where("tenant_id = ?", tenantID).Rows()
		if err != nil {
			return err
		}
		defer rows.Close()

		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range vals {
				ptrs[i] = &vals[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				skipped = append(skipped, "")
				a.skip(entity, "", err)
				continue
			}
			row := make(map[string]any, len(cols))
			for i, col := range cols {
				row[col] = vals[i]
			}
			rec, err := m.FromRemote(row)
			if err != nil {
				id := rowID(row["id"])
				skipped = append(skipped, id)
				a.skip(entity, id, err)
				continue
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}

	logging.Debug("[Remote] fetched",
		zap.String("tenant_id", tenantID),
		zap.String("entity", string(entity)),
		zap.Int("count", len(records)),
		zap.Int("skipped", len(skipped)),
	)
	if len(skipped) > 0 {
		return records, &SkippedRowsError{Entity: entity, IDs: skipped}
	}
	return records, nil
}

// SkippedRowsError comes back from FetchAll together with the records that
// did translate. IDs names the rows left out; an unreadable row has id "".
type SkippedRowsError struct {
	Entity models.EntityType
	IDs    []string
}

func (e *SkippedRowsError) Error() string {
	return fmt.Sprintf("%s: skipped %d untranslatable rows", e.Entity, len(e.IDs))
}

// SkippedIDs returns the ids of the rows left out.
func (e *SkippedRowsError) SkippedIDs() []string {
	return e.IDs
}

// skip reports a remote row that FetchAll leaves out.
func (a *Adapter) skip(entity models.EntityType, id string, err error) {
	a.metrics.RecordSkippedRow(string(entity))
	logging.Warn("[Remote] Skipping untranslatable row",
		zap.String("entity", string(entity)),
		zap.String("id", id),
		zap.Error(err),
	)
}

func rowID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case []byte:
		return string(id)
	}
	return ""
}

// UpsertMany writes records keyed by id. A row owned by another tenant is
// never overwritten; the batch fails with TENANT_SCOPE_VIOLATION instead.
func (a *Adapter) UpsertMany(ctx context.Context, tenantID string, entity models.EntityType, records []models.Record) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if entity == models.EntitySettings {
		for _, rec := range records {
			if err := a.PushSettings(ctx, tenantID, rec); err != nil {
				return err
			}
		}
		return nil
	}
	m, err := MappingFor(entity)
	if err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		if rec.ID() == "" {
			return apperrors.Newf(apperrors.ErrInvalid, "%s record without id", entity)
		}
		if owner := rec.TenantID(); owner != "" && owner != tenantID {
			return apperrors.Newf(apperrors.ErrTenantScope,
				"%s %s belongs to tenant %s", entity, rec.ID(), owner)
		}
		stamped := rec.Clone()
		stamped[models.FieldTenantID] = tenantID
		row, err := m.ToRemote(stamped)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	return a.call(ctx, "upsert "+string(entity), func(db *gorm.DB) error {
		return db.Transaction(func(tx *gorm.DB) error {
			for _, row := range rows {
				res := tx.Table(m.Table).Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "id"}},
					DoUpdates: clause.AssignmentColumns(updateColumns(row)),
					Where: clause.Where{Exprs: []clause.Expression{
						clause.Expr{SQL: m.Table + ".tenant_id = ?", Vars: []any{tenantID}},
					}},
				}).Create(row)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return apperrors.Newf(apperrors.ErrTenantScope,
						"%s %v is owned by another tenant", entity, row["id"])
				}
			}
			return nil
		})
	})
}

// updateColumns lists the columns an upsert overwrites, in stable order.
func updateColumns(row map[string]any) []string {
	cols := make([]string, 0, len(row))
	for col := range row {
		if col != "id" {
			cols = append(cols, col)
		}
	}
	sort.Strings(cols)
	return cols
}

// SoftDelete flags a record deleted. A record that never reached the remote
// is not an error.
func (a *Adapter) SoftDelete(ctx context.Context, tenantID string, entity models.EntityType, id string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	m, err := MappingFor(entity)
	if err != nil {
		return err
	}
	if entity.DeletePolicy() != models.DeleteSoft {
		return apperrors.Newf(apperrors.ErrInvalid, "%s does not support soft delete", entity)
	}
	return a.call(ctx, "soft delete "+string(entity), func(db *gorm.DB) error {
		return db.Table(m.Table).
			Where("tenant_id = ? AND id = ?", tenantID, id).
			Updates(map[string]any{"is_deleted": true, "updated_at": a.now().UTC()}).Error
	})
}

// HardDelete removes a record row.
func (a *Adapter) HardDelete(ctx context.Context, tenantID string, entity models.EntityType, id string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	model := rowModel(entity)
	if model == nil {
		return apperrors.Newf(apperrors.ErrInvalid, "%s cannot be deleted remotely", entity)
	}
	return a.call(ctx, "hard delete "+string(entity), func(db *gorm.DB) error {
		return db.Where("tenant_id = ? AND id = ?", tenantID, id).Delete(model).Error
	})
}

// PurgeSoftDeleted removes tombstones last updated before the cutoff and
// returns how many rows went away.
func (a *Adapter) PurgeSoftDeleted(ctx context.Context, tenantID string, before time.Time) (int64, error) {
	if err := requireTenant(tenantID); err != nil {
		return 0, err
	}
	var total int64
	for _, entity := range models.Entities {
		if entity.DeletePolicy() != models.DeleteSoft {
			continue
		}
		model := rowModel(entity)
		err := a.call(ctx, "purge "+string(entity), func(db *gorm.DB) error {
			res := db.Where("tenant_id = ? AND is_deleted = ? AND updated_at < ?", tenantID, true, before.UTC()).
				Delete(model)
			total += res.RowsAffected
			return res.Error
		})
		if err != nil {
			return total, err
		}
	}
	logging.Info("[Remote] purged soft-deleted rows",
		zap.String("tenant_id", tenantID),
		zap.Time("before", before),
		zap.Int64("removed", total),
	)
	return total, nil
}

// Ping checks the remote is reachable.
func (a *Adapter) Ping(ctx context.Context) error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrRemote, "remote handle unavailable", err)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return apperrors.Wrap(apperrors.ErrRemoteTimeout, "ping timed out", err)
		}
		return apperrors.Wrap(apperrors.ErrRemote, "ping failed", err)
	}
	return nil
}

// AutoMigrate creates or updates the remote tables.
func (a *Adapter) AutoMigrate(ctx context.Context) error {
	if err := a.db.WithContext(ctx).AutoMigrate(tableModels()...); err != nil {
		return apperrors.Wrap(apperrors.ErrMigration, "remote automigrate failed", err)
	}
	return nil
}

func (a *Adapter) String() string {
	return fmt.Sprintf("remote(%s)", a.db.Dialector.Name())
}
