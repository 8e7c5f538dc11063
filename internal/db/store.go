package db

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
)

// TenantStore is the local store bound to one tenant session. Every
// statement it issues filters or stamps tenant_id.
type TenantStore struct {
	db       *DB
	q        Querier
	tenantID string
	inTx     bool
}

// NewTenantStore binds database to tenantID.
func NewTenantStore(database *DB, tenantID string) (*TenantStore, error) {
	if tenantID == "" {
		return nil, apperrors.New(apperrors.ErrTenantScope, "tenant id is required to open a store")
	}
	return &TenantStore{db: database, q: database, tenantID: tenantID}, nil
}

// TenantID returns the tenant this store is bound to.
func (s *TenantStore) TenantID() string {
	return s.tenantID
}

// Querier returns the handle statements run on: the database, or the open transaction.
func (s *TenantStore) Querier() Querier {
	return s.q
}

// DB returns the underlying database.
func (s *TenantStore) DB() *DB {
	return s.db
}

// WithTx runs fn with a store bound to a single transaction. Nested calls
// reuse the outer transaction.
func (s *TenantStore) WithTx(ctx context.Context, fn func(tx *TenantStore) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLocalWrite, "failed to begin transaction", err)
	}

	txStore := &TenantStore{db: s.db, q: tx, tenantID: s.tenantID, inTx: true}
	if err := fn(txStore); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return apperrors.Wrap(apperrors.ErrLocalWrite, "failed to commit transaction", err)
	}
	return nil
}

// normalize validates rec for this tenant and returns the copy to persist.
func (s *TenantStore) normalize(entity models.EntityType, rec models.Record) (models.Record, error) {
	if rec == nil {
		return nil, apperrors.New(apperrors.ErrInvalid, "record is nil")
	}
	out := rec.Clone()

	if entity.IsSingleton() {
		out[models.FieldID] = models.SettingsID
		delete(out, models.SettingsUsersField)
	}
	if out.ID() == "" {
		return nil, apperrors.Newf(apperrors.ErrInvalid, "%s record has no id", entity)
	}

	switch tenant := out.TenantID(); tenant {
	case "":
		out[models.FieldTenantID] = s.tenantID
	case s.tenantID:
	default:
		return nil, apperrors.Newf(apperrors.ErrTenantScope,
			"%s %s belongs to tenant %s, store is bound to %s", entity, out.ID(), tenant, s.tenantID)
	}
	return out, nil
}

// Get returns one record, including soft-deleted ones.
func (s *TenantStore) Get(ctx context.Context, entity models.EntityType, id string) (models.Record, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "get", err)
	}
	if entity.IsSingleton() {
		id = models.SettingsID
	}

	var data string
	query := fmt.Sprintf("SELECT data FROM %s WHERE tenant_id = ? AND id = ?", table)
	err = s.q.QueryRowContext(ctx, query, s.tenantID, id).Scan(&data)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.Newf(apperrors.ErrNotFound, "%s %s not found", entity, id)
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to read %s %s", entity, id), err)
	}
	return models.DecodeRecord([]byte(data))
}

// Put inserts or overwrites a record by id. Replaying the same record is a no-op.
func (s *TenantStore) Put(ctx context.Context, entity models.EntityType, rec models.Record) error {
	table, err := tableFor(entity)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "put", err)
	}
	out, err := s.normalize(entity, rec)
	if err != nil {
		return err
	}

	data, err := out.Encode()
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLocalWrite, "failed to encode record", err)
	}
	cols := columnsFor(entity, out)

	query := fmt.Sprintf(`INSERT INTO %s (tenant_id, id, data, label, status, occurred_at, ref, is_deleted, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			data = excluded.data,
			label = excluded.label,
			status = excluded.status,
			occurred_at = excluded.occurred_at,
			ref = excluded.ref,
			is_deleted = excluded.is_deleted,
			updated_at = excluded.updated_at`, table)

	_, err = s.q.ExecContext(ctx, query,
		s.tenantID, out.ID(), string(data),
		cols.label, cols.status, cols.occurredAt, cols.ref,
		boolToInt(out.IsDeleted()), out.UpdatedAt(),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLocalWrite, fmt.Sprintf("failed to write %s %s", entity, out.ID()), err)
	}
	return nil
}

// BulkPut writes records in one transaction.
func (s *TenantStore) BulkPut(ctx context.Context, entity models.EntityType, records []models.Record) error {
	if len(records) == 0 {
		return nil
	}
	return s.WithTx(ctx, func(tx *TenantStore) error {
		for _, rec := range records {
			if err := tx.Put(ctx, entity, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// QueryByTenant returns every record of entity for the tenant, soft-deleted included.
func (s *TenantStore) QueryByTenant(ctx context.Context, entity models.EntityType) ([]models.Record, error) {
	return s.list(ctx, entity, "")
}

// QueryActive returns the tenant's records that are not soft-deleted.
func (s *TenantStore) QueryActive(ctx context.Context, entity models.EntityType) ([]models.Record, error) {
	return s.list(ctx, entity, "AND is_deleted = 0")
}

// FindByRef returns active records whose reference column equals ref
// (product barcode, sale productId, user username, ...).
func (s *TenantStore) FindByRef(ctx context.Context, entity models.EntityType, ref string) ([]models.Record, error) {
	return s.list(ctx, entity, "AND is_deleted = 0 AND ref = ?", ref)
}

func (s *TenantStore) list(ctx context.Context, entity models.EntityType, filter string, args ...any) ([]models.Record, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "query", err)
	}

	query := fmt.Sprintf("SELECT data FROM %s WHERE tenant_id = ? %s ORDER BY occurred_at DESC, label, id", table, filter)
	rows, err := s.q.QueryContext(ctx, query, append([]any{s.tenantID}, args...)...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to query %s", entity), err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan record", err)
		}
		rec, err := models.DecodeRecord([]byte(data))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "corrupt record", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to query %s", entity), err)
	}
	return out, nil
}

// Delete removes a row. Only hard-delete entities may lose rows this way.
func (s *TenantStore) Delete(ctx context.Context, entity models.EntityType, id string) error {
	if entity.DeletePolicy() != models.DeleteHard {
		return apperrors.Newf(apperrors.ErrInvalid, "%s uses %s delete", entity, entity.DeletePolicy())
	}
	return s.remove(ctx, entity, id)
}

func (s *TenantStore) remove(ctx context.Context, entity models.EntityType, id string) error {
	table, err := tableFor(entity)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrInvalid, "delete", err)
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE tenant_id = ? AND id = ?", table)
	if _, err := s.q.ExecContext(ctx, query, s.tenantID, id); err != nil {
		return apperrors.Wrap(apperrors.ErrLocalWrite, fmt.Sprintf("failed to delete %s %s", entity, id), err)
	}
	return nil
}

// IDs returns every record id of entity for the tenant.
func (s *TenantStore) IDs(ctx context.Context, entity models.EntityType) ([]string, error) {
	table, err := tableFor(entity)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInvalid, "ids", err)
	}
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s WHERE tenant_id = ?", table), s.tenantID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to list %s ids", entity), err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan id", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Prune removes rows whose id is not in keep, for any delete policy.
// Hydration uses it to make the local copy a replica of the remote set.
func (s *TenantStore) Prune(ctx context.Context, entity models.EntityType, keep map[string]struct{}) (int, error) {
	ids, err := s.IDs(ctx, entity)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range ids {
		if _, ok := keep[id]; ok {
			continue
		}
		if err := s.remove(ctx, entity, id); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Count returns the total and non-deleted row counts.
func (s *TenantStore) Count(ctx context.Context, entity models.EntityType) (total, active int, err error) {
	table, err := tableFor(entity)
	if err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrInvalid, "count", err)
	}
	query := fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(1 - is_deleted), 0) FROM %s WHERE tenant_id = ?", table)
	if err := s.q.QueryRowContext(ctx, query, s.tenantID).Scan(&total, &active); err != nil {
		return 0, 0, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to count %s", entity), err)
	}
	return total, active, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
