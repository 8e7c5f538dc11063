// Package queue provides the durable pending-operations queue: local
// mutations that have not yet been confirmed by the remote store.
package queue

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/db"
	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
)

// Config tunes retry behaviour.
type Config struct {
	// MaxAttempts before a row is dead-lettered.
	MaxAttempts int
	BackoffBase time.Duration
	BackoffMax  time.Duration
}

// DefaultConfig returns the retry settings used when none are configured.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 10,
		BackoffBase: 30 * time.Second,
		BackoffMax:  time.Hour,
	}
}

// Stats summarizes a tenant's queue.
type Stats struct {
	Total      int   `json:"total"`
	Pending    int   `json:"pending"`
	Ready      int   `json:"ready"`
	Dead       int   `json:"dead"`
	OldestUnix int64 `json:"oldestEnqueuedAt,omitempty"` // unix nanos
}

// Queue is backed by the pending_operations table. It holds no state of
// its own, so rows survive process restarts.
type Queue struct {
	db  *db.DB
	cfg Config
	now func() time.Time
}

// New creates a queue over database.
func New(database *db.DB, cfg Config) *Queue {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = def.BackoffMax
	}
	return &Queue{db: database, cfg: cfg, now: time.Now}
}

// Config returns the effective retry settings.
func (q *Queue) Config() Config {
	return q.cfg
}

// Enqueue appends op, or collapses it into the existing row for the same
// (tenant, entity, record). A collapsed row takes the new action and
// payload, bumps its revision and becomes immediately ready again; its
// original enqueue time, and so its replay position, is kept.
//
// qr must be the transaction that wrote the record so both commit together.
func (q *Queue) Enqueue(ctx context.Context, qr db.Querier, op *models.PendingOperation) error {
	if op.TenantID == "" {
		return apperrors.New(apperrors.ErrTenantScope, "pending operation has no tenant")
	}
	if !op.EntityType.Valid() || op.RecordID == "" {
		return apperrors.Newf(apperrors.ErrInvalid, "invalid pending operation %s/%s", op.EntityType, op.RecordID)
	}
	if op.Action != models.ActionUpsert && op.Action != models.ActionDelete {
		return apperrors.Newf(apperrors.ErrInvalid, "invalid action %q", op.Action)
	}

	var payload any
	if op.Payload != nil {
		data, err := op.Payload.Encode()
		if err != nil {
			return apperrors.Wrap(apperrors.ErrQueueAppend, "failed to encode payload", err)
		}
		payload = string(data)
	}

	query := `INSERT INTO pending_operations
		(tenant_id, entity_type, record_id, action, payload, enqueued_at, revision, attempts, next_attempt_at, last_error, status)
		VALUES (?, ?, ?, ?, ?, ?, 1, 0, 0, '', 'pending')
		ON CONFLICT(tenant_id, entity_type, record_id) DO UPDATE SET
			action = excluded.action,
			payload = excluded.payload,
			revision = pending_operations.revision + 1,
			attempts = 0,
			next_attempt_at = 0,
			last_error = '',
			status = 'pending'
		RETURNING id, revision, enqueued_at`

	err := qr.QueryRowContext(ctx, query,
		op.TenantID, string(op.EntityType), op.RecordID, string(op.Action), payload, q.now().UnixNano(),
	).Scan(&op.ID, &op.Revision, &op.EnqueuedAt)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrQueueAppend,
			fmt.Sprintf("failed to enqueue %s %s/%s", op.Action, op.EntityType, op.RecordID), err)
	}
	op.Attempts = 0
	op.NextAttemptAt = 0
	op.LastError = ""
	op.Status = models.OperationPending

	logging.Debug("[SyncQueue] Enqueued operation",
		zap.Int64("id", op.ID),
		zap.String("entity", string(op.EntityType)),
		zap.String("record_id", op.RecordID),
		zap.String("action", string(op.Action)),
		zap.Int64("revision", op.Revision),
	)
	return nil
}

const selectColumns = `id, tenant_id, entity_type, record_id, action, payload, enqueued_at,
	revision, attempts, next_attempt_at, last_error, status`

// Drain returns the tenant's rows that are ready to replay, in enqueue order.
// It does not remove anything.
func (q *Queue) Drain(ctx context.Context, tenantID string) ([]models.PendingOperation, error) {
	return q.query(ctx, `SELECT `+selectColumns+` FROM pending_operations
		WHERE tenant_id = ? AND status = 'pending' AND next_attempt_at <= ?
		ORDER BY enqueued_at, id`, tenantID, q.now().UnixNano())
}

// List returns every row of the tenant, optionally filtered by status.
func (q *Queue) List(ctx context.Context, tenantID string, status models.OperationStatus) ([]models.PendingOperation, error) {
	if status == "" {
		return q.query(ctx, `SELECT `+selectColumns+` FROM pending_operations
			WHERE tenant_id = ? ORDER BY enqueued_at, id`, tenantID)
	}
	return q.query(ctx, `SELECT `+selectColumns+` FROM pending_operations
		WHERE tenant_id = ? AND status = ? ORDER BY enqueued_at, id`, tenantID, string(status))
}

func (q *Queue) query(ctx context.Context, query string, args ...any) ([]models.PendingOperation, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read pending operations", err)
	}
	defer rows.Close()

	var ops []models.PendingOperation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read pending operations", err)
	}
	return ops, nil
}

func scanOperation(rows *sql.Rows) (models.PendingOperation, error) {
	var op models.PendingOperation
	var entity, action, status string
	var payload sql.NullString
	err := rows.Scan(&op.ID, &op.TenantID, &entity, &op.RecordID, &action, &payload, &op.EnqueuedAt,
		&op.Revision, &op.Attempts, &op.NextAttemptAt, &op.LastError, &status)
	if err != nil {
		return op, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan pending operation", err)
	}
	op.EntityType = models.EntityType(entity)
	op.Action = models.Action(action)
	op.Status = models.OperationStatus(status)
	if payload.Valid && payload.String != "" {
		op.Payload, err = models.DecodeRecord([]byte(payload.String))
		if err != nil {
			return op, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("corrupt payload in pending operation %d", op.ID), err)
		}
	}
	return op, nil
}

// MarkDone removes the row if nothing was collapsed into it since it was
// drained. It reports whether the row was removed.
func (q *Queue) MarkDone(ctx context.Context, op *models.PendingOperation) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE id = ? AND revision = ?`, op.ID, op.Revision)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to complete pending operation %d", op.ID), err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		logging.Debug("[SyncQueue] Operation changed while in flight, keeping it queued",
			zap.Int64("id", op.ID), zap.Int64("revision", op.Revision))
		return false, nil
	}
	logging.Debug("[SyncQueue] Completed operation", zap.Int64("id", op.ID), zap.String("record_id", op.RecordID))
	return true, nil
}

// MarkFailed records a failed replay and schedules a retry with exponential
// backoff. Rows that exhausted MaxAttempts, or failed with a non-retryable
// error, are dead-lettered. It reports whether the row is now dead.
func (q *Queue) MarkFailed(ctx context.Context, op *models.PendingOperation, cause error) (bool, error) {
	attempts := op.Attempts + 1
	dead := attempts >= q.cfg.MaxAttempts || !apperrors.IsRetryable(cause)

	status := models.OperationPending
	next := q.now().Add(calculateBackoff(attempts, q.cfg.BackoffBase, q.cfg.BackoffMax)).UnixNano()
	if dead {
		status = models.OperationDead
	}

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}

	res, err := q.db.ExecContext(ctx, `UPDATE pending_operations
		SET attempts = ?, next_attempt_at = ?, last_error = ?, status = ?
		WHERE id = ? AND revision = ?`,
		attempts, next, msg, string(status), op.ID, op.Revision)
	if err != nil {
		return false, apperrors.Wrap(apperrors.ErrDatabase, fmt.Sprintf("failed to record failure of operation %d", op.ID), err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// a newer mutation replaced the row; it gets a fresh attempt
		return false, nil
	}

	op.Attempts = attempts
	op.NextAttemptAt = next
	op.LastError = msg
	op.Status = status

	if dead {
		logging.Warn("[SyncQueue] Operation failed permanently",
			zap.Int64("id", op.ID), zap.String("record_id", op.RecordID),
			zap.Int("attempts", attempts), zap.String("error", msg))
	} else {
		logging.Info("[SyncQueue] Operation failed, retry scheduled",
			zap.Int64("id", op.ID), zap.String("record_id", op.RecordID),
			zap.Int("attempts", attempts), zap.Int("max_attempts", q.cfg.MaxAttempts),
			zap.Time("next_attempt_at", op.NextAttemptAtTime()), zap.String("error", msg))
	}
	return dead, nil
}

// calculateBackoff returns base * 2^(attempts-1), capped at ceiling.
func calculateBackoff(attempts int, base, ceiling time.Duration) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	backoff := base
	for i := 1; i < attempts; i++ {
		backoff *= 2
		if backoff >= ceiling || backoff <= 0 {
			return ceiling
		}
	}
	if backoff > ceiling {
		return ceiling
	}
	return backoff
}

// PendingRecordIDs returns the ids of entity records that still have an
// unconfirmed local mutation, dead rows included.
func (q *Queue) PendingRecordIDs(ctx context.Context, tenantID string, entity models.EntityType) (map[string]struct{}, error) {
	return q.PendingRecordIDsTx(ctx, q.db, tenantID, entity)
}

// PendingRecordIDsTx is PendingRecordIDs inside the caller's transaction, so
// a hydration pass sees exactly the rows committed before it.
func (q *Queue) PendingRecordIDsTx(ctx context.Context, qr db.Querier, tenantID string, entity models.EntityType) (map[string]struct{}, error) {
	rows, err := qr.QueryContext(ctx,
		`SELECT record_id FROM pending_operations WHERE tenant_id = ? AND entity_type = ?`,
		tenantID, string(entity))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read pending record ids", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan record id", err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// Get returns the row for one record, or a NOT_FOUND error.
func (q *Queue) Get(ctx context.Context, tenantID string, entity models.EntityType, recordID string) (*models.PendingOperation, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM pending_operations
		WHERE tenant_id = ? AND entity_type = ? AND record_id = ?`, tenantID, string(entity), recordID)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read pending operation", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to read pending operation", err)
		}
		return nil, apperrors.Newf(apperrors.ErrNotFound, "no pending operation for %s %s", entity, recordID)
	}
	op, err := scanOperation(rows)
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// RetryDead resets the tenant's dead rows to pending for immediate retry.
func (q *Queue) RetryDead(ctx context.Context, tenantID string) (int, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE pending_operations
		SET status = 'pending', attempts = 0, next_attempt_at = 0, last_error = ''
		WHERE tenant_id = ? AND status = 'dead'`, tenantID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to reset dead operations", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Info("[SyncQueue] Reset dead operations for retry", zap.Int64("count", n))
	}
	return int(n), nil
}

// RetryNow clears the backoff of every pending row of the tenant.
func (q *Queue) RetryNow(ctx context.Context, tenantID string) (int, error) {
	res, err := q.db.ExecContext(ctx, `UPDATE pending_operations SET next_attempt_at = 0
		WHERE tenant_id = ? AND status = 'pending' AND next_attempt_at > 0`, tenantID)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to clear backoff", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Discard deletes a dead row. Pending rows cannot be discarded.
func (q *Queue) Discard(ctx context.Context, tenantID string, id int64) error {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE tenant_id = ? AND id = ? AND status = 'dead'`, tenantID, id)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to discard operation", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperrors.Newf(apperrors.ErrNotFound, "no dead operation %d", id)
	}
	logging.Warn("[SyncQueue] Discarded dead operation", zap.Int64("id", id))
	return nil
}

// Size returns the number of rows the tenant has queued.
func (q *Queue) Size(ctx context.Context, tenantID string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pending_operations WHERE tenant_id = ?`, tenantID).Scan(&n)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDatabase, "failed to count pending operations", err)
	}
	return n, nil
}

// GetStats returns queue statistics for the tenant.
func (q *Queue) GetStats(ctx context.Context, tenantID string) (Stats, error) {
	var s Stats
	var oldest sql.NullInt64
	err := q.db.QueryRowContext(ctx, `SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'pending' AND next_attempt_at <= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'dead' THEN 1 ELSE 0 END), 0),
			MIN(enqueued_at)
		FROM pending_operations WHERE tenant_id = ?`, q.now().UnixNano(), tenantID).
		Scan(&s.Total, &s.Pending, &s.Ready, &s.Dead, &oldest)
	if err != nil && !stderrors.Is(err, sql.ErrNoRows) {
		return s, apperrors.Wrap(apperrors.ErrDatabase, "failed to read queue stats", err)
	}
	if oldest.Valid {
		s.OldestUnix = oldest.Int64
	}
	return s, nil
}

// SupersedeTx drops the row of a record whose local edit lost to a newer
// remote version during hydration. It runs in the hydration transaction.
func (q *Queue) SupersedeTx(ctx context.Context, qr db.Querier, tenantID string, entity models.EntityType, recordID string) error {
	_, err := qr.ExecContext(ctx,
		`DELETE FROM pending_operations WHERE tenant_id = ? AND entity_type = ? AND record_id = ?`,
		tenantID, string(entity), recordID)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabase, "failed to drop superseded operation", err)
	}
	logging.Info("[SyncQueue] Dropped operation superseded by remote",
		zap.String("entity", string(entity)),
		zap.String("record_id", recordID),
	)
	return nil
}
