package db

import (
	"context"
	"time"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
)

// LogConflict records a hydration conflict for the tenant.
func (s *TenantStore) LogConflict(ctx context.Context, c *models.ConflictLog) error {
	if c.DetectedAt == 0 {
		c.DetectedAt = time.Now().Unix()
	}
	res, err := s.q.ExecContext(ctx, `INSERT INTO conflict_log
		(tenant_id, entity_type, record_id, local_updated_at, remote_updated_at, resolution, winner, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.tenantID, string(c.EntityType), c.RecordID, c.LocalUpdatedAt, c.RemoteUpdatedAt,
		c.Resolution, c.Winner, c.DetectedAt,
	)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrLocalWrite, "failed to log conflict", err)
	}
	c.TenantID = s.tenantID
	c.ID, _ = res.LastInsertId()
	return nil
}

// ListConflicts returns the most recent conflicts first.
func (s *TenantStore) ListConflicts(ctx context.Context, limit int) ([]models.ConflictLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.q.QueryContext(ctx, `SELECT id, tenant_id, entity_type, record_id, local_updated_at,
		remote_updated_at, resolution, winner, detected_at
		FROM conflict_log WHERE tenant_id = ? ORDER BY detected_at DESC, id DESC LIMIT ?`, s.tenantID, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to list conflicts", err)
	}
	defer rows.Close()

	var out []models.ConflictLog
	for rows.Next() {
		var c models.ConflictLog
		var entity string
		if err := rows.Scan(&c.ID, &c.TenantID, &entity, &c.RecordID, &c.LocalUpdatedAt,
			&c.RemoteUpdatedAt, &c.Resolution, &c.Winner, &c.DetectedAt); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrDatabase, "failed to scan conflict", err)
		}
		c.EntityType = models.EntityType(entity)
		out = append(out, c)
	}
	return out, rows.Err()
}
