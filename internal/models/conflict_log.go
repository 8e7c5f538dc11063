package models

import "time"

// ConflictLog records a pulled remote record that disagreed with a queued local edit.
type ConflictLog struct {
	ID              int64      `db:"id" json:"id"`
	TenantID        string     `db:"tenant_id" json:"tenantId"`
	EntityType      EntityType `db:"entity_type" json:"entityType"`
	RecordID        string     `db:"record_id" json:"recordId"`
	LocalUpdatedAt  string     `db:"local_updated_at" json:"localUpdatedAt"`
	RemoteUpdatedAt string     `db:"remote_updated_at" json:"remoteUpdatedAt"`
	Resolution      string     `db:"resolution" json:"resolution"` // pending_wins, last_write_wins
	Winner          string     `db:"winner" json:"winner"`         // local, remote
	DetectedAt      int64      `db:"detected_at" json:"detectedAt"`
}

// TableName returns the table name for ConflictLog.
func (ConflictLog) TableName() string {
	return "conflict_log"
}

// DetectedAtTime returns the DetectedAt as time.Time.
func (c *ConflictLog) DetectedAtTime() time.Time {
	return time.Unix(c.DetectedAt, 0)
}
