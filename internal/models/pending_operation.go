package models

import "time"

// Action is the kind of mutation a queue row replays.
type Action string

const (
	ActionUpsert Action = "upsert"
	ActionDelete Action = "delete"
)

// OperationStatus is the lifecycle state of a queue row.
type OperationStatus string

const (
	OperationPending OperationStatus = "pending"
	// OperationDead rows exhausted their attempts and wait for an operator retry.
	OperationDead OperationStatus = "dead"
)

// PendingOperation is a durable queue row: one local mutation not yet
// confirmed by the remote store.
type PendingOperation struct {
	ID            int64           `db:"id" json:"id"`
	TenantID      string          `db:"tenant_id" json:"tenantId"`
	EntityType    EntityType      `db:"entity_type" json:"entityType"`
	RecordID      string          `db:"record_id" json:"recordId"`
	Action        Action          `db:"action" json:"action"`
	Payload       Record          `db:"payload" json:"payload,omitempty"`
	EnqueuedAt    int64           `db:"enqueued_at" json:"enqueuedAt"` // unix nanos
	Revision      int64           `db:"revision" json:"revision"`
	Attempts      int             `db:"attempts" json:"attempts"`
	NextAttemptAt int64           `db:"next_attempt_at" json:"nextAttemptAt"` // unix nanos
	LastError     string          `db:"last_error" json:"lastError,omitempty"`
	Status        OperationStatus `db:"status" json:"status"`
}

// TableName returns the table name for PendingOperation.
func (PendingOperation) TableName() string {
	return "pending_operations"
}

// EnqueuedAtTime returns EnqueuedAt as time.Time.
func (p *PendingOperation) EnqueuedAtTime() time.Time {
	return time.Unix(0, p.EnqueuedAt)
}

// NextAttemptAtTime returns NextAttemptAt as time.Time.
func (p *PendingOperation) NextAttemptAtTime() time.Time {
	return time.Unix(0, p.NextAttemptAt)
}
