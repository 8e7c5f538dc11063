// Package sync replays queued local mutations against the remote store and
// hydrates the local store from it.
package sync

import (
	"context"
	"time"

	"github.com/assistpro/shopsync/internal/models"
)

// RemoteStore is the slice of the remote adapter the engine uses.
// Every call is scoped to tenantID.
type RemoteStore interface {
	FetchAll(ctx context.Context, tenantID string, entity models.EntityType) ([]models.Record, error)
	UpsertMany(ctx context.Context, tenantID string, entity models.EntityType, records []models.Record) error
	SoftDelete(ctx context.Context, tenantID string, entity models.EntityType, id string) error
	HardDelete(ctx context.Context, tenantID string, entity models.EntityType, id string) error
	Ping(ctx context.Context) error
}

// PartialFetch is implemented by FetchAll errors that still come with
// usable records. The ids it names stay in the local store instead of being
// pruned; an empty id turns pruning off for that entity.
type PartialFetch interface {
	error
	SkippedIDs() []string
}

// SyncEngineInterface defines the interface for sync engine operations.
// This interface allows for mocking in tests and alternative implementations.
type SyncEngineInterface interface {
	// Trigger asks for a sync cycle. It never blocks and never runs
	// network code on the caller's goroutine.
	Trigger(reason TriggerReason)

	// PushPending replays the ready queue rows once.
	PushPending(ctx context.Context) (*PushResult, error)

	// PullAll hydrates every entity type from the remote store.
	PullAll(ctx context.Context) (*PullResult, error)

	// SetEventHandler sets the event handler for sync notifications.
	SetEventHandler(handler SyncEventHandler)

	// Status returns the current sync status.
	Status() SyncStatus

	// LastSync returns the timestamp of the last push that left no failures.
	LastSync() *time.Time

	// PendingChanges returns the queue depth seen by the last cycle.
	PendingChanges() int

	// LastError returns the last error that occurred during sync.
	LastError() error
}

var _ SyncEngineInterface = (*Engine)(nil)
