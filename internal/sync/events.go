package sync

import "time"

// SyncStatus represents the current sync status.
type SyncStatus string

const (
	SyncStatusIdle     SyncStatus = "idle"
	SyncStatusDraining SyncStatus = "draining"
	SyncStatusPulling  SyncStatus = "pulling"
	SyncStatusFailed   SyncStatus = "failed"
)

// TriggerReason says why a sync cycle was requested.
type TriggerReason string

const (
	TriggerLocalWrite           TriggerReason = "local_write"
	TriggerConnectivityRestored TriggerReason = "connectivity_restored"
	TriggerWake                 TriggerReason = "wake"
	TriggerPeriodic             TriggerReason = "periodic"
	TriggerManual               TriggerReason = "manual"
)

// wantsPull reports whether the trigger also hydrates after pushing.
// Post-write triggers only push.
func (r TriggerReason) wantsPull() bool {
	return r != TriggerLocalWrite
}

// SyncEventType names a status-indicator event.
type SyncEventType string

const (
	SyncEventStarted       SyncEventType = "sync.started"
	SyncEventCompleted     SyncEventType = "sync.completed"
	SyncEventFailed        SyncEventType = "sync.failed"
	SyncEventPullCompleted SyncEventType = "pull.completed"
)

// Cycle kinds.
const (
	KindPush = "push"
	KindPull = "pull"
)

// SyncEvent is delivered to the event handler.
type SyncEvent struct {
	Type      SyncEventType `json:"type"`
	Kind      string        `json:"kind"`
	TenantID  string        `json:"tenantId"`
	Reason    TriggerReason `json:"reason,omitempty"`
	Pushed    int           `json:"pushed,omitempty"`
	Failed    int           `json:"failed,omitempty"`
	Pulled    int           `json:"pulled,omitempty"`
	Pending   int           `json:"pending"`
	Error     string        `json:"error,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// SyncEventHandler receives sync events. OnSyncEvent runs on the sync
// goroutine and must not block.
type SyncEventHandler interface {
	OnSyncEvent(event SyncEvent)
}

// SyncEventHandlerFunc adapts a function to SyncEventHandler.
type SyncEventHandlerFunc func(event SyncEvent)

func (f SyncEventHandlerFunc) OnSyncEvent(event SyncEvent) { f(event) }

// ErrorRecord is one entry of the engine's error history.
type ErrorRecord struct {
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`
	Entity   string    `json:"entity,omitempty"`
	RecordID string    `json:"recordId,omitempty"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
}

// PushResult summarizes one drain of the queue.
type PushResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	// Attempted rows, and how they ended.
	Attempted int
	Pushed    int
	// Superseded rows were sent but stay queued because a newer edit was
	// collapsed into them meanwhile.
	Superseded int
	Failed     int
	Dead       int
	Errors     []ErrorRecord
}

// PullResult summarizes one hydration pass.
type PullResult struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
	Fetched   map[string]int
	Applied   int
	Pruned    int
	Skipped   int
	Conflicts int
}
