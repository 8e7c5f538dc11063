// Package conflict decides what hydration does with a remote record whose
// local copy still has an unsent edit queued.
package conflict

import (
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
)

// ResolutionStrategy defines how conflicts are resolved.
type ResolutionStrategy string

const (
	// StrategyPendingWins keeps the local edit until it has been pushed.
	StrategyPendingWins ResolutionStrategy = "pending_wins"
	// StrategyLastWriteWins keeps whichever side has the newer updatedAt.
	StrategyLastWriteWins ResolutionStrategy = "last_write_wins"
)

// Side names where the winning version came from.
type Side string

const (
	SideLocal  Side = "local"
	SideRemote Side = "remote"
)

// Resolver handles conflict resolution during hydration.
type Resolver struct {
	strategy ResolutionStrategy
	now      func() time.Time
}

// NewResolver creates a Resolver. Unknown strategies fall back to pending_wins.
func NewResolver(strategy ResolutionStrategy) *Resolver {
	switch strategy {
	case StrategyPendingWins, StrategyLastWriteWins:
	default:
		strategy = StrategyPendingWins
	}
	return &Resolver{strategy: strategy, now: time.Now}
}

// Strategy returns the configured strategy.
func (r *Resolver) Strategy() ResolutionStrategy {
	return r.strategy
}

// Conflict is a remote record shadowed by a pending local operation.
// Local is nil when the pending operation is a hard delete.
type Conflict struct {
	TenantID string
	Entity   models.EntityType
	RecordID string
	Local    models.Record
	Remote   models.Record
}

// ResolveResult represents the outcome of conflict resolution.
type ResolveResult struct {
	// Winner is the version the local store should hold; nil keeps the row absent.
	Winner      models.Record
	Side        Side
	Strategy    ResolutionStrategy
	ConflictLog *models.ConflictLog
}

// DetectConflict reports whether a pulled record disagrees with the local copy
// of a record that has a pending operation.
func (r *Resolver) DetectConflict(tenantID string, entity models.EntityType, local, remote models.Record) (*Conflict, bool) {
	if remote == nil {
		return nil, false
	}
	if local != nil {
		if local.ID() != remote.ID() {
			return nil, false
		}
		if sameRecord(local, remote) {
			return nil, false
		}
	}

	c := &Conflict{
		TenantID: tenantID,
		Entity:   entity,
		RecordID: remote.ID(),
		Local:    local,
		Remote:   remote,
	}
	logging.Debug("Conflict detected",
		zap.String("entity", string(entity)),
		zap.String("record_id", c.RecordID),
		zap.String("local_updated_at", local.UpdatedAt()),
		zap.String("remote_updated_at", remote.UpdatedAt()),
	)
	return c, true
}

// sameRecord compares two records, treating a nil field and a missing one alike.
func sameRecord(a, b models.Record) bool {
	return reflect.DeepEqual(withoutNil(a), withoutNil(b))
}

func withoutNil(r models.Record) models.Record {
	out := make(models.Record, len(r))
	for k, v := range r {
		if v != nil {
			out[k] = v
		}
	}
	return out
}

// Resolve resolves a conflict using the configured strategy.
func (r *Resolver) Resolve(c *Conflict) (*ResolveResult, error) {
	if c == nil || c.Remote == nil {
		return nil, ErrInvalidConflict
	}
	if c.Local != nil && c.Local.ID() != c.Remote.ID() {
		return nil, ErrItemIDMismatch
	}

	side := SideLocal
	if r.strategy == StrategyLastWriteWins && remoteIsNewer(c.Local, c.Remote) {
		side = SideRemote
	}

	result := &ResolveResult{
		Side:     side,
		Strategy: r.strategy,
		ConflictLog: &models.ConflictLog{
			TenantID:        c.TenantID,
			EntityType:      c.Entity,
			RecordID:        c.RecordID,
			LocalUpdatedAt:  c.Local.UpdatedAt(),
			RemoteUpdatedAt: c.Remote.UpdatedAt(),
			Resolution:      string(r.strategy),
			Winner:          string(side),
			DetectedAt:      r.now().Unix(),
		},
	}
	if side == SideRemote {
		result.Winner = c.Remote
	} else {
		result.Winner = c.Local
	}

	logging.Info("Conflict resolved",
		zap.String("entity", string(c.Entity)),
		zap.String("record_id", c.RecordID),
		zap.String("strategy", string(r.strategy)),
		zap.String("winner_side", string(side)),
	)
	return result, nil
}

// remoteIsNewer compares updatedAt stamps. A pending delete (nil local) and
// unparseable stamps keep the local side.
func remoteIsNewer(local, remote models.Record) bool {
	if local == nil {
		return false
	}
	lt, err := models.ParseTimestamp(local.UpdatedAt())
	if err != nil {
		return false
	}
	rt, err := models.ParseTimestamp(remote.UpdatedAt())
	if err != nil {
		return false
	}
	return rt.After(lt)
}

// Errors
var (
	ErrInvalidConflict = &ConflictError{Message: "invalid conflict: remote record must be non-nil"}
	ErrItemIDMismatch  = &ConflictError{Message: "record ID mismatch"}
)

// ConflictError represents a conflict resolution error.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// IsConflictError checks if an error is a ConflictError.
func IsConflictError(err error) bool {
	_, ok := err.(*ConflictError)
	return ok
}
