package sync

import (
	"context"

	"go.uber.org/zap"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/telemetry"
)

// push replays the ready rows in enqueue order. A failing row is marked for
// retry and the drain moves on; each record has at most one row, so skipping
// never reorders writes to the same record. The returned error is set only
// when the drain itself could not run.
func (e *Engine) push(ctx context.Context, reason TriggerReason) (*PushResult, error) {
	tenantID := e.TenantID()
	done := e.metrics.TrackCycle(KindPush)
	result := &PushResult{StartTime: e.now()}

	e.setStatus(SyncStatusDraining)
	e.emitEvent(SyncEvent{Type: SyncEventStarted, Kind: KindPush, Reason: reason})

	ops, err := e.queue.Drain(ctx, tenantID)
	if err != nil {
		return e.finishPush(ctx, result, reason, done, err)
	}

	for i := range ops {
		if err := ctx.Err(); err != nil {
			return e.finishPush(ctx, result, reason, done, err)
		}
		op := &ops[i]
		result.Attempted++

		sendErr := e.dispatch(ctx, op)
		if sendErr == nil {
			removed, err := e.queue.MarkDone(ctx, op)
			if err != nil {
				// sent but not cleared; replay is idempotent
				result.Failed++
				e.recordError(ErrorRecord{Kind: KindPush, Entity: string(op.EntityType), RecordID: op.RecordID}, err)
				continue
			}
			result.Pushed++
			if !removed {
				result.Superseded++
			}
			e.metrics.RecordPush(string(op.EntityType), string(op.Action), telemetry.ResultSuccess)
			continue
		}

		result.Failed++
		rec := ErrorRecord{Kind: KindPush, Entity: string(op.EntityType), RecordID: op.RecordID}
		e.recordError(rec, sendErr)
		result.Errors = append(result.Errors, e.lastHistory())

		dead, err := e.queue.MarkFailed(ctx, op, sendErr)
		if err != nil {
			logging.Error("[SyncEngine] Failed to record push failure", err,
				zap.String("record_id", op.RecordID))
		}
		outcome := telemetry.ResultFailure
		if dead {
			result.Dead++
			outcome = telemetry.ResultDead
		}
		e.metrics.RecordPush(string(op.EntityType), string(op.Action), outcome)

		logging.Warn("[SyncEngine] Push failed",
			zap.String("tenant_id", tenantID),
			zap.String("entity", string(op.EntityType)),
			zap.String("record_id", op.RecordID),
			zap.String("action", string(op.Action)),
			zap.Bool("dead", dead),
			zap.String("code", string(apperrors.CodeOf(sendErr))),
			zap.Error(sendErr),
		)
	}

	return e.finishPush(ctx, result, reason, done, nil)
}

func (e *Engine) finishPush(ctx context.Context, result *PushResult, reason TriggerReason, done func(error), err error) (*PushResult, error) {
	result.EndTime = e.now()
	result.Duration = result.EndTime.Sub(result.StartTime)

	if err != nil {
		e.recordError(ErrorRecord{Kind: KindPush}, err)
	}
	e.refreshQueueStats(ctx)

	cycleErr := err
	if cycleErr == nil && result.Failed > 0 {
		cycleErr = e.LastError()
	}
	done(cycleErr)

	event := SyncEvent{
		Kind:   KindPush,
		Reason: reason,
		Pushed: result.Pushed,
		Failed: result.Failed,
	}
	if cycleErr != nil {
		e.setStatus(SyncStatusFailed)
		event.Type = SyncEventFailed
		event.Error = cycleErr.Error()
	} else {
		end := result.EndTime
		e.mu.Lock()
		e.status = SyncStatusIdle
		e.lastSync = &end
		e.lastErr = nil
		e.mu.Unlock()
		event.Type = SyncEventCompleted
	}
	e.emitEvent(event)

	if result.Attempted > 0 || err != nil {
		logging.Info("[SyncEngine] Push finished",
			zap.String("tenant_id", e.TenantID()),
			zap.Int("attempted", result.Attempted),
			zap.Int("pushed", result.Pushed),
			zap.Int("failed", result.Failed),
			zap.Int("dead", result.Dead),
			zap.Duration("duration", result.Duration),
		)
	}
	return result, err
}

func (e *Engine) lastHistory() ErrorRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.history[len(e.history)-1]
}

// dispatch sends one row to the remote store.
func (e *Engine) dispatch(ctx context.Context, op *models.PendingOperation) error {
	tenantID := e.TenantID()
	if op.TenantID != tenantID {
		return apperrors.Newf(apperrors.ErrTenantScope, "operation %d belongs to tenant %s", op.ID, op.TenantID)
	}

	switch op.Action {
	case models.ActionUpsert:
		if op.Payload == nil {
			return apperrors.Newf(apperrors.ErrInvalid, "upsert of %s %s has no payload", op.EntityType, op.RecordID)
		}
		return e.remote.UpsertMany(ctx, tenantID, op.EntityType, []models.Record{op.Payload})

	case models.ActionDelete:
		switch op.EntityType.DeletePolicy() {
		case models.DeleteSoft:
			if op.Payload != nil {
				// tombstone upsert creates the row if it never reached the remote
				tombstone := op.Payload.Clone()
				tombstone[models.FieldIsDeleted] = true
				return e.remote.UpsertMany(ctx, tenantID, op.EntityType, []models.Record{tombstone})
			}
			return e.remote.SoftDelete(ctx, tenantID, op.EntityType, op.RecordID)
		case models.DeleteHard:
			return e.remote.HardDelete(ctx, tenantID, op.EntityType, op.RecordID)
		default:
			return apperrors.Newf(apperrors.ErrInvalid, "%s cannot be deleted", op.EntityType)
		}

	default:
		return apperrors.Newf(apperrors.ErrInvalid, "unknown action %q", op.Action)
	}
}
