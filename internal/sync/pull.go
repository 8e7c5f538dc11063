package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/assistpro/shopsync/internal/db"
	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/sync/conflict"
)

// pull fetches every entity type in parallel and then replaces the local
// copy entity by entity. Nothing is written unless every fetch succeeded.
func (e *Engine) pull(ctx context.Context, reason TriggerReason) (*PullResult, error) {
	tenantID := e.TenantID()
	done := e.metrics.TrackCycle(KindPull)
	result := &PullResult{StartTime: e.now(), Fetched: make(map[string]int)}

	e.setStatus(SyncStatusPulling)
	e.emitEvent(SyncEvent{Type: SyncEventStarted, Kind: KindPull, Reason: reason})

	fetched := make([][]models.Record, len(models.Entities))
	skipped := make([][]string, len(models.Entities))
	g, gctx := errgroup.WithContext(ctx)
	for i, entity := range models.Entities {
		i, entity := i, entity
		g.Go(func() error {
			records, err := e.remote.FetchAll(gctx, tenantID, entity)
			var partial PartialFetch
			if errors.As(err, &partial) {
				logging.Warn("Pulling without untranslatable rows",
					zap.String("entity", string(entity)),
					zap.Strings("skipped", partial.SkippedIDs()),
				)
				skipped[i] = partial.SkippedIDs()
				err = nil
			}
			if err != nil {
				return err
			}
			fetched[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return e.finishPull(ctx, result, reason, done, err)
	}

	for i, entity := range models.Entities {
		result.Fetched[string(entity)] = len(fetched[i])
		result.Skipped += len(skipped[i])
		if err := e.hydrate(ctx, entity, fetched[i], skipped[i], result); err != nil {
			return e.finishPull(ctx, result, reason, done, err)
		}
		e.metrics.RecordPull(string(entity), len(fetched[i]))
	}
	return e.finishPull(ctx, result, reason, done, nil)
}

// hydrate applies one entity's remote set in a single local transaction.
// Records with a queued local mutation are never overwritten blindly: the
// resolver decides, and by default the local edit stays until it is pushed.
// Local rows missing remotely are pruned unless they are pending or were
// skipped by the fetch.
func (e *Engine) hydrate(ctx context.Context, entity models.EntityType, remote []models.Record, skipped []string, result *PullResult) error {
	tenantID := e.TenantID()

	return e.store.WithTx(ctx, func(tx *db.TenantStore) error {
		pending, err := e.queue.PendingRecordIDsTx(ctx, tx.Querier(), tenantID, entity)
		if err != nil {
			return err
		}

		keep := make(map[string]struct{}, len(remote)+len(pending))
		writes := make([]models.Record, 0, len(remote))
		for _, rec := range remote {
			if entity.IsSingleton() {
				rec = rec.Clone()
				rec[models.FieldID] = models.SettingsID
			}
			id := rec.ID()
			if id == "" {
				continue
			}
			keep[id] = struct{}{}

			if _, shadowed := pending[id]; !shadowed {
				writes = append(writes, rec)
				continue
			}

			won, err := e.resolve(ctx, tx, entity, rec, result)
			if err != nil {
				return err
			}
			if won {
				writes = append(writes, rec)
			}
		}
		for id := range pending {
			keep[id] = struct{}{}
		}
		prune := true
		for _, id := range skipped {
			if id == "" {
				prune = false
			}
			keep[id] = struct{}{}
		}

		if err := tx.BulkPut(ctx, entity, writes); err != nil {
			return err
		}
		result.Applied += len(writes)

		// a tenant that never pushed settings keeps its local copy
		if !prune || (entity.IsSingleton() && len(remote) == 0) {
			return nil
		}
		removed, err := tx.Prune(ctx, entity, keep)
		if err != nil {
			return err
		}
		result.Pruned += removed
		return nil
	})
}

// resolve runs the conflict policy for a pulled record that has a pending
// local mutation. It reports whether the remote version should be written.
func (e *Engine) resolve(ctx context.Context, tx *db.TenantStore, entity models.EntityType, remote models.Record, result *PullResult) (bool, error) {
	local, err := tx.Get(ctx, entity, remote.ID())
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrNotFound) {
			return false, err
		}
		local = nil
	}

	c, ok := e.resolver.DetectConflict(e.TenantID(), entity, local, remote)
	if !ok {
		return false, nil
	}
	res, err := e.resolver.Resolve(c)
	if err != nil {
		return false, err
	}
	result.Conflicts++
	e.metrics.RecordConflict(string(res.Strategy), string(res.Side))
	if err := tx.LogConflict(ctx, res.ConflictLog); err != nil {
		return false, err
	}

	if res.Side != conflict.SideRemote {
		return false, nil
	}
	if err := e.queue.SupersedeTx(ctx, tx.Querier(), e.TenantID(), entity, remote.ID()); err != nil {
		return false, err
	}
	return true, nil
}

func (e *Engine) finishPull(ctx context.Context, result *PullResult, reason TriggerReason, done func(error), err error) (*PullResult, error) {
	result.EndTime = e.now()
	result.Duration = result.EndTime.Sub(result.StartTime)
	done(err)
	e.refreshQueueStats(ctx)

	if err != nil {
		e.recordError(ErrorRecord{Kind: KindPull}, err)
		e.setStatus(SyncStatusFailed)
		e.emitEvent(SyncEvent{Type: SyncEventFailed, Kind: KindPull, Reason: reason, Error: err.Error()})
		logging.Warn("[SyncEngine] Pull failed",
			zap.String("tenant_id", e.TenantID()),
			zap.String("code", string(apperrors.CodeOf(err))),
			zap.Error(err),
		)
		return result, err
	}

	end := result.EndTime
	e.mu.Lock()
	e.status = SyncStatusIdle
	e.lastPull = &end
	e.mu.Unlock()
	e.emitEvent(SyncEvent{Type: SyncEventPullCompleted, Kind: KindPull, Reason: reason, Pulled: result.Applied})

	logging.Info("[SyncEngine] Pull finished",
		zap.String("tenant_id", e.TenantID()),
		zap.Int("applied", result.Applied),
		zap.Int("pruned", result.Pruned),
		zap.Int("conflicts", result.Conflicts),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}
