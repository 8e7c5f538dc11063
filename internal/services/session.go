package services

import (
	"context"
	stdsync "sync"

	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/config"
	"github.com/assistpro/shopsync/internal/db"
	"github.com/assistpro/shopsync/internal/logging"
	syncpkg "github.com/assistpro/shopsync/internal/sync"
	"github.com/assistpro/shopsync/internal/sync/conflict"
	"github.com/assistpro/shopsync/internal/sync/queue"
	"github.com/assistpro/shopsync/internal/sync/scheduler"
	"github.com/assistpro/shopsync/internal/telemetry"
)

// SessionConfig configures a tenant session.
type SessionConfig struct {
	Sync    config.SyncConfig
	Metrics *telemetry.Metrics
}

// Session wires the store, queue, engine, scheduler and data service for
// one tenant. Switching tenants means closing one session and opening
// another; nothing is shared between sessions except the database.
type Session struct {
	Store     *db.TenantStore
	Queue     *queue.Queue
	Engine    *syncpkg.Engine
	Scheduler *scheduler.Scheduler
	Data      *DataService

	mu      stdsync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// OpenSession binds a session to tenantID. The sync loops do not run until
// Start.
func OpenSession(database *db.DB, tenantID string, remote syncpkg.RemoteStore, cfg SessionConfig) (*Session, error) {
	store, err := db.NewTenantStore(database, tenantID)
	if err != nil {
		return nil, err
	}

	q := queue.New(database, queue.Config{
		MaxAttempts: cfg.Sync.MaxAttempts,
		BackoffBase: cfg.Sync.BackoffBase,
		BackoffMax:  cfg.Sync.BackoffMax,
	})
	engine := syncpkg.NewEngine(store, q, remote, syncpkg.Options{
		Resolver: conflict.NewResolver(conflict.ResolutionStrategy(cfg.Sync.ConflictStrategy)),
		Metrics:  cfg.Metrics,
	})
	sched := scheduler.NewScheduler(engine, remote, &scheduler.SchedulerConfig{
		SyncInterval:  cfg.Sync.Interval,
		ProbeInterval: cfg.Sync.ProbeInterval,
	})

	logging.Info("[Session] Opened", zap.String("tenant_id", tenantID))
	return &Session{
		Store:     store,
		Queue:     q,
		Engine:    engine,
		Scheduler: sched,
		Data:      NewDataService(store, q, sched),
	}, nil
}

// TenantID returns the session's tenant.
func (s *Session) TenantID() string {
	return s.Store.TenantID()
}

// Start runs the engine loop and the scheduler until Close or ctx ends.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.Engine.Run(runCtx)
	}()
	s.Scheduler.Start(runCtx)
}

// Close stops the scheduler and waits for the engine loop to exit. A cycle
// in flight is cancelled; its queue rows stay for the next session.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.started = false

	s.Scheduler.Stop()
	s.cancel()
	<-s.done
	logging.Info("[Session] Closed", zap.String("tenant_id", s.TenantID()))
}
