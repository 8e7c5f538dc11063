// Package scheduler turns host signals into sync triggers: connectivity
// changes, wake/foreground events, post-write calls and a periodic tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
	syncpkg "github.com/assistpro/shopsync/internal/sync"
)

// Pinger checks whether the remote store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Scheduler posts triggers to the engine. It holds no sync state of its
// own apart from the online flag.
type Scheduler struct {
	engine        syncpkg.SyncEngineInterface
	pinger        Pinger
	syncInterval  time.Duration
	probeInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	mu            sync.RWMutex
	isRunning     bool
	isOnline      bool
	lastProbe     time.Time
	lastTrigger   time.Time
	lastReason    syncpkg.TriggerReason
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	SyncInterval  time.Duration // periodic trigger while online (default: 5 minutes)
	ProbeInterval time.Duration // remote reachability check (default: 30 seconds, 0 disables)
}

// DefaultSchedulerConfig returns default scheduler configuration.
func DefaultSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		SyncInterval:  5 * time.Minute,
		ProbeInterval: 30 * time.Second,
	}
}

// NewScheduler creates a Scheduler. pinger may be nil, in which case only
// SetOnlineStatus changes the online flag.
func NewScheduler(engine syncpkg.SyncEngineInterface, pinger Pinger, config *SchedulerConfig) *Scheduler {
	if config == nil {
		config = DefaultSchedulerConfig()
	}
	return &Scheduler{
		engine:        engine,
		pinger:        pinger,
		syncInterval:  config.SyncInterval,
		probeInterval: config.ProbeInterval,
		isOnline:      true, // assume online until a probe or the host says otherwise
	}
}

// Start launches the periodic and probe loops and posts a startup wake.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if s.syncInterval > 0 {
		s.wg.Add(1)
		go s.periodicLoop(ctx, stopCh)
	}
	if s.pinger != nil && s.probeInterval > 0 {
		s.wg.Add(1)
		go s.probeLoop(ctx, stopCh)
	}

	logging.Info("[Scheduler] Started",
		zap.Duration("sync_interval", s.syncInterval),
		zap.Duration("probe_interval", s.probeInterval))
	s.Wake()
}

// Stop stops the loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	logging.Info("[Scheduler] Stopped")
}

// SetOnlineStatus records a platform online/offline event. Coming back
// online posts connectivity_restored.
func (s *Scheduler) SetOnlineStatus(isOnline bool) {
	s.mu.Lock()
	wasOnline := s.isOnline
	s.isOnline = isOnline
	s.mu.Unlock()

	if wasOnline == isOnline {
		return
	}
	logging.Info("[Scheduler] Online status changed",
		zap.Bool("was_online", wasOnline),
		zap.Bool("is_online", isOnline))
	if isOnline {
		s.trigger(syncpkg.TriggerConnectivityRestored)
	}
}

// Wake handles a host wake, refresh or foreground signal.
func (s *Scheduler) Wake() {
	if !s.IsOnline() {
		logging.Debug("[Scheduler] Skipping wake while offline")
		return
	}
	s.trigger(syncpkg.TriggerWake)
}

// NotifyWrite is called after a local mutation committed. While offline the
// queue keeps the row and connectivity_restored picks it up.
func (s *Scheduler) NotifyWrite(entity models.EntityType) {
	if !s.IsOnline() {
		logging.Debug("[Scheduler] Write queued while offline", zap.String("entity", string(entity)))
		return
	}
	s.trigger(syncpkg.TriggerLocalWrite)
}

func (s *Scheduler) trigger(reason syncpkg.TriggerReason) {
	s.mu.Lock()
	s.lastTrigger = time.Now()
	s.lastReason = reason
	s.mu.Unlock()
	s.engine.Trigger(reason)
}

func (s *Scheduler) periodicLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.syncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.IsOnline() {
				continue
			}
			s.trigger(syncpkg.TriggerPeriodic)
		}
	}
}

func (s *Scheduler) probeLoop(ctx context.Context, stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.probeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.Probe(ctx)
		}
	}
}

// Probe pings the remote once and feeds the result to SetOnlineStatus.
func (s *Scheduler) Probe(ctx context.Context) bool {
	if s.pinger == nil {
		return s.IsOnline()
	}
	timeout := s.probeInterval
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.pinger.Ping(probeCtx)
	s.mu.Lock()
	s.lastProbe = time.Now()
	s.mu.Unlock()

	if err != nil {
		logging.Debug("[Scheduler] Remote unreachable", zap.Error(err))
	}
	s.SetOnlineStatus(err == nil)
	return err == nil
}

// SchedulerStatus is what the sync-status indicator shows.
type SchedulerStatus struct {
	IsRunning      bool                  `json:"isRunning"`
	IsOnline       bool                  `json:"isOnline"`
	SyncStatus     syncpkg.SyncStatus    `json:"syncStatus"`
	LastSyncTime   *time.Time            `json:"lastSyncTime,omitempty"`
	LastProbe      *time.Time            `json:"lastProbe,omitempty"`
	LastTrigger    *time.Time            `json:"lastTrigger,omitempty"`
	LastReason     syncpkg.TriggerReason `json:"lastReason,omitempty"`
	PendingChanges int                   `json:"pendingChanges"`
	LastError      string                `json:"lastError,omitempty"`
}

// Status returns the current status of the scheduler and its engine.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.RLock()
	status := SchedulerStatus{
		IsRunning:  s.isRunning,
		IsOnline:   s.isOnline,
		LastReason: s.lastReason,
	}
	if !s.lastProbe.IsZero() {
		t := s.lastProbe
		status.LastProbe = &t
	}
	if !s.lastTrigger.IsZero() {
		t := s.lastTrigger
		status.LastTrigger = &t
	}
	s.mu.RUnlock()

	status.SyncStatus = s.engine.Status()
	status.LastSyncTime = s.engine.LastSync()
	status.PendingChanges = s.engine.PendingChanges()
	if err := s.engine.LastError(); err != nil {
		status.LastError = err.Error()
	}
	return status
}

// IsOnline returns whether the scheduler is in online mode.
func (s *Scheduler) IsOnline() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isOnline
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}
