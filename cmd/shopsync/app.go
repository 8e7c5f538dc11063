package main

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/assistpro/shopsync/internal/config"
	"github.com/assistpro/shopsync/internal/db"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/services"
	"github.com/assistpro/shopsync/internal/sync/remote"
	"github.com/assistpro/shopsync/internal/telemetry"
)

// app owns the process resources a command needs: the local database, the
// remote connection, the metrics registry and the tenant session.
type app struct {
	cfg     *config.Config
	local   *db.DB
	gdb     *gorm.DB
	remote  *remote.Adapter
	metrics *telemetry.Metrics
	session *services.Session
}

// openRemote connects to the remote store only.
func openRemote(cfg *config.Config) (*gorm.DB, *remote.Adapter, error) {
	gdb, err := remote.Open(cfg.Remote)
	if err != nil {
		return nil, nil, err
	}
	return gdb, remote.NewAdapter(gdb, cfg.Remote.Timeout), nil
}

// openApp opens everything for the selected tenant. The session is not
// started; serve starts it, one-shot commands drive the engine directly.
func openApp(opts *RootOptions) (*app, error) {
	tenantID, err := opts.requireTenant()
	if err != nil {
		return nil, err
	}
	cfg := opts.cfg

	local, err := db.Open(cfg.App.DataDir)
	if err != nil {
		return nil, err
	}

	gdb, adapter, err := openRemote(cfg)
	if err != nil {
		local.Close()
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(cfg.Metrics.Prefix, registry)
	adapter.WithMetrics(metrics)

	session, err := services.OpenSession(local, tenantID, adapter, services.SessionConfig{
		Sync:    cfg.Sync,
		Metrics: metrics,
	})
	if err != nil {
		remote.Close(gdb)
		local.Close()
		return nil, err
	}

	return &app{
		cfg:     cfg,
		local:   local,
		gdb:     gdb,
		remote:  adapter,
		metrics: metrics,
		session: session,
	}, nil
}

func (a *app) Close() {
	a.session.Close()
	if err := remote.Close(a.gdb); err != nil {
		logging.Warn("[CLI] Failed to close remote store", zap.Error(err))
	}
	if err := a.local.Close(); err != nil {
		logging.Warn("[CLI] Failed to close local database", zap.Error(err))
	}
}
