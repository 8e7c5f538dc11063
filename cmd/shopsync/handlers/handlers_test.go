package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/assistpro/shopsync/internal/config"
	"github.com/assistpro/shopsync/internal/db"
	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/services"
	syncpkg "github.com/assistpro/shopsync/internal/sync"
	"github.com/assistpro/shopsync/internal/sync/remote"
	"github.com/assistpro/shopsync/internal/telemetry"
)

const tenant = "tenant-http"

type testServer struct {
	echo    *echo.Echo
	session *services.Session
	hub     *WSHub
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "remote.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() { remote.Close(gdb) })
	adapter := remote.NewAdapter(gdb, 5*time.Second)
	require.NoError(t, adapter.AutoMigrate(context.Background()))

	database, err := db.OpenPath(filepath.Join(t.TempDir(), "local.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	metrics := telemetry.New("shopsync_test", prometheus.NewRegistry())
	session, err := services.OpenSession(database, tenant, adapter, services.SessionConfig{
		Sync: config.SyncConfig{
			Interval:         time.Hour,
			ProbeInterval:    time.Hour,
			MaxAttempts:      3,
			BackoffBase:      time.Millisecond,
			BackoffMax:       time.Millisecond,
			ConflictStrategy: config.StrategyPendingWins,
		},
		Metrics: metrics,
	})
	require.NoError(t, err)

	hub := NewWSHub()
	t.Cleanup(hub.Close)

	e := echo.New()
	e.Use(metrics.Middleware())
	Register(e, NewSyncHandler(session, hub), metrics)
	return &testServer{echo: e, session: session, hub: hub}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

// deadOperation queues an order edit and dead-letters it.
func (s *testServer) deadOperation(t *testing.T) models.PendingOperation {
	t.Helper()
	ctx := context.Background()
	order, err := s.session.Data.SaveOrder(ctx, models.ServiceOrder{CustomerName: "Ana", Photos: []string{}})
	require.NoError(t, err)

	op, err := s.session.Queue.Get(ctx, tenant, models.EntityOrders, order.ID)
	require.NoError(t, err)
	dead, err := s.session.Queue.MarkFailed(ctx, op, apperrors.New(apperrors.ErrInvalid, "rejected"))
	require.NoError(t, err)
	require.True(t, dead)
	return *op
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, tenant, body["tenant_id"])
}

func TestMetrics(t *testing.T) {
	s := newTestServer(t)
	s.do(t, http.MethodGet, "/health", "")

	rec := s.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "shopsync_test_")
}

func TestStatus_reportsQueueCounts(t *testing.T) {
	s := newTestServer(t)
	s.deadOperation(t)

	rec := s.do(t, http.MethodGet, "/sync/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, tenant, body.Engine.TenantID)
	assert.Equal(t, syncpkg.SyncStatusIdle, body.Engine.Status)
	assert.Equal(t, 1, body.Engine.Dead)
	assert.Equal(t, 0, body.Engine.Pending)
	assert.True(t, body.Scheduler.IsOnline)
	assert.False(t, body.Scheduler.IsRunning)
}

func TestWake(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/sync/wake", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, syncpkg.TriggerWake, s.session.Scheduler.Status().LastReason)
}

func TestSetConnectivity(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/sync/connectivity", `{"online":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, s.session.Scheduler.IsOnline())

	rec = s.do(t, http.MethodPost, "/sync/connectivity", `{"online":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, s.session.Scheduler.IsOnline())
	assert.Equal(t, syncpkg.TriggerConnectivityRestored, s.session.Scheduler.Status().LastReason)

	rec = s.do(t, http.MethodPost, "/sync/connectivity", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), string(apperrors.ErrInvalid))
}

func TestListQueue(t *testing.T) {
	s := newTestServer(t)
	dead := s.deadOperation(t)

	rec := s.do(t, http.MethodGet, "/sync/queue?status=dead", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ops []models.PendingOperation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ops))
	require.Len(t, ops, 1)
	assert.Equal(t, dead.ID, ops[0].ID)
	assert.Equal(t, models.OperationDead, ops[0].Status)

	rec = s.do(t, http.MethodGet, "/sync/queue?status=pending", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/sync/queue?status=stuck", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryDead(t *testing.T) {
	s := newTestServer(t)
	s.deadOperation(t)

	rec := s.do(t, http.MethodPost, "/sync/queue/retry", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"requeued":1}`, rec.Body.String())

	stats, err := s.session.Queue.GetStats(context.Background(), tenant)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Pending)
	assert.Equal(t, 0, stats.Dead)
}

func TestDiscard(t *testing.T) {
	s := newTestServer(t)
	dead := s.deadOperation(t)
	target := "/sync/queue/" + strconv.FormatInt(dead.ID, 10)

	rec := s.do(t, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodDelete, target, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/sync/queue/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		code apperrors.ErrorCode
		want int
	}{
		{apperrors.ErrInvalid, http.StatusBadRequest},
		{apperrors.ErrNotFound, http.StatusNotFound},
		{apperrors.ErrTenantScope, http.StatusForbidden},
		{apperrors.ErrSyncInProgress, http.StatusConflict},
		{apperrors.ErrRemoteTimeout, http.StatusBadGateway},
		{apperrors.ErrDatabase, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(apperrors.New(tt.code, "x")))
		})
	}
}

func dialWS(t *testing.T, s *testServer) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.echo)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return s.hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(msg, v))
}

func TestWebSocket_broadcastsSyncEvents(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	s.hub.OnSyncEvent(syncpkg.SyncEvent{
		Type:      syncpkg.SyncEventCompleted,
		Kind:      syncpkg.KindPush,
		TenantID:  tenant,
		Pushed:    2,
		Timestamp: time.Now(),
	})

	var env WSEnvelope
	readJSON(t, conn, &env)
	assert.Equal(t, string(syncpkg.SyncEventCompleted), env.Type)
	assert.Equal(t, 2, env.Data.Pushed)
	assert.Equal(t, tenant, env.Data.TenantID)
}

func TestWebSocket_subscriptionFilters(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	require.NoError(t, conn.WriteJSON(map[string]any{
		"action": "subscribe",
		"events": []string{string(syncpkg.SyncEventPullCompleted)},
	}))
	var ack map[string]any
	readJSON(t, conn, &ack)
	assert.Equal(t, "subscribe_ack", ack["action"])

	s.hub.OnSyncEvent(syncpkg.SyncEvent{Type: syncpkg.SyncEventStarted, Timestamp: time.Now()})
	s.hub.OnSyncEvent(syncpkg.SyncEvent{Type: syncpkg.SyncEventPullCompleted, Pulled: 5, Timestamp: time.Now()})

	var env WSEnvelope
	readJSON(t, conn, &env)
	assert.Equal(t, string(syncpkg.SyncEventPullCompleted), env.Type)
	assert.Equal(t, 5, env.Data.Pulled)
}

func TestWebSocket_closeDisconnectsClients(t *testing.T) {
	s := newTestServer(t)
	conn := dialWS(t, s)

	s.hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, s.hub.ClientCount())
}

func TestSaveRecord_queuesAndWakesScheduler(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/data/customers", `{"name":"Ana","phoneNumber":"119"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var saved models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &saved))
	require.NotEmpty(t, saved.ID())
	assert.Equal(t, tenant, saved.TenantID())

	ops, err := s.session.Queue.List(context.Background(), tenant, models.OperationPending)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, saved.ID(), ops[0].RecordID)
	assert.Equal(t, models.ActionUpsert, ops[0].Action)
	assert.Equal(t, syncpkg.TriggerLocalWrite, s.session.Scheduler.Status().LastReason)

	rec = s.do(t, http.MethodGet, "/data/customers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Ana", list[0]["name"])

	rec = s.do(t, http.MethodDelete, "/data/customers/"+saved.ID(), "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/data/customers", "")
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/data/customers/"+saved.ID(), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tombstone models.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tombstone))
	assert.True(t, tombstone.IsDeleted())
}

func TestDataRoutes_rejectBadInput(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"unknown entity", http.MethodPost, "/data/invoices", `{}`, http.StatusBadRequest},
		{"users are not writable", http.MethodPost, "/data/users", `{"name":"x"}`, http.StatusForbidden},
		{"users are not listed", http.MethodGet, "/data/users", "", http.StatusForbidden},
		{"malformed json", http.MethodPost, "/data/orders", `{"customerName":`, http.StatusBadRequest},
		{"delete missing record", http.MethodDelete, "/data/orders/nope", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.target, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestWSClient_replyAfterClose(t *testing.T) {
	c := &WSClient{id: "c1", send: make(chan []byte, 1), subscriptions: map[string]bool{}}

	assert.True(t, c.trySend([]byte("one")))
	assert.False(t, c.trySend([]byte("two")), "full buffer")

	c.close()
	c.close()
	assert.NotPanics(t, func() {
		c.reply(map[string]any{"action": "pong"})
	})
	assert.False(t, c.trySend([]byte("three")))

	msg, ok := <-c.send
	assert.True(t, ok)
	assert.Equal(t, "one", string(msg))
	_, ok = <-c.send
	assert.False(t, ok)
}

func TestLocalOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:5173", true},
		{"http://127.0.0.1:8765", true},
		{"https://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://127.0.0.1:8765/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, localOrigin(req), tt.origin)
	}
}
