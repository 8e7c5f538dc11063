// Package handlers serves the local daemon surface: health, metrics, the
// status indicator, queue administration, record writes and the event stream.
package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/logging"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/services"
	syncpkg "github.com/assistpro/shopsync/internal/sync"
	"github.com/assistpro/shopsync/internal/sync/scheduler"
	"github.com/assistpro/shopsync/internal/telemetry"
)

// SyncHandler exposes one tenant session over HTTP.
type SyncHandler struct {
	session *services.Session
	hub     *WSHub
}

// NewSyncHandler creates a SyncHandler. hub may be nil, which disables /ws.
func NewSyncHandler(session *services.Session, hub *WSHub) *SyncHandler {
	return &SyncHandler{session: session, hub: hub}
}

// Register mounts the sync routes on e.
func Register(e *echo.Echo, h *SyncHandler, metrics *telemetry.Metrics) {
	e.GET("/health", h.Health)
	if metrics != nil {
		e.GET("/metrics", metrics.Handler())
	}

	g := e.Group("/sync")
	g.GET("/status", h.Status)
	g.POST("/wake", h.Wake)
	g.POST("/connectivity", h.SetConnectivity)
	g.GET("/queue", h.ListQueue)
	g.POST("/queue/retry", h.RetryDead)
	g.DELETE("/queue/:id", h.Discard)

	d := e.Group("/data")
	d.GET("/:entity", h.ListRecords)
	d.GET("/:entity/:id", h.GetRecord)
	d.POST("/:entity", h.SaveRecord)
	d.DELETE("/:entity/:id", h.DeleteRecord)

	if h.hub != nil {
		e.GET("/ws", h.hub.HandleWebSocket)
	}
}

// StatusResponse is the body of GET /sync/status.
type StatusResponse struct {
	Scheduler scheduler.SchedulerStatus `json:"scheduler"`
	Engine    syncpkg.Snapshot          `json:"engine"`
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// Health handles GET /health.
func (h *SyncHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":    "ok",
		"tenant_id": h.session.TenantID(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

// Status handles GET /sync/status.
func (h *SyncHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, StatusResponse{
		Scheduler: h.session.Scheduler.Status(),
		Engine:    h.session.Engine.Snapshot(c.Request().Context()),
	})
}

// Wake handles POST /sync/wake.
func (h *SyncHandler) Wake(c echo.Context) error {
	h.session.Scheduler.Wake()
	return c.JSON(http.StatusAccepted, map[string]string{"status": "triggered"})
}

// SetConnectivity handles POST /sync/connectivity with {"online": bool}.
func (h *SyncHandler) SetConnectivity(c echo.Context) error {
	var req struct {
		Online *bool `json:"online"`
	}
	if err := c.Bind(&req); err != nil || req.Online == nil {
		return h.fail(c, apperrors.New(apperrors.ErrInvalid, `body must be {"online": true|false}`))
	}
	h.session.Scheduler.SetOnlineStatus(*req.Online)
	return c.JSON(http.StatusOK, map[string]bool{"online": h.session.Scheduler.IsOnline()})
}

// ListQueue handles GET /sync/queue?status=pending|dead.
func (h *SyncHandler) ListQueue(c echo.Context) error {
	status := models.OperationStatus(c.QueryParam("status"))
	switch status {
	case "", models.OperationPending, models.OperationDead:
	default:
		return h.fail(c, apperrors.Newf(apperrors.ErrInvalid, "unknown status %q", status))
	}

	ops, err := h.session.Queue.List(c.Request().Context(), h.session.TenantID(), status)
	if err != nil {
		return h.fail(c, err)
	}
	if ops == nil {
		ops = []models.PendingOperation{}
	}
	return c.JSON(http.StatusOK, ops)
}

// RetryDead handles POST /sync/queue/retry.
func (h *SyncHandler) RetryDead(c echo.Context) error {
	n, err := h.session.Queue.RetryDead(c.Request().Context(), h.session.TenantID())
	if err != nil {
		return h.fail(c, err)
	}
	if n > 0 {
		h.session.Scheduler.Wake()
	}
	return c.JSON(http.StatusOK, map[string]int{"requeued": n})
}

// Discard handles DELETE /sync/queue/:id.
func (h *SyncHandler) Discard(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return h.fail(c, apperrors.Newf(apperrors.ErrInvalid, "invalid operation id %q", c.Param("id")))
	}
	if err := h.session.Queue.Discard(c.Request().Context(), h.session.TenantID(), id); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *SyncHandler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logging.FromEcho(c).Error("[HTTP] Request failed", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.JSON(status, errorResponse{Error: err.Error(), Code: string(apperrors.CodeOf(err))})
}

func statusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrInvalid:
		return http.StatusBadRequest
	case apperrors.ErrNotFound:
		return http.StatusNotFound
	case apperrors.ErrPermission, apperrors.ErrTenantScope:
		return http.StatusForbidden
	case apperrors.ErrSyncInProgress:
		return http.StatusConflict
	case apperrors.ErrRemote, apperrors.ErrRemoteTimeout:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
