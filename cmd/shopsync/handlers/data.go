package handlers

import (
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "github.com/assistpro/shopsync/internal/errors"
	"github.com/assistpro/shopsync/internal/models"
	"github.com/assistpro/shopsync/internal/services"
)

// maxRecordBytes bounds a record document; photos travel inline as data URLs.
const maxRecordBytes = 8 << 20

// ListRecords handles GET /data/:entity.
func (h *SyncHandler) ListRecords(c echo.Context) error {
	entity, err := services.ParseWritableEntity(c.Param("entity"))
	if err != nil {
		return h.fail(c, err)
	}
	recs, err := h.session.Data.List(c.Request().Context(), entity)
	if err != nil {
		return h.fail(c, err)
	}
	if recs == nil {
		recs = []models.Record{}
	}
	return c.JSON(http.StatusOK, recs)
}

// GetRecord handles GET /data/:entity/:id.
func (h *SyncHandler) GetRecord(c echo.Context) error {
	entity, err := services.ParseWritableEntity(c.Param("entity"))
	if err != nil {
		return h.fail(c, err)
	}
	rec, err := h.session.Data.GetRaw(c.Request().Context(), entity, c.Param("id"))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, rec)
}

// SaveRecord handles POST /data/:entity. The record is written locally with
// its queue row and the scheduler is woken; the response never waits on the
// remote store.
func (h *SyncHandler) SaveRecord(c echo.Context) error {
	entity, err := services.ParseWritableEntity(c.Param("entity"))
	if err != nil {
		return h.fail(c, err)
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxRecordBytes))
	if err != nil {
		return h.fail(c, apperrors.Wrap(apperrors.ErrInvalid, "failed to read body", err))
	}
	rec, err := models.DecodeRecord(body)
	if err != nil {
		return h.fail(c, apperrors.Wrap(apperrors.ErrInvalid, "invalid record", err))
	}

	saved, err := h.session.Data.SaveEntity(c.Request().Context(), entity, rec)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusCreated, saved)
}

// DeleteRecord handles DELETE /data/:entity/:id.
func (h *SyncHandler) DeleteRecord(c echo.Context) error {
	entity, err := services.ParseWritableEntity(c.Param("entity"))
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.session.Data.DeleteEntity(c.Request().Context(), entity, c.Param("id")); err != nil {
		return h.fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
