package cv

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-backend/internal/editor"
	"cv-backend/internal/export"
	"cv-backend/internal/sections"
	"cv-backend/internal/session"
	"cv-backend/internal/shared/server/respond"
)

var errUnknownSection = errors.New("unknown section")

// writeError maps domain errors onto the response envelope.
func writeError(c *gin.Context, err error) {
	var (
		verr   *editor.ValidationError
		rerr   *sections.RemoteError
		experr *export.ExportError
	)
	switch {
	case errors.Is(err, sections.ErrUnauthenticated):
		respond.Error(c, http.StatusUnauthorized, "unauthenticated", "login required", nil)
	case errors.As(err, &verr):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_failed", "draft is invalid", verr.Fields)
	case errors.Is(err, errUnknownSection):
		respond.Error(c, http.StatusBadRequest, "unknown_section", err.Error(), nil)
	case errors.Is(err, session.ErrInvalidDraft):
		respond.Error(c, http.StatusBadRequest, "invalid_draft", err.Error(), nil)
	case errors.Is(err, editor.ErrItemNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "item not found", nil)
	case errors.Is(err, editor.ErrBusy):
		respond.Error(c, http.StatusConflict, "busy", "a save is in progress", nil)
	case errors.Is(err, editor.ErrInvalidTransition):
		respond.Error(c, http.StatusConflict, "invalid_transition", err.Error(), nil)
	case errors.Is(err, export.ErrExportInProgress):
		respond.Error(c, http.StatusConflict, "export_in_progress", "an export is already running", nil)
	case errors.As(err, &rerr) && sections.IsForbidden(err):
		respond.Error(c, http.StatusNotFound, "not_found", "record not found for this user", nil)
	case errors.As(err, &rerr):
		respond.Error(c, http.StatusBadGateway, "remote_failed", rerr.Error(), gin.H{"op": rerr.Op, "section": rerr.Section})
	case errors.As(err, &experr):
		respond.Error(c, http.StatusInternalServerError, "export_failed", experr.Error(), gin.H{"stage": experr.Stage})
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
