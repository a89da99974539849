// Package cv exposes the CV editing session over HTTP.
package cv

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cv-backend/internal/sections"
	"cv-backend/internal/session"
	"cv-backend/internal/shared/server/middleware"
	"cv-backend/internal/shared/server/respond"
	"cv-backend/internal/shared/telemetry"
)

const (
	transitionKey = "editorTransition"
	maxDraftBytes = 256 << 10
)

type Handler struct {
	Sessions *session.Manager
}

func NewHandler(m *session.Manager) *Handler {
	return &Handler{Sessions: m}
}

// RegisterRoutes mounts the CV routes. export may carry extra middleware
// such as a rate limiter for the export endpoint.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup, export ...gin.HandlerFunc) {
	cv := rg.Group("/cv")
	cv.GET("", h.load)
	cv.GET("/cached", h.cached)
	cv.DELETE("/session", h.endSession)
	cv.PUT("/personal-info", h.savePersonalInfo)
	cv.GET("/preview", h.preview)
	cv.GET("/preview.html", h.previewHTML)
	cv.POST("/export", append(export, h.export)...)

	sec := cv.Group("/sections/:section")
	sec.GET("", h.listSection)
	sec.DELETE("/items/:id", h.removeLocal)

	ed := sec.Group("/editor")
	ed.GET("", h.editorState)
	ed.POST("/add", h.transition("add", func(c *gin.Context, e session.SectionEditor) error {
		return e.OpenAdd()
	}))
	ed.POST("/edit/:id", h.transition("edit", func(c *gin.Context, e session.SectionEditor) error {
		return e.OpenEdit(c.Param("id"))
	}))
	ed.PUT("/draft", h.transition("draft", func(c *gin.Context, e session.SectionEditor) error {
		raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxDraftBytes))
		if err != nil {
			return fmt.Errorf("%w: %v", session.ErrInvalidDraft, err)
		}
		return e.SetDraftJSON(raw)
	}))
	ed.POST("/cancel", h.transition("cancel", func(c *gin.Context, e session.SectionEditor) error {
		return e.Cancel()
	}))
	ed.POST("/delete", h.transition("delete", func(c *gin.Context, e session.SectionEditor) error {
		return e.RequestDelete()
	}))
	ed.POST("/delete/confirm", h.transition("delete_confirm", func(c *gin.Context, e session.SectionEditor) error {
		return e.ConfirmDelete(c.Request.Context())
	}))
	ed.POST("/delete/cancel", h.transition("delete_cancel", func(c *gin.Context, e session.SectionEditor) error {
		return e.CancelDelete()
	}))
	ed.POST("/save", h.save)
}

func (h *Handler) currentSession(c *gin.Context) (*session.Session, bool) {
	s, err := h.Sessions.Get(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return s, true
}

// sectionEditor resolves the :section param and makes sure the list has been
// loaded once. A failed load is logged and the controller runs unloaded,
// which disables orphan reconciliation until the next successful load.
func (h *Handler) sectionEditor(c *gin.Context) (*session.Session, session.SectionEditor, bool) {
	s, ok := h.currentSession(c)
	if !ok {
		return nil, nil, false
	}
	kind, known := sections.ParseKind(c.Param("section"))
	e, hasEditor := s.Editor(kind)
	if !known || !hasEditor {
		writeError(c, fmt.Errorf("%w: %q", errUnknownSection, c.Param("section")))
		return nil, nil, false
	}
	c.Set(middleware.SectionKey, string(kind))
	if !e.Loaded() {
		if err := s.EnsureLoaded(c.Request.Context()); err != nil {
			telemetry.Warn("cv.load_deferred", map[string]any{"user_id": s.OwnerID(), "section": kind, "error": err})
		}
	}
	return s, e, true
}

func (h *Handler) load(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	doc, err := s.Refresh(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"document": doc, "source": s.Source()})
}

func (h *Handler) cached(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	respond.OK(c, gin.H{"document": s.Document(), "source": s.Source()})
}

func (h *Handler) endSession(c *gin.Context) {
	owner := middleware.UserIDFromContext(c)
	if owner == "" {
		writeError(c, sections.ErrUnauthenticated)
		return
	}
	h.Sessions.End(owner)
	c.Status(http.StatusNoContent)
}

func (h *Handler) savePersonalInfo(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	c.Set(middleware.SectionKey, string(sections.KindPersonalInfo))
	var info sections.PersonalInfo
	if err := c.ShouldBindJSON(&info); err != nil {
		writeError(c, fmt.Errorf("%w: %v", session.ErrInvalidDraft, err))
		return
	}
	saved, err := s.SavePersonalInfo(c.Request.Context(), info)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, gin.H{"personalInfo": saved})
}

func (h *Handler) listSection(c *gin.Context) {
	_, e, ok := h.sectionEditor(c)
	if !ok {
		return
	}
	respond.OK(c, gin.H{"section": e.Kind(), "items": e.Items()})
}

func (h *Handler) removeLocal(c *gin.Context) {
	_, e, ok := h.sectionEditor(c)
	if !ok {
		return
	}
	c.Set(transitionKey, "remove_local")
	if err := e.RemoveLocal(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, e.State())
}

func (h *Handler) editorState(c *gin.Context) {
	_, e, ok := h.sectionEditor(c)
	if !ok {
		return
	}
	respond.OK(c, e.State())
}

func (h *Handler) transition(name string, fn func(*gin.Context, session.SectionEditor) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		_, e, ok := h.sectionEditor(c)
		if !ok {
			return
		}
		c.Set(transitionKey, name)
		if err := fn(c, e); err != nil {
			writeError(c, err)
			return
		}
		respond.OK(c, e.State())
	}
}

func (h *Handler) save(c *gin.Context) {
	_, e, ok := h.sectionEditor(c)
	if !ok {
		return
	}
	c.Set(transitionKey, "save")
	continueAdding, _ := strconv.ParseBool(c.DefaultQuery("continue", "false"))
	res, err := e.Save(c.Request.Context(), continueAdding)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) preview(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	respond.OK(c, s.Preview())
}

func (h *Handler) previewHTML(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	html, err := s.PreviewHTML()
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
}

func (h *Handler) export(c *gin.Context) {
	s, ok := h.currentSession(c)
	if !ok {
		return
	}
	file, err := s.Export(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if file.Pages > 0 {
		c.Header("X-Page-Count", strconv.Itoa(file.Pages))
	}
	if file.Archived != nil {
		c.Header("X-Archive-Key", file.Archived.Key)
	}
	respond.Attachment(c, file.Name, file.ContentType, file.Content)
}
