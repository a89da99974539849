package accounts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-backend/internal/shared/server/middleware"
	"cv-backend/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
	// ExposeResetToken returns reset tokens in the response body. Dev only.
	ExposeResetToken bool
}

func NewHandler(svc *Service, exposeResetToken bool) *Handler {
	return &Handler{Svc: svc, ExposeResetToken: exposeResetToken}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/signup", h.signup)
	rg.POST("/auth/login", h.login)
	rg.POST("/auth/password/forgot", h.forgot)
	rg.POST("/auth/password/reset", h.reset)
	rg.GET("/me", h.me)
}

type credentials struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	FullName string `json:"fullName"`
}

func (h *Handler) signup(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "email and password are required", nil)
		return
	}
	sess, err := h.Svc.Signup(c.Request.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.JSON(c, http.StatusCreated, sess)
}

func (h *Handler) login(c *gin.Context) {
	var req credentials
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "email and password are required", nil)
		return
	}
	sess, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) forgot(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "email is required", nil)
		return
	}
	token, err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	body := gin.H{"ok": true}
	if h.ExposeResetToken && token != "" {
		body["resetToken"] = token
	}
	respond.JSON(c, http.StatusAccepted, body)
}

func (h *Handler) reset(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "invalid_request", "token and password are required", nil)
		return
	}
	sess, err := h.Svc.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if userID == "" {
		respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
		return
	}
	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		// Token is valid but the account row is gone or never stored.
		respond.OK(c, gin.H{
			"id":       userID,
			"email":    middleware.UserEmailFromContext(c),
			"fullName": middleware.UserNameFromContext(c),
		})
		return
	}
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
		return
	}
	respond.OK(c, user)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrEmailTaken):
		respond.Error(c, http.StatusConflict, "email_taken", err.Error(), nil)
	case errors.Is(err, ErrInvalidCredentials):
		respond.Error(c, http.StatusUnauthorized, "invalid_credentials", err.Error(), nil)
	case errors.Is(err, ErrInvalidToken):
		respond.Error(c, http.StatusBadRequest, "invalid_token", err.Error(), nil)
	case errors.Is(err, ErrWeakPassword), errors.Is(err, ErrInvalidEmail):
		respond.Error(c, http.StatusUnprocessableEntity, "validation_failed", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
