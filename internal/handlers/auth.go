package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"timemate/internal/middleware"
	"timemate/internal/services"
	"timemate/internal/telemetry"
)

// Redirect hints returned with auth responses.
const (
	RedirectSignedIn  = "/sessions"
	RedirectSignedOut = "/"
)

// AuthHandler exposes the sign-in, sign-up and password flows.
type AuthHandler struct {
	accounts *services.AccountService
	audit    *telemetry.AuditEmitter
}

// NewAuthHandler builds an AuthHandler.
func NewAuthHandler(accounts *services.AccountService, audit *telemetry.AuditEmitter) *AuthHandler {
	return &AuthHandler{accounts: accounts, audit: audit}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignIn exchanges email and password for a session.
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sess, err := h.accounts.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.Set(middleware.UserIDKey, sess.User.ID)
	emitAudit(c, h.audit, "INFO", "signed in")
	c.JSON(http.StatusOK, gin.H{"session": sess, "redirect": RedirectSignedIn})
}

// SignUp registers a user with a nickname.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req struct {
		credentialsRequest
		Nickname string `json:"nickname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.accounts.SignUp(c.Request.Context(), req.Email, req.Password, req.Nickname)
	if err != nil && !errors.Is(err, services.ErrProfileNotSaved) {
		respondError(c, err)
		return
	}

	redirect := RedirectSignedOut
	if result.Session != nil {
		redirect = RedirectSignedIn
	}
	resp := gin.H{
		"user":                  result.User,
		"session":               result.Session,
		"confirmation_required": result.Session == nil,
		"redirect":              redirect,
	}
	if err != nil {
		resp["warning"] = err.Error()
	}
	c.Set(middleware.UserIDKey, result.User.ID)
	emitAudit(c, h.audit, "INFO", "signed up")
	c.JSON(http.StatusCreated, resp)
}

// SignOut ends the caller's session.
func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.accounts.SignOut(c.Request.Context(), middleware.AccessToken(c)); err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "signed out")
	c.JSON(http.StatusOK, gin.H{"redirect": RedirectSignedOut})
}

// SendPasswordReset mails a reset link.
func (h *AuthHandler) SendPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.accounts.SendPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// UpdatePassword sets a new password for the caller.
func (h *AuthHandler) UpdatePassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.accounts.UpdatePassword(c.Request.Context(), middleware.AccessToken(c), req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	emitAudit(c, h.audit, "INFO", "password updated")
	c.JSON(http.StatusOK, gin.H{"user": user, "redirect": RedirectSignedIn})
}

// CurrentSession reports who the caller is and where the client should go.
func (h *AuthHandler) CurrentSession(c *gin.Context) {
	token := middleware.AccessToken(c)
	if token == "" {
		c.JSON(http.StatusOK, gin.H{"user": nil, "redirect": RedirectSignedOut})
		return
	}

	user, err := h.accounts.CurrentUser(c.Request.Context(), token)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "redirect": RedirectSignedIn})
}
