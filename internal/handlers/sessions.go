package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"timemate/internal/middleware"
	"timemate/internal/models"
	"timemate/internal/roster"
	"timemate/internal/services"
	"timemate/internal/telemetry"
)

// SessionHandler serves the session feed and its mutations.
type SessionHandler struct {
	sessions *services.SessionService
	audit    *telemetry.AuditEmitter
}

// NewSessionHandler builds a SessionHandler.
func NewSessionHandler(sessions *services.SessionService, audit *telemetry.AuditEmitter) *SessionHandler {
	return &SessionHandler{sessions: sessions, audit: audit}
}

type feedResponse struct {
	Viewer   string                  `json:"viewer,omitempty"`
	Sessions []models.VisibleSession `json:"sessions"`
	Purposes []string                `json:"purposes"`
}

func parseFilter(c *gin.Context) (roster.Filter, error) {
	var f roster.Filter
	if raw := c.Query("mine"); raw != "" {
		mine, err := strconv.ParseBool(raw)
		if err != nil {
			return f, errors.New("mine must be true or false")
		}
		f.MineOnly = mine
	}
	f.Purpose = c.Query("purpose")

	sort, err := roster.ParseSortMode(c.Query("sort"))
	if err != nil {
		return f, services.ErrInvalidSort
	}
	f.Sort = sort
	return f, nil
}

func feed(snap roster.Snapshot, f roster.Filter) feedResponse {
	return feedResponse{
		Viewer:   snap.Viewer,
		Sessions: snap.Visible(f),
		Purposes: snap.Purposes(),
	}
}

// ListSessions returns the visible sessions for the caller.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	snap, err := h.sessions.Load(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed(snap, f))
}

// CreateSession creates a session hosted by the caller.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req services.CreateInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Create only needs the viewer to validate and reloads after writing.
	snap := roster.Snapshot{Viewer: middleware.UserID(c)}
	created, fresh, err := h.sessions.Create(c.Request.Context(), snap, req)
	var partial *services.HostMembershipError
	switch {
	case errors.As(err, &partial):
		emitAudit(c, h.audit, "WARN", "session created without host membership")
		c.JSON(http.StatusCreated, gin.H{
			"session_id": created.ID,
			"warning":    partial.Error(),
			"sessions":   fresh.Visible(f),
			"purposes":   fresh.Purposes(),
		})
		return
	case err != nil:
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", "session created")
	c.JSON(http.StatusCreated, gin.H{
		"session_id": created.ID,
		"sessions":   fresh.Visible(f),
		"purposes":   fresh.Purposes(),
	})
}

// JoinSession adds the caller to a session.
func (h *SessionHandler) JoinSession(c *gin.Context) {
	h.mutate(c, "session joined", h.sessions.Join)
}

// LeaveSession removes the caller from a session.
func (h *SessionHandler) LeaveSession(c *gin.Context) {
	h.mutate(c, "session left", h.sessions.Leave)
}

// CloseSession closes a session hosted by the caller.
func (h *SessionHandler) CloseSession(c *gin.Context) {
	h.mutate(c, "session closed", h.sessions.Close)
}

type mutation func(ctx context.Context, snap roster.Snapshot, sessionID string) (roster.Snapshot, error)

func (h *SessionHandler) mutate(c *gin.Context, auditText string, op mutation) {
	f, err := parseFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sessionID := c.Param("session_id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	ctx := c.Request.Context()
	snap, err := h.sessions.Load(ctx, middleware.UserID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	fresh, err := op(ctx, snap, sessionID)
	if err != nil {
		respondError(c, err)
		return
	}

	emitAudit(c, h.audit, "INFO", auditText)
	c.JSON(http.StatusOK, feed(fresh, f))
}
