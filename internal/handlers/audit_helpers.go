package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"timemate/internal/middleware"
	"timemate/internal/observability"
	"timemate/internal/telemetry"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader(observability.RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func auditEntry(c *gin.Context, level, text string) telemetry.AuditEntry {
	return telemetry.AuditEntry{
		Level:     level,
		Text:      text,
		RequestID: requestIDFromContext(c),
		UserID:    middleware.UserID(c),
		IP:        observability.IPFromRequest(c.Request),
	}
}

func emitAudit(c *gin.Context, emitter *telemetry.AuditEmitter, level, text string) {
	emitter.Emit(c.Request.Context(), auditEntry(c, level, text))
}
