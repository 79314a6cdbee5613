package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"timemate/internal/roster"
	"timemate/internal/telemetry"
)

type feedLoader interface {
	Load(ctx context.Context, viewer string) (roster.Snapshot, error)
}

// RegisterDebugRoutes wires debug-only endpoints. /debug/feed reports what an
// anonymous feed fetch returns right now and records an audit entry for it.
func RegisterDebugRoutes(router gin.IRouter, sessions feedLoader, emitter *telemetry.AuditEmitter, enabled bool) {
	if !enabled {
		return
	}

	router.GET("/debug/feed", func(c *gin.Context) {
		snap, err := sessions.Load(c.Request.Context(), "")
		if err != nil {
			respondError(c, err)
			return
		}
		hosts := make(map[string]struct{}, len(snap.Sessions))
		for _, s := range snap.Sessions {
			hosts[s.HostID] = struct{}{}
		}
		if emitter != nil {
			emitAudit(c, emitter, "INFO", "debug feed snapshot")
		}
		c.JSON(http.StatusOK, gin.H{
			"request_id":     requestIDFromContext(c),
			"open_sessions":  len(snap.Sessions),
			"memberships":    len(snap.Memberships),
			"distinct_hosts": len(hosts),
			"purposes":       snap.Purposes(),
			"fetched_at":     snap.FetchedAt.Format(time.RFC3339),
		})
	})
}
