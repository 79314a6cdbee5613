package handlers

import (
	"github.com/gin-gonic/gin"

	"timemate/internal/middleware"
)

// RegisterRoutes wires the auth and session endpoints. limiter guards the
// unauthenticated auth endpoints and may be nil.
func RegisterRoutes(router gin.IRouter, sessions *SessionHandler, auth *AuthHandler, validator middleware.TokenValidator, limiter gin.HandlerFunc) {
	requireAuth := middleware.AuthMiddleware(validator)
	optionalAuth := middleware.OptionalAuthMiddleware(validator)
	if limiter == nil {
		limiter = func(c *gin.Context) { c.Next() }
	}

	authGroup := router.Group("/auth")
	authGroup.POST("/signin", limiter, auth.SignIn)
	authGroup.POST("/signup", limiter, auth.SignUp)
	authGroup.POST("/recover", limiter, auth.SendPasswordReset)
	authGroup.POST("/signout", requireAuth, auth.SignOut)
	authGroup.PUT("/password", requireAuth, auth.UpdatePassword)
	authGroup.GET("/session", optionalAuth, auth.CurrentSession)

	router.GET("/sessions", optionalAuth, sessions.ListSessions)
	router.POST("/sessions", requireAuth, sessions.CreateSession)
	router.POST("/sessions/:session_id/join", requireAuth, sessions.JoinSession)
	router.DELETE("/sessions/:session_id/members/me", requireAuth, sessions.LeaveSession)
	router.POST("/sessions/:session_id/close", requireAuth, sessions.CloseSession)
}
