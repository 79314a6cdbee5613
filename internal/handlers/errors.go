package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"timemate/internal/services"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	var remoteErr *services.RemoteError
	switch {
	case errors.Is(err, services.ErrNotSignedIn):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAlreadyJoined), errors.Is(err, services.ErrSessionFull):
		return http.StatusConflict
	case errors.Is(err, services.ErrNotHost):
		return http.StatusForbidden
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusNotFound
	case services.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &remoteErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	entry := logrus.WithError(err).WithFields(logrus.Fields{
		"request_id": requestIDFromContext(c),
		"status":     status,
		"path":       c.FullPath(),
	})
	if status >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg})
}
