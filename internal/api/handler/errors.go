package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/timmy/neonmeme/internal/api/middleware"
	"github.com/timmy/neonmeme/internal/catalog"
	"github.com/timmy/neonmeme/internal/logger"
	"github.com/timmy/neonmeme/internal/render"
	"github.com/timmy/neonmeme/internal/service"
)

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, render.ErrInvalidParams),
		errors.Is(err, service.ErrInvalidUpload):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, catalog.ErrNoTemplates):
		return http.StatusNotFound
	case errors.Is(err, service.ErrNoImage):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error": ...}. Internal errors are logged and not
// echoed to the client, which gets the request id to quote instead.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		middleware.GetLogger(c).WithError(err).Error("Request failed")
		c.AbortWithStatusJSON(status, gin.H{
			"error":      "internal error",
			"request_id": logger.GetRequestID(c.Request.Context()),
		})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
