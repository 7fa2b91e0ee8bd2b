package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	sessions func() int
}

// NewHealthHandler creates a new health handler. sessions, when set,
// reports the number of live sessions.
func NewHealthHandler(sessions func() int) *HealthHandler {
	return &HealthHandler{sessions: sessions}
}

// Health returns the health status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	body := gin.H{"status": "ok"}
	if h.sessions != nil {
		body["sessions"] = h.sessions()
	}
	c.JSON(http.StatusOK, body)
}
