package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/auxroom/internal/db"
	"github.com/stwalsh4118/auxroom/internal/ws"
)

// HealthResponse reports service health: the session store's reachability and
// how many sessions currently have live listeners
type HealthResponse struct {
	Status         string                 `json:"status"`
	Database       string                 `json:"database"`
	ActiveSessions int                    `json:"active_sessions"`
	Time           string                 `json:"time"`
	Details        map[string]interface{} `json:"details,omitempty"`
}

// HealthHandler handles health check requests
type HealthHandler struct {
	db  *db.DB
	hub *ws.Hub
}

// NewHealthHandler creates a new health check handler
func NewHealthHandler(database *db.DB, hub *ws.Hub) *HealthHandler {
	return &HealthHandler{db: database, hub: hub}
}

// Check handles the health check endpoint
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:         "ok",
		ActiveSessions: h.hub.ActiveSessions(),
		Time:           time.Now().UTC().Format(time.RFC3339),
		Details:        make(map[string]interface{}),
	}

	// Check session store connectivity
	if err := h.db.Health(ctx); err != nil {
		response.Status = "degraded"
		response.Database = "unhealthy"
		response.Details["database_error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Database = "healthy"
	c.JSON(http.StatusOK, response)
}

// SetupHealthRoutes registers health check routes
func SetupHealthRoutes(apiGroup *gin.RouterGroup, database *db.DB, hub *ws.Hub) {
	handler := NewHealthHandler(database, hub)
	apiGroup.GET("/health", handler.Check)
}
