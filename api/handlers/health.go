package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StatsSource reports live coordinator counts.
type StatsSource interface {
	Stats() (rooms, clients int)
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Rooms   int    `json:"rooms"`
	Clients int    `json:"clients"`
}

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	stats StatsSource
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(stats StatsSource) *HealthHandler {
	return &HealthHandler{stats: stats}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	rooms, clients := h.stats.Stats()
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Rooms:   rooms,
		Clients: clients,
	})
}

// RegisterRoutes registers the health route on the engine root.
func (h *HealthHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/health", h.Health)
}
