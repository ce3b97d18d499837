package handlers

import (
	"log"

	"github.com/gin-gonic/gin"

	"github.com/armada-loadtest/coordinator/internal/ws"
)

// WebSocketHandler upgrades requests to coordination sessions.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{wsHandler: wsHandler}
}

// Connect handles GET /api/ws - opens a coordination session.
func (h *WebSocketHandler) Connect(c *gin.Context) {
	// The upgrader has already written an HTTP error on failure.
	if err := h.wsHandler.HandleConnection(c.Writer, c.Request); err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/ws", h.Connect)
}
