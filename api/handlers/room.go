package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/armada-loadtest/coordinator/internal/model"
)

// RoomSource exposes read-only snapshots of the active rooms.
type RoomSource interface {
	Rooms() []model.RoomSnapshot
	Room(id string) (model.RoomSnapshot, error)
}

// RoomHandler handles HTTP requests for room introspection.
type RoomHandler struct {
	rooms RoomSource
}

// NewRoomHandler creates a new RoomHandler.
func NewRoomHandler(rooms RoomSource) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// List handles GET /api/rooms - lists every active room.
func (h *RoomHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, h.rooms.Rooms())
}

// Get handles GET /api/rooms/:id - gets a specific room.
func (h *RoomHandler) Get(c *gin.Context) {
	roomID := c.Param("id")

	snap, err := h.rooms.Room(roomID)
	if err != nil {
		if errors.Is(err, model.ErrRoomNotFound) {
			sendError(c, http.StatusNotFound, "ROOM_NOT_FOUND", "Room "+roomID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get room: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, snap)
}

// RegisterRoutes registers the room handler routes on a Gin router group.
func (h *RoomHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rooms", h.List)
	rg.GET("/rooms/:id", h.Get)
}
