package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/armada-loadtest/coordinator/internal/model"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 500
)

// RunStore reads and deletes archived runs.
type RunStore interface {
	GetByID(ctx context.Context, id string) (*model.Run, error)
	List(ctx context.Context, limit int) ([]*model.Run, error)
	ListByRoom(ctx context.Context, roomID string) ([]*model.Run, error)
	Delete(ctx context.Context, id string) error
}

// RunHandler handles HTTP requests for the run archive.
type RunHandler struct {
	runs RunStore
}

// NewRunHandler creates a new RunHandler.
func NewRunHandler(runs RunStore) *RunHandler {
	return &RunHandler{runs: runs}
}

// RunResponse represents an archived run in API responses.
type RunResponse struct {
	ID          string                      `json:"id"`
	RoomID      string                      `json:"roomId"`
	Config      *model.TestConfig           `json:"config"`
	Aggregate   model.AggregatedResult      `json:"aggregate"`
	Results     map[string]model.TestResult `json:"results,omitempty"`
	Duration    string                      `json:"duration"`
	StartedAt   string                      `json:"startedAt"`
	CompletedAt string                      `json:"completedAt"`
}

// toRunResponse converts a model.Run to RunResponse. Per-client results are
// only included for single-run responses.
func toRunResponse(r *model.Run, withResults bool) *RunResponse {
	resp := &RunResponse{
		ID:          r.ID,
		RoomID:      r.RoomID,
		Config:      r.Config,
		Aggregate:   r.Aggregate,
		Duration:    formatDuration(r.Duration()),
		StartedAt:   r.StartedAt.Format(time.RFC3339),
		CompletedAt: r.CompletedAt.Format(time.RFC3339),
	}
	if withResults {
		resp.Results = r.Results
	}
	return resp
}

// formatDuration formats a duration as a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return time.Duration(h*time.Hour + m*time.Minute + s*time.Second).String()
	}
	if m > 0 {
		return time.Duration(m*time.Minute + s*time.Second).String()
	}
	return time.Duration(s * time.Second).String()
}

func toRunResponses(runs []*model.Run) []*RunResponse {
	response := make([]*RunResponse, len(runs))
	for i, r := range runs {
		response[i] = toRunResponse(r, false)
	}
	return response
}

// List handles GET /api/runs - lists the most recent runs.
func (h *RunHandler) List(c *gin.Context) {
	limit := defaultRunLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive integer")
			return
		}
		if n > maxRunLimit {
			n = maxRunLimit
		}
		limit = n
	}

	runs, err := h.runs.List(c.Request.Context(), limit)
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, toRunResponses(runs))
}

// ListByRoom handles GET /api/rooms/:id/runs - lists the runs archived for a room.
func (h *RunHandler) ListByRoom(c *gin.Context) {
	runs, err := h.runs.ListByRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list runs: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, toRunResponses(runs))
}

// Get handles GET /api/runs/:id - gets a specific run with per-client results.
func (h *RunHandler) Get(c *gin.Context) {
	runID := c.Param("id")

	run, err := h.runs.GetByID(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			sendError(c, http.StatusNotFound, "RUN_NOT_FOUND", "Run "+runID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get run: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, toRunResponse(run, true))
}

// Delete handles DELETE /api/runs/:id - removes a run from the archive.
func (h *RunHandler) Delete(c *gin.Context) {
	runID := c.Param("id")

	if err := h.runs.Delete(c.Request.Context(), runID); err != nil {
		if errors.Is(err, model.ErrRunNotFound) {
			sendError(c, http.StatusNotFound, "RUN_NOT_FOUND", "Run "+runID+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete run: "+err.Error())
		return
	}

	c.Status(http.StatusNoContent)
}

// RegisterRoutes registers the run handler routes on a Gin router group.
func (h *RunHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/runs", h.List)
	rg.GET("/runs/:id", h.Get)
	rg.DELETE("/runs/:id", h.Delete)
	rg.GET("/rooms/:id/runs", h.ListByRoom)
}
