package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/floq-field/internal/repository"
	"github.com/jengzang/floq-field/internal/service"
	"github.com/jengzang/floq-field/pkg/response"
)

// TimelapseHandler handles HTTP requests for capture and playback
type TimelapseHandler struct {
	service *service.TimelapseService
}

// NewTimelapseHandler creates a new time-lapse handler
func NewTimelapseHandler(service *service.TimelapseService) *TimelapseHandler {
	return &TimelapseHandler{service: service}
}

// SeekRequest moves playback either to a normalised position or to the
// frame nearest a timestamp
type SeekRequest struct {
	Position  *float64 `json:"position"`
	Timestamp *int64   `json:"ts"`
}

// ListFrames returns buffered frames, newest first, or archived frames,
// oldest first, with source=archive
// GET /api/v1/timelapse/frames
func (h *TimelapseHandler) ListFrames(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if err != nil || limit < 0 {
		response.BadRequest(c, "Invalid limit")
		return
	}

	if c.Query("source") == "archive" {
		if limit == 0 {
			limit = 1000
		}
		frames, err := h.service.ArchivedFrames(limit)
		if err != nil {
			response.InternalError(c, "Failed to read archive")
			return
		}
		response.Success(c, gin.H{"frames": nonNil(frames), "source": "archive"})
		return
	}

	response.Success(c, gin.H{"frames": nonNil(h.service.Frames(limit)), "source": "ring"})
}

// LatestFrame returns the newest archived frame
// GET /api/v1/timelapse/frames/latest
func (h *TimelapseHandler) LatestFrame(c *gin.Context) {
	frame, err := h.service.LatestArchived()
	if errors.Is(err, repository.ErrNotFound) {
		response.NotFound(c, "No archived frames")
		return
	}
	if err != nil {
		response.InternalError(c, "Failed to read archive")
		return
	}

	response.Success(c, frame)
}

// Status returns the playback state
// GET /api/v1/timelapse/playback
func (h *TimelapseHandler) Status(c *gin.Context) {
	response.Success(c, h.service.Status())
}

// StartPlayback enters playback at the newest frame
// POST /api/v1/timelapse/playback/start
func (h *TimelapseHandler) StartPlayback(c *gin.Context) {
	response.Success(c, h.service.StartPlayback())
}

// StopPlayback returns to live capture
// POST /api/v1/timelapse/playback/stop
func (h *TimelapseHandler) StopPlayback(c *gin.Context) {
	response.Success(c, h.service.StopPlayback())
}

// Seek moves the playback cursor
// POST /api/v1/timelapse/playback/seek
func (h *TimelapseHandler) Seek(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	if (req.Position == nil) == (req.Timestamp == nil) {
		response.BadRequest(c, "Exactly one of position or ts is required")
		return
	}

	var (
		status service.PlaybackStatus
		err    error
	)
	if req.Position != nil {
		status, err = h.service.Seek(*req.Position)
	} else {
		status, err = h.service.SeekTimestamp(*req.Timestamp)
	}

	switch {
	case errors.Is(err, service.ErrNotPlaying):
		response.Conflict(c, err.Error())
	case errors.Is(err, repository.ErrNotFound):
		response.NotFound(c, "No buffered frames")
	case err != nil:
		response.InternalError(c, err.Error())
	default:
		response.Success(c, status)
	}
}

// Step returns the next playback frame; frame is null when none is due
// GET /api/v1/timelapse/playback/step
func (h *TimelapseHandler) Step(c *gin.Context) {
	frame, status := h.service.Step()
	response.Success(c, gin.H{"frame": frame, "status": status})
}

// ListMarkers returns timeline markers
// GET /api/v1/timelapse/markers?since=..
func (h *TimelapseHandler) ListMarkers(c *gin.Context) {
	since, err := strconv.ParseInt(c.DefaultQuery("since", "0"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid since")
		return
	}

	response.Success(c, gin.H{"markers": h.service.Markers(since)})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
