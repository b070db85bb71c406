package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/floq-field/internal/cluster"
	"github.com/jengzang/floq-field/internal/models"
	"github.com/jengzang/floq-field/internal/service"
	"github.com/jengzang/floq-field/internal/spatial"
	"github.com/jengzang/floq-field/pkg/response"
)

// FieldHandler handles HTTP requests for the clustering worker
type FieldHandler struct {
	service *service.FieldService
}

// NewFieldHandler creates a new field handler
func NewFieldHandler(service *service.FieldService) *FieldHandler {
	return &FieldHandler{service: service}
}

// ClusterRequest represents the request body for a clustering pass
type ClusterRequest struct {
	Tiles    []service.TileInput `json:"tiles"`
	Zoom     float64             `json:"zoom"`
	Viewport *spatial.Viewport   `json:"viewport,omitempty"`
}

// SignalsRequest represents the request body for convergence detection
type SignalsRequest struct {
	Clusters []models.SocialCluster `json:"clusters"`
	Zoom     float64                `json:"zoom"`
}

// Tick clusters tiles and detects convergences in one call
// POST /api/v1/field/tick
func (h *FieldHandler) Tick(c *gin.Context) {
	var req service.TickRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.Tick(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, result)
}

// Cluster runs a clustering pass only
// POST /api/v1/field/cluster
func (h *FieldHandler) Cluster(c *gin.Context) {
	var req ClusterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	zoom := req.Zoom
	if zoom == 0 && req.Viewport != nil {
		zoom = req.Viewport.Zoom
	}

	clusters, err := h.service.Cluster(c.Request.Context(), req.Tiles, zoom, req.Viewport)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, clusters)
}

// Signals detects convergences among the posted clusters
// POST /api/v1/field/signals
func (h *FieldHandler) Signals(c *gin.Context) {
	var req SignalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	result, err := h.service.Signals(c.Request.Context(), req.Clusters, req.Zoom)
	if err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, result)
}

// Reset clears all engine history
// POST /api/v1/field/reset
func (h *FieldHandler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}

	response.Success(c, gin.H{"reset": true})
}

// Summary returns aggregate statistics of the last tick
// GET /api/v1/field/summary
func (h *FieldHandler) Summary(c *gin.Context) {
	response.Success(c, h.service.Summary())
}

// HitTest lists cluster ids under a screen point
// GET /api/v1/field/hit-test?x=..&y=..&radius=..
func (h *FieldHandler) HitTest(c *gin.Context) {
	x, errX := strconv.ParseFloat(c.Query("x"), 64)
	y, errY := strconv.ParseFloat(c.Query("y"), 64)
	if errX != nil || errY != nil {
		response.BadRequest(c, "x and y are required")
		return
	}

	radius, err := strconv.ParseFloat(c.DefaultQuery("radius", "0"), 64)
	if err != nil || radius < 0 {
		response.BadRequest(c, "Invalid radius")
		return
	}

	ids, err := h.service.HitTest(c.Request.Context(), x, y, radius)
	if err != nil {
		h.fail(c, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}

	response.Success(c, gin.H{"ids": ids})
}

func (h *FieldHandler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNoViewport):
		response.BadRequest(c, err.Error())
	case errors.Is(err, cluster.ErrWorkerClosed),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		response.Unavailable(c, err.Error())
	default:
		log.Printf("[FieldHandler] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
		response.Error(c, http.StatusInternalServerError, "Field worker error")
	}
}
