package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/floq-field/internal/stream"
)

// StreamHandler upgrades clients to the live field websocket
type StreamHandler struct {
	hub *stream.Hub
}

// NewStreamHandler creates a new stream handler
func NewStreamHandler(hub *stream.Hub) *StreamHandler {
	return &StreamHandler{hub: hub}
}

// Stream pushes tick, capture and reset events
// GET /api/v1/field/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	h.hub.ServeWS(c.Writer, c.Request)
}
