package openseek

import (
	"net/http"

	"ChessArena/internal/seek"

	"github.com/gin-gonic/gin"
)

type SubscribeRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
	PoolType     string `json:"poolType" binding:"required"`
	InitialSec   int    `json:"initialSec" binding:"required"`
	IncrementSec int    `json:"incrementSec"`
	Rating       *int   `json:"rating,omitempty"`
}

type UnsubscribeRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
}

type Handler struct {
	shards *ShardSet
}

func NewHandler(shards *ShardSet) *Handler {
	return &Handler{shards: shards}
}

// POST /seek/open/subscribe
func (h *Handler) Subscribe(c *gin.Context) {
	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var pt seek.PoolType
	switch req.PoolType {
	case string(seek.PoolRated):
		pt = seek.PoolRated
	case string(seek.PoolCasual):
		pt = seek.PoolCasual
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poolType"})
		return
	}

	os := OpenSeek{
		UserID:   c.GetString("userId"),
		UserName: c.GetString("userName"),
		Pool: seek.PoolKey{
			Type: pt,
			Time: seek.TimeControl{InitialSec: req.InitialSec, IncrementSec: req.IncrementSec},
		},
		Rating: req.Rating,
	}
	snapshot, err := h.shards.Subscribe(c.Request.Context(), req.ConnectionID, os)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if snapshot == nil {
		snapshot = []OpenSeek{}
	}
	c.JSON(http.StatusOK, gin.H{"seeks": snapshot})
}

// POST /seek/open/unsubscribe
func (h *Handler) Unsubscribe(c *gin.Context) {
	var req UnsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.shards.Unsubscribe(c.Request.Context(), c.GetString("userId"), req.ConnectionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
