package arena

import (
	"errors"
	"net/http"

	"ChessArena/internal/seek"

	"github.com/gin-gonic/gin"
)

type StartRequest struct {
	TournamentID string `json:"tournamentId" binding:"required"`
	PoolType     string `json:"poolType" binding:"required"`
	InitialSec   int    `json:"initialSec" binding:"required"`
	IncrementSec int    `json:"incrementSec"`
}

type StopRequest struct {
	TournamentID string `json:"tournamentId" binding:"required"`
}

type AvailableRequest struct {
	TournamentID string `json:"tournamentId" binding:"required"`
	Rating       int    `json:"rating"`
}

type Handler struct {
	mgr *Manager
}

func NewHandler(mgr *Manager) *Handler {
	return &Handler{mgr: mgr}
}

// POST /arena/start
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pt, ok := poolTypeOf(req.PoolType)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poolType"})
		return
	}
	key := seek.PoolKey{
		Type: pt,
		Time: seek.TimeControl{InitialSec: req.InitialSec, IncrementSec: req.IncrementSec},
	}
	if err := h.mgr.Start(c.Request.Context(), req.TournamentID, key); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /arena/stop
func (h *Handler) Stop(c *gin.Context) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.mgr.Stop(req.TournamentID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /arena/available  局间回池
func (h *Handler) Available(c *gin.Context) {
	var req AvailableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, ok := h.mgr.Get(req.TournamentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotRunning.Error()})
		return
	}
	err := a.PlayerAvailable(c.Request.Context(), Entry{
		UserID:   c.GetString("userId"),
		UserName: c.GetString("userName"),
		Rating:   req.Rating,
	})
	if err != nil {
		if errors.Is(err, ErrNotPartOfTournament) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /arena/unavailable  暂离配对
func (h *Handler) Unavailable(c *gin.Context) {
	var req StopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, ok := h.mgr.Get(req.TournamentID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": ErrNotRunning.Error()})
		return
	}
	if err := a.PlayerUnavailable(c.Request.Context(), c.GetString("userId")); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func poolTypeOf(s string) (seek.PoolType, bool) {
	switch s {
	case string(seek.PoolRated):
		return seek.PoolRated, true
	case string(seek.PoolCasual):
		return seek.PoolCasual, true
	}
	return "", false
}
