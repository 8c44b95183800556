package matchmaker

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ChessArena/internal/seek"
	"ChessArena/internal/session"
	"ChessArena/internal/social"
	"ChessArena/internal/utils"

	"github.com/gin-gonic/gin"
)

// SeekAPI coordinator 入口，由 session.Registry 实现
type SeekAPI interface {
	CreateSeek(ctx context.Context, userID, connID string, skr *seek.Seeker, key seek.PoolKey) error
	MatchWithOpenSeek(ctx context.Context, userID, connID string, skr *seek.Seeker, targetUserID string, key seek.PoolKey) error
	CancelSeek(ctx context.Context, userID string, key seek.PoolKey) error
}

type Handler struct {
	api          SeekAPI
	blocks       social.BlockList
	defaultRange int
}

func NewHandler(api SeekAPI, blocks social.BlockList, defaultRange int) *Handler {
	return &Handler{api: api, blocks: blocks, defaultRange: defaultRange}
}

// POST /seek/create  body: SeekRequest
func (h *Handler) Create(c *gin.Context) {
	var req SeekRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key, ok := poolKeyOf(req.PoolType, req.InitialSec, req.IncrementSec)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poolType"})
		return
	}
	skr := h.buildSeeker(c, req, key)

	err := h.api.CreateSeek(c.Request.Context(), c.GetString("userId"), req.ConnectionID, skr, key)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, SeekResponse{Created: true, Pool: key.String()})
}

// POST /seek/cancel  body: CancelRequest
func (h *Handler) Cancel(c *gin.Context) {
	var req CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key, ok := poolKeyOf(req.PoolType, req.InitialSec, req.IncrementSec)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poolType"})
		return
	}
	if err := h.api.CancelSeek(c.Request.Context(), c.GetString("userId"), key); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// POST /seek/direct  body: DirectMatchRequest
func (h *Handler) DirectMatch(c *gin.Context) {
	var req DirectMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	key, ok := poolKeyOf(req.PoolType, req.InitialSec, req.IncrementSec)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid poolType"})
		return
	}
	skr := h.buildSeeker(c, req.SeekRequest, key)

	err := h.api.MatchWithOpenSeek(c.Request.Context(), c.GetString("userId"), req.ConnectionID, skr, req.TargetUserID, key)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, SeekResponse{Created: true, Pool: key.String()})
}

// buildSeeker 黑名单 + 重赛对手合成 ExcludeUserIds
func (h *Handler) buildSeeker(c *gin.Context, req SeekRequest, key seek.PoolKey) *seek.Seeker {
	userID := c.GetString("userId")
	excludes := make(map[string]struct{})
	if h.blocks != nil {
		ids, err := h.blocks.Blocked(c.Request.Context(), userID)
		if err != nil {
			// 黑名单读不到不拦求战，只记日志
			utils.Error.Printf("matchmaker: blocklist lookup for %s failed: %v", userID, err)
		}
		for _, id := range ids {
			excludes[id] = struct{}{}
		}
	}
	if req.RematchOpponent != "" {
		excludes[req.RematchOpponent] = struct{}{}
	}

	skr := &seek.Seeker{
		UserID:         userID,
		UserName:       c.GetString("userName"),
		CreatedAt:      time.Now(),
		ExcludeUserIDs: excludes,
	}
	if key.Type == seek.PoolRated {
		allowed := req.AllowedRatingRange
		if allowed == nil && h.defaultRange > 0 {
			r := h.defaultRange
			allowed = &r
		}
		skr.Rating = &seek.Rating{Value: req.Rating, AllowedRange: allowed}
	}
	return skr
}

func poolKeyOf(poolType string, initialSec, incrementSec int) (seek.PoolKey, bool) {
	var pt seek.PoolType
	switch poolType {
	case string(seek.PoolRated):
		pt = seek.PoolRated
	case string(seek.PoolCasual):
		pt = seek.PoolCasual
	default:
		return seek.PoolKey{}, false
	}
	return seek.PoolKey{
		Type: pt,
		Time: seek.TimeControl{InitialSec: initialSec, IncrementSec: incrementSec},
	}, true
}

// writeDomainError 域内错误给结构化返回，其它算服务端错误
func writeDomainError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, session.ErrTooManyGames):
		c.JSON(http.StatusConflict, gin.H{"error": "tooManyGames"})
	case errors.Is(err, session.ErrConnectionInGame):
		c.JSON(http.StatusConflict, gin.H{"error": "connectionInGame"})
	case errors.Is(err, session.ErrOpenSeekGone):
		c.JSON(http.StatusConflict, gin.H{"error": "openSeekGone"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
