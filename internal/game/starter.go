package game

import (
	"context"
	"fmt"
	"time"

	"ChessArena/internal/seek"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Starter 对局生命周期服务的边界：给两个用户 + 池开一盘棋，返回对局 token。
// 走子规则引擎在别的服务里，这里只拿 token。
type Starter interface {
	StartGame(ctx context.Context, userA, userB string, key seek.PoolKey) (string, error)
}

// TokenStarter 最小实现：签发 uuid token 并把对局登记进 Redis，
// 供规则引擎侧按 token 领取。
type TokenStarter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewTokenStarter(rdb *redis.Client, ttl time.Duration) *TokenStarter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenStarter{rdb: rdb, ttl: ttl}
}

func gameKey(token string) string {
	return fmt.Sprintf("game:%s", token)
}

func (s *TokenStarter) StartGame(ctx context.Context, userA, userB string, key seek.PoolKey) (string, error) {
	token := uuid.NewString()
	val := fmt.Sprintf("%s|%s|%s", userA, userB, key)
	if err := s.rdb.Set(ctx, gameKey(token), val, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}
