package matchmaker

import (
	"context"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/game"
	"ChessArena/internal/seek"
	"ChessArena/internal/utils"
)

// Sessions coordinator 侧的预约协议，由 session.Registry 实现
type Sessions interface {
	TryReserveSeek(ctx context.Context, userID string, key seek.PoolKey) (bool, error)
	ReleaseReservation(ctx context.Context, userID string, key seek.PoolKey) error
}

// OpenSeeks 成局后把双方从公开求战分片里摘掉；可以为 nil
type OpenSeeks interface {
	Remove(userID string)
}

const commitTimeout = 10 * time.Second

// Service 成局提交协议：
// 先向双方 coordinator 预约连接，再叫对局服务开局，最后广播事件。
// 任何一步失败都回滚预约并把无辜一方塞回池里重新等。
type Service struct {
	reg       *Registry
	sessions  Sessions
	starter   game.Starter
	bus       *event.Bus
	openSeeks OpenSeeks
}

func NewService(reg *Registry, sessions Sessions, starter game.Starter, bus *event.Bus, openSeeks OpenSeeks) *Service {
	s := &Service{
		reg:       reg,
		sessions:  sessions,
		starter:   starter,
		bus:       bus,
		openSeeks: openSeeks,
	}
	reg.SetDispatcher(s)
	return s
}

// CommitPairs 逐对提交一个 wave 的结果
func (s *Service) CommitPairs(key seek.PoolKey, pairs []seek.MatchPair) {
	for _, pr := range pairs {
		s.commit(key, pr)
	}
}

func (s *Service) commit(key seek.PoolKey, pr seek.MatchPair) {
	ctx, cancel := context.WithTimeout(context.Background(), commitTimeout)
	defer cancel()

	okA, err := s.sessions.TryReserveSeek(ctx, pr.A.UserID, key)
	if err != nil || !okA {
		// A 这条腿没锁住（并发抢先/断线/已满）：B 无辜，塞回去
		s.reg.Requeue(key, pr.B)
		return
	}
	okB, err := s.sessions.TryReserveSeek(ctx, pr.B.UserID, key)
	if err != nil || !okB {
		_ = s.sessions.ReleaseReservation(ctx, pr.A.UserID, key)
		s.reg.Requeue(key, pr.A)
		return
	}

	token, err := s.starter.StartGame(ctx, pr.A.UserID, pr.B.UserID, key)
	if err != nil {
		utils.Error.Printf("matchmaker: StartGame %s vs %s failed: %v", pr.A.UserID, pr.B.UserID, err)
		_ = s.sessions.ReleaseReservation(ctx, pr.A.UserID, key)
		_ = s.sessions.ReleaseReservation(ctx, pr.B.UserID, key)
		s.reg.Requeue(key, pr.A)
		s.reg.Requeue(key, pr.B)
		return
	}

	if s.openSeeks != nil {
		s.openSeeks.Remove(pr.A.UserID)
		s.openSeeks.Remove(pr.B.UserID)
	}

	s.bus.PublishAll(event.Event{
		Kind:      event.GameStarted,
		GameToken: token,
		Pool:      key,
		Users:     []string{pr.A.UserID, pr.B.UserID},
	})
	utils.Info.Printf("matchmaker: game %s started (%s vs %s, pool %s)", token, pr.A.UserID, pr.B.UserID, key)
}
