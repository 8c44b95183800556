package matchmaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/seek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSessions 预约结果按用户配置，记录释放
type fakeSessions struct {
	mu       sync.Mutex
	deny     map[string]bool
	reserved []string
	released []string
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{deny: make(map[string]bool)}
}

func (s *fakeSessions) TryReserveSeek(ctx context.Context, userID string, key seek.PoolKey) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deny[userID] {
		return false, nil
	}
	s.reserved = append(s.reserved, userID)
	return true, nil
}

func (s *fakeSessions) ReleaseReservation(ctx context.Context, userID string, key seek.PoolKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released = append(s.released, userID)
	return nil
}

func (s *fakeSessions) releasedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.released...)
}

type fakeStarter struct {
	err   error
	calls int
}

func (f *fakeStarter) StartGame(ctx context.Context, userA, userB string, key seek.PoolKey) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "game-token", nil
}

type fakeOpenSeeks struct {
	mu      sync.Mutex
	removed []string
}

func (f *fakeOpenSeeks) Remove(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, userID)
}

func (f *fakeOpenSeeks) removedUsers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func Test_CommitHappyPath(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	sessions := newFakeSessions()
	starter := &fakeStarter{}
	bus := event.NewBus()
	openSeeks := &fakeOpenSeeks{}
	svc := NewService(reg, sessions, starter, bus, openSeeks)

	chA := bus.Subscribe("a")
	chB := bus.Subscribe("b")

	key := casualKey()
	svc.CommitPairs(key, []seek.MatchPair{{A: casual("a"), B: casual("b")}})

	evA := <-chA
	evB := <-chB
	assert.Equal(t, event.GameStarted, evA.Kind)
	assert.Equal(t, "game-token", evA.GameToken)
	assert.Equal(t, evA, evB)

	assert.ElementsMatch(t, []string{"a", "b"}, openSeeks.removedUsers())
	assert.Empty(t, sessions.releasedUsers())
}

func Test_CommitFirstReservationFails(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	sessions := newFakeSessions()
	sessions.deny["a"] = true
	starter := &fakeStarter{}
	svc := NewService(reg, sessions, starter, event.NewBus(), nil)

	key := casualKey()
	svc.CommitPairs(key, []seek.MatchPair{{A: casual("a"), B: casual("b")}})

	// A 锁不住：B 无辜，塞回池里等下一轮
	assert.True(t, reg.HasSeeker(key, "b"))
	assert.False(t, reg.HasSeeker(key, "a"))
	assert.Equal(t, 0, starter.calls)
}

func Test_CommitSecondReservationFails(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	sessions := newFakeSessions()
	sessions.deny["b"] = true
	starter := &fakeStarter{}
	svc := NewService(reg, sessions, starter, event.NewBus(), nil)

	key := casualKey()
	svc.CommitPairs(key, []seek.MatchPair{{A: casual("a"), B: casual("b")}})

	// B 锁不住：回滚 A 的预约并把 A 塞回去
	assert.Equal(t, []string{"a"}, sessions.releasedUsers())
	assert.True(t, reg.HasSeeker(key, "a"))
	assert.Equal(t, 0, starter.calls)
}

func Test_CommitStartGameFails(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	sessions := newFakeSessions()
	starter := &fakeStarter{err: errors.New("game service down")}
	bus := event.NewBus()
	svc := NewService(reg, sessions, starter, bus, nil)

	ch := bus.Subscribe("a")

	key := casualKey()
	svc.CommitPairs(key, []seek.MatchPair{{A: casual("a"), B: casual("b")}})

	// 开局失败：双方预约全回滚、全部回池，事件一个都不发
	assert.ElementsMatch(t, []string{"a", "b"}, sessions.releasedUsers())
	assert.True(t, reg.HasSeeker(key, "a"))
	assert.True(t, reg.HasSeeker(key, "b"))

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event %v", ev)
	default:
	}

	require.Equal(t, 1, starter.calls)
}
