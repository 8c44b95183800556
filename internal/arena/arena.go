package arena

import (
	"context"
	"errors"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/game"
	"ChessArena/internal/seek"
	"ChessArena/internal/utils"
)

var ErrNotPartOfTournament = errors.New("not part of tournament")

// Entry 锦标赛名册里的一个玩家
type Entry struct {
	UserID   string
	UserName string
	Rating   int
	InGame   bool
}

// Roster 名册的事实源（报名表在外部服务里）。
// 内部池不落盘，重启全靠它重建。
type Roster interface {
	Entries(ctx context.Context, tournamentID string) ([]Entry, error)
}

// Arena 锦标赛的定时配对循环：
// 不像休闲池那样来人就配，而是每个 wave 节拍统一跑一轮 CalculateMatches。
// 内部池归本 goroutine 独占，同样不需要锁。
type Arena struct {
	tournamentID string
	key          seek.PoolKey
	pool         *seek.Pool
	waveEvery    time.Duration

	roster  Roster
	members map[string]struct{}

	starter game.Starter
	bus     *event.Bus

	calls chan func()
	quit  chan struct{}
}

func New(tournamentID string, key seek.PoolKey, waveEvery time.Duration, roster Roster, starter game.Starter, bus *event.Bus) *Arena {
	if waveEvery <= 0 {
		waveEvery = 10 * time.Second
	}
	return &Arena{
		tournamentID: tournamentID,
		key:          key,
		pool:         seek.NewPool(key, seek.NewLinearAging(0)),
		waveEvery:    waveEvery,
		roster:       roster,
		members:      make(map[string]struct{}),
		starter:      starter,
		bus:          bus,
		calls:        make(chan func(), 64),
		quit:         make(chan struct{}),
	}
}

// Start 先对名册重新同步，再起 wave 定时器。
// 重新同步是激活语义：把名册上没在对局里的人全部重新入池。
func (a *Arena) Start(ctx context.Context) error {
	if err := a.resync(ctx); err != nil {
		return err
	}
	go a.run()
	return nil
}

func (a *Arena) resync(ctx context.Context) error {
	entries, err := a.roster.Entries(ctx, a.tournamentID)
	if err != nil {
		return err
	}
	for _, e := range entries {
		a.members[e.UserID] = struct{}{}
		if e.InGame {
			continue
		}
		a.pool.AddSeeker(seekerOf(e, a.key))
	}
	utils.Info.Printf("arena %s: resynced %d players, %d waiting", a.tournamentID, len(entries), a.pool.Len())
	return nil
}

func (a *Arena) run() {
	ticker := time.NewTicker(a.waveEvery)
	defer ticker.Stop()
	for {
		select {
		case fn := <-a.calls:
			fn()
		case <-ticker.C:
			a.wave()
		case <-a.quit:
			return
		}
	}
}

// wave 一次锦标赛配对：所有配上的对立即开局
func (a *Arena) wave() {
	pairs := a.pool.CalculateMatches()
	for _, pr := range pairs {
		a.startPair(pr)
	}
}

func (a *Arena) startPair(pr seek.MatchPair) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	token, err := a.starter.StartGame(ctx, pr.A.UserID, pr.B.UserID, a.key)
	if err != nil {
		// 开局失败：两人留在下一个 wave 重新配
		utils.Error.Printf("arena %s: StartGame %s vs %s failed: %v", a.tournamentID, pr.A.UserID, pr.B.UserID, err)
		a.pool.AddSeeker(pr.A)
		a.pool.AddSeeker(pr.B)
		return
	}
	a.bus.PublishAll(event.Event{
		Kind:      event.GameStarted,
		GameToken: token,
		Pool:      a.key,
		Users:     []string{pr.A.UserID, pr.B.UserID},
	})
}

// Stop 必须显式调用，否则定时器泄漏到停赛之后
func (a *Arena) Stop() {
	close(a.quit)
}

func (a *Arena) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case a.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.quit:
		return nil
	}
	select {
	case <-done:
	case <-a.quit:
	}
	return nil
}

// PlayerAvailable 玩家（重新）可配对，等价于 AddSeeker；
// 不在名册上的直接拒绝。
func (a *Arena) PlayerAvailable(ctx context.Context, e Entry) error {
	var opErr error
	err := a.do(ctx, func() {
		if _, ok := a.members[e.UserID]; !ok {
			opErr = ErrNotPartOfTournament
			return
		}
		a.pool.AddSeeker(seekerOf(e, a.key))
	})
	if err != nil {
		return err
	}
	return opErr
}

// PlayerUnavailable 玩家暂时退出配对（在局中 / 掉线），等价于 RemoveSeeker
func (a *Arena) PlayerUnavailable(ctx context.Context, userID string) error {
	return a.do(ctx, func() {
		a.pool.RemoveSeeker(userID)
	})
}

// Waiting 当前等待配对的人数
func (a *Arena) Waiting(ctx context.Context) (int, error) {
	var n int
	err := a.do(ctx, func() { n = a.pool.Len() })
	return n, err
}

func seekerOf(e Entry, key seek.PoolKey) *seek.Seeker {
	s := &seek.Seeker{
		UserID:         e.UserID,
		UserName:       e.UserName,
		CreatedAt:      time.Now(),
		ExcludeUserIDs: map[string]struct{}{},
	}
	if key.Type == seek.PoolRated {
		s.Rating = &seek.Rating{Value: e.Rating}
	}
	return s
}
