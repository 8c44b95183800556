package session

import (
	"context"
	"errors"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/seek"
	"ChessArena/internal/utils"
)

// 域内错误：作为返回值给调用方渲染，不是异常
var (
	ErrTooManyGames     = errors.New("too many games")
	ErrConnectionInGame = errors.New("connection in game")
	ErrOpenSeekGone     = errors.New("open seek gone")
	ErrCoordinatorDown  = errors.New("coordinator stopped")
)

// Pools 池注册表的抽象，由 matchmaker.Registry 实现
type Pools interface {
	AddSeeker(key seek.PoolKey, s *seek.Seeker)
	RemoveSeeker(key seek.PoolKey, userID string) bool
	// DirectMatch 指定对手配对；对手已不在池里时返回 false
	DirectMatch(key seek.PoolKey, s *seek.Seeker, targetUserID string) bool
}

// Notifier 推送给在线客户端，尽力而为
type Notifier interface {
	Notify(userID, eventName string, data map[string]any)
}

// Coordinator 单用户的会话协调者：
// 这个用户的连接、预约、进行中对局都归它一个 goroutine 串行管，
// 所以下面的字段全都不加锁。
type Coordinator struct {
	userID   string
	maxGames int

	conns           *ConnPoolMap
	ongoing         map[string]seek.PoolKey // token -> pool
	reservations    map[seek.PoolKey]string // pool -> 即将被消耗的连接
	recentlyMatched map[string]string       // 被成局消耗的连接 -> 消耗它的对局 token

	pools    Pools
	store    Store
	notifier Notifier

	calls        chan func()
	events       <-chan event.Event
	quit         chan struct{}
	lastActivity time.Time
}

func newCoordinator(userID string, maxGames int, st State, pools Pools, store Store, notifier Notifier, events <-chan event.Event) *Coordinator {
	c := &Coordinator{
		userID:          userID,
		maxGames:        maxGames,
		conns:           ConnPoolMapFromEntries(st.ConnPools),
		ongoing:         make(map[string]seek.PoolKey),
		reservations:    make(map[seek.PoolKey]string),
		recentlyMatched: make(map[string]string),
		pools:           pools,
		store:           store,
		notifier:        notifier,
		calls:           make(chan func(), 32),
		events:          events,
		quit:            make(chan struct{}),
		lastActivity:    time.Now(),
	}
	for _, g := range st.OngoingGames {
		c.ongoing[g.Token] = g.Pool
	}
	return c
}

// run 唯一的执行循环：同一时刻最多处理一条消息
func (c *Coordinator) run() {
	for {
		select {
		case fn := <-c.calls:
			fn()
		case ev, ok := <-c.events:
			if !ok {
				return
			}
			c.touch()
			c.handleEvent(ev)
		case <-c.quit:
			return
		}
	}
}

func (c *Coordinator) stop() {
	close(c.quit)
}

// do 把操作投递进信箱并等待执行完；ctx 取消则不产生任何状态变化
func (c *Coordinator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case c.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.quit:
		return ErrCoordinatorDown
	}
	select {
	case <-done:
		return nil
	case <-c.quit:
		return ErrCoordinatorDown
	}
}

// touch 刷新活跃时间；只有真实业务操作会调，回收检查本身不算活跃
func (c *Coordinator) touch() {
	c.lastActivity = time.Now()
}

// ---------- 求战入口 ----------

// CreateSeek 本用户的某个连接发起一次求战。
// 校验都在这里做：池和分片自己从不拒绝请求。
func (c *Coordinator) CreateSeek(ctx context.Context, connID string, skr *seek.Seeker, key seek.PoolKey) error {
	var opErr error
	err := c.do(ctx, func() {
		c.touch()
		if opErr = c.admitConn(connID); opErr != nil {
			return
		}
		c.conns.Add(connID, key)
		c.persist()
		c.pools.AddSeeker(key, skr)
	})
	if err != nil {
		return err
	}
	return opErr
}

// MatchWithOpenSeek 指定一条公开求战直接配
func (c *Coordinator) MatchWithOpenSeek(ctx context.Context, connID string, skr *seek.Seeker, targetUserID string, key seek.PoolKey) error {
	var opErr error
	err := c.do(ctx, func() {
		c.touch()
		if opErr = c.admitConn(connID); opErr != nil {
			return
		}
		c.conns.Add(connID, key)
		c.persist()
		if !c.pools.DirectMatch(key, skr, targetUserID) {
			// 对手已经走了：回滚登记并告知前端
			c.conns.RemoveConn(connID)
			c.persist()
			c.notify("seek_failed", map[string]any{"pool": key})
			opErr = ErrOpenSeekGone
		}
	})
	if err != nil {
		return err
	}
	return opErr
}

// admitConn 统一的放行检查
func (c *Coordinator) admitConn(connID string) error {
	if len(c.ongoing)+len(c.reservations) >= c.maxGames {
		return ErrTooManyGames
	}
	if _, ok := c.recentlyMatched[connID]; ok {
		return ErrConnectionInGame
	}
	for _, reserved := range c.reservations {
		if reserved == connID {
			return ErrConnectionInGame
		}
	}
	return nil
}

// CancelSeek 撤掉本用户在某个池的求战；没在排队就是 no-op
func (c *Coordinator) CancelSeek(ctx context.Context, key seek.PoolKey) error {
	return c.do(ctx, func() {
		c.touch()
		c.pools.RemoveSeeker(key, c.userID)
		c.conns.RemovePool(key)
		c.persist()
	})
}

// CleanupConnection 客户端断开时调用：清掉该连接的所有排队痕迹
func (c *Coordinator) CleanupConnection(ctx context.Context, connID string) error {
	return c.do(ctx, func() {
		c.touch()
		for _, key := range c.conns.PoolsOf(connID) {
			// 该池只剩这一个连接时才真正退出池
			if len(c.conns.ConnsOf(key)) == 1 {
				c.pools.RemoveSeeker(key, c.userID)
			}
		}
		c.conns.RemoveConn(connID)
		delete(c.recentlyMatched, connID)
		c.persist()
	})
}

// ---------- 预约协议 ----------

// TryReserveSeek 匹配流程在提交前锁定一个连接。
// 失败不报错，返回 false 让调用方放弃这条腿。
func (c *Coordinator) TryReserveSeek(ctx context.Context, key seek.PoolKey) (bool, error) {
	var ok bool
	err := c.do(ctx, func() {
		c.touch()
		ok = c.tryReserve(key)
	})
	return ok, err
}

func (c *Coordinator) tryReserve(key seek.PoolKey) bool {
	if len(c.ongoing)+len(c.reservations) >= c.maxGames {
		return false
	}
	if _, exists := c.reservations[key]; exists {
		return false
	}
	for _, connID := range c.conns.ConnsOf(key) {
		if c.connTaken(connID) {
			continue
		}
		c.reservations[key] = connID
		return true
	}
	return false
}

func (c *Coordinator) connTaken(connID string) bool {
	if _, ok := c.recentlyMatched[connID]; ok {
		return true
	}
	for _, reserved := range c.reservations {
		if reserved == connID {
			return true
		}
	}
	return false
}

// ReleaseReservation 对手中途取消等原因导致成局失败时回滚
func (c *Coordinator) ReleaseReservation(ctx context.Context, key seek.PoolKey) error {
	return c.do(ctx, func() {
		c.touch()
		delete(c.reservations, key)
	})
}

// ---------- 事件处理（必须幂等） ----------

func (c *Coordinator) handleEvent(ev event.Event) {
	switch ev.Kind {
	case event.GameStarted:
		c.handleGameStarted(ev)
	case event.GameEnded:
		c.handleGameEnded(ev)
	}
}

func (c *Coordinator) handleGameStarted(ev event.Event) {
	if _, known := c.ongoing[ev.GameToken]; known {
		return // at-least-once 投递，重复送达直接忽略
	}
	c.ongoing[ev.GameToken] = ev.Pool

	// 预约被成局消耗；锦标赛对局没有预约，也一样往下走
	delete(c.reservations, ev.Pool)

	// 该池的连接全部进入护栏：飞行中的重复求战到这里会被拒
	for _, connID := range c.conns.ConnsOf(ev.Pool) {
		c.recentlyMatched[connID] = ev.GameToken
	}
	c.conns.RemovePool(ev.Pool)

	c.notify("match_found", map[string]any{
		"gameToken": ev.GameToken,
		"pool":      ev.Pool,
		"users":     ev.Users,
	})

	// 到达上限：撤掉其余所有池的求战
	if len(c.ongoing)+len(c.reservations) >= c.maxGames {
		for _, key := range c.conns.Pools() {
			c.pools.RemoveSeeker(key, c.userID)
			c.conns.RemovePool(key)
			c.notify("seek_failed", map[string]any{"pool": key})
		}
	}
	c.persist()
}

func (c *Coordinator) handleGameEnded(ev event.Event) {
	if _, known := c.ongoing[ev.GameToken]; !known {
		return
	}
	delete(c.ongoing, ev.GameToken)
	// 对局结束：被它消耗的连接回到空闲，允许再求战
	for connID, token := range c.recentlyMatched {
		if token == ev.GameToken {
			delete(c.recentlyMatched, connID)
		}
	}
	c.notify("game_ended", map[string]any{"gameToken": ev.GameToken})
	c.persist()
}

// ---------- 辅助 ----------

// persist 落盘失败只记日志：内存状态是事实源，下次变更会重写
func (c *Coordinator) persist() {
	st := State{ConnPools: c.conns.Entries()}
	for token, key := range c.ongoing {
		st.OngoingGames = append(st.OngoingGames, OngoingGame{Token: token, Pool: key})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.store.Save(ctx, c.userID, st); err != nil {
		utils.Error.Printf("session %s: persist failed: %v", c.userID, err)
	}
}

// notify 通知失败绝不能卡住协调者自身的状态迁移
func (c *Coordinator) notify(eventName string, data map[string]any) {
	if c.notifier == nil {
		return
	}
	c.notifier.Notify(c.userID, eventName, data)
}

// snapshot 注册表用来判断能否回收
type snapshot struct {
	seeks        int
	games        int
	reservations int
	lastActivity time.Time
}

func (c *Coordinator) stateSnapshot(ctx context.Context) (snapshot, error) {
	var s snapshot
	err := c.do(ctx, func() {
		s = snapshot{
			seeks:        len(c.conns.Pools()),
			games:        len(c.ongoing),
			reservations: len(c.reservations),
			lastActivity: c.lastActivity,
		}
	})
	return s, err
}

// OngoingGameCount 对外暴露的只读查询
func (c *Coordinator) OngoingGameCount(ctx context.Context) (int, error) {
	var n int
	err := c.do(ctx, func() { n = len(c.ongoing) })
	return n, err
}
