package session

import (
	"context"
	"sync"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/seek"
	"ChessArena/internal/utils"
)

// Options 注册表参数，零值走保守默认
type Options struct {
	MaxActiveGames int
	EvictAfter     time.Duration // 空闲多久回收 coordinator
	LoadAttempts   int           // 激活时读存储的重试次数
	LoadBackoff    time.Duration
}

func (o *Options) fill() {
	if o.MaxActiveGames <= 0 {
		o.MaxActiveGames = 3
	}
	if o.EvictAfter <= 0 {
		o.EvictAfter = 10 * time.Minute
	}
	if o.LoadAttempts <= 0 {
		o.LoadAttempts = 3
	}
	if o.LoadBackoff <= 0 {
		o.LoadBackoff = 2 * time.Second
	}
}

// Registry userID -> coordinator 的注册表。
// coordinator 首次使用时激活（从存储恢复），空闲后回收；
// 持久化的事实在重新激活时都能读回来，回收只是省资源。
type Registry struct {
	mu     sync.Mutex
	coords map[string]*Coordinator
	subs   map[string]<-chan event.Event

	opts     Options
	pools    Pools
	store    Store
	notifier Notifier
	bus      *event.Bus

	quit chan struct{}
	once sync.Once
}

func NewRegistry(opts Options, pools Pools, store Store, notifier Notifier, bus *event.Bus) *Registry {
	opts.fill()
	return &Registry{
		coords:   make(map[string]*Coordinator),
		subs:     make(map[string]<-chan event.Event),
		opts:     opts,
		pools:    pools,
		store:    store,
		notifier: notifier,
		bus:      bus,
		quit:     make(chan struct{}),
	}
}

// Get 取（或激活）某用户的 coordinator
func (r *Registry) Get(ctx context.Context, userID string) (*Coordinator, error) {
	r.mu.Lock()
	if c, ok := r.coords[userID]; ok {
		r.mu.Unlock()
		return c, nil
	}
	r.mu.Unlock()

	// 激活属于基础设施引导：读存储失败带退避重试，不把瞬时故障甩给单个请求
	st, err := r.loadWithRetry(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.coords[userID]; ok {
		// 并发激活：别人先赢了就用别人的
		return c, nil
	}
	events := r.bus.Subscribe(userID)
	c := newCoordinator(userID, r.opts.MaxActiveGames, st, r.pools, r.store, r.notifier, events)
	go c.run()
	r.coords[userID] = c
	r.subs[userID] = events
	return c, nil
}

func (r *Registry) loadWithRetry(ctx context.Context, userID string) (State, error) {
	var st State
	var err error
	for attempt := 0; attempt < r.opts.LoadAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(r.opts.LoadBackoff):
			case <-ctx.Done():
				return st, ctx.Err()
			}
		}
		st, err = r.store.Load(ctx, userID)
		if err == nil {
			return st, nil
		}
		utils.Error.Printf("session %s: load attempt %d failed: %v", userID, attempt+1, err)
	}
	return st, err
}

// ---------- matchmaker.Sessions 与 handler 入口 ----------

func (r *Registry) CreateSeek(ctx context.Context, userID, connID string, skr *seek.Seeker, key seek.PoolKey) error {
	c, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.CreateSeek(ctx, connID, skr, key)
}

func (r *Registry) MatchWithOpenSeek(ctx context.Context, userID, connID string, skr *seek.Seeker, targetUserID string, key seek.PoolKey) error {
	c, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.MatchWithOpenSeek(ctx, connID, skr, targetUserID, key)
}

func (r *Registry) CancelSeek(ctx context.Context, userID string, key seek.PoolKey) error {
	c, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.CancelSeek(ctx, key)
}

func (r *Registry) CleanupConnection(ctx context.Context, userID, connID string) error {
	c, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.CleanupConnection(ctx, connID)
}

func (r *Registry) TryReserveSeek(ctx context.Context, userID string, key seek.PoolKey) (bool, error) {
	c, err := r.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	return c.TryReserveSeek(ctx, key)
}

func (r *Registry) ReleaseReservation(ctx context.Context, userID string, key seek.PoolKey) error {
	c, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	return c.ReleaseReservation(ctx, key)
}

// ---------- 回收 ----------

// StartJanitor 周期性回收空闲 coordinator
func (r *Registry) StartJanitor(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				r.sweep()
			case <-r.quit:
				return
			}
		}
	}()
}

func (r *Registry) sweep() {
	r.mu.Lock()
	candidates := make(map[string]*Coordinator, len(r.coords))
	for id, c := range r.coords {
		candidates[id] = c
	}
	r.mu.Unlock()

	now := time.Now()
	for id, c := range candidates {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		snap, err := c.stateSnapshot(ctx)
		cancel()
		if err != nil {
			continue
		}
		if snap.seeks > 0 || snap.games > 0 || snap.reservations > 0 {
			continue
		}
		if now.Sub(snap.lastActivity) < r.opts.EvictAfter {
			continue
		}
		r.evict(id, c)
	}
}

func (r *Registry) evict(userID string, c *Coordinator) {
	r.mu.Lock()
	if r.coords[userID] != c {
		r.mu.Unlock()
		return
	}
	delete(r.coords, userID)
	sub := r.subs[userID]
	delete(r.subs, userID)
	r.mu.Unlock()

	c.stop()
	if sub != nil {
		r.bus.Unsubscribe(userID, sub)
	}
	utils.Info.Printf("session %s: evicted (idle)", userID)
}

// Stop 停掉回收循环并关闭所有 coordinator
func (r *Registry) Stop() {
	r.once.Do(func() { close(r.quit) })
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.coords {
		c.stop()
		if sub := r.subs[id]; sub != nil {
			r.bus.Unsubscribe(id, sub)
		}
		delete(r.coords, id)
		delete(r.subs, id)
	}
}
