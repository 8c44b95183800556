package matchmaker

import (
	"sync"
	"time"

	"ChessArena/internal/seek"
)

// Dispatcher 拿到一个 wave 的配对结果去提交成局
type Dispatcher interface {
	CommitPairs(key seek.PoolKey, pairs []seek.MatchPair)
}

// Registry 按 PoolKey 懒创建匹配池。
// 每个池一个 worker goroutine 串行执行池操作（路由即互斥）；
// 休闲池在加人时就地跑一个 wave，天梯池按固定节拍跑。
type Registry struct {
	mu      sync.Mutex
	handles map[seek.PoolKey]*handle

	aging      seek.AgingStrategy
	ratedEvery time.Duration
	dispatch   Dispatcher

	quit chan struct{}
	once sync.Once
}

type handle struct {
	ops  chan func(*seek.Pool)
	quit chan struct{}
}

func NewRegistry(aging seek.AgingStrategy, ratedEvery time.Duration) *Registry {
	if ratedEvery <= 0 {
		ratedEvery = 4 * time.Second
	}
	return &Registry{
		handles:    make(map[seek.PoolKey]*handle),
		aging:      aging,
		ratedEvery: ratedEvery,
		quit:       make(chan struct{}),
	}
}

// SetDispatcher 注册提交回调；必须在接第一个请求之前完成
func (r *Registry) SetDispatcher(d Dispatcher) {
	r.dispatch = d
}

func (r *Registry) getHandle(key seek.PoolKey) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.handles[key]; ok {
		return h
	}
	h := &handle{
		ops:  make(chan func(*seek.Pool), 64),
		quit: make(chan struct{}),
	}
	r.handles[key] = h
	go r.runPool(seek.NewPool(key, r.aging), h)
	return h
}

// runPool 池的唯一执行循环；天梯池自带 wave 定时器，停池时一并停掉
func (r *Registry) runPool(p *seek.Pool, h *handle) {
	var tick <-chan time.Time
	if p.Key().Type == seek.PoolRated {
		ticker := time.NewTicker(r.ratedEvery)
		defer ticker.Stop()
		tick = ticker.C
	}
	for {
		select {
		case fn := <-h.ops:
			fn(p)
		case <-tick:
			r.wave(p)
		case <-h.quit:
			return
		case <-r.quit:
			return
		}
	}
}

// wave 跑一轮配对；提交异步进行，绝不在池的 worker 里反向等 coordinator
func (r *Registry) wave(p *seek.Pool) {
	pairs := p.CalculateMatches()
	if len(pairs) > 0 && r.dispatch != nil {
		go r.dispatch.CommitPairs(p.Key(), pairs)
	}
}

// do 同步执行一个池操作
func (h *handle) do(fn func(*seek.Pool)) {
	done := make(chan struct{})
	h.ops <- func(p *seek.Pool) {
		fn(p)
		close(done)
	}
	<-done
}

// AddSeeker upsert 求战者；休闲池加完立即尝试配对
func (r *Registry) AddSeeker(key seek.PoolKey, s *seek.Seeker) {
	r.getHandle(key).do(func(p *seek.Pool) {
		p.AddSeeker(s)
		if key.Type == seek.PoolCasual {
			r.wave(p)
		}
	})
}

// Requeue 成局失败时把无辜一方按原排位塞回去，不触发立即配对（等下个契机）
func (r *Registry) Requeue(key seek.PoolKey, s *seek.Seeker) {
	r.getHandle(key).do(func(p *seek.Pool) {
		p.Reinsert(s)
	})
}

func (r *Registry) RemoveSeeker(key seek.PoolKey, userID string) bool {
	var removed bool
	r.getHandle(key).do(func(p *seek.Pool) {
		removed = p.RemoveSeeker(userID)
	})
	return removed
}

func (r *Registry) HasSeeker(key seek.PoolKey, userID string) bool {
	var ok bool
	r.getHandle(key).do(func(p *seek.Pool) {
		ok = p.HasSeeker(userID)
	})
	return ok
}

func (r *Registry) TryGetSeeker(key seek.PoolKey, userID string) (*seek.Seeker, bool) {
	var s *seek.Seeker
	var ok bool
	r.getHandle(key).do(func(p *seek.Pool) {
		s, ok = p.TryGetSeeker(userID)
	})
	return s, ok
}

// DirectMatch 和池里指定的公开求战者直接配对。
// 对手不在了或互不兼容时返回 false，发起方不会留在池里。
func (r *Registry) DirectMatch(key seek.PoolKey, s *seek.Seeker, targetUserID string) bool {
	var ok bool
	r.getHandle(key).do(func(p *seek.Pool) {
		target, found := p.TryGetSeeker(targetUserID)
		if !found || !seek.Compatible(key, s, target) {
			return
		}
		p.RemoveSeeker(targetUserID)
		ok = true
		if r.dispatch != nil {
			go r.dispatch.CommitPairs(key, []seek.MatchPair{{A: s, B: target}})
		}
	})
	return ok
}

// Shutdown 停掉所有池 worker（含天梯定时器）
func (r *Registry) Shutdown() {
	r.once.Do(func() { close(r.quit) })
}
