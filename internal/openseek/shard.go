package openseek

import (
	"context"
	"hash/fnv"

	"ChessArena/internal/seek"
)

// OpenSeek 一条可被浏览的公开求战；只活在分片内存里，从不落盘
type OpenSeek struct {
	UserID   string       `json:"userId"`
	UserName string       `json:"userName"`
	Pool     seek.PoolKey `json:"pool"`
	Rating   *int         `json:"rating,omitempty"`
}

// Notifier 推送通道（WebSocket Hub 实现）
type Notifier interface {
	Notify(userID, eventName string, data map[string]any)
}

type entry struct {
	seek  OpenSeek
	conns map[string]struct{}
}

// Shard 公开求战注册表的一个分片。
// 订阅者列表归本分片的 goroutine 独占，新求战的广播扇出互不串扰。
type Shard struct {
	entries  map[string]*entry // userID -> entry
	notifier Notifier
	calls    chan func()
	quit     chan struct{}
}

func newShard(notifier Notifier) *Shard {
	s := &Shard{
		entries:  make(map[string]*entry),
		notifier: notifier,
		calls:    make(chan func(), 64),
		quit:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Shard) run() {
	for {
		select {
		case fn := <-s.calls:
			fn()
		case <-s.quit:
			return
		}
	}
}

func (s *Shard) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case s.calls <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.quit:
		return nil
	}
	select {
	case <-done:
	case <-s.quit:
	}
	return nil
}

// Subscribe 登记公开求战并返回本分片里其他人的快照。
// 重复订阅只是多挂一个连接，不会重复广播。
func (s *Shard) Subscribe(ctx context.Context, connID string, os OpenSeek) ([]OpenSeek, error) {
	var snapshot []OpenSeek
	err := s.do(ctx, func() {
		for id, e := range s.entries {
			if id != os.UserID {
				snapshot = append(snapshot, e.seek)
			}
		}
		if e, ok := s.entries[os.UserID]; ok {
			e.seek = os
			e.conns[connID] = struct{}{}
			return
		}
		s.entries[os.UserID] = &entry{
			seek:  os,
			conns: map[string]struct{}{connID: {}},
		}
		s.broadcastExcept(os.UserID, "new_open_seeks", map[string]any{
			"seeks": []OpenSeek{os},
		})
	})
	return snapshot, err
}

// Unsubscribe 摘掉一个连接；最后一个连接走了才撤掉求战。
// 幂等：没订阅过也安全。
func (s *Shard) Unsubscribe(ctx context.Context, userID, connID string) error {
	return s.do(ctx, func() {
		e, ok := s.entries[userID]
		if !ok {
			return
		}
		delete(e.conns, connID)
		if len(e.conns) > 0 {
			return
		}
		s.removeLocked(userID, e)
	})
}

// snapshot 本分片里除 skipUserID 以外的所有公开求战
func (s *Shard) snapshot(ctx context.Context, skipUserID string) ([]OpenSeek, error) {
	var out []OpenSeek
	err := s.do(ctx, func() {
		for id, e := range s.entries {
			if id != skipUserID {
				out = append(out, e.seek)
			}
		}
	})
	return out, err
}

// remove 成局后把用户整个摘掉（所有连接）
func (s *Shard) remove(userID string) {
	_ = s.do(context.Background(), func() {
		if e, ok := s.entries[userID]; ok {
			s.removeLocked(userID, e)
		}
	})
}

func (s *Shard) removeLocked(userID string, e *entry) {
	delete(s.entries, userID)
	s.broadcastExcept(userID, "open_seek_ended", map[string]any{
		"userId": userID,
		"pool":   e.seek.Pool,
	})
}

func (s *Shard) broadcastExcept(skipUserID, eventName string, data map[string]any) {
	if s.notifier == nil {
		return
	}
	for id := range s.entries {
		if id == skipUserID {
			continue
		}
		s.notifier.Notify(id, eventName, data)
	}
}

func (s *Shard) close() {
	close(s.quit)
}

// ShardSet 固定分片数的公开求战注册表。
// 分片数是部署参数，启动时定死：shard = fnv(userID) % n。
type ShardSet struct {
	shards []*Shard
}

func NewShardSet(count int, notifier Notifier) *ShardSet {
	if count <= 0 {
		count = 1
	}
	set := &ShardSet{shards: make([]*Shard, count)}
	for i := range set.shards {
		set.shards[i] = newShard(notifier)
	}
	return set
}

func (ss *ShardSet) shardOf(userID string) *Shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return ss.shards[int(h.Sum32())%len(ss.shards)]
}

// Subscribe 在自己的分片登记，但快照聚合所有分片
func (ss *ShardSet) Subscribe(ctx context.Context, connID string, os OpenSeek) ([]OpenSeek, error) {
	own := ss.shardOf(os.UserID)
	var all []OpenSeek
	for _, sh := range ss.shards {
		if sh == own {
			continue
		}
		snap, err := sh.snapshot(ctx, os.UserID)
		if err != nil {
			return nil, err
		}
		all = append(all, snap...)
	}
	snap, err := own.Subscribe(ctx, connID, os)
	if err != nil {
		return nil, err
	}
	return append(all, snap...), nil
}

func (ss *ShardSet) Unsubscribe(ctx context.Context, userID, connID string) error {
	return ss.shardOf(userID).Unsubscribe(ctx, userID, connID)
}

// Remove matchmaker.OpenSeeks 实现：成局后清理双方的公开求战
func (ss *ShardSet) Remove(userID string) {
	ss.shardOf(userID).remove(userID)
}

func (ss *ShardSet) Close() {
	for _, s := range ss.shards {
		s.close()
	}
}
