package event

import (
	"sync"

	"ChessArena/internal/seek"
)

type Kind string

const (
	GameStarted Kind = "game_started"
	GameEnded   Kind = "game_ended"
)

// Event 对局生命周期事件。topic 按 userID 划分，
// 投递语义 at-least-once，订阅方的处理必须幂等。
type Event struct {
	Kind      Kind         `json:"kind"`
	GameToken string       `json:"gameToken"`
	Pool      seek.PoolKey `json:"pool"`
	Users     []string     `json:"users"`
}

const subscriberBuffer = 16

// subscriber 每个订阅者自带积压队列和一个搬运 goroutine。
// Publish 只追加积压，永不阻塞也永不丢：GameStarted 是 coordinator
// 消耗预约的唯一途径，丢一条就永久泄漏一个预约位。
type subscriber struct {
	mu      sync.Mutex
	backlog []Event

	wake chan struct{}
	out  chan Event
	quit chan struct{}
}

func newSubscriber() *subscriber {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan Event, subscriberBuffer),
		quit: make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.backlog = append(s.backlog, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// run 把积压搬进 out；退订后停止并关闭 out
func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		var ev Event
		ok := len(s.backlog) > 0
		if ok {
			ev = s.backlog[0]
			s.backlog = s.backlog[1:]
		}
		s.mu.Unlock()

		if !ok {
			select {
			case <-s.wake:
				continue
			case <-s.quit:
				return
			}
		}
		select {
		case s.out <- ev:
		case <-s.quit:
			return
		}
	}
}

// Bus 每用户一个 topic 的进程内发布/订阅。
// 只做追加式广播，订阅者之间互不阻塞。
type Bus struct {
	mu     sync.RWMutex
	topics map[string][]*subscriber
}

func NewBus() *Bus {
	return &Bus{topics: make(map[string][]*subscriber)}
}

// Subscribe 返回该用户 topic 的接收通道
func (b *Bus) Subscribe(userID string) <-chan Event {
	s := newSubscriber()
	b.mu.Lock()
	b.topics[userID] = append(b.topics[userID], s)
	b.mu.Unlock()
	return s.out
}

// Unsubscribe 摘除订阅者并关闭其通道；对未订阅的通道调用是 no-op
func (b *Bus) Unsubscribe(userID string, ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[userID]
	for i, s := range subs {
		if s.out == ch {
			b.topics[userID] = append(subs[:i], subs[i+1:]...)
			close(s.quit)
			break
		}
	}
	if len(b.topics[userID]) == 0 {
		delete(b.topics, userID)
	}
}

// Publish 追加进订阅者的积压队列，不阻塞发布方；
// 只要订阅者还活着，事件迟早送达
func (b *Bus) Publish(userID string, ev Event) {
	b.mu.RLock()
	subs := b.topics[userID]
	b.mu.RUnlock()
	for _, s := range subs {
		s.push(ev)
	}
}

// PublishAll 把同一事件发给每个参与者的 topic
func (b *Bus) PublishAll(ev Event) {
	for _, u := range ev.Users {
		b.Publish(u, ev)
	}
}
