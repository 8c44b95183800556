package session

import (
	"context"

	"ChessArena/internal/seek"
)

// OngoingGame 一盘进行中的对局，coordinator 重建时从存储恢复
type OngoingGame struct {
	Token string       `json:"token"`
	Pool  seek.PoolKey `json:"pool"`
}

// State coordinator 的持久化部分。
// 预约和 recently-matched 护栏刻意不落盘：实例丢了就当这次匹配没发生过。
type State struct {
	ConnPools    []Entry       `json:"connPools"`
	OngoingGames []OngoingGame `json:"ongoingGames"`
}

func (s State) Empty() bool {
	return len(s.ConnPools) == 0 && len(s.OngoingGames) == 0
}

// Store 按 userID 存取会话状态的抽象
type Store interface {
	// Load 不存在时返回零值 State，不报错
	Load(ctx context.Context, userID string) (State, error)
	// Save 空状态等价于 Clear，避免给闲置用户留死数据
	Save(ctx context.Context, userID string, st State) error
	Clear(ctx context.Context, userID string) error
}
