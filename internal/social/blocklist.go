package social

import (
	"context"
	"database/sql"
	"sync"
)

// BlockList 黑名单查询，喂给求战者的 ExcludeUserIds
type BlockList interface {
	// Blocked 返回 userID 拉黑的所有用户
	Blocked(ctx context.Context, userID string) ([]string, error)
}

type pgBlockList struct {
	db *sql.DB
}

// NewPostgresBlockList 黑名单存在 user_blocks(user_id, blocked_id) 表里
func NewPostgresBlockList(db *sql.DB) BlockList {
	return &pgBlockList{db: db}
}

func (b *pgBlockList) Blocked(ctx context.Context, userID string) ([]string, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT blocked_id FROM user_blocks WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MemBlockList 内存版，测试和无库启动用
type MemBlockList struct {
	mu      sync.RWMutex
	blocked map[string]map[string]struct{}
}

func NewMemoryBlockList() *MemBlockList {
	return &MemBlockList{blocked: make(map[string]map[string]struct{})}
}

func (m *MemBlockList) Block(userID, blockedID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blocked[userID]; !ok {
		m.blocked[userID] = make(map[string]struct{})
	}
	m.blocked[userID][blockedID] = struct{}{}
}

func (m *MemBlockList) Blocked(ctx context.Context, userID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for id := range m.blocked[userID] {
		ids = append(ids, id)
	}
	return ids, nil
}
