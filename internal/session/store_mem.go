package session

import (
	"context"
	"sync"
)

type memStore struct {
	mu     sync.Mutex
	states map[string]State
}

// NewMemoryStore 内存版，测试用
func NewMemoryStore() Store {
	return &memStore{states: make(map[string]State)}
}

func (m *memStore) Load(ctx context.Context, userID string) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[userID], nil
}

func (m *memStore) Save(ctx context.Context, userID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st.Empty() {
		delete(m.states, userID)
		return nil
	}
	m.states[userID] = st
	return nil
}

func (m *memStore) Clear(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, userID)
	return nil
}
