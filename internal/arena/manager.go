package arena

import (
	"context"
	"errors"
	"sync"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/game"
	"ChessArena/internal/seek"
)

var (
	ErrAlreadyRunning = errors.New("tournament already running")
	ErrNotRunning     = errors.New("tournament not running")
)

// Manager 按 tournamentID 管理运行中的 Arena
type Manager struct {
	mu     sync.Mutex
	arenas map[string]*Arena

	roster    Roster
	starter   game.Starter
	bus       *event.Bus
	waveEvery time.Duration
}

func NewManager(roster Roster, starter game.Starter, bus *event.Bus, waveEvery time.Duration) *Manager {
	return &Manager{
		arenas:    make(map[string]*Arena),
		roster:    roster,
		starter:   starter,
		bus:       bus,
		waveEvery: waveEvery,
	}
}

func (m *Manager) Start(ctx context.Context, tournamentID string, key seek.PoolKey) error {
	m.mu.Lock()
	if _, ok := m.arenas[tournamentID]; ok {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	a := New(tournamentID, key, m.waveEvery, m.roster, m.starter, m.bus)
	m.arenas[tournamentID] = a
	m.mu.Unlock()

	if err := a.Start(ctx); err != nil {
		m.mu.Lock()
		delete(m.arenas, tournamentID)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Manager) Stop(tournamentID string) error {
	m.mu.Lock()
	a, ok := m.arenas[tournamentID]
	if ok {
		delete(m.arenas, tournamentID)
	}
	m.mu.Unlock()
	if !ok {
		return ErrNotRunning
	}
	a.Stop()
	return nil
}

func (m *Manager) Get(tournamentID string) (*Arena, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.arenas[tournamentID]
	return a, ok
}

// StopAll 停服时回收所有 wave 定时器
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, a := range m.arenas {
		a.Stop()
		delete(m.arenas, id)
	}
}
