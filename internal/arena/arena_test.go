package arena

import (
	"context"
	"errors"
	"testing"
	"time"

	"ChessArena/internal/event"
	"ChessArena/internal/seek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoster struct {
	entries []Entry
	err     error
}

func (r *fakeRoster) Entries(ctx context.Context, tournamentID string) ([]Entry, error) {
	return r.entries, r.err
}

type fakeStarter struct {
	err error
}

func (f *fakeStarter) StartGame(ctx context.Context, userA, userB string, key seek.PoolKey) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "game-" + userA + "-" + userB, nil
}

func arenaKey() seek.PoolKey {
	return seek.PoolKey{Type: seek.PoolCasual, Time: seek.TimeControl{InitialSec: 180}}
}

func Test_StartResyncsFromRoster(t *testing.T) {
	roster := &fakeRoster{entries: []Entry{
		{UserID: "u1", UserName: "u1", Rating: 1500},
		{UserID: "u2", UserName: "u2", Rating: 1600, InGame: true},
		{UserID: "u3", UserName: "u3", Rating: 1700},
	}}
	a := New("t1", arenaKey(), time.Hour, roster, &fakeStarter{}, event.NewBus())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	// 对局中的人不回池
	n, err := a.Waiting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func Test_StartFailsWhenRosterUnavailable(t *testing.T) {
	roster := &fakeRoster{err: errors.New("roster service down")}
	a := New("t1", arenaKey(), time.Hour, roster, &fakeStarter{}, event.NewBus())

	assert.Error(t, a.Start(context.Background()))
}

func Test_WaveStartsGames(t *testing.T) {
	roster := &fakeRoster{entries: []Entry{
		{UserID: "u1", UserName: "u1"},
		{UserID: "u2", UserName: "u2"},
	}}
	bus := event.NewBus()
	ch1 := bus.Subscribe("u1")
	ch2 := bus.Subscribe("u2")

	a := New("t1", arenaKey(), 20*time.Millisecond, roster, &fakeStarter{}, bus)
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	ev1 := <-ch1
	ev2 := <-ch2
	assert.Equal(t, event.GameStarted, ev1.Kind)
	assert.Equal(t, ev1.GameToken, ev2.GameToken)

	n, err := a.Waiting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func Test_PlayerAvailableRequiresMembership(t *testing.T) {
	roster := &fakeRoster{entries: []Entry{{UserID: "u1", UserName: "u1"}}}
	a := New("t1", arenaKey(), time.Hour, roster, &fakeStarter{}, event.NewBus())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	err := a.PlayerAvailable(context.Background(), Entry{UserID: "stranger", UserName: "stranger"})
	assert.ErrorIs(t, err, ErrNotPartOfTournament)
}

func Test_PlayerAvailableAndUnavailable(t *testing.T) {
	roster := &fakeRoster{entries: []Entry{
		{UserID: "u1", UserName: "u1", InGame: true},
	}}
	a := New("t1", arenaKey(), time.Hour, roster, &fakeStarter{}, event.NewBus())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	n, _ := a.Waiting(context.Background())
	require.Equal(t, 0, n)

	// 局结束后回池
	require.NoError(t, a.PlayerAvailable(context.Background(), Entry{UserID: "u1", UserName: "u1"}))
	n, _ = a.Waiting(context.Background())
	assert.Equal(t, 1, n)

	require.NoError(t, a.PlayerUnavailable(context.Background(), "u1"))
	n, _ = a.Waiting(context.Background())
	assert.Equal(t, 0, n)
}

func Test_FailedStartKeepsPlayersInPool(t *testing.T) {
	roster := &fakeRoster{entries: []Entry{
		{UserID: "u1", UserName: "u1"},
		{UserID: "u2", UserName: "u2"},
	}}
	a := New("t1", arenaKey(), 20*time.Millisecond, roster, &fakeStarter{err: errors.New("game service down")}, event.NewBus())
	require.NoError(t, a.Start(context.Background()))
	defer a.Stop()

	// 开局失败的两人留在池里等下一个 wave
	time.Sleep(60 * time.Millisecond)
	n, err := a.Waiting(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func Test_ManagerStartStop(t *testing.T) {
	roster := &fakeRoster{entries: []Entry{{UserID: "u1", UserName: "u1"}}}
	m := NewManager(roster, &fakeStarter{}, event.NewBus(), time.Hour)
	defer m.StopAll()
	ctx := context.Background()

	require.NoError(t, m.Start(ctx, "t1", arenaKey()))
	assert.ErrorIs(t, m.Start(ctx, "t1", arenaKey()), ErrAlreadyRunning)

	_, ok := m.Get("t1")
	assert.True(t, ok)

	require.NoError(t, m.Stop("t1"))
	assert.ErrorIs(t, m.Stop("t1"), ErrNotRunning)
	_, ok = m.Get("t1")
	assert.False(t, ok)
}
