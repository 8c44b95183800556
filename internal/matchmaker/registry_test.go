package matchmaker

import (
	"sync"
	"testing"
	"time"

	"ChessArena/internal/seek"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectDispatcher 收集 wave 提交的配对
type collectDispatcher struct {
	mu    sync.Mutex
	pairs []seek.MatchPair
}

func (d *collectDispatcher) CommitPairs(key seek.PoolKey, pairs []seek.MatchPair) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pairs = append(d.pairs, pairs...)
}

func (d *collectDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pairs)
}

func (d *collectDispatcher) first() (seek.MatchPair, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.pairs) == 0 {
		return seek.MatchPair{}, false
	}
	return d.pairs[0], true
}

func casualKey() seek.PoolKey {
	return seek.PoolKey{Type: seek.PoolCasual, Time: seek.TimeControl{InitialSec: 300}}
}

func ratedKey() seek.PoolKey {
	return seek.PoolKey{Type: seek.PoolRated, Time: seek.TimeControl{InitialSec: 300}}
}

func casual(userID string) *seek.Seeker {
	return &seek.Seeker{
		UserID:         userID,
		UserName:       userID,
		CreatedAt:      time.Now(),
		ExcludeUserIDs: map[string]struct{}{},
	}
}

func rated(userID string, rating, allowedRange int) *seek.Seeker {
	s := casual(userID)
	s.Rating = &seek.Rating{Value: rating, AllowedRange: &allowedRange}
	return s
}

func Test_CasualPoolPairsOnArrival(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	reg.AddSeeker(casualKey(), casual("u1"))
	reg.AddSeeker(casualKey(), casual("u2"))

	require.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 10*time.Millisecond)

	pr, _ := d.first()
	assert.Equal(t, "u1", pr.A.UserID)
	assert.Equal(t, "u2", pr.B.UserID)
	assert.False(t, reg.HasSeeker(casualKey(), "u1"))
	assert.False(t, reg.HasSeeker(casualKey(), "u2"))
}

func Test_RequeueDoesNotTriggerWave(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	reg.Requeue(casualKey(), casual("u1"))
	reg.Requeue(casualKey(), casual("u2"))

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, d.count())
	assert.True(t, reg.HasSeeker(casualKey(), "u1"))
	assert.True(t, reg.HasSeeker(casualKey(), "u2"))
}

func Test_RequeueRestoresArrivalOrder(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	base := time.Now()
	u1 := casual("u1")
	u1.CreatedAt = base
	u2 := casual("u2")
	u2.CreatedAt = base.Add(time.Second)
	u3 := casual("u3")
	u3.CreatedAt = base.Add(2 * time.Second)

	// 乱序回池：排位要按 CreatedAt 恢复，不是谁后回来谁排队尾
	reg.Requeue(casualKey(), u1)
	reg.Requeue(casualKey(), u3)
	reg.Requeue(casualKey(), u2)

	u4 := casual("u4")
	u4.CreatedAt = base.Add(3 * time.Second)
	reg.AddSeeker(casualKey(), u4)

	require.Eventually(t, func() bool { return d.count() == 2 }, time.Second, 10*time.Millisecond)
	pr, _ := d.first()
	assert.Equal(t, "u1", pr.A.UserID)
	assert.Equal(t, "u2", pr.B.UserID)
}

func Test_RatedPoolPairsOnTicker(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), 20*time.Millisecond)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	reg.AddSeeker(ratedKey(), rated("u1", 1500, 100))
	reg.AddSeeker(ratedKey(), rated("u2", 1550, 100))

	require.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 10*time.Millisecond)
}

func Test_RemoveSeeker(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()

	reg.AddSeeker(casualKey(), casual("u1"))
	assert.True(t, reg.HasSeeker(casualKey(), "u1"))

	assert.True(t, reg.RemoveSeeker(casualKey(), "u1"))
	assert.False(t, reg.HasSeeker(casualKey(), "u1"))

	// 幂等
	assert.False(t, reg.RemoveSeeker(casualKey(), "u1"))
}

func Test_DirectMatchCommitsPair(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	reg.Requeue(casualKey(), casual("target"))

	ok := reg.DirectMatch(casualKey(), casual("challenger"), "target")
	require.True(t, ok)

	require.Eventually(t, func() bool { return d.count() == 1 }, time.Second, 10*time.Millisecond)
	pr, _ := d.first()
	assert.Equal(t, "challenger", pr.A.UserID)
	assert.Equal(t, "target", pr.B.UserID)
	assert.False(t, reg.HasSeeker(casualKey(), "target"))
}

func Test_DirectMatchTargetGone(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	ok := reg.DirectMatch(casualKey(), casual("challenger"), "nobody")
	assert.False(t, ok)
	assert.Equal(t, 0, d.count())
	// 发起方不会悄悄留在池里
	assert.False(t, reg.HasSeeker(casualKey(), "challenger"))
}

func Test_DirectMatchRespectsRatingWindow(t *testing.T) {
	reg := NewRegistry(seek.NewLinearAging(0), time.Hour)
	defer reg.Shutdown()
	d := &collectDispatcher{}
	reg.SetDispatcher(d)

	reg.Requeue(ratedKey(), rated("target", 1800, 50))

	ok := reg.DirectMatch(ratedKey(), rated("challenger", 1500, 50), "target")
	assert.False(t, ok)
	// 配不上时对手留在池里继续等别人
	assert.True(t, reg.HasSeeker(ratedKey(), "target"))
}
