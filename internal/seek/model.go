package seek

import (
	"fmt"
	"time"
)

// PoolType 池类型：天梯 / 休闲
type PoolType string

const (
	PoolRated  PoolType = "rated"
	PoolCasual PoolType = "casual"
)

// TimeControl 时间控制，例如 5+0、3+2
type TimeControl struct {
	InitialSec   int `json:"initialSec"`
	IncrementSec int `json:"incrementSec"`
}

func (tc TimeControl) String() string {
	return fmt.Sprintf("%d+%d", tc.InitialSec, tc.IncrementSec)
}

// PoolKey 唯一标识一个匹配池，可比较、可作 map key
type PoolKey struct {
	Type PoolType    `json:"type"`
	Time TimeControl `json:"time"`
}

func (k PoolKey) String() string {
	return fmt.Sprintf("%s:%s", k.Type, k.Time)
}

// Rating 天梯求战者的分数约束；AllowedRange 为 nil 表示不限分差
type Rating struct {
	Value        int  `json:"value"`
	AllowedRange *int `json:"allowedRange,omitempty"`
}

// Seeker 一条待匹配请求。Rating 为 nil 即休闲求战者。
// 同一个池内以 UserID 去重，重复加入视为替换。
type Seeker struct {
	UserID         string
	UserName       string
	CreatedAt      time.Time
	ExcludeUserIDs map[string]struct{} // 黑名单 + 重赛时的上一个对手
	Rating         *Rating

	missedWaves int // 未被匹配而熬过的 wave 数，只在池内维护
}

// Excludes 判断是否禁止与 other 配对
func (s *Seeker) Excludes(other string) bool {
	_, ok := s.ExcludeUserIDs[other]
	return ok
}

// MissedWaves 供排序/测试观察
func (s *Seeker) MissedWaves() int { return s.missedWaves }

// MatchPair 一次配对结果
type MatchPair struct {
	A *Seeker
	B *Seeker
}
