package seek

import (
	"sort"
	"time"
)

// Pool 单个 PoolKey 对应的求战队列。
// 不加锁：同一个池的方法只会被它的 worker 串行调用（路由保证）。
type Pool struct {
	key    PoolKey
	queue  []*Seeker // 到达顺序
	byUser map[string]*Seeker
	aging  AgingStrategy
}

func NewPool(key PoolKey, aging AgingStrategy) *Pool {
	if aging == nil {
		aging = NewLinearAging(0)
	}
	return &Pool{
		key:    key,
		byUser: make(map[string]*Seeker),
		aging:  aging,
	}
}

func (p *Pool) Key() PoolKey { return p.key }

func (p *Pool) Len() int { return len(p.queue) }

// AddSeeker 按 UserID upsert；重复加入替换内容但保留原排队位置
func (p *Pool) AddSeeker(s *Seeker) {
	if old, ok := p.byUser[s.UserID]; ok {
		for i, q := range p.queue {
			if q == old {
				p.queue[i] = s
				break
			}
		}
		p.byUser[s.UserID] = s
		return
	}
	p.queue = append(p.queue, s)
	p.byUser[s.UserID] = s
}

// Reinsert 成局失败后把求战者放回池里：按 CreatedAt 插回原来的排位，
// 无辜一方不因为别人的失败掉到队尾
func (p *Pool) Reinsert(s *Seeker) {
	if _, ok := p.byUser[s.UserID]; ok {
		p.AddSeeker(s)
		return
	}
	i := sort.Search(len(p.queue), func(i int) bool {
		return p.queue[i].CreatedAt.After(s.CreatedAt)
	})
	p.queue = append(p.queue, nil)
	copy(p.queue[i+1:], p.queue[i:])
	p.queue[i] = s
	p.byUser[s.UserID] = s
}

// RemoveSeeker 返回是否确实存在；重复调用无副作用
func (p *Pool) RemoveSeeker(userID string) bool {
	s, ok := p.byUser[userID]
	if !ok {
		return false
	}
	delete(p.byUser, userID)
	for i, q := range p.queue {
		if q == s {
			p.queue = append(p.queue[:i], p.queue[i+1:]...)
			break
		}
	}
	return true
}

func (p *Pool) HasSeeker(userID string) bool {
	_, ok := p.byUser[userID]
	return ok
}

func (p *Pool) TryGetSeeker(userID string) (*Seeker, bool) {
	s, ok := p.byUser[userID]
	return s, ok
}

// CalculateMatches 执行一个 wave：返回所有配对并把配对双方移出队列。
// 休闲池按到达顺序贪心；天梯池按等效分差从小到大取对。
// 天梯池里没配上的求战者 missedWaves+1，下个 wave 优先级上升。
func (p *Pool) CalculateMatches() []MatchPair {
	var pairs []MatchPair
	if p.key.Type == PoolRated {
		pairs = p.matchRated()
	} else {
		pairs = p.matchCasual()
	}
	for _, pr := range pairs {
		p.RemoveSeeker(pr.A.UserID)
		p.RemoveSeeker(pr.B.UserID)
	}
	if p.key.Type == PoolRated {
		for _, s := range p.queue {
			s.missedWaves++
		}
	}
	return pairs
}

// matchCasual 到达顺序贪心：每个未配对者找第一个互不拉黑的未配对者
func (p *Pool) matchCasual() []MatchPair {
	matched := make(map[string]bool, len(p.queue))
	var pairs []MatchPair
	for i, a := range p.queue {
		if matched[a.UserID] {
			continue
		}
		for _, b := range p.queue[i+1:] {
			if matched[b.UserID] {
				continue
			}
			if a.Excludes(b.UserID) || b.Excludes(a.UserID) {
				continue
			}
			pairs = append(pairs, MatchPair{A: a, B: b})
			matched[a.UserID] = true
			matched[b.UserID] = true
			break
		}
	}
	return pairs
}

type ratedCandidate struct {
	a, b      *Seeker
	distance  int
	effective int
}

// matchRated 枚举满足对称窗口的候选对，按等效分差排序后贪心取对。
// 等效分差 = 真实分差 - 双方的等待加成，排序键单调于等待时间，
// 老求战者最终必然排到所有新对之前。
func (p *Pool) matchRated() []MatchPair {
	var cands []ratedCandidate
	for i, a := range p.queue {
		for _, b := range p.queue[i+1:] {
			if a.Excludes(b.UserID) || b.Excludes(a.UserID) {
				continue
			}
			dist, ok := ratingDistance(a, b)
			if !ok {
				continue
			}
			eff := dist - p.aging.Priority(a.missedWaves) - p.aging.Priority(b.missedWaves)
			cands = append(cands, ratedCandidate{a: a, b: b, distance: dist, effective: eff})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].effective != cands[j].effective {
			return cands[i].effective < cands[j].effective
		}
		ei, ej := earliest(cands[i]), earliest(cands[j])
		if !ei.Equal(ej) {
			return ei.Before(ej)
		}
		return cands[i].a.UserID < cands[j].a.UserID
	})

	matched := make(map[string]bool)
	var pairs []MatchPair
	for _, c := range cands {
		if matched[c.a.UserID] || matched[c.b.UserID] {
			continue
		}
		pairs = append(pairs, MatchPair{A: c.a, B: c.b})
		matched[c.a.UserID] = true
		matched[c.b.UserID] = true
	}
	return pairs
}

// Compatible 直接匹配（指定对手）路径使用的兼容性检验
func Compatible(key PoolKey, a, b *Seeker) bool {
	if a.UserID == b.UserID {
		return false
	}
	if a.Excludes(b.UserID) || b.Excludes(a.UserID) {
		return false
	}
	if key.Type == PoolRated {
		_, ok := ratingDistance(a, b)
		return ok
	}
	return true
}

// ratingDistance 对称窗口检验：|ra-rb| <= min(rangeA??∞, rangeB??∞)
func ratingDistance(a, b *Seeker) (int, bool) {
	if a.Rating == nil || b.Rating == nil {
		return 0, false
	}
	dist := a.Rating.Value - b.Rating.Value
	if dist < 0 {
		dist = -dist
	}
	if a.Rating.AllowedRange != nil && dist > *a.Rating.AllowedRange {
		return 0, false
	}
	if b.Rating.AllowedRange != nil && dist > *b.Rating.AllowedRange {
		return 0, false
	}
	return dist, true
}

func earliest(c ratedCandidate) time.Time {
	if c.a.CreatedAt.Before(c.b.CreatedAt) {
		return c.a.CreatedAt
	}
	return c.b.CreatedAt
}
