package seek

// AgingStrategy 决定等待越久的求战者优先级如何上升。
// 只影响候选配对的排序，绝不放宽双方声明的分差窗口，
// 这样窗口不变式始终成立，而老求战者不会被无限饿死。
type AgingStrategy interface {
	// Priority 返回熬过 missedWaves 个 wave 后获得的优先加成（等效分差折扣）
	Priority(missedWaves int) int
}

// LinearAging 每熬过一个 wave，等效分差减少 PerWave 分
type LinearAging struct {
	PerWave int
}

func NewLinearAging(perWave int) LinearAging {
	if perWave <= 0 {
		perWave = 50
	}
	return LinearAging{PerWave: perWave}
}

func (a LinearAging) Priority(missedWaves int) int {
	return a.PerWave * missedWaves
}
