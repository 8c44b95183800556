package matchmaker

// SeekRequest 前端发起求战
type SeekRequest struct {
	ConnectionID string `json:"connectionId" binding:"required"`
	PoolType     string `json:"poolType" binding:"required"` // rated / casual
	InitialSec   int    `json:"initialSec" binding:"required"`
	IncrementSec int    `json:"incrementSec"`

	// 天梯参数；AllowedRatingRange 缺省走配置默认值
	Rating             int  `json:"rating"`
	AllowedRatingRange *int `json:"allowedRatingRange,omitempty"`

	// 重赛时带上上一个对手，避免立刻又配到同一个人
	RematchOpponent string `json:"rematchOpponent,omitempty"`
}

// SeekResponse 求战已登记（配对结果走 WebSocket 推送）
type SeekResponse struct {
	Created bool   `json:"created"`
	Pool    string `json:"pool"`
}

// CancelRequest 取消某个池的求战
type CancelRequest struct {
	PoolType     string `json:"poolType" binding:"required"`
	InitialSec   int    `json:"initialSec" binding:"required"`
	IncrementSec int    `json:"incrementSec"`
}

// DirectMatchRequest 指定一条公开求战直接配
type DirectMatchRequest struct {
	SeekRequest
	TargetUserID string `json:"targetUserId" binding:"required"`
}
