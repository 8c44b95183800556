package config

import (
	"log"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Port string
	}
	Database struct {
		DSN string
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
	}
	JWT struct {
		Secret string
	}
	Matchmaking struct {
		MaxActiveGames          int // 单个用户同时进行的对局+预约上限
		OpenSeekShardCount      int // 公开求战分片数，启动时固定
		RatedWaveEverySeconds   int // 天梯池配对节拍
		ArenaWaveEverySeconds   int // 锦标赛配对节拍
		DefaultRatingRange      int // 天梯池默认允许分差
		SessionIdleEvictSeconds int // 空闲会话回收时间
	}
}

var C Config

func Load() {
	viper.SetConfigFile("config/config.yaml")
	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("Failed to read config: %v", err)
	}
	if err := viper.Unmarshal(&C); err != nil {
		log.Fatalf("Failed to parse config: %v", err)
	}
	applyDefaults()
}

// applyDefaults 给匹配参数兜底，方便本地直接启动
func applyDefaults() {
	m := &C.Matchmaking
	if m.MaxActiveGames <= 0 {
		m.MaxActiveGames = 3
	}
	if m.OpenSeekShardCount <= 0 {
		m.OpenSeekShardCount = 4
	}
	if m.RatedWaveEverySeconds <= 0 {
		m.RatedWaveEverySeconds = 4
	}
	if m.ArenaWaveEverySeconds <= 0 {
		m.ArenaWaveEverySeconds = 10
	}
	if m.DefaultRatingRange <= 0 {
		m.DefaultRatingRange = 300
	}
	if m.SessionIdleEvictSeconds <= 0 {
		m.SessionIdleEvictSeconds = 600
	}
}
