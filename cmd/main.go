package main

import (
	"context"
	"net/http"
	"time"

	"ChessArena/config"
	"ChessArena/internal/arena"
	"ChessArena/internal/auth"
	"ChessArena/internal/event"
	"ChessArena/internal/game"
	"ChessArena/internal/matchmaker"
	"ChessArena/internal/middleware"
	"ChessArena/internal/openseek"
	"ChessArena/internal/seek"
	"ChessArena/internal/session"
	"ChessArena/internal/social"
	"ChessArena/internal/storage"
	"ChessArena/internal/utils"
	"ChessArena/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	config.Load()
	utils.Init()
	utils.Print.Info("ChessArena matchmaking starting", "port", config.C.Server.Port)

	//-------------------------------------------------------
	// 1. 初始化 Redis / Postgres
	//-------------------------------------------------------
	if err := storage.InitRedis(
		config.C.Redis.Addr,
		config.C.Redis.Password,
		config.C.Redis.DB,
	); err != nil {
		utils.Error.Fatalf("Redis init failed: %v", err)
	}

	if err := storage.InitPostgres(config.C.Database.DSN); err != nil {
		utils.Error.Fatalf("Postgres init failed: %v", err)
	}

	//-------------------------------------------------------
	// 2. 初始化 Gin + CORS
	//-------------------------------------------------------
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	//-------------------------------------------------------
	// 3. 初始化 Hub（必须最先启动）
	//-------------------------------------------------------
	hub := websocket.NewHub()
	go hub.Run()

	//-------------------------------------------------------
	// 4. 对局事件总线 + 开局器
	//-------------------------------------------------------
	bus := event.NewBus()
	starter := game.NewTokenStarter(storage.Rdb, 24*time.Hour)

	//-------------------------------------------------------
	// 5. 匹配池注册表
	//-------------------------------------------------------
	mm := config.C.Matchmaking
	pools := matchmaker.NewRegistry(
		seek.NewLinearAging(0),
		time.Duration(mm.RatedWaveEverySeconds)*time.Second,
	)

	//-------------------------------------------------------
	// 6. 会话 coordinator 注册表（懒激活 + 空闲回收）
	//-------------------------------------------------------
	sessions := session.NewRegistry(
		session.Options{
			MaxActiveGames: mm.MaxActiveGames,
			EvictAfter:     time.Duration(mm.SessionIdleEvictSeconds) * time.Second,
		},
		pools,
		session.NewRedisStore(storage.Rdb),
		hub,
		bus,
	)
	sessions.StartJanitor(time.Minute)

	//-------------------------------------------------------
	// 7. 公开求战分片 + 撮合服务
	//-------------------------------------------------------
	shards := openseek.NewShardSet(mm.OpenSeekShardCount, hub)
	matchmaker.NewService(pools, sessions, starter, bus, shards)

	// 💡 连接断开 → 回收该连接占用的求战
	hub.OnDisconnect = func(userID, connID string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sessions.CleanupConnection(ctx, userID, connID); err != nil {
			utils.Error.Printf("CleanupConnection %s/%s: %v", userID, connID, err)
		}
		if err := shards.Unsubscribe(ctx, userID, connID); err != nil {
			utils.Error.Printf("openseek.Unsubscribe %s/%s: %v", userID, connID, err)
		}
	}

	//-------------------------------------------------------
	// 8. 路由
	//-------------------------------------------------------
	authGroup := r.Group("/auth")
	{
		ah := auth.NewHandler()
		authGroup.POST("/login", ah.Login)
	}

	secret := ([]byte)(config.C.JWT.Secret)
	authed := r.Group("/", middleware.JwtAuthMiddleware(secret))
	{
		authed.GET("/ws", websocket.ServeWS(hub))

		blocks := social.NewPostgresBlockList(storage.DB)
		sh := matchmaker.NewHandler(sessions, blocks, mm.DefaultRatingRange)
		authed.POST("/seek/create", sh.Create)
		authed.POST("/seek/cancel", sh.Cancel)
		authed.POST("/seek/direct", sh.DirectMatch)

		oh := openseek.NewHandler(shards)
		authed.POST("/seek/open/subscribe", oh.Subscribe)
		authed.POST("/seek/open/unsubscribe", oh.Unsubscribe)

		arenas := arena.NewManager(
			arena.NewPostgresRoster(storage.DB),
			starter,
			bus,
			time.Duration(mm.ArenaWaveEverySeconds)*time.Second,
		)
		ath := arena.NewHandler(arenas)
		authed.POST("/arena/start", ath.Start)
		authed.POST("/arena/stop", ath.Stop)
		authed.POST("/arena/available", ath.Available)
		authed.POST("/arena/unavailable", ath.Unavailable)
	}

	//-------------------------------------------------------
	// 9. 启动服务器
	//-------------------------------------------------------
	utils.Info.Printf("Server running on %s", config.C.Server.Port)
	r.Run(config.C.Server.Port)
}
