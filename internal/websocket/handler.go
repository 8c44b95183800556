package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GET /ws  (需带 JWT，middleware 已在 main.go 中加入)
// 每次握手分配一个 connectionId 并首帧回给前端，
// 后续 /seek/* 请求都要带上它。
func ServeWS(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("userId") // JWT middleware 注入
		userName := c.GetString("userName")

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}

		client := &Client{
			UserID:   userID,
			UserName: userName,
			ConnID:   uuid.NewString(),
			Conn:     conn,
			Send:     make(chan OutgoingMessage, 32),
			Hub:      hub,
		}

		hub.register <- client

		go client.writePump()
		go client.readPump()

		client.Send <- OutgoingMessage{
			Event: "connected",
			Data:  gin.H{"connectionId": client.ConnID},
		}
	}
}
