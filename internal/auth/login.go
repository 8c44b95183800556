package auth

import (
	"time"

	"ChessArena/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type GuestLoginRequest struct {
	UserName string `json:"userName" binding:"required"`
}

type Handler struct{}

// 工厂方法：创建 handler
func NewHandler() *Handler {
	return &Handler{}
}

// Login 游客登录：给个名字就发 24h 的 JWT。
// 账号体系在别的服务里，这里只负责把身份塞进 token。
func (h *Handler) Login(c *gin.Context) {
	var req GuestLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": "bad request"})
		return
	}

	userID := uuid.NewString()

	claims := jwt.MapClaims{
		"sub":  userID,
		"name": req.UserName,
		"iat":  time.Now().Unix(),
		"exp":  time.Now().Add(time.Hour * 24).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	jwtStr, err := token.SignedString([]byte(config.C.JWT.Secret))
	if err != nil {
		c.JSON(500, gin.H{"error": "jwt generation failed"})
		return
	}

	c.JSON(200, gin.H{
		"jwt":    jwtStr,
		"userId": userID,
	})
}
