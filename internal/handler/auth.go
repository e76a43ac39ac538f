package handler

import (
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type TokenRequest struct {
	Code string `json:"code"`
}

// Auth 管理员口令换取 JWT；未配置口令时不做校验
type Auth struct {
	code   string
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

const tokenSubject = "admin"

// NewAuth ttl<=0 时默认12小时
func NewAuth(adminCode, secret string, ttl time.Duration) *Auth {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Auth{code: adminCode, secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Enabled 是否启用认证
func (a *Auth) Enabled() bool {
	return a.code != ""
}

func (a *Auth) generateToken() (string, time.Time, error) {
	now := a.now()
	exp := now.Add(a.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   tokenSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := token.SignedString(a.secret)
	return s, exp, err
}

// ValidateToken 校验签名、算法与有效期
func (a *Auth) ValidateToken(tokenString string) bool {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(a.now))
	if err != nil || !token.Valid {
		return false
	}
	return claims.Subject == tokenSubject
}

// IssueToken 校验管理员口令并签发 token
func (a *Auth) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"message": "请求参数错误",
		})
		return
	}

	if !a.Enabled() {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"message": "未启用认证",
		})
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Code), []byte(a.code)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"message": "管理口令错误",
		})
		return
	}

	token, exp, err := a.generateToken()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "生成token失败",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"message":    "验证成功",
		"token":      token,
		"expires_at": exp,
	})
}

// Middleware 认证中间件
func (a *Auth) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.Enabled() {
			c.Next()
			return
		}

		token := c.GetHeader("Authorization")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "未授权访问",
			})
			c.Abort()
			return
		}
		token = strings.TrimPrefix(token, "Bearer ")

		if !a.ValidateToken(token) {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "token无效或已过期",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
