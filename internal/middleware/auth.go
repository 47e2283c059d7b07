package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/blues/campaignhub/internal/config"
	"github.com/blues/campaignhub/internal/logic"
	"github.com/blues/campaignhub/internal/model"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"gorm.io/gorm"
)

const actorKey = "actor"

// Claims 访问令牌
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// TokenIssuer 签发与校验 HS256 令牌
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenIssuer(cfg config.JWTConfig) *TokenIssuer {
	return &TokenIssuer{secret: []byte(cfg.Secret), issuer: cfg.Issuer, ttl: 24 * time.Hour}
}

// GenerateToken 生成令牌
func (t *TokenIssuer) GenerateToken(userId int64) (string, time.Time, error) {
	expireAt := time.Now().Add(t.ttl)
	claims := Claims{
		UserID: userId,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userId, 10),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expireAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	return token, expireAt, err
}

// ParseToken 校验令牌
func (t *TokenIssuer) ParseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(t.issuer))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message, "data": nil})
}

// bearerToken Authorization 头优先，websocket 连接使用 token 查询参数
func bearerToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		parts := strings.SplitN(h, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Query("token")
}

// Auth JWT 认证，加载用户后写入上下文
func Auth(issuer *TokenIssuer, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c)
		if raw == "" {
			abort(c, http.StatusUnauthorized, "缺少认证信息")
			return
		}
		claims, err := issuer.ParseToken(raw)
		if err != nil {
			abort(c, http.StatusUnauthorized, "令牌无效或已过期")
			return
		}

		var user model.UserModel
		if err := db.First(&user, claims.UserID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				abort(c, http.StatusUnauthorized, "用户不存在")
				return
			}
			abort(c, http.StatusInternalServerError, "加载用户失败")
			return
		}

		c.Set(actorKey, logic.ActorFromUser(&user))
		c.Next()
	}
}

// OptionalAuth 携带有效令牌时写入操作者，否则匿名继续
func OptionalAuth(issuer *TokenIssuer, db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := bearerToken(c); raw != "" {
			if claims, err := issuer.ParseToken(raw); err == nil {
				var user model.UserModel
				if err := db.First(&user, claims.UserID).Error; err == nil {
					c.Set(actorKey, logic.ActorFromUser(&user))
				}
			}
		}
		c.Next()
	}
}

// ActorFrom 读取当前操作者
func ActorFrom(c *gin.Context) (logic.Actor, bool) {
	v, ok := c.Get(actorKey)
	if !ok {
		return logic.Actor{}, false
	}
	actor, ok := v.(logic.Actor)
	return actor, ok
}

// RequireAdmin 管理员权限
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "缺少认证信息")
			return
		}
		if !actor.IsAdmin {
			abort(c, http.StatusForbidden, "需要管理员权限")
			return
		}
		c.Next()
	}
}

// RequireStaff 客服权限
func RequireStaff() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, http.StatusUnauthorized, "缺少认证信息")
			return
		}
		if !actor.IsStaff && !actor.IsAdmin {
			abort(c, http.StatusForbidden, "需要客服权限")
			return
		}
		c.Next()
	}
}
