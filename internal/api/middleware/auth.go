package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/d60-Lab/engagement/pkg/response"
)

const ctxUserID = "uid"

// Claims 只做校验，签发由身份服务负责
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth 校验 Authorization: Bearer <token>（HS256），uid 写入上下文
func JWTAuth(secret, issuer string) gin.HandlerFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "authorization header required")
			return
		}
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			response.Unauthorized(c, "invalid authorization format, use: Bearer <token>")
			return
		}

		var claims Claims
		if _, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
			if errors.Is(err, jwt.ErrTokenExpired) {
				response.Unauthorized(c, "token expired")
				return
			}
			response.Unauthorized(c, "invalid token")
			return
		}
		uid := claims.UserID
		if uid == "" {
			uid = claims.Subject
		}
		if uid == "" {
			response.Unauthorized(c, "token has no subject")
			return
		}
		c.Set(ctxUserID, uid)
		c.Next()
	}
}

// AdminOnly 必须挂在 JWTAuth 之后；uid 不在名单内返回 403
func AdminOnly(admins []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(admins))
	for _, id := range admins {
		if id = strings.TrimSpace(id); id != "" {
			allowed[id] = struct{}{}
		}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[UserID(c)]; !ok {
			response.Forbidden(c, "admin only")
			return
		}
		c.Next()
	}
}

// UserID 当前请求的认证用户
func UserID(c *gin.Context) string { return c.GetString(ctxUserID) }

// SignToken 本地调试与测试用
func SignToken(secret, issuer, uid string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: uid,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
