package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mhmpets/mhm_server/internal/pkg/jwt"
	"github.com/mhmpets/mhm_server/internal/pkg/response"
)

const (
	AdminSubjectKey = "adminSubject"
)

// AdminAuth 管理接口认证，secret 为空时不校验
func AdminAuth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtSecret == "" {
			c.Next()
			return
		}

		tokenString, ok := bearerToken(c)
		if !ok {
			response.Abort(c, "Unauthorized")
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil || claims.Role != jwt.RoleAdmin {
			response.Abort(c, "Unauthorized")
			return
		}

		c.Set(AdminSubjectKey, claims.Subject)
		c.Next()
	}
}

// IsAdmin 供单入口分发使用，同样接受 ?token= 参数
func IsAdmin(c *gin.Context, jwtSecret string) bool {
	if jwtSecret == "" {
		return true
	}

	tokenString, ok := bearerToken(c)
	if !ok {
		tokenString = c.Query("token")
	}
	if tokenString == "" {
		return false
	}

	claims, err := jwt.ParseToken(tokenString, jwtSecret)
	if err != nil || claims.Role != jwt.RoleAdmin {
		return false
	}
	c.Set(AdminSubjectKey, claims.Subject)
	return true
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || tokenString == "" {
		return "", false
	}
	return tokenString, true
}

// GetAdminSubject 从上下文获取管理员标识
func GetAdminSubject(c *gin.Context) (string, bool) {
	subject, exists := c.Get(AdminSubjectKey)
	if !exists {
		return "", false
	}
	s, ok := subject.(string)
	return s, ok
}
