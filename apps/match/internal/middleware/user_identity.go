package middleware

import (
	"strings"

	"PairServer/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
)

const headerXUserUUID = "X-User-UUID"

// UserIdentityMiddleware 提取客户端自报的用户 UUID 并注入上下文
// 匿名配对没有账号体系，身份以客户端持有的 UUID 为准。
// 这里只做透传供日志、限流和活跃刷新使用，业务层仍以请求参数里的 userUuid 为准。
func UserIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uuid := strings.TrimSpace(c.GetHeader(headerXUserUUID))
		if uuid == "" {
			uuid = strings.TrimSpace(c.Query("userUuid"))
		}
		if uuid != "" {
			// 注入到 Gin Context
			c.Set(ctxmeta.KeyUserUUID, uuid)

			// 注入到 request context，传递给下游
			ctx := ctxmeta.WithUserUUID(c.Request.Context(), uuid)
			*c.Request = *c.Request.WithContext(ctx)
		}
		c.Next()
	}
}

// GetUserUUID 从 Context 中获取当前请求的用户 UUID
func GetUserUUID(c *gin.Context) (string, bool) {
	uuid := c.GetString(ctxmeta.KeyUserUUID)
	if uuid == "" {
		return "", false
	}
	return uuid, true
}
