package middleware

import (
	"strings"

	"PairServer/consts"
	"PairServer/pkg/ctxmeta"
	"PairServer/pkg/logger"
	"PairServer/pkg/result"

	"github.com/gin-gonic/gin"
)

const headerXModeratorUUID = "X-Moderator-UUID"

// ModeratorAuthMiddleware 管理接口访问控制
// 请求头携带的管理员 UUID 必须在配置的白名单内。
// 白名单为空时拒绝所有请求，宁可管理接口不可用也不裸奔。
func ModeratorAuthMiddleware(moderatorUUIDs []string) gin.HandlerFunc {
	allow := make(map[string]struct{}, len(moderatorUUIDs))
	for _, id := range moderatorUUIDs {
		if id = strings.TrimSpace(id); id != "" {
			allow[id] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		uuid := strings.TrimSpace(c.GetHeader(headerXModeratorUUID))
		if uuid == "" {
			// 未携带管理员身份,属于正常业务流程,不记录日志
			result.Fail(c, nil, consts.CodePermissionDeny)
			c.Abort()
			return
		}

		if _, ok := allow[uuid]; !ok {
			logger.Warn(NewContextWithGin(c), "非白名单身份访问管理接口",
				logger.String("moderator_uuid", uuid),
				logger.String("path", c.Request.URL.Path),
			)
			result.Fail(c, nil, consts.CodePermissionDeny)
			c.Abort()
			return
		}

		// 管理员身份写入上下文，审计日志可追溯操作人
		c.Set(ctxmeta.KeyUserUUID, uuid)
		ctx := ctxmeta.WithUserUUID(c.Request.Context(), uuid)
		*c.Request = *c.Request.WithContext(ctx)

		c.Next()
	}
}
