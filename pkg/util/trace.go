package util

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const HeaderXRequestID = "X-Request-ID"

// TraceLogger 追踪中间件，生成或透传 trace_id 并存入 Gin 上下文
func TraceLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 优先使用上游（Nginx/网关）传入的请求 ID
		traceId := c.GetHeader(HeaderXRequestID)

		// 2. 没有则生成新的
		if traceId == "" {
			traceId = uuid.New().String()
		}

		// 3. 放入 Gin 上下文，供后续 handler 和日志使用
		c.Set("trace_id", traceId)

		// 4. 回写响应头，客户端报障时可凭此 ID 定位请求
		c.Header(HeaderXRequestID, traceId)

		c.Next()
	}
}

// NewUUID 生成新的 UUID
func NewUUID() string {
	return uuid.New().String()
}
