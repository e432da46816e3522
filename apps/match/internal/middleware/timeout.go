package middleware

import (
	"context"
	"time"

	"PairServer/consts"
	"PairServer/pkg/logger"
	"PairServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// TimeoutMiddleware 请求超时控制中间件
// 不开启额外 Goroutine，依赖下游对 Context 超时的感知
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. 基于请求 context 派生带超时的 ctx
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		// 2. 替换请求的 context
		// 后续 Handler 和存储调用都会拿到这个有截止时间的 ctx
		c.Request = c.Request.WithContext(ctx)

		// 3. 直接在当前协程执行
		c.Next()

		// 4. 后置兜底：Handler 自己处理了超时并写过响应的，这里不再介入
		if ctx.Err() == context.DeadlineExceeded && !c.Writer.Written() {
			logCtx := NewContextWithGin(c)
			logger.Warn(logCtx, "请求处理超时",
				logger.String("path", c.Request.URL.Path),
				logger.Duration("timeout", timeout),
			)
			result.Fail(c, nil, consts.CodeRequestTimeout)
		}
	}
}
