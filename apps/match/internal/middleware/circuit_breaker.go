package middleware

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PairServer/consts"
	"PairServer/pkg/logger"
	"PairServer/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/sony/gobreaker"
)

// responseCode 读取 handler 写入的业务响应码
func responseCode(c *gin.Context) (int32, bool) {
	v, exists := c.Get(result.KeyResponseCode)
	if !exists {
		return 0, false
	}
	code, ok := v.(int32)
	return code, ok
}

// CircuitBreakerMiddleware 熔断中间件
// 统计本组路由的服务端错误，故障集中爆发时快速失败，给存储层恢复时间。
// 业务错误走 HTTP 200，失败判定依据响应里的业务码而不是 HTTP 状态码。
func CircuitBreakerMiddleware(name string) gin.HandlerFunc {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,                // 半开状态下最多允许 3 个请求尝试
		Interval:    15 * time.Second, // 清除计数的时间间隔
		Timeout:     45 * time.Second, // 熔断器开启后多久尝试进入半开状态
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// 失败率超过 50% 且样本数达到 5 次时触发熔断
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn(context.Background(), "熔断器状态变化",
				logger.String("name", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})

	return func(c *gin.Context) {
		_, err := cb.Execute(func() (interface{}, error) {
			c.Next()

			// 30000 段为服务端故障码，计入熔断统计
			if code, ok := responseCode(c); ok && code >= consts.CodeInternalError {
				return nil, fmt.Errorf("server error: code=%d", code)
			}
			return nil, nil
		})
		if err == nil {
			return
		}

		// 熔断开启或半开试探额度用完时请求没有被执行，这里直接拒绝
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			result.Fail(c, nil, consts.CodeServiceBusy)
			c.Abort()
			return
		}

		// 其他错误来自 handler 自身，响应已写出，只参与熔断计数
	}
}
