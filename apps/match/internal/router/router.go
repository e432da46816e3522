package router

import (
	"PairServer/apps/match/internal/middleware"
	v1 "PairServer/apps/match/internal/router/v1"
	"PairServer/config"
	"PairServer/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitRouter 初始化路由
// 各处理器由 main 构造后注入
func InitRouter(
	cfg *config.MatchConfig,
	matchHandler *v1.MatchHandler,
	sessionHandler *v1.SessionHandler,
	userHandler *v1.UserHandler,
	adminHandler *v1.AdminHandler,
) *gin.Engine {
	r := gin.New()

	// 恢复中间件
	r.Use(middleware.GinRecovery(true))

	// 追踪中间件 (生成 trace_id)
	r.Use(util.TraceLogger())

	// 客户端 IP 中间件
	r.Use(middleware.ClientIPMiddleware())

	// 用户身份透传中间件
	r.Use(middleware.UserIdentityMiddleware())

	// 日志中间件
	r.Use(middleware.GinLogger())

	// Prometheus 监控中间件
	r.Use(middleware.PrometheusMiddleware())

	// 跨域中间件
	r.Use(middleware.CorsMiddleware())

	// 健康检查（无需认证）
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Prometheus 指标暴露接口
	// Prometheus 会定时访问这个接口来拉取监控数据
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API 路由组
	api := r.Group("/api/v1")

	// 请求超时控制
	api.Use(middleware.TimeoutMiddleware(cfg.RequestTimeout))

	// IP 与用户两级限流
	api.Use(middleware.IPRateLimitMiddleware(cfg.IPRate, cfg.IPBurst))
	api.Use(middleware.UserRateLimitMiddleware(cfg.UserRate, cfg.UserBurst))

	// 熔断保护，存储层故障集中爆发时快速失败
	api.Use(middleware.CircuitBreakerMiddleware("match-api"))

	// 请求即活跃，带身份的请求顺带刷新在线状态
	api.Use(middleware.UserActiveMiddleware())
	{
		// 匹配接口
		match := api.Group("/match")
		{
			match.POST("/join", matchHandler.Join)
			match.POST("/leave", matchHandler.Leave)
			match.GET("/status", matchHandler.Status)
			match.POST("/next", matchHandler.Next)
		}

		// 会话接口
		session := api.Group("/session")
		{
			session.POST("/end", sessionHandler.End)
		}

		// 举报接口
		api.POST("/report", sessionHandler.Report)

		// 用户档案接口
		users := api.Group("/users")
		{
			users.POST("", userHandler.UpsertProfile)
			users.GET("/:userUuid", userHandler.GetProfile)
		}

		// 管理接口（管理员白名单校验）
		admin := api.Group("/admin")
		admin.Use(middleware.ModeratorAuthMiddleware(cfg.ModeratorUUIDs))
		{
			admin.GET("/stats", adminHandler.Stats)
			admin.GET("/reports", adminHandler.ListReports)
			admin.POST("/reports/:id/resolve", adminHandler.ResolveReport)
			admin.POST("/ban", adminHandler.Ban)
			admin.POST("/unban", adminHandler.Unban)
		}
	}

	return r
}
