package server

import (
	"context"
	"net/http"
	"os"

	"PairServer/apps/presence/internal/handler"
	"PairServer/config"
	"PairServer/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server 对 http.Server 的轻量封装。
// 这里集中管理启动和优雅关闭，避免调用方直接操作底层对象。
type Server struct {
	httpServer *http.Server
}

// New 构建 Gin 路由并包装成 HTTP Server。
// 不设置 ReadTimeout/WriteTimeout：连接升级后生命周期由
// 应用层心跳超时接管，HTTP 级超时只约束握手阶段。
func New(cfg config.PresenceConfig, wsHandler *handler.WSHandler) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           newEngine(wsHandler),
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			IdleTimeout:       cfg.IdleTimeout,
		},
	}
}

// newEngine 构建路由。
// 路由职责：
// - GET /health:  健康检查，供容器/探针调用。
// - GET /metrics: Prometheus 指标。
// - GET /ws:      WebSocket 接入入口。
func newEngine(wsHandler *handler.WSHandler) *gin.Engine {
	ginMode := os.Getenv("GIN_MODE")
	if ginMode == "" {
		ginMode = gin.ReleaseMode
	}
	gin.SetMode(ginMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(util.TraceLogger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", wsHandler.ServeWS)

	return r
}

// Start 启动 HTTP 监听。
// 正常优雅关闭时会返回 http.ErrServerClosed，调用方应将其视为正常退出。
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown 执行优雅停机。
// 调用方需要传入带超时的 ctx，以防止无限等待。
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
