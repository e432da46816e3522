package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PairServer/apps/presence/internal/handler"
	"PairServer/apps/presence/internal/manager"
	"PairServer/apps/presence/internal/notifier"
	"PairServer/apps/presence/internal/server"
	"PairServer/apps/presence/internal/svc"
	"PairServer/config"
	"PairServer/pkg/ctxmeta"
	"PairServer/pkg/logger"
	pkgredis "PairServer/pkg/redis"

	"github.com/joho/godotenv"
)

func main() {
	// presence 服务不是从 HTTP 请求起步，先放一个固定 trace_id 用于启动期日志串联。
	ctx := ctxmeta.WithTraceID(context.Background(), "0")

	// 1) 加载 .env（本地开发用，文件不存在时静默跳过）。
	_ = godotenv.Load()

	// 2) 初始化日志组件（必须最先完成，后续模块初始化都依赖日志输出）。
	logCfg := config.DefaultLoggerConfig()
	l, err := logger.Build(logCfg)
	if err != nil {
		panic(err)
	}
	logger.ReplaceGlobal(l)
	defer func() {
		_ = l.Sync()
	}()

	// 3) 初始化 Redis。
	// 说明：
	// - 活跃时间写入与撮合事件订阅都依赖 Redis。
	// - 这里采用降级策略：Redis 不可用时服务仍可启动（心跳可收但事件推送不可用）。
	redisCfg := config.DefaultRedisConfig()
	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		logger.Warn(ctx, "Presence 服务 Redis 初始化失败，降级为无 Redis 模式",
			logger.ErrorField("error", err),
		)
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		logger.Info(ctx, "Presence 服务 Redis 初始化成功",
			logger.String("addr", redisCfg.Addr),
		)
	}

	// 4) 组装核心依赖：
	// - manager:  连接注册/注销与在线连接索引。
	// - svc:      presence 业务逻辑（身份校验、心跳、断线标记）。
	// - notifier: 订阅撮合事件并转发到本实例的连接。
	// - handler:  Gin /ws 入口，承接协议层逻辑。
	presenceCfg := config.DefaultPresenceConfig()
	connManager := manager.NewConnectionManager()
	presenceSvc := svc.NewPresenceService(redisClient)
	wsHandler := handler.NewWSHandler(connManager, presenceSvc, presenceCfg)

	var eventNotifier *notifier.Notifier
	if redisClient != nil {
		eventNotifier = notifier.New(redisClient, connManager)
		eventNotifier.Start()
	}

	// 5) 构建 HTTP 服务（包含 /health、/metrics 与 /ws）。
	srv := server.New(presenceCfg, wsHandler)

	// 6) 后台启动 HTTP 监听。
	// ListenAndServe 的正常退出会返回 http.ErrServerClosed，这种情况不视为启动失败。
	go func() {
		logger.Info(ctx, "Presence 服务启动中",
			logger.String("addr", presenceCfg.Addr),
		)
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "Presence 服务启动失败",
				logger.ErrorField("error", err),
			)
		}
	}()

	// 7) 阻塞等待系统退出信号（Ctrl+C / SIGTERM）。
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// 8) 优雅关闭流程：
	// - 先停事件订阅，不再往连接里写新消息；
	// - 再关闭连接管理器，主动断开所有 WebSocket 连接；
	// - 最后关闭 HTTP 服务，等待进行中的请求在超时时间内结束。
	logger.Info(ctx, "Presence 服务开始优雅停机")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if eventNotifier != nil {
		eventNotifier.Stop()
	}
	connManager.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "Presence 服务优雅停机失败",
			logger.ErrorField("error", err),
		)
		return
	}

	logger.Info(ctx, "Presence 服务已退出")
}
