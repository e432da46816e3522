package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"PairServer/apps/match/internal/matching"
	"PairServer/apps/match/internal/repository"
	"PairServer/apps/match/internal/router"
	v1 "PairServer/apps/match/internal/router/v1"
	"PairServer/apps/match/internal/service"
	"PairServer/apps/match/mq"
	"PairServer/config"
	"PairServer/model"
	"PairServer/pkg/async"
	"PairServer/pkg/ctxmeta"
	"PairServer/pkg/kafka"
	"PairServer/pkg/logger"
	"PairServer/pkg/mysql"
	pkgredis "PairServer/pkg/redis"
	"PairServer/pkg/util"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. 加载 .env（本地开发用，文件不存在时静默跳过）
	_ = godotenv.Load()

	// 2. 初始化日志
	logCfg := config.DefaultLoggerConfig()
	zl, err := logger.Build(logCfg)
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	logger.ReplaceGlobal(zl)
	defer zl.Sync()

	matchCfg := config.DefaultMatchConfig()

	// 3. 初始化MySQL
	dbCfg := config.DefaultMySQLConfig()
	db, err := mysql.Build(dbCfg)
	if err != nil {
		log.Fatalf("初始化MySQL失败: %v", err)
	}
	mysql.ReplaceGlobal(db)

	// 表结构简单，启动时自动迁移，省掉独立的 migration 流程
	if err := db.AutoMigrate(
		&model.ChatUser{},
		&model.QueueEntry{},
		&model.PairRecord{},
		&model.UserReport{},
	); err != nil {
		log.Fatalf("自动迁移表结构失败: %v", err)
	}

	// 4. 初始化Redis
	redisCfg := config.DefaultRedisConfig()
	// 调整 Redis 读写超时时间为 50ms（快速失败）
	redisCfg.ReadTimeout = 50 * time.Millisecond
	redisCfg.WriteTimeout = 50 * time.Millisecond

	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		// Redis 初始化失败不阻塞启动（降级到只用 MySQL，匹配事件通知不可用）
		logger.Warn(ctx, "Redis 初始化失败，将降级到 MySQL-Only 模式",
			logger.ErrorField("error", err),
		)
		redisClient = nil
	} else {
		pkgredis.ReplaceGlobal(redisClient)
		logger.Info(ctx, "Redis 初始化成功",
			logger.String("addr", redisCfg.Addr),
		)
	}

	// 5. 初始化 Kafka（仅在 Redis 可用时启动）
	var kafkaProducer *kafka.Producer
	var redisConsumer *mq.RedisRetryConsumer
	if redisClient != nil {
		kafkaCfg := config.DefaultKafkaConfig()

		// 创建 Kafka Producer
		kafkaProducer = kafka.NewProducer(kafkaCfg.Brokers, kafkaCfg.RedisRetryTopic)
		mq.SetGlobalProducer(kafkaProducer)
		logger.Info(ctx, "Kafka Producer 初始化成功",
			logger.String("brokers", kafkaCfg.Brokers[0]),
			logger.String("topic", kafkaCfg.RedisRetryTopic),
		)

		// 创建 Redis 重试消费者
		zapLogger := kafka.NewZapLoggerAdapter(logger.L())
		redisConsumer = mq.NewRedisRetryConsumer(
			kafkaCfg.Brokers,
			kafkaCfg.RedisRetryTopic,
			kafkaCfg.ConsumerConfig.GroupID,
			redisClient,
			kafkaProducer,
			zapLogger,
		)

		// 启动消费者（在后台 goroutine 中运行）
		go func() {
			logger.Info(ctx, "Redis 重试消费者启动中",
				logger.String("topic", kafkaCfg.RedisRetryTopic),
				logger.String("group_id", kafkaCfg.ConsumerConfig.GroupID),
			)
			redisConsumer.Start(ctx)
		}()

		// 确保程序退出时关闭 Kafka 连接
		defer func() {
			if kafkaProducer != nil {
				if err := kafkaProducer.Close(); err != nil {
					logger.Error(ctx, "关闭 Kafka Producer 失败", logger.ErrorField("error", err))
				}
			}
			if redisConsumer != nil {
				if err := redisConsumer.Close(); err != nil {
					logger.Error(ctx, "关闭 Redis 重试消费者失败", logger.ErrorField("error", err))
				}
			}
		}()
	}

	// 6. 初始化小组件
	if err := util.InitSnowflake(1); err != nil {
		log.Fatalf("初始化雪花算法失败: %v", err)
	}
	if err := async.Init(config.DefaultAsyncConfig()); err != nil {
		log.Fatalf("初始化协程池失败: %v", err)
	}
	// 异步任务透传 trace_id / user_uuid / client_ip
	async.SetContextPropagator(ctxmeta.Propagate)

	// 7. 组装依赖 - Repository 层
	userRepo := repository.NewUserRepository(db, redisClient)
	queueRepo := repository.NewQueueRepository(db, redisClient)
	pairRepo := repository.NewPairRepository(db, redisClient)
	reportRepo := repository.NewReportRepository(db)
	livenessRepo := repository.NewLivenessRepository(redisClient)
	events := repository.NewEventPublisher(redisClient)

	// 8. 组装依赖 - Service 层
	matchmaker := service.NewMatchmaker(
		userRepo,
		queueRepo,
		pairRepo,
		events,
		matching.PreferenceCompatible,
		matchCfg.MatchMaxRetries,
		matchCfg.CandidateBatch,
	)
	matchService := service.NewMatchService(userRepo, queueRepo, pairRepo, events, matchmaker)
	sessionService := service.NewSessionService(pairRepo, reportRepo, events)
	userService := service.NewUserService(userRepo)
	adminService := service.NewAdminService(userRepo, queueRepo, pairRepo, reportRepo, events, redisClient)

	// 9. 启动后台兜底撮合和超时清理
	supervisor := service.NewSupervisor(queueRepo, pairRepo, livenessRepo, events, matchmaker, matchCfg)
	supervisor.Start()

	// 10. 组装依赖 - Handler 层
	matchHandler := v1.NewMatchHandler(matchService)
	sessionHandler := v1.NewSessionHandler(sessionService)
	userHandler := v1.NewUserHandler(userService)
	adminHandler := v1.NewAdminHandler(adminService)

	// 11. 初始化路由
	// Gin 模式设置: ReleaseMode/DebugMode/TestMode
	gin.SetMode(gin.ReleaseMode)
	r := router.InitRouter(&matchCfg, matchHandler, sessionHandler, userHandler, adminHandler)
	logger.Info(ctx, "路由初始化完成")

	// 12. 配置服务器
	srv := &http.Server{
		Addr:           matchCfg.Addr,
		Handler:        r,
		ReadTimeout:    matchCfg.ReadTimeout,  // 读取超时
		WriteTimeout:   matchCfg.WriteTimeout, // 写入超时
		MaxHeaderBytes: 1 << 20,               // 最大请求头 1MB
	}

	// 13. 启动服务器（在 goroutine 中）
	go func() {
		logger.Info(ctx, "Match 服务器启动中",
			logger.String("address", matchCfg.Addr),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "服务器启动失败", logger.ErrorField("error", err))
			os.Exit(1)
		}
	}()

	// 14. 启动 Metrics HTTP Server（暴露 Prometheus 指标，内网端口）
	var metricsServer *http.Server
	if matchCfg.MetricsAddr != "" && matchCfg.MetricsAddr != matchCfg.Addr {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())

		metricsServer = &http.Server{
			Addr:    matchCfg.MetricsAddr,
			Handler: metricsMux,
		}

		go func() {
			logger.Info(ctx, "Metrics HTTP Server 启动中", logger.String("address", matchCfg.MetricsAddr))
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(ctx, "Metrics HTTP Server 启动失败", logger.ErrorField("error", err))
			}
		}()
	}

	logger.Info(ctx, "Match 服务启动成功",
		logger.String("address", matchCfg.Addr),
		logger.String("metrics_address", matchCfg.MetricsAddr),
	)

	// 15. 优雅停机
	quit := make(chan os.Signal, 1)
	// 监听中断信号：Ctrl+C (SIGINT) 和 kill 命令 (SIGTERM)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// 阻塞等待信号
	sig := <-quit
	logger.Info(ctx, "收到关闭信号，开始优雅停机...",
		logger.String("signal", sig.String()),
	)

	// 先停后台撮合和清理循环，避免停机期间继续建对
	supervisor.Stop()

	// 16. 设置超时时间，等待正在处理的请求完成
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "服务器强制关闭", logger.ErrorField("error", err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(ctx, "Metrics 服务器强制关闭", logger.ErrorField("error", err))
		}
	}

	// 等待协程池里的旁路任务执行完
	if err := async.Release(); err != nil {
		logger.Error(ctx, "释放协程池失败", logger.ErrorField("error", err))
	}

	logger.Info(ctx, "Match 服务器已优雅退出")
}
