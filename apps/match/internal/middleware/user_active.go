package middleware

import (
	"context"
	"time"

	"PairServer/apps/match/mq"
	"PairServer/consts/redisKey"
	"PairServer/pkg/logger"
	pkgredis "PairServer/pkg/redis"
	"PairServer/pkg/useractive"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// updateUserActive 刷新用户活跃时间
// 写 presence:active 有序集合，score 为毫秒时间戳。
// WebSocket 心跳和 HTTP 请求共用这份活跃数据，会话保活判定都从这里读。
func updateUserActive(userUUID string) {
	if userUUID == "" {
		return
	}

	now := time.Now()
	if !useractive.ShouldUpdate(userUUID, now) {
		return
	}

	redisClient := pkgredis.Client()
	if redisClient == nil {
		return
	}

	ctx := context.Background()
	score := float64(now.UnixMilli())

	err := redisClient.ZAdd(ctx, rediskey.PresenceActiveKey(), redis.Z{
		Score:  score,
		Member: userUUID,
	}).Err()
	if err != nil {
		logger.Warn(ctx, "更新用户活跃时间失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err),
		)

		// 活跃时间影响会话保活判定，写失败送补偿队列重放
		task := mq.BuildZAddTask(rediskey.PresenceActiveKey(), score, userUUID).
			WithSource("user_active").
			WithError(err)
		if sendErr := mq.SendRedisTask(ctx, task); sendErr != nil {
			logger.Error(ctx, "活跃时间补偿任务投递失败",
				logger.String("user_uuid", userUUID),
				logger.ErrorField("error", sendErr),
			)
		}
	}
}

// UserActiveMiddleware 请求即活跃
// 带用户身份的请求顺带刷新在线状态，降低纯靠心跳的误杀概率
func UserActiveMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if uuid, ok := GetUserUUID(c); ok {
			updateUserActive(uuid)
		}
		c.Next()
	}
}
