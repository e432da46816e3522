package repository

import (
	"context"
	"encoding/json"
	"time"

	"PairServer/apps/match/mq"
	"PairServer/consts/redisKey"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// 缓存维护辅助。入队/出队/建立配对/结束会话共用，
// 写失败统一走 LogAndRetryRedisError 投递 Kafka 补偿。

func addQueueCacheMember(ctx context.Context, redisClient *redis.Client, userUUID string, joinedAt time.Time, source string) {
	if redisClient == nil {
		return
	}

	key := rediskey.QueueKey()
	score := float64(joinedAt.UnixMilli())
	expireSeconds := int(getRandomExpireTime(rediskey.QueueCacheTTL).Seconds())

	err := redis.NewScript(luaAddQueueMemberIfExists).
		Run(ctx, redisClient, []string{key}, score, userUUID, expireSeconds).Err()
	if err != nil && err != redis.Nil {
		LogAndRetryRedisError(ctx, mq.BuildLuaTask(luaAddQueueMemberIfExists, []string{key}, score, userUUID, expireSeconds).WithSource(source), err)
	}
}

func removeQueueCacheMember(ctx context.Context, redisClient *redis.Client, userUUID, source string) {
	if redisClient == nil {
		return
	}

	key := rediskey.QueueKey()
	expireSeconds := int(getRandomExpireTime(rediskey.QueueCacheTTL).Seconds())

	err := redis.NewScript(luaRemoveQueueMemberIfExists).
		Run(ctx, redisClient, []string{key}, userUUID, expireSeconds).Err()
	if err != nil && err != redis.Nil {
		LogAndRetryRedisError(ctx, mq.BuildLuaTask(luaRemoveQueueMemberIfExists, []string{key}, userUUID, expireSeconds).WithSource(source), err)
	}
}

func invalidateStatusCache(ctx context.Context, redisClient *redis.Client, userUUID, source string) {
	if redisClient == nil {
		return
	}
	key := rediskey.UserStatusKey(userUUID)
	if err := redisClient.Del(ctx, key).Err(); err != nil {
		LogAndRetryRedisError(ctx, mq.BuildDelTask(key).WithSource(source), err)
	}
}

// cachedSession 会话对端缓存结构
type cachedSession struct {
	PartnerUUID string `json:"partner_uuid"`
	SessionID   int64  `json:"session_id"`
	StartedAtMs int64  `json:"started_at_ms"`
}

func setPartnerCache(ctx context.Context, redisClient *redis.Client, userUUID string, info *SessionInfo, source string) {
	if redisClient == nil {
		return
	}

	payload, err := json.Marshal(cachedSession{
		PartnerUUID: info.PartnerUUID,
		SessionID:   info.SessionID,
		StartedAtMs: info.StartedAt.UnixMilli(),
	})
	if err != nil {
		logger.Error(ctx, "序列化会话缓存失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err),
		)
		return
	}

	key := rediskey.PartnerKey(userUUID)
	if err := redisClient.Set(ctx, key, payload, getRandomExpireTime(rediskey.PartnerTTL)).Err(); err != nil {
		// 写穿失败补偿成删除而不是重放 Set：
		// 异步重放的 Set 可能晚于会话结束的 Del 到达，留下僵尸缓存
		LogAndRetryRedisError(ctx, mq.BuildDelTask(key).WithSource(source), err)
	}
}

func invalidatePartnerCache(ctx context.Context, redisClient *redis.Client, userUUID, source string) {
	if redisClient == nil {
		return
	}
	key := rediskey.PartnerKey(userUUID)
	if err := redisClient.Del(ctx, key).Err(); err != nil {
		LogAndRetryRedisError(ctx, mq.BuildDelTask(key).WithSource(source), err)
	}
}
