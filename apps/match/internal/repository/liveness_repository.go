package repository

import (
	"context"
	"strconv"
	"time"

	"PairServer/consts/redisKey"

	"github.com/redis/go-redis/v9"
)

type livenessRepositoryImpl struct {
	redisClient *redis.Client
}

// NewLivenessRepository 创建在线状态 Repository。
// 数据由 presence 服务和活跃中间件写入（ZSet + 断线标记），这里只读。
// Redis 不可用时返回空数据，清理任务按「无证据不处理」降级。
func NewLivenessRepository(redisClient *redis.Client) ILivenessRepository {
	return &livenessRepositoryImpl{redisClient: redisClient}
}

// LastActive 批量查询最近活跃时间。
func (r *livenessRepositoryImpl) LastActive(ctx context.Context, userUUIDs []string) (map[string]time.Time, error) {
	result := make(map[string]time.Time, len(userUUIDs))
	if r.redisClient == nil || len(userUUIDs) == 0 {
		return result, nil
	}

	scores, err := r.redisClient.ZMScore(ctx, rediskey.PresenceActiveKey(), userUUIDs...).Result()
	if err != nil {
		if err == redis.Nil {
			return result, nil
		}
		return nil, WrapRedisError(err)
	}

	for i, score := range scores {
		// 无记录的成员 score 为 0（ZMScore 对缺失成员返回 0 值占位）
		if score == 0 {
			continue
		}
		result[userUUIDs[i]] = time.UnixMilli(int64(score))
	}
	return result, nil
}

// OfflineSince 查询断线标记时间。
func (r *livenessRepositoryImpl) OfflineSince(ctx context.Context, userUUID string) (time.Time, bool, error) {
	if r.redisClient == nil {
		return time.Time{}, false, nil
	}

	raw, err := r.redisClient.Get(ctx, rediskey.PresenceOfflineKey(userUUID)).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, WrapRedisError(err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		// 标记内容损坏按无标记处理
		return time.Time{}, false, nil
	}
	return time.UnixMilli(ms), true, nil
}
