package repository

import (
	"context"
	"errors"
	"time"

	"PairServer/apps/match/internal/matching"
	"PairServer/consts/redisKey"
	"PairServer/model"
	"PairServer/pkg/async"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// queueRebuildLimit 缓存重建时最多装载的队首条数。
// 超长队列只缓存头部，撮合只消费队首，尾部留在 MySQL。
const queueRebuildLimit = 512

type queueRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewQueueRepository 创建队列 Repository
func NewQueueRepository(db *gorm.DB, redisClient *redis.Client) IQueueRepository {
	return &queueRepositoryImpl{
		db:          db,
		redisClient: redisClient,
	}
}

// Enqueue 尝试把 idle 用户置为 waiting 并写入队列。
// 状态 CAS 与队列行写入在同一事务内完成，queue_entry 行存在 <=> status=waiting。
func (r *queueRepositoryImpl) Enqueue(ctx context.Context, userUUID string, filters matching.Filters, joinedAt time.Time) (*EnqueueResult, error) {
	res := &EnqueueResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cas := tx.Model(&model.ChatUser{}).
			Where("uuid = ? AND status = ? AND banned = ?", userUUID, model.UserStatusIdle, model.BanStatusNormal).
			Update("status", model.UserStatusWaiting)
		if cas.Error != nil {
			return cas.Error
		}

		if cas.RowsAffected == 0 {
			// CAS 未命中：查出真实状态交给服务层翻译
			var user model.ChatUser
			if err := tx.Select("status", "banned").Where("uuid = ?", userUUID).First(&user).Error; err != nil {
				return err
			}
			res.Status = user.Status
			res.Banned = user.Banned == model.BanStatusBanned
			return nil
		}

		// 清掉可能残留的孤儿队列行再写入，保证行存在 <=> waiting 自愈
		if err := tx.Where("user_uuid = ?", userUUID).Delete(&model.QueueEntry{}).Error; err != nil {
			return err
		}

		entry := &model.QueueEntry{
			UserUuid: userUUID,
			JoinedAt: joinedAt,
			Filters:  buildFiltersJSON(filters),
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		res.OK = true
		res.Status = model.UserStatusWaiting
		return nil
	})
	if err != nil {
		return nil, WrapDBError(err)
	}

	if res.OK {
		addQueueCacheMember(ctx, r.redisClient, userUUID, joinedAt, "Enqueue")
		invalidateStatusCache(ctx, r.redisClient, userUUID, "Enqueue")
	}
	return res, nil
}

// Dequeue 尝试把 waiting 用户置回 idle 并移出队列。
func (r *queueRepositoryImpl) Dequeue(ctx context.Context, userUUID string) (*DequeueResult, error) {
	res := &DequeueResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cas := tx.Model(&model.ChatUser{}).
			Where("uuid = ? AND status = ?", userUUID, model.UserStatusWaiting).
			Update("status", model.UserStatusIdle)
		if cas.Error != nil {
			return cas.Error
		}

		if cas.RowsAffected == 0 {
			var user model.ChatUser
			if err := tx.Select("status").Where("uuid = ?", userUUID).First(&user).Error; err != nil {
				return err
			}
			res.Status = user.Status
			return nil
		}

		del := tx.Where("user_uuid = ?", userUUID).Delete(&model.QueueEntry{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected == 0 {
			// waiting 却无队列行，不该发生；状态已修正，记日志观察
			logger.Warn(ctx, "出队时未找到队列记录", logger.String("user_uuid", userUUID))
		}

		res.OK = true
		res.Status = model.UserStatusIdle
		return nil
	})
	if err != nil {
		return nil, WrapDBError(err)
	}

	if res.OK {
		removeQueueCacheMember(ctx, r.redisClient, userUUID, "Dequeue")
		invalidateStatusCache(ctx, r.redisClient, userUUID, "Dequeue")
	}
	return res, nil
}

// PeekCandidates 按入队时间升序取队首候选人。
// 热路径走 Redis ZSet（score=入队毫秒，同分按 member 字典序，与 MySQL 排序一致），
// 字段从 MySQL 批量补全；缓存未命中时回源并异步重建。
func (r *queueRepositoryImpl) PeekCandidates(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	if limit <= 0 {
		return []model.QueueEntry{}, nil
	}

	entries, err := r.getCandidatesFromCache(ctx, limit)
	if err == nil {
		return entries, nil
	}
	if err != redis.Nil {
		LogRedisError(ctx, err)
	}
	return r.getCandidatesFromDB(ctx, limit)
}

func (r *queueRepositoryImpl) getCandidatesFromCache(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	if r.redisClient == nil {
		return nil, redis.Nil
	}

	key := rediskey.QueueKey()

	pipe := r.redisClient.Pipeline()
	cardCmd := pipe.ZCard(ctx, key)
	rangeCmd := pipe.ZRange(ctx, key, 0, int64(limit)-1)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		if isRedisWrongType(err) {
			if delErr := r.redisClient.Del(ctx, key).Err(); delErr != nil {
				LogRedisError(ctx, delErr)
			}
			return nil, redis.Nil
		}
		return nil, err
	}

	// key 不存在视为缓存未建立
	if cardCmd.Val() == 0 {
		return nil, redis.Nil
	}

	// 低概率续期，避免热 key 到期后集中回源
	if getRandomBool(0.01) {
		if expErr := r.redisClient.Expire(ctx, key, getRandomExpireTime(rediskey.QueueCacheTTL)).Err(); expErr != nil {
			LogRedisError(ctx, expErr)
		}
	}

	members := rangeCmd.Val()
	uuids := make([]string, 0, len(members))
	for _, m := range members {
		if m == emptyPlaceholder {
			continue
		}
		uuids = append(uuids, m)
	}
	if len(uuids) == 0 {
		// 空值占位命中，队列确实为空
		return []model.QueueEntry{}, nil
	}

	// 从 MySQL 批量补全字段，按缓存顺序重排；缓存里多出的脏成员直接跳过
	var rows []model.QueueEntry
	if err := r.db.WithContext(ctx).Where("user_uuid IN ?", uuids).Find(&rows).Error; err != nil {
		return nil, WrapDBError(err)
	}
	byUUID := make(map[string]model.QueueEntry, len(rows))
	for _, row := range rows {
		byUUID[row.UserUuid] = row
	}

	entries := make([]model.QueueEntry, 0, len(uuids))
	for _, uuid := range uuids {
		if row, ok := byUUID[uuid]; ok {
			entries = append(entries, row)
		}
	}
	return entries, nil
}

func (r *queueRepositoryImpl) getCandidatesFromDB(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := r.db.WithContext(ctx).
		Order("joined_at ASC, user_uuid ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, WrapDBError(err)
	}

	r.rebuildQueueCacheAsync(ctx)
	return entries, nil
}

// rebuildQueueCacheAsync 异步重建队列 ZSet 缓存。
func (r *queueRepositoryImpl) rebuildQueueCacheAsync(ctx context.Context) {
	if r.redisClient == nil {
		return
	}

	async.RunSafe(ctx, func(runCtx context.Context) {
		var entries []model.QueueEntry
		err := r.db.WithContext(runCtx).
			Select("user_uuid", "joined_at").
			Order("joined_at ASC, user_uuid ASC").
			Limit(queueRebuildLimit).
			Find(&entries).Error
		if err != nil {
			logger.Error(runCtx, "重建队列缓存失败：查询 MySQL 出错", logger.ErrorField("error", err))
			return
		}

		key := rediskey.QueueKey()
		pipe := r.redisClient.Pipeline()
		pipe.Del(runCtx, key)
		if len(entries) == 0 {
			// 空队列放占位符，短 TTL 防穿透
			pipe.ZAdd(runCtx, key, redis.Z{Score: 0, Member: emptyPlaceholder})
			pipe.Expire(runCtx, key, rediskey.QueueCacheEmptyTTL)
		} else {
			members := make([]redis.Z, 0, len(entries))
			for _, e := range entries {
				members = append(members, redis.Z{
					Score:  float64(e.JoinedAt.UnixMilli()),
					Member: e.UserUuid,
				})
			}
			pipe.ZAdd(runCtx, key, members...)
			pipe.Expire(runCtx, key, getRandomExpireTime(rediskey.QueueCacheTTL))
		}
		if _, err := pipe.Exec(runCtx); err != nil {
			logger.Error(runCtx, "重建队列缓存失败：写入 Redis 出错", logger.ErrorField("error", err))
		}
	}, 0)
}

// GetEntry 查询用户的队列记录。
func (r *queueRepositoryImpl) GetEntry(ctx context.Context, userUUID string) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := r.db.WithContext(ctx).Where("user_uuid = ?", userUUID).First(&entry).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, WrapDBError(err)
	}
	return &entry, nil
}

// Depth 当前排队人数（以 MySQL 为准，缓存可能只装了队首）。
func (r *queueRepositoryImpl) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.QueueEntry{}).Count(&n).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n, nil
}

// StaleEntries 查询入队早于 olderThan 的滞留记录。
func (r *queueRepositoryImpl) StaleEntries(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := r.db.WithContext(ctx).
		Where("joined_at < ?", olderThan).
		Order("joined_at ASC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return entries, nil
}
