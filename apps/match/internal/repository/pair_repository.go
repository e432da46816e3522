package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"PairServer/apps/match/mq"
	"PairServer/consts/redisKey"
	"PairServer/model"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// errPairTxConflict 事务内部的回滚信号，对外统一翻译为 ErrConflict。
var errPairTxConflict = errors.New("pair transaction conflict")

type pairRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewPairRepository 创建配对 Repository
func NewPairRepository(db *gorm.DB, redisClient *redis.Client) IPairRepository {
	return &pairRepositoryImpl{
		db:          db,
		redisClient: redisClient,
	}
}

// CreatePair 原子建立配对。
// 事务内完成：双方 waiting->chatting CAS、删除两条队列行、写入镜像配对记录。
// 任何一步失配整体回滚，不会出现半配对状态。
func (r *pairRepositoryImpl) CreatePair(ctx context.Context, seekerUUID, candidateUUID string, sessionID int64, startedAt time.Time) (string, error) {
	if seekerUUID == candidateUUID {
		return "", fmt.Errorf("%w: cannot pair user with self", ErrDatabase)
	}

	// 按 UUID 升序做状态 CAS，两个并发配对涉及同一批用户时加锁顺序一致，避免交叉死锁
	first, second := seekerUUID, candidateUUID
	if second < first {
		first, second = second, first
	}

	var conflictUUID string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, uuid := range []string{first, second} {
			cas := tx.Model(&model.ChatUser{}).
				Where("uuid = ? AND status = ?", uuid, model.UserStatusWaiting).
				Update("status", model.UserStatusChatting)
			if cas.Error != nil {
				return cas.Error
			}
			if cas.RowsAffected == 0 {
				// 对方已被其他撮合抢走或自己离队了
				conflictUUID = uuid
				return errPairTxConflict
			}
		}

		del := tx.Where("user_uuid IN ?", []string{seekerUUID, candidateUUID}).Delete(&model.QueueEntry{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected != 2 {
			// 状态是 waiting 但队列行对不上，说明有并发入口动过队列，整体回滚重试
			conflictUUID = ""
			return errPairTxConflict
		}

		records := []model.PairRecord{
			{UserUuid: seekerUUID, PartnerUuid: candidateUUID, SessionId: sessionID, StartedAt: startedAt},
			{UserUuid: candidateUUID, PartnerUuid: seekerUUID, SessionId: sessionID, StartedAt: startedAt},
		}
		// uidx_pair_user 是防重复配对的数据库级兜底
		return tx.Create(&records).Error
	})
	if err != nil {
		if errors.Is(err, errPairTxConflict) {
			return conflictUUID, ErrConflict
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// 唯一索引兜底命中，等价于状态冲突
			return "", ErrConflict
		}
		return "", WrapDBError(err)
	}

	// 双方移出队列缓存、失效状态缓存、写穿会话缓存
	for _, member := range []struct {
		uuid string
		info SessionInfo
	}{
		{seekerUUID, SessionInfo{PartnerUUID: candidateUUID, SessionID: sessionID, StartedAt: startedAt}},
		{candidateUUID, SessionInfo{PartnerUUID: seekerUUID, SessionID: sessionID, StartedAt: startedAt}},
	} {
		removeQueueCacheMember(ctx, r.redisClient, member.uuid, "CreatePair")
		invalidateStatusCache(ctx, r.redisClient, member.uuid, "CreatePair")
		info := member.info
		setPartnerCache(ctx, r.redisClient, member.uuid, &info, "CreatePair")
	}

	return "", nil
}

// EndSessionByUser 原子结束会话。
// 删除镜像两行并把双方状态从 chatting 置回 idle；用户无会话时返回 ErrRecordNotFound。
func (r *pairRepositoryImpl) EndSessionByUser(ctx context.Context, userUUID string) (*SessionInfo, error) {
	var info SessionInfo

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec model.PairRecord
		if err := tx.Where("user_uuid = ?", userUUID).First(&rec).Error; err != nil {
			return err
		}
		info = SessionInfo{
			PartnerUUID: rec.PartnerUuid,
			SessionID:   rec.SessionId,
			StartedAt:   rec.StartedAt,
		}

		del := tx.Where("session_id = ?", rec.SessionId).Delete(&model.PairRecord{})
		if del.Error != nil {
			return del.Error
		}
		if del.RowsAffected != 2 {
			// 镜像行缺失，状态会在下面修正，记日志观察
			logger.Warn(ctx, "结束会话时镜像记录不完整",
				logger.Int64("session_id", rec.SessionId),
				logger.Int64("deleted", del.RowsAffected),
			)
		}

		for _, uuid := range []string{rec.UserUuid, rec.PartnerUuid} {
			cas := tx.Model(&model.ChatUser{}).
				Where("uuid = ? AND status = ?", uuid, model.UserStatusChatting).
				Update("status", model.UserStatusIdle)
			if cas.Error != nil {
				return cas.Error
			}
			// RowsAffected==0 容忍：该侧状态可能已被其他路径修正
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, WrapDBError(err)
	}

	// 清理双方的会话缓存与状态缓存，一条 pipeline 补偿任务兜底
	if r.redisClient != nil {
		keys := []string{
			rediskey.PartnerKey(userUUID),
			rediskey.PartnerKey(info.PartnerUUID),
			rediskey.UserStatusKey(userUUID),
			rediskey.UserStatusKey(info.PartnerUUID),
		}
		if err := r.redisClient.Del(ctx, keys...).Err(); err != nil {
			args := make([]interface{}, 0, len(keys))
			for _, k := range keys {
				args = append(args, k)
			}
			LogAndRetryRedisError(ctx, mq.BuildPipelineTask([]mq.RedisCmd{{Command: "del", Args: args}}).WithSource("EndSessionByUser"), err)
		}
	}

	return &info, nil
}

// GetPartner 查询用户当前会话信息（缓存优先）。
func (r *pairRepositoryImpl) GetPartner(ctx context.Context, userUUID string) (*SessionInfo, error) {
	info, err := r.getPartnerFromCache(ctx, userUUID)
	if err == nil {
		return info, nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		// 空值缓存命中
		return nil, ErrRecordNotFound
	}
	if err != redis.Nil {
		LogRedisError(ctx, err)
	}
	return r.getPartnerFromDB(ctx, userUUID)
}

func (r *pairRepositoryImpl) getPartnerFromCache(ctx context.Context, userUUID string) (*SessionInfo, error) {
	if r.redisClient == nil {
		return nil, redis.Nil
	}

	key := rediskey.PartnerKey(userUUID)
	raw, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if isRedisWrongType(err) {
			if delErr := r.redisClient.Del(ctx, key).Err(); delErr != nil {
				LogRedisError(ctx, delErr)
			}
			return nil, redis.Nil
		}
		return nil, err
	}

	if raw == emptyPlaceholder {
		return nil, ErrRecordNotFound
	}

	var cached cachedSession
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		if delErr := r.redisClient.Del(ctx, key).Err(); delErr != nil {
			LogRedisError(ctx, delErr)
		}
		return nil, redis.Nil
	}

	return &SessionInfo{
		PartnerUUID: cached.PartnerUUID,
		SessionID:   cached.SessionID,
		StartedAt:   time.UnixMilli(cached.StartedAtMs),
	}, nil
}

func (r *pairRepositoryImpl) getPartnerFromDB(ctx context.Context, userUUID string) (*SessionInfo, error) {
	var rec model.PairRecord
	err := r.db.WithContext(ctx).Where("user_uuid = ?", userUUID).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.setPartnerEmptyCache(ctx, userUUID)
			return nil, ErrRecordNotFound
		}
		return nil, WrapDBError(err)
	}

	info := &SessionInfo{
		PartnerUUID: rec.PartnerUuid,
		SessionID:   rec.SessionId,
		StartedAt:   rec.StartedAt,
	}
	setPartnerCache(ctx, r.redisClient, userUUID, info, "GetPartner")
	return info, nil
}

func (r *pairRepositoryImpl) setPartnerEmptyCache(ctx context.Context, userUUID string) {
	if r.redisClient == nil {
		return
	}
	key := rediskey.PartnerKey(userUUID)
	if err := r.redisClient.Set(ctx, key, emptyPlaceholder, rediskey.PartnerEmptyTTL).Err(); err != nil {
		LogRedisError(ctx, err)
	}
}

// ActivePairs 按主键游标分页扫描配对记录。
func (r *pairRepositoryImpl) ActivePairs(ctx context.Context, afterID int64, limit int) ([]model.PairRecord, error) {
	var records []model.PairRecord
	err := r.db.WithContext(ctx).
		Where("id > ?", afterID).
		Order("id ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, WrapDBError(err)
	}
	return records, nil
}

// CountActiveSessions 当前进行中的会话数（镜像双行除以 2）。
func (r *pairRepositoryImpl) CountActiveSessions(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.PairRecord{}).Count(&n).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n / 2, nil
}
