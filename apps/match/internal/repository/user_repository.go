package repository

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"PairServer/apps/match/mq"
	"PairServer/consts/redisKey"
	"PairServer/model"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type userRepositoryImpl struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewUserRepository 创建用户 Repository
func NewUserRepository(db *gorm.DB, redisClient *redis.Client) IUserRepository {
	return &userRepositoryImpl{
		db:          db,
		redisClient: redisClient,
	}
}

// cachedProfile 档案缓存结构。
// 不含 status：状态变更只失效状态缓存，档案缓存里存 status 必然过期。
type cachedProfile struct {
	Uuid      string   `json:"uuid"`
	Gender    int8     `json:"gender"`
	Age       int16    `json:"age"`
	Interests []string `json:"interests"`
	Banned    int8     `json:"banned"`
}

func newCachedProfile(u *model.ChatUser) cachedProfile {
	return cachedProfile{
		Uuid:      u.Uuid,
		Gender:    u.Gender,
		Age:       u.Age,
		Interests: parseInterestsJSON(u.Interests),
		Banned:    u.Banned,
	}
}

func (c cachedProfile) toModel() *model.ChatUser {
	return &model.ChatUser{
		Uuid:      c.Uuid,
		Gender:    c.Gender,
		Age:       c.Age,
		Interests: buildInterestsJSON(c.Interests),
		Banned:    c.Banned,
	}
}

// EnsureUser 按 UUID 幂等创建/更新用户档案。
// 已存在时只更新档案字段，status/banned 保持不变。
func (r *userRepositoryImpl) EnsureUser(ctx context.Context, user *model.ChatUser) (*model.ChatUser, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "uuid"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"gender":     user.Gender,
			"age":        user.Age,
			"interests":  user.Interests,
			"updated_at": time.Now(),
		}),
	}).Create(user).Error
	if err != nil {
		return nil, WrapDBError(err)
	}

	var out model.ChatUser
	if err := r.db.WithContext(ctx).Where("uuid = ?", user.Uuid).First(&out).Error; err != nil {
		return nil, WrapDBError(err)
	}

	r.setProfileCache(ctx, &out, "EnsureUser")
	return &out, nil
}

// EnsureExists 确保用户行存在。
// 已存在时不触碰任何字段，避免覆盖用户自己填写的档案。
func (r *userRepositoryImpl) EnsureExists(ctx context.Context, uuid string) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uuid"}},
		DoNothing: true,
	}).Create(&model.ChatUser{Uuid: uuid}).Error
	if err != nil {
		return WrapDBError(err)
	}
	return nil
}

// GetByUUID 根据 UUID 查询用户档案（缓存优先）。
// 返回值的 Status 字段不保证新鲜，状态判断必须走 GetStatus。
func (r *userRepositoryImpl) GetByUUID(ctx context.Context, uuid string) (*model.ChatUser, error) {
	user, err := r.getProfileFromCache(ctx, uuid)
	if err == nil {
		return user, nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		// 空值缓存命中
		return nil, ErrRecordNotFound
	}
	if err != redis.Nil {
		LogRedisError(ctx, err)
	}
	return r.getProfileFromDB(ctx, uuid)
}

func (r *userRepositoryImpl) getProfileFromCache(ctx context.Context, uuid string) (*model.ChatUser, error) {
	if r.redisClient == nil {
		return nil, redis.Nil
	}

	key := rediskey.UserProfileKey(uuid)
	raw, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if isRedisWrongType(err) {
			// 类型被污染，删掉走 DB 重建
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

	var cached cachedProfile
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		// 缓存内容损坏，删掉走 DB 重建
		if delErr := r.redisClient.Del(ctx, key).Err(); delErr != nil {
			LogRedisError(ctx, delErr)
		}
		return nil, redis.Nil
	}

	// 低概率续期，避免热点 key 集中过期
	if getRandomBool(0.01) {
		if expErr := r.redisClient.Expire(ctx, key, getRandomExpireTime(rediskey.UserProfileTTL)).Err(); expErr != nil {
			LogRedisError(ctx, expErr)
		}
	}

	return cached.toModel(), nil
}

func (r *userRepositoryImpl) getProfileFromDB(ctx context.Context, uuid string) (*model.ChatUser, error) {
	var user model.ChatUser
	err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.setProfileEmptyCache(ctx, uuid)
			return nil, ErrRecordNotFound
		}
		return nil, WrapDBError(err)
	}

	r.setProfileCache(ctx, &user, "GetByUUID")
	return &user, nil
}

func (r *userRepositoryImpl) setProfileCache(ctx context.Context, user *model.ChatUser, source string) {
	if r.redisClient == nil {
		return
	}

	payload, err := json.Marshal(newCachedProfile(user))
	if err != nil {
		logger.Error(ctx, "序列化用户档案缓存失败",
			logger.String("user_uuid", user.Uuid),
			logger.ErrorField("error", err),
		)
		return
	}

	key := rediskey.UserProfileKey(user.Uuid)
	ttl := getRandomExpireTime(rediskey.UserProfileTTL)
	if err := r.redisClient.Set(ctx, key, payload, ttl).Err(); err != nil {
		LogAndRetryRedisError(ctx, mq.BuildSetTask(key, string(payload), ttl).WithSource(source), err)
	}
}

func (r *userRepositoryImpl) setProfileEmptyCache(ctx context.Context, uuid string) {
	if r.redisClient == nil {
		return
	}
	key := rediskey.UserProfileKey(uuid)
	if err := r.redisClient.Set(ctx, key, emptyPlaceholder, rediskey.UserProfileEmptyTTL).Err(); err != nil {
		// 空值缓存丢失只影响穿透保护，记日志即可
		LogRedisError(ctx, err)
	}
}

// GetStatus 查询用户当前状态（缓存优先）。
func (r *userRepositoryImpl) GetStatus(ctx context.Context, uuid string) (int8, error) {
	status, err := r.getStatusFromCache(ctx, uuid)
	if err == nil {
		return status, nil
	}
	if errors.Is(err, ErrRecordNotFound) {
		return 0, ErrRecordNotFound
	}
	if err != redis.Nil {
		LogRedisError(ctx, err)
	}
	return r.getStatusFromDB(ctx, uuid)
}

func (r *userRepositoryImpl) getStatusFromCache(ctx context.Context, uuid string) (int8, error) {
	if r.redisClient == nil {
		return 0, redis.Nil
	}

	key := rediskey.UserStatusKey(uuid)
	raw, err := r.redisClient.Get(ctx, key).Result()
	if err != nil {
		if isRedisWrongType(err) {
			if delErr := r.redisClient.Del(ctx, key).Err(); delErr != nil {
				LogRedisError(ctx, delErr)
			}
			return 0, redis.Nil
		}
		return 0, err
	}

	if raw == emptyPlaceholder {
		return 0, ErrRecordNotFound
	}

	n, err := strconv.ParseInt(raw, 10, 8)
	if err != nil {
		if delErr := r.redisClient.Del(ctx, key).Err(); delErr != nil {
			LogRedisError(ctx, delErr)
		}
		return 0, redis.Nil
	}
	return int8(n), nil
}

func (r *userRepositoryImpl) getStatusFromDB(ctx context.Context, uuid string) (int8, error) {
	var user model.ChatUser
	err := r.db.WithContext(ctx).Select("status").Where("uuid = ?", uuid).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			r.setStatusEmptyCache(ctx, uuid)
			return 0, ErrRecordNotFound
		}
		return 0, WrapDBError(err)
	}

	if r.redisClient != nil {
		key := rediskey.UserStatusKey(uuid)
		if setErr := r.redisClient.Set(ctx, key, strconv.Itoa(int(user.Status)), rediskey.UserStatusTTL).Err(); setErr != nil {
			// 状态缓存 TTL 很短，回填失败不补偿
			LogRedisError(ctx, setErr)
		}
	}
	return user.Status, nil
}

func (r *userRepositoryImpl) setStatusEmptyCache(ctx context.Context, uuid string) {
	if r.redisClient == nil {
		return
	}
	key := rediskey.UserStatusKey(uuid)
	if err := r.redisClient.Set(ctx, key, emptyPlaceholder, rediskey.UserStatusTTL).Err(); err != nil {
		LogRedisError(ctx, err)
	}
}

// SetBanned 设置/解除封禁标记。
func (r *userRepositoryImpl) SetBanned(ctx context.Context, uuid string, banned bool) error {
	val := model.BanStatusNormal
	if banned {
		val = model.BanStatusBanned
	}

	res := r.db.WithContext(ctx).Model(&model.ChatUser{}).Where("uuid = ?", uuid).Update("banned", val)
	if res.Error != nil {
		return WrapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		// banned 值未变化时 MySQL 同样返回 0 行，需要区分用户不存在
		var count int64
		if err := r.db.WithContext(ctx).Model(&model.ChatUser{}).Where("uuid = ?", uuid).Count(&count).Error; err != nil {
			return WrapDBError(err)
		}
		if count == 0 {
			return ErrRecordNotFound
		}
	}

	r.invalidateProfileCache(ctx, uuid, "SetBanned")
	return nil
}

func (r *userRepositoryImpl) invalidateProfileCache(ctx context.Context, uuid, source string) {
	if r.redisClient == nil {
		return
	}
	key := rediskey.UserProfileKey(uuid)
	if err := r.redisClient.Del(ctx, key).Err(); err != nil {
		LogAndRetryRedisError(ctx, mq.BuildDelTask(key).WithSource(source), err)
	}
}

// CountTotal 用户总数
func (r *userRepositoryImpl) CountTotal(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ChatUser{}).Count(&n).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n, nil
}

// CountByStatus 按状态统计用户数
func (r *userRepositoryImpl) CountByStatus(ctx context.Context, status int8) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ChatUser{}).Where("status = ?", status).Count(&n).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n, nil
}

// CountBanned 封禁用户数
func (r *userRepositoryImpl) CountBanned(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.ChatUser{}).Where("banned = ?", model.BanStatusBanned).Count(&n).Error
	if err != nil {
		return 0, WrapDBError(err)
	}
	return n, nil
}
