package middleware

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"PairServer/consts"
	"PairServer/consts/redisKey"
	"PairServer/pkg/logger"
	pkgredis "PairServer/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ==================== Redis 令牌桶 Lua 脚本 ====================

// luaTokenBucketRedis Redis 令牌桶 Lua 脚本
// 功能：原子性地补充令牌并判断本次请求是否放行
// 参数：
//
//	KEYS[1]: 限流 key (如: rate:limit:ip:{ip})
//	ARGV[1]: 当前时间戳 (毫秒)
//	ARGV[2]: 令牌桶容量
//	ARGV[3]: 每秒产生的令牌数
//	ARGV[4]: 每次请求消耗的令牌数
//
// 返回值：
//   - 1: 允许通过
//   - 0: 不允许通过 (令牌不足)
//
// 时间戳使用毫秒精度，避免低速率下补充量被取整归零
const luaTokenBucketRedis = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3]) -- 每秒产生的令牌数
local requested = tonumber(ARGV[4])

-- 获取当前状态
local info = redis.call('HMGET', key, 'tokens', 'last_time')
local current_tokens = tonumber(info[1])
local last_time = tonumber(info[2])

-- 初始化
if current_tokens == nil then
    current_tokens = capacity
end
if last_time == nil then
    last_time = now
end

-- 计算时间差 (毫秒)
local time_diff = math.max(0, now - last_time)

-- 计算补充令牌: (时间差ms * 速率) / 1000
local new_tokens = math.floor((time_diff * rate) / 1000)

-- 更新令牌数
-- 只有真正产生了新令牌才推进 last_time，防止小数精度被连续丢弃
if new_tokens > 0 then
    current_tokens = math.min(capacity, current_tokens + new_tokens)
    last_time = now
end

-- 判断是否允许通过
local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

-- 更新 Redis
redis.call('HMSET', key, 'tokens', current_tokens, 'last_time', last_time)

-- 设置过期时间：桶填满所需时间 * 2，至少 60 秒
local fill_time = math.ceil(capacity / rate)
local ttl = math.max(60, fill_time * 2)
redis.call('EXPIRE', key, ttl)

return allowed
`

// ==================== 进程内降级限流器 ====================

const (
	localLimiterCacheSize = 8192
	localLimiterTTL       = 10 * time.Minute
)

// localLimiter 进程内令牌桶，Redis 不可用时降级使用
// 单实例视角的限流精度低于 Redis 方案，只保证故障期间仍有基本保护
type localLimiter struct {
	rate     rate.Limit
	burst    int
	limiters *expirable.LRU[string, *rate.Limiter]
}

func newLocalLimiter(r float64, burst int) *localLimiter {
	return &localLimiter{
		rate:     rate.Limit(r),
		burst:    burst,
		limiters: expirable.NewLRU[string, *rate.Limiter](localLimiterCacheSize, nil, localLimiterTTL),
	}
}

// Allow 判断 key 对应的本地令牌桶是否放行
// 并发首次访问同一 key 可能各建一个桶，短暂多放行几个请求，可以接受
func (l *localLimiter) Allow(key string) bool {
	lim, ok := l.limiters.Get(key)
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.limiters.Add(key, lim)
	}
	return lim.Allow()
}

// ==================== Redis 限流器 ====================

// RedisRateLimiter 基于 Redis 的分布式限流器
// Redis 不可用时自动降级到进程内令牌桶
type RedisRateLimiter struct {
	redisClient *redis.Client
	rate        float64 // 每秒产生的令牌数
	burst       int     // 令牌桶容量
	mu          *sync.RWMutex
	local       *localLimiter
}

// NewRedisRateLimiter 创建 Redis 限流器
// rate: 每秒产生的令牌数 (如: 10.0 表示每秒10个令牌)
// burst: 令牌桶容量 (如: 20 表示桶最多20个令牌)
func NewRedisRateLimiter(r float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		rate:  r,
		burst: burst,
		mu:    &sync.RWMutex{},
		local: newLocalLimiter(r, burst),
	}
}

// RedisSetClient 设置 Redis 客户端
// 使用延迟初始化避免启动顺序耦合
func (r *RedisRateLimiter) RedisSetClient(redisClient *redis.Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.redisClient = redisClient
}

// Allow 检查是否允许请求通过
// key: Redis 限流 key (如: rate:limit:ip:{ip})
// Redis 未初始化或不可用时降级到本地令牌桶，不会放弃限流
func (r *RedisRateLimiter) Allow(ctx context.Context, key string) bool {
	// 使用 RLock 读取 client，减少锁竞争
	r.mu.RLock()
	client := r.redisClient
	r.mu.RUnlock()

	if client == nil {
		return r.local.Allow(key)
	}

	// KEYS[1]: key
	// ARGV[1]: now (当前时间戳，毫秒)
	// ARGV[2]: r.burst (桶容量)
	// ARGV[3]: r.rate (每秒产生的令牌数)
	// ARGV[4]: 1 (每次请求消耗的令牌数)
	now := time.Now().UnixMilli()

	// 给 Redis 操作加一个独立的短超时（50ms），防止 Redis 响应慢拖死请求链路
	redisCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	cmd := client.Eval(redisCtx, luaTokenBucketRedis, []string{key}, now, r.burst, r.rate, 1)
	result, err := cmd.Result()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "Redis 限流检查超时，降级为本地限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
			return r.local.Allow(key)
		}

		// 其他 Redis 错误
		logger.Error(ctx, "Redis 限流检查失败，降级为本地限流",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
		return r.local.Allow(key)
	}

	// Lua 脚本返回 1 表示允许通过，0 表示被限流
	allowed, ok := result.(int64)
	if !ok {
		logger.Warn(ctx, "Redis 限流返回值类型错误，降级为本地限流",
			logger.String("key", key),
			logger.Any("result", result),
		)
		return r.local.Allow(key)
	}

	return allowed == 1
}

// rejectTooManyRequests 限流拒绝统一走 HTTP 429
func rejectTooManyRequests(c *gin.Context) {
	c.JSON(http.StatusTooManyRequests, gin.H{
		"code":    consts.CodeTooManyRequests,
		"message": consts.GetMessage(consts.CodeTooManyRequests),
	})
	c.Abort()
}

// ==================== IP 限流中间件 ====================

// IPRateLimitMiddleware 基于客户端 IP 的限流中间件
// 参数：
//   - rate: 每秒产生的令牌数
//   - burst: 令牌桶容量
//
// 使用示例：
//
//	router.Use(IPRateLimitMiddleware(10, 20))
func IPRateLimitMiddleware(r float64, burst int) gin.HandlerFunc {
	limiter := NewRedisRateLimiter(r, burst)

	// 使用 sync.Once 懒加载 Redis Client（只执行一次，避免每次请求都加锁）
	var once sync.Once

	return func(c *gin.Context) {
		ctx := NewContextWithGin(c)

		once.Do(func() {
			if client := pkgredis.Client(); client != nil {
				limiter.RedisSetClient(client)
			}
		})

		// 1. 获取客户端 IP
		ip, exists := GetClientIPSafe(c)
		if !exists || ip == "" {
			// 无法获取 IP，放行请求（记录警告）
			logger.Warn(ctx, "无法获取客户端 IP，跳过限流检查",
				logger.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		// 2. 执行 IP 限流检查
		if !limiter.Allow(ctx, rediskey.IPRateLimitKey(ip)) {
			logger.Warn(ctx, "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			rejectTooManyRequests(c)
			return
		}

		// 3. 通过检查，继续处理请求
		c.Next()
	}
}

// ==================== 用户限流中间件 ====================

// UserRateLimitMiddleware 基于用户 UUID 的限流中间件
// 需要在 UserIdentityMiddleware 之后使用，取不到 UUID 时跳过（IP 限流仍然生效）
// 参数：
//   - rate: 每秒产生的令牌数
//   - burst: 令牌桶容量
func UserRateLimitMiddleware(r float64, burst int) gin.HandlerFunc {
	limiter := NewRedisRateLimiter(r, burst)

	// 使用 sync.Once 懒加载 Redis Client（只执行一次，避免每次请求都加锁）
	var once sync.Once

	return func(c *gin.Context) {
		ctx := NewContextWithGin(c)

		once.Do(func() {
			if client := pkgredis.Client(); client != nil {
				limiter.RedisSetClient(client)
			}
		})

		// 1. 获取用户 UUID
		userUUID, exists := GetUserUUID(c)
		if !exists || userUUID == "" {
			// 匿名探测类请求没有用户身份，交给 IP 限流兜底
			c.Next()
			return
		}

		// 2. 执行用户限流检查
		if !limiter.Allow(ctx, rediskey.UserRateLimitKey(userUUID)) {
			logger.Warn(ctx, "用户请求被限流",
				logger.String("user_uuid", userUUID),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			rejectTooManyRequests(c)
			return
		}

		// 3. 通过检查，继续处理请求
		c.Next()
	}
}
