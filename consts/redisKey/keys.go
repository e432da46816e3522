package rediskey

import (
	"fmt"
	"strings"
	"time"
)

// ==================== TTL 常量 ====================

const (
	// QueueCacheTTL 匹配队列 ZSet 缓存 TTL
	QueueCacheTTL = 10 * time.Minute
	// QueueCacheEmptyTTL 匹配队列空值缓存 TTL
	QueueCacheEmptyTTL = 1 * time.Minute

	// UserStatusTTL 用户状态缓存 TTL
	UserStatusTTL = 30 * time.Second
	// PartnerTTL 会话对端缓存 TTL
	PartnerTTL = 10 * time.Minute
	// PartnerEmptyTTL 会话对端空值缓存 TTL
	PartnerEmptyTTL = 30 * time.Second

	// UserProfileTTL 用户资料缓存 TTL
	UserProfileTTL = 1 * time.Hour
	// UserProfileEmptyTTL 用户资料空值缓存 TTL
	UserProfileEmptyTTL = 5 * time.Minute

	// PresenceOfflineTTL 断线标记 TTL（超过后交由活跃超时兜底）
	PresenceOfflineTTL = 30 * time.Minute

	// StatsCacheTTL 管理端统计缓存 TTL
	StatsCacheTTL = 10 * time.Second
)

// ==================== Key 构造函数 ====================

// QueueKey 匹配队列 ZSet Key: match:queue（score = joined_at 毫秒时间戳）
func QueueKey() string {
	return "match:queue"
}

// UserStatusKey 用户状态缓存 Key: match:status:{uuid}
func UserStatusKey(userUUID string) string {
	return fmt.Sprintf("match:status:%s", userUUID)
}

// PartnerKey 会话对端缓存 Key: match:partner:{uuid}
func PartnerKey(userUUID string) string {
	return fmt.Sprintf("match:partner:%s", userUUID)
}

// UserProfileKey 用户资料缓存 Key: match:profile:{uuid}
func UserProfileKey(userUUID string) string {
	return fmt.Sprintf("match:profile:%s", userUUID)
}

// StatsKey 管理端统计缓存 Key: match:stats
func StatsKey() string {
	return "match:stats"
}

const eventChannelPrefix = "match:events:"

// EventChannel 用户事件推送频道: match:events:{uuid}
func EventChannel(userUUID string) string {
	return eventChannelPrefix + userUUID
}

// EventChannelPattern 事件频道订阅模式（presence 服务 PSubscribe 使用）
func EventChannelPattern() string {
	return eventChannelPrefix + "*"
}

// UserFromEventChannel 从事件频道名还原用户 UUID，格式不符时返回空串。
func UserFromEventChannel(channel string) string {
	if !strings.HasPrefix(channel, eventChannelPrefix) {
		return ""
	}
	return channel[len(eventChannelPrefix):]
}

// ==================== Presence Key 构造函数 ====================

// PresenceActiveKey 用户最近活跃 ZSet Key: presence:active（score = 最近活跃毫秒时间戳）
func PresenceActiveKey() string {
	return "presence:active"
}

// PresenceOfflineKey 断线标记 Key: presence:offline:{uuid}
func PresenceOfflineKey(userUUID string) string {
	return fmt.Sprintf("presence:offline:%s", userUUID)
}

// ==================== 限流 Key 构造函数 ====================

// IPRateLimitKey IP 限流 Key: rate:limit:ip:{ip}
func IPRateLimitKey(ip string) string {
	return fmt.Sprintf("rate:limit:ip:%s", ip)
}

// UserRateLimitKey 用户限流 Key: rate:limit:user:{user_uuid}
func UserRateLimitKey(userUUID string) string {
	return fmt.Sprintf("rate:limit:user:%s", userUUID)
}
