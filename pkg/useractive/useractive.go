// Package useractive 提供进程内的活跃时间去抖。
// 同一用户的高频请求只在窗口期首次触发 Redis 写入，挡掉写放大。
package useractive

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	cacheSize      = 65536
	debounceWindow = 10 * time.Second
)

var (
	once  sync.Once
	cache *expirable.LRU[string, time.Time]
)

func initCache() {
	// 条目 TTL 取 3 倍窗口，避免 LRU 长期持有冷用户
	cache = expirable.NewLRU[string, time.Time](cacheSize, nil, debounceWindow*3)
}

// ShouldUpdate 判断该 key 在 now 时刻是否需要刷新活跃时间。
// 窗口期内的重复调用返回 false。
func ShouldUpdate(key string, now time.Time) bool {
	once.Do(initCache)
	if last, ok := cache.Get(key); ok && now.Sub(last) < debounceWindow {
		return false
	}
	cache.Add(key, now)
	return true
}
