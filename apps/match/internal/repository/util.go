package repository

import (
	"math/rand"
	"strings"
	"time"

	"PairServer/apps/match/internal/matching"
)

// emptyPlaceholder 缓存空值占位符，区分「缓存未建」和「确实没有数据」
const emptyPlaceholder = "__EMPTY__"

// 偏好与兴趣的存储编码统一走 matching 包，这里只留短别名
func buildFiltersJSON(f matching.Filters) string {
	return matching.EncodeFilters(f)
}

func buildInterestsJSON(interests []string) string {
	return matching.EncodeInterests(interests)
}

func parseInterestsJSON(raw string) []string {
	return matching.ParseInterests(raw)
}

func isRedisWrongType(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "WRONGTYPE")
}

// isMySQLDeadlock 判断是否为 InnoDB 死锁回滚（Error 1213）
func isMySQLDeadlock(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Deadlock found")
}

// getRandomExpireTime 生成带随机抖动的过期时间
// baseExpire: 基础过期时间
// 返回: 基础过期时间 ± 10% 的随机时间
func getRandomExpireTime(baseExpire time.Duration) time.Duration {
	// 计算随机抖动范围（±10%）
	jitterRange := float64(baseExpire) * 0.1
	jitter := time.Duration(rand.Float64()*float64(jitterRange)*2 - float64(jitterRange))

	return baseExpire + jitter
}

// getRandomBool 生成随机布尔值
// probability: 概率
// 返回: 概率为probability的布尔值
func getRandomBool(probability float64) bool {
	return rand.Float64() < probability
}
