package redis

import (
	"context"
	"time"

	"PairServer/config"

	"github.com/redis/go-redis/v9"
)

var global *redis.Client

// Client 返回全局 Redis 客户端（未初始化或初始化失败时为 nil）。
// 调用方必须做 nil 判断并降级，Redis 不可用不能影响主流程。
func Client() *redis.Client { return global }

// ReplaceGlobal 设置全局 Redis 客户端，需在进程启动时调用一次。
func ReplaceGlobal(c *redis.Client) { global = c }

// Build 根据配置构建 Redis 客户端，并用 Ping 验证连通性。
func Build(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,

		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,

		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,

		MaxRetries: cfg.MaxRetries,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}
