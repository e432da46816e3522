package config

import "time"

// RedisConfig Redis 配置。
// Redis 不可用时服务降级运行（缓存穿透到 MySQL、限流放行），不阻塞启动。
type RedisConfig struct {
	// 连接配置
	Addr     string `json:"addr" yaml:"addr"`         // 地址，如: localhost:6379
	Password string `json:"password" yaml:"password"` // 密码，为空表示无密码
	DB       int    `json:"db" yaml:"db"`             // 数据库编号

	// 连接池配置
	PoolSize     int `json:"poolSize" yaml:"poolSize"`         // 连接池大小
	MinIdleConns int `json:"minIdleConns" yaml:"minIdleConns"` // 最小空闲连接数

	// 超时配置
	DialTimeout  time.Duration `json:"dialTimeout" yaml:"dialTimeout"`   // 建连超时
	ReadTimeout  time.Duration `json:"readTimeout" yaml:"readTimeout"`   // 读超时
	WriteTimeout time.Duration `json:"writeTimeout" yaml:"writeTimeout"` // 写超时

	// 重试配置
	MaxRetries int `json:"maxRetries" yaml:"maxRetries"` // 命令最大重试次数
}

// DefaultRedisConfig 返回本地开发的默认配置。
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnvString("REDIS_ADDR", "127.0.0.1:6379"),
		Password: getEnvString("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),

		PoolSize:     getEnvInt("REDIS_POOL_SIZE", 64),
		MinIdleConns: getEnvInt("REDIS_MIN_IDLE_CONNS", 8),

		DialTimeout:  getEnvDuration("REDIS_DIAL_TIMEOUT", 2*time.Second),
		ReadTimeout:  getEnvDuration("REDIS_READ_TIMEOUT", time.Second),
		WriteTimeout: getEnvDuration("REDIS_WRITE_TIMEOUT", time.Second),

		MaxRetries: getEnvInt("REDIS_MAX_RETRIES", 1),
	}
}
