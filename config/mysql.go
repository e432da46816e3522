package config

import (
	"fmt"
	"time"
)

// MySQLConfig MySQL 配置。
// 状态数据（用户状态/队列/配对记录）全部以 MySQL 为准，Redis 只做缓存。
type MySQLConfig struct {
	// 连接配置
	Host     string `json:"host" yaml:"host"`         // 主库地址
	Port     int    `json:"port" yaml:"port"`         // 主库端口
	User     string `json:"user" yaml:"user"`         // 用户名
	Password string `json:"password" yaml:"password"` // 密码
	Database string `json:"database" yaml:"database"` // 数据库名
	Charset  string `json:"charset" yaml:"charset"`   // 字符集

	// 读写分离配置（为空表示不启用 dbresolver）
	Replicas []string `json:"replicas" yaml:"replicas"` // 只读副本 DSN 列表

	// 连接池配置
	MaxIdleConns    int           `json:"maxIdleConns" yaml:"maxIdleConns"`       // 最大空闲连接数
	MaxOpenConns    int           `json:"maxOpenConns" yaml:"maxOpenConns"`       // 最大打开连接数
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"` // 连接最大存活时间
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime" yaml:"connMaxIdleTime"` // 空闲连接最大存活时间

	// 日志配置
	LogLevel      string        `json:"logLevel" yaml:"logLevel"`           // gorm 日志级别: silent/error/warn/info
	SlowThreshold time.Duration `json:"slowThreshold" yaml:"slowThreshold"` // 慢 SQL 阈值
}

// DSN 拼接主库 DSN。
func (c MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.Database, c.Charset)
}

// DefaultMySQLConfig 返回本地开发的默认配置。
func DefaultMySQLConfig() MySQLConfig {
	return MySQLConfig{
		Host:     getEnvString("MYSQL_HOST", "127.0.0.1"),
		Port:     getEnvInt("MYSQL_PORT", 3306),
		User:     getEnvString("MYSQL_USER", "root"),
		Password: getEnvString("MYSQL_PASSWORD", "root"),
		Database: getEnvString("MYSQL_DATABASE", "pairserver"),
		Charset:  "utf8mb4",

		Replicas: getEnvStringSlice("MYSQL_REPLICAS", nil),

		MaxIdleConns:    getEnvInt("MYSQL_MAX_IDLE_CONNS", 10),
		MaxOpenConns:    getEnvInt("MYSQL_MAX_OPEN_CONNS", 100),
		ConnMaxLifetime: getEnvDuration("MYSQL_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: getEnvDuration("MYSQL_CONN_MAX_IDLE_TIME", 10*time.Minute),

		LogLevel:      getEnvString("MYSQL_LOG_LEVEL", "warn"),
		SlowThreshold: getEnvDuration("MYSQL_SLOW_THRESHOLD", 200*time.Millisecond),
	}
}
