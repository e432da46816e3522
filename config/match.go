package config

import "time"

// MatchConfig 匹配服务配置。
type MatchConfig struct {
	// 服务配置
	Addr           string        `json:"addr" yaml:"addr"`                     // HTTP 监听地址
	MetricsAddr    string        `json:"metricsAddr" yaml:"metricsAddr"`       // 独立 metrics 监听地址（为空则只走业务端口 /metrics）
	ReadTimeout    time.Duration `json:"readTimeout" yaml:"readTimeout"`       // HTTP 读超时
	WriteTimeout   time.Duration `json:"writeTimeout" yaml:"writeTimeout"`     // HTTP 写超时
	RequestTimeout time.Duration `json:"requestTimeout" yaml:"requestTimeout"` // 单请求业务超时

	// 撮合配置
	MatchMaxRetries int           `json:"matchMaxRetries" yaml:"matchMaxRetries"` // 单次撮合的乐观重试上限
	CandidateBatch  int           `json:"candidateBatch" yaml:"candidateBatch"`   // 每次取出的候选人数量
	SweepInterval   time.Duration `json:"sweepInterval" yaml:"sweepInterval"`     // 兜底撮合轮询间隔

	// 超时清理配置
	MaxQueueWait       time.Duration `json:"maxQueueWait" yaml:"maxQueueWait"`             // 排队最长等待时间，超时出队
	SessionIdleTimeout time.Duration `json:"sessionIdleTimeout" yaml:"sessionIdleTimeout"` // 会话双方静默多久判定超时
	DisconnectGrace    time.Duration `json:"disconnectGrace" yaml:"disconnectGrace"`       // 断线宽限期，期内重连不结束会话
	SupervisorInterval time.Duration `json:"supervisorInterval" yaml:"supervisorInterval"` // 清理任务轮询间隔

	// 限流配置
	IPRate    float64 `json:"ipRate" yaml:"ipRate"`       // 单 IP 每秒令牌数
	IPBurst   int     `json:"ipBurst" yaml:"ipBurst"`     // 单 IP 令牌桶容量
	UserRate  float64 `json:"userRate" yaml:"userRate"`   // 单用户每秒令牌数
	UserBurst int     `json:"userBurst" yaml:"userBurst"` // 单用户令牌桶容量

	// 管理配置
	ModeratorUUIDs []string `json:"moderatorUuids" yaml:"moderatorUuids"` // 允许访问 /admin 的运营账号 UUID
}

// DefaultMatchConfig 返回本地开发的默认配置。
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		Addr:           getEnvString("MATCH_ADDR", ":8080"),
		MetricsAddr:    getEnvString("MATCH_METRICS_ADDR", ":9091"),
		ReadTimeout:    getEnvDuration("MATCH_READ_TIMEOUT", 10*time.Second),
		WriteTimeout:   getEnvDuration("MATCH_WRITE_TIMEOUT", 10*time.Second),
		RequestTimeout: getEnvDuration("MATCH_REQUEST_TIMEOUT", 5*time.Second),

		MatchMaxRetries: getEnvInt("MATCH_MAX_RETRIES", 3),
		CandidateBatch:  getEnvInt("MATCH_CANDIDATE_BATCH", 20),
		SweepInterval:   getEnvDuration("MATCH_SWEEP_INTERVAL", 3*time.Second),

		MaxQueueWait:       getEnvDuration("MATCH_MAX_QUEUE_WAIT", 2*time.Minute),
		SessionIdleTimeout: getEnvDuration("MATCH_SESSION_IDLE_TIMEOUT", 5*time.Minute),
		DisconnectGrace:    getEnvDuration("MATCH_DISCONNECT_GRACE", 90*time.Second),
		SupervisorInterval: getEnvDuration("MATCH_SUPERVISOR_INTERVAL", 15*time.Second),

		IPRate:    getEnvFloat("MATCH_IP_RATE", 10.0),
		IPBurst:   getEnvInt("MATCH_IP_BURST", 20),
		UserRate:  getEnvFloat("MATCH_USER_RATE", 5.0),
		UserBurst: getEnvInt("MATCH_USER_BURST", 10),

		ModeratorUUIDs: getEnvStringSlice("MATCH_MODERATOR_UUIDS", nil),
	}
}
