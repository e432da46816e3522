package config

import "time"

// PresenceConfig 在线状态服务配置。
// 该服务维护 WebSocket 长连接，负责心跳续活和撮合事件下发。
type PresenceConfig struct {
	Addr              string        `json:"addr" yaml:"addr"`                           // WebSocket 监听地址
	ReadHeaderTimeout time.Duration `json:"readHeaderTimeout" yaml:"readHeaderTimeout"` // 请求头读取超时
	IdleTimeout       time.Duration `json:"idleTimeout" yaml:"idleTimeout"`             // 空闲连接超时

	ReadLimit         int64         `json:"readLimit" yaml:"readLimit"`                 // 单条消息最大字节数
	PongWait          time.Duration `json:"pongWait" yaml:"pongWait"`                   // 收不到心跳多久判定连接死亡
	HeartbeatInterval time.Duration `json:"heartbeatInterval" yaml:"heartbeatInterval"` // 建议客户端的心跳间隔（下发用）
}

// DefaultPresenceConfig 返回本地开发的默认配置。
func DefaultPresenceConfig() PresenceConfig {
	return PresenceConfig{
		Addr:              getEnvString("PRESENCE_ADDR", ":8081"),
		ReadHeaderTimeout: getEnvDuration("PRESENCE_READ_HEADER_TIMEOUT", 5*time.Second),
		IdleTimeout:       getEnvDuration("PRESENCE_IDLE_TIMEOUT", 60*time.Second),

		ReadLimit:         int64(getEnvInt("PRESENCE_READ_LIMIT", 4096)),
		PongWait:          getEnvDuration("PRESENCE_PONG_WAIT", 75*time.Second),
		HeartbeatInterval: getEnvDuration("PRESENCE_HEARTBEAT_INTERVAL", 25*time.Second),
	}
}
