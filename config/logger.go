package config

import "os"

// LoggerConfig 日志配置。
// Encoding 支持 console / json，线上建议 json 方便采集。
type LoggerConfig struct {
	Level            string   `json:"level" yaml:"level"`                       // 日志级别: debug/info/warn/error
	Encoding         string   `json:"encoding" yaml:"encoding"`                 // 编码格式: console/json
	EnableColor      bool     `json:"enableColor" yaml:"enableColor"`           // console 编码时是否使用彩色级别
	Development      bool     `json:"development" yaml:"development"`           // 开发模式（error 级别附带堆栈）
	OutputPaths      []string `json:"outputPaths" yaml:"outputPaths"`           // 普通日志输出位置，支持 stdout/stderr/文件路径
	ErrorOutputPaths []string `json:"errorOutputPaths" yaml:"errorOutputPaths"` // zap 内部错误输出位置
}

// DefaultLoggerConfig 返回本地开发的默认配置。
func DefaultLoggerConfig() LoggerConfig {
	cfg := LoggerConfig{
		Level:            "info",
		Encoding:         "console",
		EnableColor:      true,
		Development:      true,
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.Level = level
	}
	if encoding := os.Getenv("LOG_ENCODING"); encoding != "" {
		cfg.Encoding = encoding
		if encoding == "json" {
			cfg.EnableColor = false
		}
	}

	return cfg
}
