package config

import "time"

// KafkaConsumerConfig 消费者配置。
type KafkaConsumerConfig struct {
	GroupID        string        `json:"groupId" yaml:"groupId"`               // 消费组 ID
	MinBytes       int           `json:"minBytes" yaml:"minBytes"`             // fetch 最小字节数
	MaxBytes       int           `json:"maxBytes" yaml:"maxBytes"`             // fetch 最大字节数
	MaxWait        time.Duration `json:"maxWait" yaml:"maxWait"`               // fetch 最长等待时间
	CommitInterval time.Duration `json:"commitInterval" yaml:"commitInterval"` // 位点提交间隔（0 表示同步提交）
}

// KafkaConfig Kafka 配置。
// 目前只承载 Redis 补偿队列：写库成功但缓存操作失败时，
// 把缓存指令投递到 Kafka 异步重放，保证最终一致。
type KafkaConfig struct {
	Brokers         []string            `json:"brokers" yaml:"brokers"`                 // broker 地址列表
	RedisRetryTopic string              `json:"redisRetryTopic" yaml:"redisRetryTopic"` // Redis 补偿任务 topic
	ConsumerConfig  KafkaConsumerConfig `json:"consumerConfig" yaml:"consumerConfig"`   // 消费者配置
}

// DefaultKafkaConfig 返回本地开发的默认配置。
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:         getEnvStringSlice("KAFKA_BROKERS", []string{"127.0.0.1:9092"}),
		RedisRetryTopic: getEnvString("KAFKA_REDIS_RETRY_TOPIC", "match-redis-retry"),
		ConsumerConfig: KafkaConsumerConfig{
			GroupID:        getEnvString("KAFKA_CONSUMER_GROUP", "match-redis-retry-group"),
			MinBytes:       1,
			MaxBytes:       10 * 1024 * 1024, // 10MB
			MaxWait:        500 * time.Millisecond,
			CommitInterval: 0,
		},
	}
}
