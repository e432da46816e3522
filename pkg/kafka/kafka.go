package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Producer Kafka 生产者的轻量封装。
// 使用 Hash Balancer，按 key（用户 UUID）分区，保证同一用户的补偿任务有序。
type Producer struct {
	writer *kafka.Writer
}

// NewProducer 创建指定 topic 的生产者。
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
			BatchTimeout:           10 * time.Millisecond,
			WriteTimeout:           3 * time.Second,
		},
	}
}

// Send 发送单条消息。
func (p *Producer) Send(ctx context.Context, key, value []byte) error {
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
}

// Close 关闭生产者，等待在途消息发送完成。
func (p *Producer) Close() error {
	return p.writer.Close()
}

// NewReader 创建消费组 Reader。
// CommitInterval 为 0 时同步提交位点，补偿任务不允许丢消息。
func NewReader(brokers []string, topic, groupID string, errorLogger kafka.Logger) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10 * 1024 * 1024,
		MaxWait:        500 * time.Millisecond,
		CommitInterval: 0,
		ErrorLogger:    errorLogger,
	})
}

// ==================== 日志适配 ====================

// ZapLoggerAdapter 把 kafka-go 的 Printf 风格日志桥接到 zap。
type ZapLoggerAdapter struct {
	l *zap.Logger
}

// NewZapLoggerAdapter 创建日志适配器，l 为 nil 时日志被丢弃。
func NewZapLoggerAdapter(l *zap.Logger) *ZapLoggerAdapter {
	return &ZapLoggerAdapter{l: l}
}

// Printf 实现 kafka.Logger 接口。
func (a *ZapLoggerAdapter) Printf(format string, args ...interface{}) {
	if a == nil || a.l == nil {
		return
	}
	a.l.Sugar().Warnf("kafka: "+format, args...)
}
