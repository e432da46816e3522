package mq

import (
	"context"
	"encoding/json"
	"errors"

	pkgkafka "PairServer/pkg/kafka"
)

// ErrProducerNotReady 表示生产者未初始化（Kafka 未配置或启动失败）。
var ErrProducerNotReady = errors.New("mq: redis retry producer not ready")

var globalProducer *pkgkafka.Producer

// SetGlobalProducer 设置全局补偿任务生产者，需在进程启动时调用一次。
// 未设置时 SendRedisTask 返回 ErrProducerNotReady，调用方记录日志后放弃补偿。
func SetGlobalProducer(p *pkgkafka.Producer) {
	globalProducer = p
}

// SendRedisTask 把补偿任务投递到 Kafka。
// 以 UserUUID 作为消息 key，同一用户的缓存操作按序重放。
func SendRedisTask(ctx context.Context, task RedisTask) error {
	if globalProducer == nil {
		return ErrProducerNotReady
	}

	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	return globalProducer.Send(ctx, []byte(task.UserUUID), payload)
}
