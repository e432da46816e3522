package mq

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"PairServer/pkg/ctxmeta"
	pkgkafka "PairServer/pkg/kafka"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

const executeTimeout = 2 * time.Second

// RedisRetryConsumer 消费 Redis 补偿任务并重放到 Redis。
// 执行失败的任务累加重试计数后重新入队，超过上限的任务丢弃并告警。
type RedisRetryConsumer struct {
	reader      *kafkago.Reader
	redisClient *redis.Client
	producer    *pkgkafka.Producer
}

// NewRedisRetryConsumer 创建补偿任务消费者。
func NewRedisRetryConsumer(brokers []string, topic, groupID string, redisClient *redis.Client, producer *pkgkafka.Producer, errorLogger kafkago.Logger) *RedisRetryConsumer {
	return &RedisRetryConsumer{
		reader:      pkgkafka.NewReader(brokers, topic, groupID, errorLogger),
		redisClient: redisClient,
		producer:    producer,
	}
}

// Start 启动消费循环，阻塞直到 ctx 取消。
func (c *RedisRetryConsumer) Start(ctx context.Context) {
	logger.Info(ctx, "Redis 补偿消费者启动")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info(ctx, "Redis 补偿消费者退出")
				return
			}
			logger.Warn(ctx, "拉取补偿消息失败", logger.ErrorField("error", err))
			time.Sleep(time.Second)
			continue
		}

		c.handleMessage(ctx, msg.Value)

		// 执行结果无论成败都提交位点：
		// 失败任务已经重新入队（或超限丢弃），原消息不再需要
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Warn(ctx, "提交补偿消息位点失败", logger.ErrorField("error", err))
		}
	}
}

// Close 关闭消费者。
func (c *RedisRetryConsumer) Close() error {
	return c.reader.Close()
}

func (c *RedisRetryConsumer) handleMessage(ctx context.Context, payload []byte) {
	var task RedisTask
	if err := json.Unmarshal(payload, &task); err != nil {
		// 消息体损坏无法重试，丢弃
		logger.Error(ctx, "补偿任务反序列化失败",
			logger.ErrorField("error", err),
			logger.String("payload", string(payload)),
		)
		return
	}

	taskCtx := ctx
	if task.TraceID != "" {
		taskCtx = ctxmeta.WithTraceID(taskCtx, task.TraceID)
	}

	if err := c.execute(taskCtx, task); err != nil {
		c.retryOrDrop(taskCtx, task, err)
		return
	}

	logger.Debug(taskCtx, "补偿任务执行成功",
		logger.String("type", string(task.Type)),
		logger.String("source", task.Source),
		logger.Int("retry_count", task.RetryCount),
	)
}

// execute 按任务类型重放 Redis 操作。redis.Nil 视为成功。
func (c *RedisRetryConsumer) execute(ctx context.Context, task RedisTask) error {
	if c.redisClient == nil {
		return errors.New("redis client not available")
	}

	runCtx, cancel := context.WithTimeout(ctx, executeTimeout)
	defer cancel()

	var err error
	switch task.Type {
	case CmdSimple:
		args := make([]interface{}, 0, len(task.Args)+1)
		args = append(args, task.Command)
		args = append(args, task.Args...)
		err = c.redisClient.Do(runCtx, args...).Err()

	case CmdPipeline:
		pipe := c.redisClient.Pipeline()
		for _, cmd := range task.PipelineCmds {
			args := make([]interface{}, 0, len(cmd.Args)+1)
			args = append(args, cmd.Command)
			args = append(args, cmd.Args...)
			pipe.Do(runCtx, args...)
		}
		_, err = pipe.Exec(runCtx)

	case CmdLua:
		err = redis.NewScript(task.LuaScript).Run(runCtx, c.redisClient, task.LuaKeys, task.LuaArgs...).Err()

	default:
		// 未知类型无法执行，按成功处理避免死循环
		logger.Error(ctx, "未知的补偿任务类型", logger.String("type", string(task.Type)))
		return nil
	}

	if err != nil && err != redis.Nil {
		return err
	}
	return nil
}

// retryOrDrop 失败任务重新入队，超过最大重试次数后丢弃。
func (c *RedisRetryConsumer) retryOrDrop(ctx context.Context, task RedisTask, execErr error) {
	task.RetryCount++
	if task.MaxRetries <= 0 {
		task.MaxRetries = 3
	}

	if task.RetryCount >= task.MaxRetries {
		logger.Error(ctx, "补偿任务超过最大重试次数，放弃",
			logger.ErrorField("error", execErr),
			logger.String("type", string(task.Type)),
			logger.String("command", task.Command),
			logger.String("source", task.Source),
			logger.String("user_uuid", task.UserUUID),
			logger.Int("retry_count", task.RetryCount),
			logger.String("original_err", task.OriginalErr),
		)
		return
	}

	if c.producer == nil {
		logger.Error(ctx, "补偿任务重新入队失败：生产者不可用",
			logger.ErrorField("error", execErr),
			logger.String("source", task.Source),
		)
		return
	}

	payload, err := json.Marshal(task)
	if err != nil {
		logger.Error(ctx, "补偿任务序列化失败", logger.ErrorField("error", err))
		return
	}

	if err := c.producer.Send(ctx, []byte(task.UserUUID), payload); err != nil {
		logger.Error(ctx, "补偿任务重新入队失败",
			logger.ErrorField("error", err),
			logger.String("source", task.Source),
			logger.Int("retry_count", task.RetryCount),
		)
		return
	}

	logger.Warn(ctx, "补偿任务执行失败，已重新入队",
		logger.ErrorField("error", execErr),
		logger.String("type", string(task.Type)),
		logger.String("source", task.Source),
		logger.Int("retry_count", task.RetryCount),
	)
}
