package repository

import (
	"context"
	"encoding/json"
	"time"

	"PairServer/consts"
	"PairServer/consts/redisKey"
	"PairServer/pkg/async"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const publishTimeout = 5 * time.Second

type eventPublisherImpl struct {
	redisClient *redis.Client
}

// NewEventPublisher 创建事件发布器。
// 事件走 Redis Pub/Sub 按用户频道广播，presence 服务模式订阅后下发。
// 发布失败只记日志：事件是提示性质，客户端以 /match/status 对账为准。
func NewEventPublisher(redisClient *redis.Client) IEventPublisher {
	return &eventPublisherImpl{redisClient: redisClient}
}

// eventEnvelope 事件信封，与 WebSocket 下行帧共用结构
type eventEnvelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

type matchFoundData struct {
	PartnerUUID string `json:"partner_uuid"`
	SessionID   int64  `json:"session_id"`
	StartedAtMs int64  `json:"started_at_ms"`
}

type sessionEndedData struct {
	PartnerUUID string `json:"partner_uuid"`
	SessionID   int64  `json:"session_id"`
	Reason      string `json:"reason"`
}

type queueTimeoutData struct {
	JoinedAtMs int64 `json:"joined_at_ms"`
}

// PublishMatchFound 通知用户匹配成功
func (p *eventPublisherImpl) PublishMatchFound(ctx context.Context, toUUID, partnerUUID string, sessionID int64, startedAt time.Time) {
	p.publish(ctx, toUUID, eventEnvelope{
		Type: consts.EventMatchFound,
		Data: matchFoundData{
			PartnerUUID: partnerUUID,
			SessionID:   sessionID,
			StartedAtMs: startedAt.UnixMilli(),
		},
	})
}

// PublishSessionEnded 通知用户会话已结束
func (p *eventPublisherImpl) PublishSessionEnded(ctx context.Context, toUUID, partnerUUID string, sessionID int64, reason string) {
	p.publish(ctx, toUUID, eventEnvelope{
		Type: consts.EventSessionEnded,
		Data: sessionEndedData{
			PartnerUUID: partnerUUID,
			SessionID:   sessionID,
			Reason:      reason,
		},
	})
}

// PublishQueueTimeout 通知用户排队超时
func (p *eventPublisherImpl) PublishQueueTimeout(ctx context.Context, toUUID string, joinedAt time.Time) {
	p.publish(ctx, toUUID, eventEnvelope{
		Type: consts.EventQueueTimeout,
		Data: queueTimeoutData{
			JoinedAtMs: joinedAt.UnixMilli(),
		},
	})
}

func (p *eventPublisherImpl) publish(ctx context.Context, toUUID string, env eventEnvelope) {
	if p.redisClient == nil {
		logger.Debug(ctx, "Redis 不可用，跳过事件发布",
			logger.String("event", env.Type),
			logger.String("to", toUUID),
		)
		return
	}

	payload, err := json.Marshal(env)
	if err != nil {
		logger.Error(ctx, "序列化事件失败",
			logger.String("event", env.Type),
			logger.ErrorField("error", err),
		)
		return
	}

	eventType := env.Type
	async.RunSafe(ctx, func(runCtx context.Context) {
		if err := p.redisClient.Publish(runCtx, rediskey.EventChannel(toUUID), payload).Err(); err != nil {
			logger.Warn(runCtx, "发布事件失败",
				logger.String("event", eventType),
				logger.String("to", toUUID),
				logger.ErrorField("error", err),
			)
		}
	}, publishTimeout)
}
