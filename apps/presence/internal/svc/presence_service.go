package svc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"PairServer/consts/redisKey"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const maxUserUUIDLen = 64

var (
	// ErrUserUUIDRequired 表示握手参数中缺少 user_id。
	ErrUserUUIDRequired = errors.New("user_id is required")
	// ErrUserUUIDTooLong 表示 user_id 超过长度上限。
	ErrUserUUIDTooLong = errors.New("user_id is too long")
)

// Session 保存连接握手后的身份信息。
// 匿名配对没有账号体系，身份就是客户端自持的 UUID，
// 握手只做格式校验，不做登录态校验。
type Session struct {
	UserUUID string
	ClientIP string
}

// Envelope 定义 WebSocket 通用消息包格式。
// 约定：
// - Type: 消息类型（如 heartbeat/match_found）；
// - Data: 消息体（由上层按 Type 再解析）。
// 与 match 服务发布到 Redis 的事件信封是同一结构，推送时原样透传。
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ErrorData 定义 type=error 时的 data 结构。
type ErrorData struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PresenceService 承载 presence 的核心业务逻辑：
// 身份校验、活跃时间维护、断线标记维护、帧编解码。
type PresenceService struct {
	redisClient *redis.Client
}

// NewPresenceService 创建业务服务实例。
func NewPresenceService(redisClient *redis.Client) *PresenceService {
	return &PresenceService{redisClient: redisClient}
}

// Identify 校验 WebSocket 握手参数。
// 校验流程：
// 1. 校验 user_id 是否为空；
// 2. 校验长度不超过数据库字段上限。
func (s *PresenceService) Identify(ctx context.Context, userID, clientIP string) (*Session, error) {
	userID = strings.TrimSpace(userID)
	clientIP = strings.TrimSpace(clientIP)

	if userID == "" {
		return nil, ErrUserUUIDRequired
	}
	if len(userID) > maxUserUUIDLen {
		return nil, ErrUserUUIDTooLong
	}

	return &Session{
		UserUUID: userID,
		ClientIP: clientIP,
	}, nil
}

// OnConnect 在连接建立后触发。
// 行为：
// - 写入最近活跃时间（清理任务以此判定在线）；
// - 清掉断线标记，宽限期内重连的会话得以保留。
func (s *PresenceService) OnConnect(ctx context.Context, session *Session) {
	if s.redisClient == nil {
		return
	}

	now := time.Now()
	pipe := s.redisClient.Pipeline()
	pipe.ZAdd(ctx, rediskey.PresenceActiveKey(), redis.Z{
		Score:  float64(now.UnixMilli()),
		Member: session.UserUUID,
	})
	pipe.Del(ctx, rediskey.PresenceOfflineKey(session.UserUUID))

	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warn(ctx, "写入上线状态失败",
			logger.String("user_uuid", session.UserUUID),
			logger.ErrorField("error", err),
		)
	}
}

// OnHeartbeat 在收到客户端心跳后触发，只做活跃时间续期。
// 写失败不补偿：心跳周期性重发，下一次心跳即自愈。
func (s *PresenceService) OnHeartbeat(ctx context.Context, session *Session) {
	s.touchActive(ctx, session.UserUUID)
}

// OnDisconnect 在连接断开后触发。
// clean=true 表示客户端走了正常关闭握手（关页面/退出应用），
// 此时写断线标记，清理任务按断线宽限期处理其会话；
// 意外掉线不写标记，交给活跃时间静默超时兜底，给弱网重连留足余地。
func (s *PresenceService) OnDisconnect(ctx context.Context, session *Session, clean bool) {
	if !clean || s.redisClient == nil {
		return
	}

	key := rediskey.PresenceOfflineKey(session.UserUUID)
	nowMs := time.Now().UnixMilli()
	if err := s.redisClient.Set(ctx, key, nowMs, rediskey.PresenceOfflineTTL).Err(); err != nil {
		logger.Warn(ctx, "写入断线标记失败",
			logger.String("user_uuid", session.UserUUID),
			logger.ErrorField("error", err),
		)
	}
}

// ParseEnvelope 解析客户端上行帧。
// 若 type 缺失或 JSON 不合法，会返回错误交由 handler 返回 error 帧。
func (s *PresenceService) ParseEnvelope(raw []byte) (*Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, err
	}
	envelope.Type = strings.TrimSpace(envelope.Type)
	if envelope.Type == "" {
		return nil, errors.New("type is required")
	}
	return &envelope, nil
}

// MarshalEnvelope 组装并序列化下行帧。
// 约定：data=nil 时省略 data 字段，避免无意义空对象。
func (s *PresenceService) MarshalEnvelope(msgType string, data any) ([]byte, error) {
	envelope := map[string]any{
		"type": msgType,
	}
	if data != nil {
		envelope["data"] = data
	}
	return json.Marshal(envelope)
}

// touchActive 更新用户最近活跃时间到 Redis。
// Key 规则：
// - key:    presence:active（ZSet）
// - member: user_uuid
// - score:  unix 毫秒
func (s *PresenceService) touchActive(ctx context.Context, userUUID string) {
	if s.redisClient == nil || userUUID == "" {
		return
	}

	err := s.redisClient.ZAdd(ctx, rediskey.PresenceActiveKey(), redis.Z{
		Score:  float64(time.Now().UnixMilli()),
		Member: userUUID,
	}).Err()
	if err != nil {
		logger.Warn(ctx, "更新用户活跃时间失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err),
		)
	}
}
