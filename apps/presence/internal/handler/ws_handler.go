package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"PairServer/apps/presence/internal/manager"
	"PairServer/apps/presence/internal/svc"
	"PairServer/config"
	"PairServer/consts"
	"PairServer/pkg/ctxmeta"
	"PairServer/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	// WebSocket 协议层业务错误码（仅用于 ws 帧内的 error 消息，不是 HTTP 状态码）。
	wsMessageInvalidFormatCode = 10001
	wsMessageUnsupportedCode   = 10002
)

var (
	onlineConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pairserver_presence_online_connections",
		Help: "当前在线 WebSocket 连接数",
	})
	messagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pairserver_presence_messages_total",
			Help: "上行消息计数（按消息类型）",
		},
		[]string{"type"},
	)
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// 匿名配对的客户端来源不固定（Web/桌面/移动端），默认放开来源校验。
	// 生产环境建议按域名白名单收紧校验策略。
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// connectedData 定义 type=connected 欢迎帧的 data 结构。
// 下发建议心跳间隔，客户端按该值定时发送 heartbeat。
type connectedData struct {
	HeartbeatIntervalMs int64 `json:"heartbeat_interval_ms"`
	ServerTimeMs        int64 `json:"server_time_ms"`
}

// WSHandler 负责处理 /ws 接入请求。
// 职责边界：
// - 处理 Gin/HTTP 层参数、升级与错误响应；
// - 调用 svc 完成身份校验、状态维护与消息解析；
// - 调用 manager 维护连接生命周期。
type WSHandler struct {
	connManager *manager.ConnectionManager
	presenceSvc *svc.PresenceService
	cfg         config.PresenceConfig
}

// NewWSHandler 创建 WebSocket 入口处理器。
func NewWSHandler(connManager *manager.ConnectionManager, presenceSvc *svc.PresenceService, cfg config.PresenceConfig) *WSHandler {
	return &WSHandler{
		connManager: connManager,
		presenceSvc: presenceSvc,
		cfg:         cfg,
	}
}

// ServeWS 处理 WebSocket 握手与接入。
// 执行流程：
// 1. 从 query 中读取 user_id，并获取 client_ip。
// 2. 调用 presenceSvc.Identify 做身份校验。
// 3. 构建连接级 context（注入 trace/user/ip）。
// 4. 完成协议升级并进入连接处理主循环。
func (h *WSHandler) ServeWS(c *gin.Context) {
	userID := c.Query("user_id")
	clientIP := c.ClientIP()

	session, err := h.presenceSvc.Identify(c.Request.Context(), userID, clientIP)
	if err != nil {
		h.writeIdentifyError(c, err)
		return
	}

	connCtx := context.Background()
	if traceID := ctxmeta.TraceIDFromGin(c); traceID != "" {
		connCtx = ctxmeta.WithTraceID(connCtx, traceID)
	}
	connCtx = ctxmeta.WithUserUUID(connCtx, session.UserUUID)
	connCtx = ctxmeta.WithClientIP(connCtx, session.ClientIP)

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(connCtx, "WebSocket 升级失败",
			logger.ErrorField("error", err),
		)
		return
	}

	h.handleConnection(connCtx, conn, session)
}

// handleConnection 承载单个连接的完整生命周期。
// 关键语义：
// - 同一用户重复连接时，用新连接替换旧连接；
// - 连接建立/断开分别触发 OnConnect/OnDisconnect；
// - 断开时区分正常关闭与意外掉线，决定是否写断线标记。
func (h *WSHandler) handleConnection(ctx context.Context, conn *websocket.Conn, session *svc.Session) {
	client := manager.NewClient(conn, session.UserUUID, h.cfg.ReadLimit, h.cfg.PongWait)
	replaced := h.connManager.Register(client)
	if replaced != nil {
		replaced.Close()
	}

	h.presenceSvc.OnConnect(ctx, session)
	h.sendWelcomeFrame(ctx, client)
	onlineConnections.Inc()
	logger.Info(ctx, "WebSocket 连接已建立",
		logger.String("user_uuid", session.UserUUID),
		logger.String("client_ip", session.ClientIP),
		logger.Int("online_count", h.connManager.Count()),
	)

	client.Run(ctx, func(raw []byte) {
		h.handleMessage(ctx, client, session, raw)
	}, func() {
		h.connManager.Unregister(client)
		clean := client.CleanClose()
		h.presenceSvc.OnDisconnect(ctx, session, clean)
		onlineConnections.Dec()
		logger.Info(ctx, "WebSocket 连接已断开",
			logger.String("user_uuid", session.UserUUID),
			logger.Bool("clean_close", clean),
			logger.Int("online_count", h.connManager.Count()),
		)
	})
}

// handleMessage 处理客户端上行帧。
// 当前支持：
// - heartbeat: 更新活跃时间并返回 heartbeat_ack。
// 下行事件（match_found/session_ended/queue_timeout）由 notifier 推送，不走上行通道。
func (h *WSHandler) handleMessage(ctx context.Context, client *manager.Client, session *svc.Session, raw []byte) {
	envelope, err := h.presenceSvc.ParseEnvelope(raw)
	if err != nil {
		messagesTotal.WithLabelValues("invalid").Inc()
		h.sendErrorFrame(ctx, client, wsMessageInvalidFormatCode, "invalid frame format")
		return
	}

	switch envelope.Type {
	case "heartbeat":
		messagesTotal.WithLabelValues("heartbeat").Inc()
		h.presenceSvc.OnHeartbeat(ctx, session)
		ack, marshalErr := h.presenceSvc.MarshalEnvelope("heartbeat_ack", nil)
		if marshalErr != nil {
			logger.Warn(ctx, "心跳应答序列化失败",
				logger.ErrorField("error", marshalErr),
			)
			return
		}
		if !client.Enqueue(ack) {
			client.Close()
		}
	default:
		messagesTotal.WithLabelValues("unsupported").Inc()
		h.sendErrorFrame(ctx, client, wsMessageUnsupportedCode, "unsupported message type")
	}
}

// sendWelcomeFrame 下发欢迎帧，告知客户端建议的心跳间隔。
func (h *WSHandler) sendWelcomeFrame(ctx context.Context, client *manager.Client) {
	payload, err := h.presenceSvc.MarshalEnvelope("connected", connectedData{
		HeartbeatIntervalMs: h.cfg.HeartbeatInterval.Milliseconds(),
		ServerTimeMs:        time.Now().UnixMilli(),
	})
	if err != nil {
		logger.Warn(ctx, "欢迎帧序列化失败",
			logger.ErrorField("error", err),
		)
		return
	}
	if !client.Enqueue(payload) {
		client.Close()
	}
}

// sendErrorFrame 发送 ws 协议层错误帧。
// 发送失败通常表示连接不可写，此时主动关闭连接避免资源泄漏。
func (h *WSHandler) sendErrorFrame(ctx context.Context, client *manager.Client, code int, message string) {
	payload, err := h.presenceSvc.MarshalEnvelope("error", svc.ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		logger.Warn(ctx, "错误帧序列化失败",
			logger.Int("code", code),
			logger.ErrorField("error", err),
		)
		return
	}
	if !client.Enqueue(payload) {
		client.Close()
	}
}

// writeIdentifyError 将身份校验错误映射为 HTTP 握手阶段错误响应。
// 说明：握手前还未升级为 WebSocket，因此用 HTTP JSON 返回更直观。
func (h *WSHandler) writeIdentifyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, svc.ErrUserUUIDRequired), errors.Is(err, svc.ErrUserUUIDTooLong):
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    consts.CodeParamError,
			"message": err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    consts.CodeInternalError,
			"message": consts.GetMessage(consts.CodeInternalError),
		})
	}
}
