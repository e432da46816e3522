package notifier

import (
	"context"
	"encoding/json"

	"PairServer/apps/presence/internal/manager"
	"PairServer/apps/presence/internal/svc"
	"PairServer/consts/redisKey"
	"PairServer/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var eventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pairserver_presence_events_total",
		Help: "撮合事件下发计数（delivered/dropped/invalid）",
	},
	[]string{"result"},
)

// Notifier 订阅撮合事件并转发给本实例上的在线连接。
// match 服务按用户频道发布事件（match:events:{uuid}），
// 这里用模式订阅一次接住全部频道，再按频道名路由到具体连接。
// 目标用户不在本实例时事件直接丢弃：事件是提示性质，客户端以 /match/status 对账为准。
type Notifier struct {
	redisClient *redis.Client
	connManager *manager.ConnectionManager

	cancel context.CancelFunc
	done   chan struct{}
}

// New 创建事件转发器。
func New(redisClient *redis.Client, connManager *manager.ConnectionManager) *Notifier {
	return &Notifier{
		redisClient: redisClient,
		connManager: connManager,
	}
}

// Start 启动订阅循环（后台 goroutine 中运行）。
func (n *Notifier) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	n.cancel = cancel
	n.done = make(chan struct{})
	go n.run(ctx)
}

// Stop 停止订阅并等待循环退出。
func (n *Notifier) Stop() {
	if n.cancel == nil {
		return
	}
	n.cancel()
	<-n.done
}

// run 维持模式订阅。
// go-redis 的 PubSub 在连接断开后会自动重连并重新订阅，
// 这里只需要消费消息直到 ctx 结束。
func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)

	pubsub := n.redisClient.PSubscribe(ctx, rediskey.EventChannelPattern())
	defer pubsub.Close()

	logger.Info(ctx, "撮合事件订阅已启动",
		logger.String("pattern", rediskey.EventChannelPattern()),
	)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			n.dispatch(ctx, msg.Channel, []byte(msg.Payload))
		}
	}
}

// dispatch 把一条事件路由到目标用户的连接。
// 事件载荷与下行帧共用信封结构，校验通过后原样透传，不做二次编码。
func (n *Notifier) dispatch(ctx context.Context, channel string, payload []byte) {
	userUUID := rediskey.UserFromEventChannel(channel)
	if userUUID == "" {
		eventsTotal.WithLabelValues("invalid").Inc()
		logger.Warn(ctx, "事件频道名格式不符，丢弃",
			logger.String("channel", channel),
		)
		return
	}

	var envelope svc.Envelope
	if err := json.Unmarshal(payload, &envelope); err != nil || envelope.Type == "" {
		eventsTotal.WithLabelValues("invalid").Inc()
		logger.Warn(ctx, "事件载荷格式不符，丢弃",
			logger.String("channel", channel),
			logger.ErrorField("error", err),
		)
		return
	}

	if n.connManager.SendToUser(userUUID, payload) {
		eventsTotal.WithLabelValues("delivered").Inc()
		return
	}

	// 用户连在其他实例或已离线，属于正常情况
	eventsTotal.WithLabelValues("dropped").Inc()
	logger.Debug(ctx, "目标用户不在本实例，事件丢弃",
		logger.String("user_uuid", userUUID),
		logger.String("event", envelope.Type),
	)
}
