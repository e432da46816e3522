package manager

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultSendQueueSize = 64
	wsWriteTimeout       = 5 * time.Second
)

// MessageHandler 定义上行消息回调。
// 参数 raw 为客户端原始载荷（约定为 JSON 编码后的字节）。
type MessageHandler func(raw []byte)

// CloseHandler 定义连接关闭回调。
// 用于在 read/write 循环退出后执行清理逻辑（例如从 manager 注销）。
type CloseHandler func()

// Client 封装单条 WebSocket 连接。
// 设计要点：
// - send 队列用于削峰，避免业务 goroutine 直接阻塞在网络写；
// - done 用于统一关闭信号，读写循环都监听该信号退出；
// - once 保证 Close 幂等，避免重复 close channel/panic；
// - 读侧依赖应用层心跳续期 deadline，超过 pongWait 没有任何上行帧即判定连接死亡。
type Client struct {
	conn      *websocket.Conn
	userUUID  string
	readLimit int64
	pongWait  time.Duration
	send      chan []byte
	done      chan struct{}
	once      sync.Once

	// closeErr 记录 readLoop 退出时的错误，只在 readLoop 所在 goroutine 写入
	closeErr error
}

// NewClient 创建连接包装对象。
// readLimit 限制单条上行帧大小，pongWait 为读超时（任何上行帧都会续期）。
func NewClient(conn *websocket.Conn, userUUID string, readLimit int64, pongWait time.Duration) *Client {
	return &Client{
		conn:      conn,
		userUUID:  userUUID,
		readLimit: readLimit,
		pongWait:  pongWait,
		send:      make(chan []byte, defaultSendQueueSize),
		done:      make(chan struct{}),
	}
}

func (c *Client) UserUUID() string {
	return c.userUUID
}

// Done 返回连接关闭信号通道。
// 外部可通过监听该通道感知连接生命周期结束。
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Enqueue 将待发送消息投递到写队列。
// 返回值语义：
// - true：已成功入队；
// - false：连接已关闭或队列已满（调用方可选择断开连接或丢弃消息）。
func (c *Client) Enqueue(msg []byte) bool {
	if len(msg) == 0 {
		return true
	}
	// done 和队列可能同时就绪，先判关闭，保证 Close 之后必然拒绝
	select {
	case <-c.done:
		return false
	default:
	}

	cloned := append([]byte(nil), msg...)
	select {
	case c.send <- cloned:
		return true
	default:
		return false
	}
}

// Run 启动读写循环并阻塞等待 readLoop 结束。
// 行为说明：
// - writeLoop 在独立 goroutine 中运行；
// - readLoop 在当前 goroutine 运行，通常由其错误/断连触发整体退出；
// - 退出时保证调用 Close 和 onClose，确保资源回收。
func (c *Client) Run(ctx context.Context, onMessage MessageHandler, onClose CloseHandler) {
	defer func() {
		c.Close()
		if onClose != nil {
			onClose()
		}
	}()

	go c.writeLoop(ctx)
	c.readLoop(ctx, onMessage)
}

// Close 幂等关闭连接。
// 关闭顺序：
// 1. 关闭 done 信号，通知读写循环退出；
// 2. 关闭底层 websocket 连接释放网络资源。
func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// CleanClose 报告连接是否以 WebSocket 关闭握手正常结束。
// 只能在 onClose 回调（或 Run 返回）之后调用，此时 closeErr 已定型。
// 客户端主动说再见（normal/going away）视为干净下线，
// 网络掉线、读超时等其他退出路径都视为意外断开。
func (c *Client) CleanClose() bool {
	return websocket.IsCloseError(c.closeErr, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}

// readLoop 持续读取客户端上行帧并交由 onMessage 处理。
// 退出条件：ctx cancel、连接关闭信号、网络读错误、读超时。
func (c *Client) readLoop(ctx context.Context, onMessage MessageHandler) {
	if c.readLimit > 0 {
		c.conn.SetReadLimit(c.readLimit)
	}
	c.extendReadDeadline()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			c.closeErr = err
			return
		}

		// 任何上行帧都算活跃，不要求必须是心跳
		c.extendReadDeadline()

		if onMessage != nil {
			onMessage(raw)
		}
	}
}

func (c *Client) extendReadDeadline() {
	if c.pongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	}
}

// writeLoop 持续从 send 队列取消息写入客户端。
// 每次写操作设置超时，避免慢连接长期占用写协程。
func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.Close()
				return
			}
		}
	}
}
