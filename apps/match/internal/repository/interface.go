package repository

import (
	"context"
	"time"

	"PairServer/apps/match/internal/matching"
	"PairServer/model"
)

// ==================== 事务结果 ====================

// EnqueueResult 入队事务结果。
// OK=false 时 Status/Banned 反映数据库里的真实状态，由服务层翻译为业务错误。
type EnqueueResult struct {
	OK     bool
	Status int8
	Banned bool
}

// DequeueResult 出队事务结果。
type DequeueResult struct {
	OK     bool
	Status int8
}

// SessionInfo 会话视角信息（按单方用户查询）。
type SessionInfo struct {
	PartnerUUID string
	SessionID   int64
	StartedAt   time.Time
}

// ==================== 用户 Repository ====================

// IUserRepository 用户档案与状态数据访问接口
type IUserRepository interface {
	// EnsureUser 按 UUID 幂等创建/更新用户档案（不触碰 status/banned）
	EnsureUser(ctx context.Context, user *model.ChatUser) (*model.ChatUser, error)

	// EnsureExists 确保用户行存在，已存在时不做任何修改
	EnsureExists(ctx context.Context, uuid string) error

	// GetByUUID 根据 UUID 查询用户档案。
	// 返回值的 Status 字段不保证新鲜，状态判断走 GetStatus
	GetByUUID(ctx context.Context, uuid string) (*model.ChatUser, error)

	// GetStatus 查询用户当前状态（idle/waiting/chatting）
	GetStatus(ctx context.Context, uuid string) (int8, error)

	// SetBanned 设置/解除封禁标记（不触碰 status，会话清理由服务层编排）
	SetBanned(ctx context.Context, uuid string, banned bool) error

	// CountTotal 用户总数
	CountTotal(ctx context.Context) (int64, error)

	// CountByStatus 按状态统计用户数
	CountByStatus(ctx context.Context, status int8) (int64, error)

	// CountBanned 封禁用户数
	CountBanned(ctx context.Context) (int64, error)
}

// ==================== 队列 Repository ====================

// IQueueRepository 匹配队列数据访问接口
type IQueueRepository interface {
	// Enqueue 尝试把 idle 用户置为 waiting 并写入队列（单事务 CAS）
	Enqueue(ctx context.Context, userUUID string, filters matching.Filters, joinedAt time.Time) (*EnqueueResult, error)

	// Dequeue 尝试把 waiting 用户置回 idle 并移出队列（单事务 CAS）
	Dequeue(ctx context.Context, userUUID string) (*DequeueResult, error)

	// PeekCandidates 按入队时间升序取队首候选人（不修改状态）
	PeekCandidates(ctx context.Context, limit int) ([]model.QueueEntry, error)

	// GetEntry 查询用户的队列记录
	GetEntry(ctx context.Context, userUUID string) (*model.QueueEntry, error)

	// Depth 当前排队人数
	Depth(ctx context.Context) (int64, error)

	// StaleEntries 查询入队时间早于 olderThan 的滞留记录（超时清理用）
	StaleEntries(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueEntry, error)
}

// ==================== 配对 Repository ====================

// IPairRepository 会话配对数据访问接口
type IPairRepository interface {
	// CreatePair 原子建立配对：校验双方 waiting、删除队列行、写入镜像配对记录。
	// 冲突时返回 ErrConflict，conflictUUID 标记状态已变化的一方（无法归因时为空）。
	CreatePair(ctx context.Context, seekerUUID, candidateUUID string, sessionID int64, startedAt time.Time) (conflictUUID string, err error)

	// EndSessionByUser 原子结束会话：删除镜像记录、双方状态置回 idle。
	// 用户不在会话中时返回 ErrRecordNotFound。
	EndSessionByUser(ctx context.Context, userUUID string) (*SessionInfo, error)

	// GetPartner 查询用户当前会话信息（O(1) 缓存优先）
	GetPartner(ctx context.Context, userUUID string) (*SessionInfo, error)

	// ActivePairs 按主键游标分页扫描配对记录（清理任务用）
	ActivePairs(ctx context.Context, afterID int64, limit int) ([]model.PairRecord, error)

	// CountActiveSessions 当前进行中的会话数
	CountActiveSessions(ctx context.Context) (int64, error)
}

// ==================== 举报 Repository ====================

// IReportRepository 用户举报数据访问接口
type IReportRepository interface {
	// Create 创建举报记录
	Create(ctx context.Context, report *model.UserReport) error

	// GetByID 根据 ID 查询举报记录
	GetByID(ctx context.Context, id int64) (*model.UserReport, error)

	// List 按状态分页查询举报记录（status 为 -1 表示不过滤）
	List(ctx context.Context, status int8, page, pageSize int) ([]model.UserReport, int64, error)

	// Resolve 处理举报（CAS pending -> 处理结果），已处理过返回 ok=false
	Resolve(ctx context.Context, id int64, result int8) (ok bool, err error)

	// CountPending 待处理举报数
	CountPending(ctx context.Context) (int64, error)
}

// ==================== 在线状态 Repository ====================

// ILivenessRepository 在线活跃数据访问接口（presence 服务写入，本服务只读）
type ILivenessRepository interface {
	// LastActive 批量查询用户最近活跃时间，无记录的用户不出现在返回 map 中
	LastActive(ctx context.Context, userUUIDs []string) (map[string]time.Time, error)

	// OfflineSince 查询用户的断线标记时间，ok=false 表示无断线标记
	OfflineSince(ctx context.Context, userUUID string) (time.Time, bool, error)
}

// ==================== 事件发布 ====================

// IEventPublisher 撮合事件发布接口。
// 事件经 Redis Pub/Sub 广播，presence 服务订阅后推送给在线客户端。
// 发布尽力而为：客户端断线重连后通过 /match/status 对账，不依赖事件可靠性。
type IEventPublisher interface {
	// PublishMatchFound 通知用户匹配成功
	PublishMatchFound(ctx context.Context, toUUID, partnerUUID string, sessionID int64, startedAt time.Time)

	// PublishSessionEnded 通知用户会话已结束
	PublishSessionEnded(ctx context.Context, toUUID, partnerUUID string, sessionID int64, reason string)

	// PublishQueueTimeout 通知用户排队超时被移出队列
	PublishQueueTimeout(ctx context.Context, toUUID string, joinedAt time.Time)
}
