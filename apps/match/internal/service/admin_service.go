package service

import (
	"context"
	"encoding/json"
	"errors"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/repository"
	"PairServer/consts"
	"PairServer/consts/redisKey"
	"PairServer/model"
	"PairServer/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// adminServiceImpl 管理服务实现
type adminServiceImpl struct {
	userRepo    repository.IUserRepository
	queueRepo   repository.IQueueRepository
	pairRepo    repository.IPairRepository
	reportRepo  repository.IReportRepository
	events      repository.IEventPublisher
	redisClient *redis.Client
}

// NewAdminService 创建管理服务实例
// redisClient 仅用于统计短缓存，可为 nil（降级为每次直查）
func NewAdminService(
	userRepo repository.IUserRepository,
	queueRepo repository.IQueueRepository,
	pairRepo repository.IPairRepository,
	reportRepo repository.IReportRepository,
	events repository.IEventPublisher,
	redisClient *redis.Client,
) IAdminService {
	return &adminServiceImpl{
		userRepo:    userRepo,
		queueRepo:   queueRepo,
		pairRepo:    pairRepo,
		reportRepo:  reportRepo,
		events:      events,
		redisClient: redisClient,
	}
}

// Stats 运营统计。
// 走 10 秒级短缓存，7 条 count 查询对运营面板足够新鲜。
func (s *adminServiceImpl) Stats(ctx context.Context) (*dto.StatsResponse, error) {
	if cached := s.statsFromCache(ctx); cached != nil {
		return cached, nil
	}

	stats, err := s.buildStats(ctx)
	if err != nil {
		return nil, err
	}
	s.setStatsCache(ctx, stats)
	return stats, nil
}

func (s *adminServiceImpl) buildStats(ctx context.Context) (*dto.StatsResponse, error) {
	total, err := s.userRepo.CountTotal(ctx)
	if err != nil {
		return nil, err
	}
	waiting, err := s.userRepo.CountByStatus(ctx, model.UserStatusWaiting)
	if err != nil {
		return nil, err
	}
	chatting, err := s.userRepo.CountByStatus(ctx, model.UserStatusChatting)
	if err != nil {
		return nil, err
	}
	banned, err := s.userRepo.CountBanned(ctx)
	if err != nil {
		return nil, err
	}
	depth, err := s.queueRepo.Depth(ctx)
	if err != nil {
		return nil, err
	}
	sessions, err := s.pairRepo.CountActiveSessions(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := s.reportRepo.CountPending(ctx)
	if err != nil {
		return nil, err
	}

	idle := total - waiting - chatting
	if idle < 0 {
		idle = 0
	}

	return &dto.StatsResponse{
		TotalUsers:     total,
		IdleUsers:      idle,
		WaitingUsers:   waiting,
		ChattingUsers:  chatting,
		BannedUsers:    banned,
		QueueDepth:     depth,
		ActiveSessions: sessions,
		PendingReports: pending,
	}, nil
}

func (s *adminServiceImpl) statsFromCache(ctx context.Context) *dto.StatsResponse {
	if s.redisClient == nil {
		return nil
	}
	raw, err := s.redisClient.Get(ctx, rediskey.StatsKey()).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn(ctx, "读取统计缓存失败", logger.ErrorField("error", err))
		}
		return nil
	}
	var stats dto.StatsResponse
	if err := json.Unmarshal([]byte(raw), &stats); err != nil {
		return nil
	}
	return &stats
}

func (s *adminServiceImpl) setStatsCache(ctx context.Context, stats *dto.StatsResponse) {
	if s.redisClient == nil {
		return
	}
	data, err := json.Marshal(stats)
	if err != nil {
		return
	}
	// 秒级短缓存，写失败无需补偿
	if err := s.redisClient.Set(ctx, rediskey.StatsKey(), data, rediskey.StatsCacheTTL).Err(); err != nil {
		logger.Warn(ctx, "写入统计缓存失败", logger.ErrorField("error", err))
	}
}

// ListReports 分页查询举报记录
func (s *adminServiceImpl) ListReports(ctx context.Context, statusLabel string, page, pageSize int) (*dto.ListReportsResponse, error) {
	status, ok := dto.ParseReportStatus(statusLabel)
	if !ok {
		return nil, ErrInvalidArgument
	}

	page, pageSize = normalizePageArgs(page, pageSize)
	items, total, err := s.reportRepo.List(ctx, status, page, pageSize)
	if err != nil {
		return nil, err
	}

	out := make([]*dto.ReportItem, 0, len(items))
	for i := range items {
		out = append(out, dto.ConvertReportItem(&items[i]))
	}

	totalPages := int32((total + int64(pageSize) - 1) / int64(pageSize))
	return &dto.ListReportsResponse{
		Items: out,
		Pagination: &dto.PaginationInfo{
			Page:       int32(page),
			PageSize:   int32(pageSize),
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}

// ResolveReport 处理举报
func (s *adminServiceImpl) ResolveReport(ctx context.Context, reportID int64, action string) (*dto.ResolveReportResponse, error) {
	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, err
	}

	switch action {
	case "ignore":
		ok, err := s.reportRepo.Resolve(ctx, reportID, model.ReportStatusIgnored)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrReportResolved
		}
		return &dto.ResolveReportResponse{ReportID: reportID, Action: action}, nil

	case "ban":
		ok, err := s.reportRepo.Resolve(ctx, reportID, model.ReportStatusBanned)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrReportResolved
		}
		// 封禁被举报人。举报已标记完成，这一步失败时运营可直接走 /admin/ban 重试
		if _, err := s.banUser(ctx, report.ReportedUuid); err != nil {
			logger.Error(ctx, "处理举报后封禁用户失败",
				logger.Int64("report_id", reportID),
				logger.String("user_uuid", report.ReportedUuid),
				logger.ErrorField("error", err),
			)
			return nil, err
		}
		return &dto.ResolveReportResponse{ReportID: reportID, Action: action, Banned: true}, nil

	default:
		return nil, ErrInvalidArgument
	}
}

// Ban 封禁用户
func (s *adminServiceImpl) Ban(ctx context.Context, userUUID string) (*dto.BanResponse, error) {
	return s.banUser(ctx, userUUID)
}

// Unban 解除封禁
func (s *adminServiceImpl) Unban(ctx context.Context, userUUID string) (*dto.UnbanResponse, error) {
	if err := s.userRepo.SetBanned(ctx, userUUID, false); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	logger.Info(ctx, "用户已解封", logger.String("user_uuid", userUUID))
	return &dto.UnbanResponse{UserUUID: userUUID}, nil
}

// banUser 封禁编排：先打标记堵住入口，再清理队列和会话。
// 中途失败时标记已生效，用户无法再入队，残留状态交给清理任务兜底。
func (s *adminServiceImpl) banUser(ctx context.Context, userUUID string) (*dto.BanResponse, error) {
	// 1. 打封禁标记
	if err := s.userRepo.SetBanned(ctx, userUUID, true); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	resp := &dto.BanResponse{UserUUID: userUUID}

	// 2. 踢出匹配队列（不在队列里是常态）
	dres, err := s.queueRepo.Dequeue(ctx, userUUID)
	if err != nil {
		logger.Warn(ctx, "封禁用户时出队失败",
			logger.String("user_uuid", userUUID),
			logger.ErrorField("error", err),
		)
	} else if dres.OK {
		resp.RemovedFromQueue = true
	}

	// 3. 强制结束进行中的会话
	if _, err := endSessionAndNotify(ctx, s.pairRepo, s.events, userUUID, consts.EndReasonBanned); err != nil {
		if !errors.Is(err, repository.ErrRecordNotFound) {
			logger.Warn(ctx, "封禁用户时结束会话失败",
				logger.String("user_uuid", userUUID),
				logger.ErrorField("error", err),
			)
		}
	} else {
		resp.SessionEnded = true
	}

	logger.Info(ctx, "用户已封禁",
		logger.String("user_uuid", userUUID),
		logger.Bool("session_ended", resp.SessionEnded),
		logger.Bool("removed_from_queue", resp.RemovedFromQueue),
	)
	return resp, nil
}

func normalizePageArgs(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
