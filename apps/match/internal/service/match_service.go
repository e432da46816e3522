package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/repository"
	"PairServer/consts"
	"PairServer/model"
	"PairServer/pkg/logger"
)

// matchServiceImpl 匹配服务实现
type matchServiceImpl struct {
	userRepo   repository.IUserRepository
	queueRepo  repository.IQueueRepository
	pairRepo   repository.IPairRepository
	events     repository.IEventPublisher
	matchmaker *Matchmaker
}

// NewMatchService 创建匹配服务实例
func NewMatchService(
	userRepo repository.IUserRepository,
	queueRepo repository.IQueueRepository,
	pairRepo repository.IPairRepository,
	events repository.IEventPublisher,
	matchmaker *Matchmaker,
) IMatchService {
	return &matchServiceImpl{
		userRepo:   userRepo,
		queueRepo:  queueRepo,
		pairRepo:   pairRepo,
		events:     events,
		matchmaker: matchmaker,
	}
}

// Join 加入匹配队列
func (s *matchServiceImpl) Join(ctx context.Context, req *dto.JoinRequest) (*dto.JoinResponse, error) {
	// 1. 匿名用户首次进场自动建档（已有档案不覆盖）
	if err := s.userRepo.EnsureExists(ctx, req.UserUUID); err != nil {
		return nil, err
	}

	// 2. 单事务入队（idle -> waiting）
	joinedAt := time.Now()
	res, err := s.queueRepo.Enqueue(ctx, req.UserUUID, dto.ConvertFilters(req.Filters), joinedAt)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !res.OK {
		if res.Banned {
			return nil, ErrUserBanned
		}
		switch res.Status {
		case model.UserStatusWaiting:
			return nil, ErrAlreadyQueued
		case model.UserStatusChatting:
			return nil, ErrAlreadyChatting
		default:
			return nil, fmt.Errorf("入队失败，状态异常: status=%d", res.Status)
		}
	}

	// 3. 入队成功立即撮合一次，失败不回滚入队，交给兜底轮询
	info, err := s.matchmaker.TryMatch(ctx, req.UserUUID)
	if err != nil {
		logger.Warn(ctx, "入队后即时撮合失败",
			logger.String("user_uuid", req.UserUUID),
			logger.ErrorField("error", err),
		)
		info = nil
	}

	// 4. 没配上时对账一次：可能刚被并发撮合走
	if info == nil {
		if cur, perr := s.pairRepo.GetPartner(ctx, req.UserUUID); perr == nil {
			info = cur
		}
	}

	if info != nil {
		return &dto.JoinResponse{
			Status:  dto.StatusLabel(model.UserStatusChatting),
			Matched: convertMatchInfo(info),
		}, nil
	}
	return &dto.JoinResponse{
		Status:     dto.StatusLabel(model.UserStatusWaiting),
		JoinedAtMs: joinedAt.UnixMilli(),
	}, nil
}

// Leave 离开匹配队列
func (s *matchServiceImpl) Leave(ctx context.Context, req *dto.LeaveRequest) (*dto.LeaveResponse, error) {
	res, err := s.queueRepo.Dequeue(ctx, req.UserUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !res.OK {
		if res.Status == model.UserStatusChatting {
			return nil, ErrAlreadyChatting
		}
		return nil, ErrNotQueued
	}
	return &dto.LeaveResponse{Status: dto.StatusLabel(model.UserStatusIdle)}, nil
}

// Status 查询用户当前状态
func (s *matchServiceImpl) Status(ctx context.Context, userUUID string) (*dto.StatusResponse, error) {
	status, err := s.userRepo.GetStatus(ctx, userUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	resp := &dto.StatusResponse{
		UserUUID: userUUID,
		Status:   dto.StatusLabel(status),
	}

	// 状态和附加信息不在一个事务里读取，刚好发生状态流转时附加字段留空，
	// 客户端按 status 字段为准再查一次即可
	switch status {
	case model.UserStatusWaiting:
		entry, err := s.queueRepo.GetEntry(ctx, userUUID)
		if err == nil {
			resp.JoinedAtMs = entry.JoinedAt.UnixMilli()
			resp.WaitingSeconds = int64(time.Since(entry.JoinedAt).Seconds())
		} else if !errors.Is(err, repository.ErrRecordNotFound) {
			logger.Warn(ctx, "读取排队记录失败",
				logger.String("user_uuid", userUUID),
				logger.ErrorField("error", err),
			)
		}
	case model.UserStatusChatting:
		info, err := s.pairRepo.GetPartner(ctx, userUUID)
		if err == nil {
			resp.Matched = convertMatchInfo(info)
		} else if !errors.Is(err, repository.ErrRecordNotFound) {
			logger.Warn(ctx, "读取会话信息失败",
				logger.String("user_uuid", userUUID),
				logger.ErrorField("error", err),
			)
		}
	}
	return resp, nil
}

// Next 换人：结束当前会话并立即重新排队
func (s *matchServiceImpl) Next(ctx context.Context, req *dto.NextRequest) (*dto.JoinResponse, error) {
	// 1. 结束当前会话，不在会话中也继续重新排队
	_, err := endSessionAndNotify(ctx, s.pairRepo, s.events, req.UserUUID, consts.EndReasonExplicit)
	if err != nil && !errors.Is(err, repository.ErrRecordNotFound) {
		return nil, err
	}

	// 2. 复用入队流程（含即时撮合）
	return s.Join(ctx, &dto.JoinRequest{
		UserUUID: req.UserUUID,
		Filters:  req.Filters,
	})
}

func convertMatchInfo(info *repository.SessionInfo) *dto.MatchInfo {
	if info == nil {
		return nil
	}
	return &dto.MatchInfo{
		PartnerUUID: info.PartnerUUID,
		SessionID:   info.SessionID,
		StartedAtMs: info.StartedAt.UnixMilli(),
	}
}
