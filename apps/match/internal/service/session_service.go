package service

import (
	"context"
	"errors"
	"time"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/repository"
	"PairServer/consts"
	"PairServer/model"
	"PairServer/pkg/logger"
)

// sessionServiceImpl 会话服务实现
type sessionServiceImpl struct {
	pairRepo   repository.IPairRepository
	reportRepo repository.IReportRepository
	events     repository.IEventPublisher
}

// NewSessionService 创建会话服务实例
func NewSessionService(
	pairRepo repository.IPairRepository,
	reportRepo repository.IReportRepository,
	events repository.IEventPublisher,
) ISessionService {
	return &sessionServiceImpl{
		pairRepo:   pairRepo,
		reportRepo: reportRepo,
		events:     events,
	}
}

// End 主动结束当前会话
func (s *sessionServiceImpl) End(ctx context.Context, req *dto.EndSessionRequest) (*dto.EndSessionResponse, error) {
	info, err := endSessionAndNotify(ctx, s.pairRepo, s.events, req.UserUUID, consts.EndReasonExplicit)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrNotInSession
		}
		return nil, err
	}

	return &dto.EndSessionResponse{
		Status: dto.StatusLabel(model.UserStatusIdle),
		Ended: &dto.EndedInfo{
			PartnerUUID:     info.PartnerUUID,
			SessionID:       info.SessionID,
			Reason:          consts.EndReasonExplicit,
			DurationSeconds: int64(time.Since(info.StartedAt).Seconds()),
		},
	}, nil
}

// Report 举报当前会话对端
func (s *sessionServiceImpl) Report(ctx context.Context, req *dto.ReportRequest) (*dto.ReportResponse, error) {
	// 1. 必须在会话中才能举报
	info, err := s.pairRepo.GetPartner(ctx, req.UserUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrNotInSession
		}
		return nil, err
	}

	// 2. 落举报记录
	report := &model.UserReport{
		ReporterUuid: req.UserUUID,
		ReportedUuid: info.PartnerUUID,
		SessionId:    info.SessionID,
		Reason:       req.Reason,
		Status:       model.ReportStatusPending,
	}
	if err := s.reportRepo.Create(ctx, report); err != nil {
		return nil, err
	}

	// 3. 举报即结束会话，双方回到 idle
	sessionEnded := true
	if _, err := endSessionAndNotify(ctx, s.pairRepo, s.events, req.UserUUID, consts.EndReasonReported); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			// 对方恰好先结束了会话，举报记录仍然有效
		} else {
			// 举报已落库，结束失败不重试（重试会重复建举报），交给清理任务或用户手动 end
			logger.Warn(ctx, "举报后结束会话失败",
				logger.String("reporter_uuid", req.UserUUID),
				logger.Int64("session_id", info.SessionID),
				logger.ErrorField("error", err),
			)
			sessionEnded = false
		}
	}

	logger.Info(ctx, "用户举报已受理",
		logger.Int64("report_id", report.Id),
		logger.String("reporter_uuid", req.UserUUID),
		logger.String("reported_uuid", info.PartnerUUID),
		logger.Int64("session_id", info.SessionID),
	)

	return &dto.ReportResponse{
		ReportID:     report.Id,
		SessionEnded: sessionEnded,
	}, nil
}

// endSessionAndNotify 结束用户所在会话并通知双方。
// 用户不在会话中时透传 repository.ErrRecordNotFound，由调用方决定是否容忍。
func endSessionAndNotify(
	ctx context.Context,
	pairRepo repository.IPairRepository,
	events repository.IEventPublisher,
	userUUID, reason string,
) (*repository.SessionInfo, error) {
	info, err := pairRepo.EndSessionByUser(ctx, userUUID)
	if err != nil {
		return nil, err
	}

	events.PublishSessionEnded(ctx, userUUID, info.PartnerUUID, info.SessionID, reason)
	events.PublishSessionEnded(ctx, info.PartnerUUID, userUUID, info.SessionID, reason)
	sessionsEndedTotal.WithLabelValues(reason).Inc()

	logger.Info(ctx, "会话已结束",
		logger.String("user_uuid", userUUID),
		logger.String("partner_uuid", info.PartnerUUID),
		logger.Int64("session_id", info.SessionID),
		logger.String("reason", reason),
		logger.Duration("duration", time.Since(info.StartedAt)),
	)
	return info, nil
}
