package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"PairServer/apps/match/internal/repository"
	"PairServer/config"
	"PairServer/consts"
	"PairServer/model"
	"PairServer/pkg/logger"
)

const (
	// staleBatchSize 单轮清理的滞留队列记录上限
	staleBatchSize = 128
	// pairScanBatch 会话扫描的分页大小
	pairScanBatch = 256
)

// Supervisor 后台守护任务：兜底撮合、排队超时清理、会话超时清理。
// 所有判定以 MySQL 为准，活跃证据从 Redis 读取，读不到证据时不动会话。
type Supervisor struct {
	queueRepo  repository.IQueueRepository
	pairRepo   repository.IPairRepository
	liveness   repository.ILivenessRepository
	events     repository.IEventPublisher
	matchmaker *Matchmaker
	cfg        config.MatchConfig

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor 创建后台守护任务
func NewSupervisor(
	queueRepo repository.IQueueRepository,
	pairRepo repository.IPairRepository,
	liveness repository.ILivenessRepository,
	events repository.IEventPublisher,
	matchmaker *Matchmaker,
	cfg config.MatchConfig,
) *Supervisor {
	return &Supervisor{
		queueRepo:  queueRepo,
		pairRepo:   pairRepo,
		liveness:   liveness,
		events:     events,
		matchmaker: matchmaker,
		cfg:        cfg,
	}
}

// Start 启动兜底撮合和超时清理两个循环
func (s *Supervisor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(2)
	go s.matchLoop(ctx)
	go s.cleanupLoop(ctx)

	logger.Info(ctx, "后台守护任务已启动",
		logger.Duration("sweep_interval", s.cfg.SweepInterval),
		logger.Duration("supervisor_interval", s.cfg.SupervisorInterval),
	)
}

// Stop 停止所有后台循环并等待退出
func (s *Supervisor) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

// matchLoop 兜底撮合循环。
// 即时撮合可能因为重试耗尽或候选批次太浅漏配，这里周期性补配。
func (s *Supervisor) matchLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.matchmaker.SweepOnce(ctx); n > 0 {
				logger.Debug(ctx, "兜底撮合完成", logger.Int("matched_pairs", n))
			}
		}
	}
}

// cleanupLoop 超时清理循环
func (s *Supervisor) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.SupervisorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepQueue(ctx)
			s.sweepSessions(ctx)
			s.refreshGauges(ctx)
		}
	}
}

// sweepQueue 把排队超时的用户移出队列并通知
func (s *Supervisor) sweepQueue(ctx context.Context) {
	cutoff := time.Now().Add(-s.cfg.MaxQueueWait)
	entries, err := s.queueRepo.StaleEntries(ctx, cutoff, staleBatchSize)
	if err != nil {
		logger.Warn(ctx, "查询滞留队列记录失败", logger.ErrorField("error", err))
		return
	}

	for _, e := range entries {
		res, err := s.queueRepo.Dequeue(ctx, e.UserUuid)
		if err != nil {
			logger.Warn(ctx, "排队超时出队失败",
				logger.String("user_uuid", e.UserUuid),
				logger.ErrorField("error", err),
			)
			continue
		}
		if !res.OK {
			// 扫描和出队之间状态变了（被撮合走或自己离开），不算超时
			continue
		}

		queueTimeoutsTotal.Inc()
		s.events.PublishQueueTimeout(ctx, e.UserUuid, e.JoinedAt)
		logger.Info(ctx, "排队超时，移出队列",
			logger.String("user_uuid", e.UserUuid),
			logger.Duration("waited", time.Since(e.JoinedAt)),
		)
	}
}

// sweepSessions 结束断线超限和长期静默的会话
func (s *Supervisor) sweepSessions(ctx context.Context) {
	now := time.Now()
	var afterID int64

	for {
		records, err := s.pairRepo.ActivePairs(ctx, afterID, pairScanBatch)
		if err != nil {
			logger.Warn(ctx, "扫描配对记录失败", logger.ErrorField("error", err))
			return
		}
		if len(records) == 0 {
			return
		}
		afterID = records[len(records)-1].Id

		// 镜像对只取 uuid 较小的一行，避免同一会话判两次
		sessions := make([]model.PairRecord, 0, len(records)/2+1)
		uuids := make([]string, 0, len(records))
		for _, rec := range records {
			if rec.UserUuid < rec.PartnerUuid {
				sessions = append(sessions, rec)
				uuids = append(uuids, rec.UserUuid, rec.PartnerUuid)
			}
		}

		if len(sessions) > 0 {
			lastActive, err := s.liveness.LastActive(ctx, uuids)
			if err != nil {
				// 活跃证据读不到就不动会话，避免 Redis 抖动时误杀一批
				logger.Warn(ctx, "查询活跃时间失败，跳过本轮会话清理", logger.ErrorField("error", err))
				return
			}

			for _, rec := range sessions {
				reason := s.classifySession(ctx, rec, lastActive, now)
				if reason == "" {
					continue
				}
				if _, err := endSessionAndNotify(ctx, s.pairRepo, s.events, rec.UserUuid, reason); err != nil {
					if !errors.Is(err, repository.ErrRecordNotFound) {
						logger.Warn(ctx, "清理会话失败",
							logger.Int64("session_id", rec.SessionId),
							logger.ErrorField("error", err),
						)
					}
					continue
				}
			}
		}

		if len(records) < pairScanBatch {
			return
		}
	}
}

// classifySession 判定会话是否该被动结束，返回结束原因（空串表示保留）。
// 断线宽限和静默超时都以「无活跃证据不结束」为原则：
// presence 服务不可用时 lastActive 为空，按会话开始时间兜底计算。
func (s *Supervisor) classifySession(ctx context.Context, rec model.PairRecord, lastActive map[string]time.Time, now time.Time) string {
	members := [2]string{rec.UserUuid, rec.PartnerUuid}

	// 断线判定：有断线标记且离线时长超过宽限期
	for _, uuid := range members {
		since, ok, err := s.liveness.OfflineSince(ctx, uuid)
		if err != nil {
			logger.Warn(ctx, "查询断线标记失败",
				logger.String("user_uuid", uuid),
				logger.ErrorField("error", err),
			)
			continue
		}
		if ok && now.Sub(since) > s.cfg.DisconnectGrace {
			return consts.EndReasonDisconnect
		}
	}

	// 静默判定：任一方超过阈值没有活跃心跳。
	// 活跃时间早于会话开始的按会话开始算，保证新会话有完整的静默窗口
	for _, uuid := range members {
		last, ok := lastActive[uuid]
		if !ok || last.Before(rec.StartedAt) {
			last = rec.StartedAt
		}
		if now.Sub(last) > s.cfg.SessionIdleTimeout {
			return consts.EndReasonTimeout
		}
	}

	return ""
}

// refreshGauges 刷新队列深度和会话数指标
func (s *Supervisor) refreshGauges(ctx context.Context) {
	if depth, err := s.queueRepo.Depth(ctx); err == nil {
		queueDepthGauge.Set(float64(depth))
	}
	if sessions, err := s.pairRepo.CountActiveSessions(ctx); err == nil {
		activeSessionsGauge.Set(float64(sessions))
	}
}
