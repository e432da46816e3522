package service

import (
	"context"
	"errors"
	"time"

	"PairServer/apps/match/internal/matching"
	"PairServer/apps/match/internal/repository"
	"PairServer/model"
	"PairServer/pkg/logger"
	"PairServer/pkg/util"
)

// maxSweepRounds 单次兜底撮合最多配对的轮数，避免队列很深时长时间占用清理协程
const maxSweepRounds = 32

// Matchmaker 撮合器。
// 入队后的即时撮合和后台兜底撮合共用同一套逻辑：
// 取队首候选、按策略挑人、事务建对，冲突时带排除名单重试。
type Matchmaker struct {
	userRepo  repository.IUserRepository
	queueRepo repository.IQueueRepository
	pairRepo  repository.IPairRepository
	events    repository.IEventPublisher

	// pred 为 nil 时任意两人可配，且跳过档案查询
	pred           matching.Predicate
	maxRetries     int
	candidateBatch int
}

// NewMatchmaker 创建撮合器
// pred: 配对策略，nil 表示任意两人可配
func NewMatchmaker(
	userRepo repository.IUserRepository,
	queueRepo repository.IQueueRepository,
	pairRepo repository.IPairRepository,
	events repository.IEventPublisher,
	pred matching.Predicate,
	maxRetries int,
	candidateBatch int,
) *Matchmaker {
	if maxRetries <= 0 {
		maxRetries = 1
	}
	if candidateBatch < 2 {
		candidateBatch = 2
	}
	return &Matchmaker{
		userRepo:       userRepo,
		queueRepo:      queueRepo,
		pairRepo:       pairRepo,
		events:         events,
		pred:           pred,
		maxRetries:     maxRetries,
		candidateBatch: candidateBatch,
	}
}

// TryMatch 为 seeker 尝试撮合一次。
// 返回 (nil, nil) 表示本轮没有配成（没有合适对象或 seeker 已不在等待），
// 调用方决定是继续等待还是对账当前状态。
func (m *Matchmaker) TryMatch(ctx context.Context, seekerUUID string) (*repository.SessionInfo, error) {
	// 冲突方排除名单，跨重试累积
	excluded := make(map[string]struct{})

	for attempt := 0; attempt < m.maxRetries; attempt++ {
		// 1. 取队首候选批次
		entries, err := m.queueRepo.PeekCandidates(ctx, m.candidateBatch)
		if err != nil {
			return nil, err
		}

		// 2. 定位 seeker 自己的队列记录（拿入队时间和偏好）
		seekerEntry, ok := findEntry(entries, seekerUUID)
		if !ok {
			entry, err := m.queueRepo.GetEntry(ctx, seekerUUID)
			if errors.Is(err, repository.ErrRecordNotFound) {
				// seeker 已不在队列里：可能被并发撮合走，交给调用方对账
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			seekerEntry = *entry
		}

		seeker, err := m.buildCandidate(ctx, seekerEntry)
		if err != nil {
			return nil, err
		}

		// 3. 组装候选列表（跳过自己和已知冲突方）
		candidates := make([]matching.Candidate, 0, len(entries))
		for _, e := range entries {
			if e.UserUuid == seekerUUID {
				continue
			}
			if _, skip := excluded[e.UserUuid]; skip {
				continue
			}
			cand, err := m.buildCandidate(ctx, e)
			if err != nil {
				// 单个候选档案读不到不影响整批撮合
				logger.Warn(ctx, "读取候选人档案失败，跳过该候选",
					logger.String("candidate_uuid", e.UserUuid),
					logger.ErrorField("error", err),
				)
				continue
			}
			candidates = append(candidates, cand)
		}

		// 4. 按策略挑人
		partner, found := matching.SelectPartner(seeker, candidates, m.pred)
		if !found {
			return nil, nil
		}

		// 5. 事务建对
		sessionID := util.GenID()
		startedAt := time.Now()
		conflictUUID, err := m.pairRepo.CreatePair(ctx, seekerUUID, partner.UserUUID, sessionID, startedAt)
		if err == nil {
			m.onMatched(ctx, seeker, partner, sessionID, startedAt)
			return &repository.SessionInfo{
				PartnerUUID: partner.UserUUID,
				SessionID:   sessionID,
				StartedAt:   startedAt,
			}, nil
		}

		if errors.Is(err, repository.ErrConflict) {
			matchConflictsTotal.Inc()
			if conflictUUID == seekerUUID {
				// seeker 状态已变化（被别人撮合走或主动离队），没有重试意义
				return nil, nil
			}
			if conflictUUID != "" {
				excluded[conflictUUID] = struct{}{}
			}
			logger.Debug(ctx, "撮合事务冲突，重试",
				logger.String("seeker_uuid", seekerUUID),
				logger.String("conflict_uuid", conflictUUID),
				logger.Int("attempt", attempt+1),
			)
			continue
		}

		return nil, err
	}

	// 重试耗尽，留给下一轮兜底撮合
	logger.Debug(ctx, "撮合重试次数耗尽",
		logger.String("seeker_uuid", seekerUUID),
		logger.Int("max_retries", m.maxRetries),
	)
	return nil, nil
}

// SweepOnce 兜底撮合：持续为队首用户配对直到配不出为止。
// 返回本次配成的对数。
func (m *Matchmaker) SweepOnce(ctx context.Context) int {
	total := 0
	for round := 0; round < maxSweepRounds; round++ {
		entries, err := m.queueRepo.PeekCandidates(ctx, m.candidateBatch)
		if err != nil {
			logger.Warn(ctx, "兜底撮合读取队列失败", logger.ErrorField("error", err))
			break
		}
		if len(entries) < 2 {
			break
		}

		// 队首优先，队首配不出时依次向后尝试
		matched := false
		for _, e := range entries {
			info, err := m.TryMatch(ctx, e.UserUuid)
			if err != nil {
				logger.Warn(ctx, "兜底撮合失败",
					logger.String("seeker_uuid", e.UserUuid),
					logger.ErrorField("error", err),
				)
				continue
			}
			if info != nil {
				total++
				matched = true
				break
			}
		}
		if !matched {
			break
		}
	}
	return total
}

// buildCandidate 把队列记录组装成撮合候选。
func (m *Matchmaker) buildCandidate(ctx context.Context, entry model.QueueEntry) (matching.Candidate, error) {
	cand := matching.Candidate{
		UserUUID: entry.UserUuid,
		JoinedAt: entry.JoinedAt,
		Filters:  matching.ParseFilters(entry.Filters),
	}

	// 默认策略不看档案，省一次缓存查询
	if m.pred == nil {
		return cand, nil
	}

	user, err := m.userRepo.GetByUUID(ctx, entry.UserUuid)
	if err != nil {
		return cand, err
	}
	cand.Gender = user.Gender
	cand.Age = user.Age
	cand.Interests = matching.ParseInterests(user.Interests)
	return cand, nil
}

// onMatched 撮合成功后的收尾：通知双方、上报指标。
func (m *Matchmaker) onMatched(ctx context.Context, seeker, partner matching.Candidate, sessionID int64, startedAt time.Time) {
	m.events.PublishMatchFound(ctx, seeker.UserUUID, partner.UserUUID, sessionID, startedAt)
	m.events.PublishMatchFound(ctx, partner.UserUUID, seeker.UserUUID, sessionID, startedAt)

	matchesTotal.Inc()
	if !seeker.JoinedAt.IsZero() {
		matchWaitSeconds.Observe(startedAt.Sub(seeker.JoinedAt).Seconds())
	}
	if !partner.JoinedAt.IsZero() {
		matchWaitSeconds.Observe(startedAt.Sub(partner.JoinedAt).Seconds())
	}

	logger.Info(ctx, "撮合成功",
		logger.String("seeker_uuid", seeker.UserUUID),
		logger.String("partner_uuid", partner.UserUUID),
		logger.Int64("session_id", sessionID),
		logger.Duration("seeker_waited", startedAt.Sub(seeker.JoinedAt)),
	)
}

func findEntry(entries []model.QueueEntry, userUUID string) (model.QueueEntry, bool) {
	for _, e := range entries {
		if e.UserUuid == userUUID {
			return e, true
		}
	}
	return model.QueueEntry{}, false
}
