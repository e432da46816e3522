package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"PairServer/apps/match/internal/matching"
	"PairServer/apps/match/internal/repository"
	"PairServer/model"
	"PairServer/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var matchmakerLoggerOnce sync.Once

func initMatchmakerTestLogger() {
	matchmakerLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
	})
}

// ==================== Repository fakes ====================

type fakeUserRepository struct {
	ensureUserFn    func(ctx context.Context, user *model.ChatUser) (*model.ChatUser, error)
	ensureExistsFn  func(ctx context.Context, uuid string) error
	getByUUIDFn     func(ctx context.Context, uuid string) (*model.ChatUser, error)
	getStatusFn     func(ctx context.Context, uuid string) (int8, error)
	setBannedFn     func(ctx context.Context, uuid string, banned bool) error
	countTotalFn    func(ctx context.Context) (int64, error)
	countByStatusFn func(ctx context.Context, status int8) (int64, error)
	countBannedFn   func(ctx context.Context) (int64, error)
}

func (f *fakeUserRepository) EnsureUser(ctx context.Context, user *model.ChatUser) (*model.ChatUser, error) {
	if f.ensureUserFn == nil {
		return user, nil
	}
	return f.ensureUserFn(ctx, user)
}

func (f *fakeUserRepository) EnsureExists(ctx context.Context, uuid string) error {
	if f.ensureExistsFn == nil {
		return nil
	}
	return f.ensureExistsFn(ctx, uuid)
}

func (f *fakeUserRepository) GetByUUID(ctx context.Context, uuid string) (*model.ChatUser, error) {
	if f.getByUUIDFn == nil {
		// 默认返回空档案，方便不关心档案的用例
		return &model.ChatUser{Uuid: uuid}, nil
	}
	return f.getByUUIDFn(ctx, uuid)
}

func (f *fakeUserRepository) GetStatus(ctx context.Context, uuid string) (int8, error) {
	if f.getStatusFn == nil {
		return model.UserStatusIdle, nil
	}
	return f.getStatusFn(ctx, uuid)
}

func (f *fakeUserRepository) SetBanned(ctx context.Context, uuid string, banned bool) error {
	if f.setBannedFn == nil {
		return nil
	}
	return f.setBannedFn(ctx, uuid, banned)
}

func (f *fakeUserRepository) CountTotal(ctx context.Context) (int64, error) {
	if f.countTotalFn == nil {
		return 0, nil
	}
	return f.countTotalFn(ctx)
}

func (f *fakeUserRepository) CountByStatus(ctx context.Context, status int8) (int64, error) {
	if f.countByStatusFn == nil {
		return 0, nil
	}
	return f.countByStatusFn(ctx, status)
}

func (f *fakeUserRepository) CountBanned(ctx context.Context) (int64, error) {
	if f.countBannedFn == nil {
		return 0, nil
	}
	return f.countBannedFn(ctx)
}

type fakeQueueRepository struct {
	enqueueFn        func(ctx context.Context, userUUID string, filters matching.Filters, joinedAt time.Time) (*repository.EnqueueResult, error)
	dequeueFn        func(ctx context.Context, userUUID string) (*repository.DequeueResult, error)
	peekCandidatesFn func(ctx context.Context, limit int) ([]model.QueueEntry, error)
	getEntryFn       func(ctx context.Context, userUUID string) (*model.QueueEntry, error)
	depthFn          func(ctx context.Context) (int64, error)
	staleEntriesFn   func(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueEntry, error)
}

func (f *fakeQueueRepository) Enqueue(ctx context.Context, userUUID string, filters matching.Filters, joinedAt time.Time) (*repository.EnqueueResult, error) {
	if f.enqueueFn == nil {
		return &repository.EnqueueResult{OK: true}, nil
	}
	return f.enqueueFn(ctx, userUUID, filters, joinedAt)
}

func (f *fakeQueueRepository) Dequeue(ctx context.Context, userUUID string) (*repository.DequeueResult, error) {
	if f.dequeueFn == nil {
		return &repository.DequeueResult{OK: true}, nil
	}
	return f.dequeueFn(ctx, userUUID)
}

func (f *fakeQueueRepository) PeekCandidates(ctx context.Context, limit int) ([]model.QueueEntry, error) {
	if f.peekCandidatesFn == nil {
		return nil, nil
	}
	return f.peekCandidatesFn(ctx, limit)
}

func (f *fakeQueueRepository) GetEntry(ctx context.Context, userUUID string) (*model.QueueEntry, error) {
	if f.getEntryFn == nil {
		return &model.QueueEntry{UserUuid: userUUID, JoinedAt: time.Now()}, nil
	}
	return f.getEntryFn(ctx, userUUID)
}

func (f *fakeQueueRepository) Depth(ctx context.Context) (int64, error) {
	if f.depthFn == nil {
		return 0, nil
	}
	return f.depthFn(ctx)
}

func (f *fakeQueueRepository) StaleEntries(ctx context.Context, olderThan time.Time, limit int) ([]model.QueueEntry, error) {
	if f.staleEntriesFn == nil {
		return nil, nil
	}
	return f.staleEntriesFn(ctx, olderThan, limit)
}

type fakePairRepository struct {
	createPairFn          func(ctx context.Context, seekerUUID, candidateUUID string, sessionID int64, startedAt time.Time) (string, error)
	endSessionByUserFn    func(ctx context.Context, userUUID string) (*repository.SessionInfo, error)
	getPartnerFn          func(ctx context.Context, userUUID string) (*repository.SessionInfo, error)
	activePairsFn         func(ctx context.Context, afterID int64, limit int) ([]model.PairRecord, error)
	countActiveSessionsFn func(ctx context.Context) (int64, error)
}

func (f *fakePairRepository) CreatePair(ctx context.Context, seekerUUID, candidateUUID string, sessionID int64, startedAt time.Time) (string, error) {
	if f.createPairFn == nil {
		return "", nil
	}
	return f.createPairFn(ctx, seekerUUID, candidateUUID, sessionID, startedAt)
}

func (f *fakePairRepository) EndSessionByUser(ctx context.Context, userUUID string) (*repository.SessionInfo, error) {
	if f.endSessionByUserFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.endSessionByUserFn(ctx, userUUID)
}

func (f *fakePairRepository) GetPartner(ctx context.Context, userUUID string) (*repository.SessionInfo, error) {
	if f.getPartnerFn == nil {
		return nil, repository.ErrRecordNotFound
	}
	return f.getPartnerFn(ctx, userUUID)
}

func (f *fakePairRepository) ActivePairs(ctx context.Context, afterID int64, limit int) ([]model.PairRecord, error) {
	if f.activePairsFn == nil {
		return nil, nil
	}
	return f.activePairsFn(ctx, afterID, limit)
}

func (f *fakePairRepository) CountActiveSessions(ctx context.Context) (int64, error) {
	if f.countActiveSessionsFn == nil {
		return 0, nil
	}
	return f.countActiveSessionsFn(ctx)
}

type fakeEventPublisher struct {
	matchFoundFn   func(ctx context.Context, toUUID, partnerUUID string, sessionID int64, startedAt time.Time)
	sessionEndedFn func(ctx context.Context, toUUID, partnerUUID string, sessionID int64, reason string)
	queueTimeoutFn func(ctx context.Context, toUUID string, joinedAt time.Time)
}

func (f *fakeEventPublisher) PublishMatchFound(ctx context.Context, toUUID, partnerUUID string, sessionID int64, startedAt time.Time) {
	if f.matchFoundFn != nil {
		f.matchFoundFn(ctx, toUUID, partnerUUID, sessionID, startedAt)
	}
}

func (f *fakeEventPublisher) PublishSessionEnded(ctx context.Context, toUUID, partnerUUID string, sessionID int64, reason string) {
	if f.sessionEndedFn != nil {
		f.sessionEndedFn(ctx, toUUID, partnerUUID, sessionID, reason)
	}
}

func (f *fakeEventPublisher) PublishQueueTimeout(ctx context.Context, toUUID string, joinedAt time.Time) {
	if f.queueTimeoutFn != nil {
		f.queueTimeoutFn(ctx, toUUID, joinedAt)
	}
}

func queueEntry(uuid string, joinedAt time.Time) model.QueueEntry {
	return model.QueueEntry{UserUuid: uuid, JoinedAt: joinedAt}
}

// ==================== TryMatch ====================

func TestMatchmakerTryMatch(t *testing.T) {
	initMatchmakerTestLogger()

	base := time.Now().Add(-time.Minute)

	t.Run("matches_longest_waiting_candidate", func(t *testing.T) {
		var createCalls int
		var published []string

		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, limit int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					queueEntry("u2", base),
					queueEntry("u3", base.Add(10*time.Second)),
					queueEntry("u1", base.Add(20*time.Second)),
				}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, seekerUUID, candidateUUID string, sessionID int64, _ time.Time) (string, error) {
				createCalls++
				assert.Equal(t, "u1", seekerUUID)
				assert.Equal(t, "u2", candidateUUID)
				assert.NotZero(t, sessionID)
				return "", nil
			},
		}
		events := &fakeEventPublisher{
			matchFoundFn: func(_ context.Context, toUUID, partnerUUID string, _ int64, _ time.Time) {
				published = append(published, toUUID+"<-"+partnerUUID)
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, pairRepo, events, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "u2", info.PartnerUUID)
		assert.NotZero(t, info.SessionID)
		assert.Equal(t, 1, createCalls)
		assert.ElementsMatch(t, []string{"u1<-u2", "u2<-u1"}, published)
	})

	t.Run("returns_nil_when_alone_in_queue", func(t *testing.T) {
		var createCalls int
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{queueEntry("u1", base)}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, _, _ string, _ int64, _ time.Time) (string, error) {
				createCalls++
				return "", nil
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, pairRepo, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Zero(t, createCalls)
	})

	t.Run("seeker_already_left_returns_nil", func(t *testing.T) {
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{queueEntry("u2", base)}, nil
			},
			getEntryFn: func(_ context.Context, _ string) (*model.QueueEntry, error) {
				return nil, repository.ErrRecordNotFound
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, &fakePairRepository{}, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("seeker_beyond_batch_uses_get_entry", func(t *testing.T) {
		var getEntryCalls int
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{queueEntry("u2", base)}, nil
			},
			getEntryFn: func(_ context.Context, userUUID string) (*model.QueueEntry, error) {
				getEntryCalls++
				assert.Equal(t, "u1", userUUID)
				return &model.QueueEntry{UserUuid: "u1", JoinedAt: base.Add(time.Second)}, nil
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, &fakePairRepository{}, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "u2", info.PartnerUUID)
		assert.Equal(t, 1, getEntryCalls)
	})

	t.Run("conflict_excludes_candidate_and_retries", func(t *testing.T) {
		var createCalls int
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					queueEntry("u2", base),
					queueEntry("u3", base.Add(5*time.Second)),
					queueEntry("u1", base.Add(10*time.Second)),
				}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, _, candidateUUID string, _ int64, _ time.Time) (string, error) {
				createCalls++
				if createCalls == 1 {
					assert.Equal(t, "u2", candidateUUID)
					// u2 已被并发撮合走
					return "u2", repository.ErrConflict
				}
				assert.Equal(t, "u3", candidateUUID)
				return "", nil
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, pairRepo, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "u3", info.PartnerUUID)
		assert.Equal(t, 2, createCalls)
	})

	t.Run("conflict_on_seeker_aborts", func(t *testing.T) {
		var createCalls int
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					queueEntry("u2", base),
					queueEntry("u1", base.Add(time.Second)),
				}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, _, _ string, _ int64, _ time.Time) (string, error) {
				createCalls++
				return "u1", repository.ErrConflict
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, pairRepo, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Equal(t, 1, createCalls)
	})

	t.Run("unattributable_conflict_exhausts_retries", func(t *testing.T) {
		var createCalls int
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					queueEntry("u2", base),
					queueEntry("u1", base.Add(time.Second)),
				}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, _, _ string, _ int64, _ time.Time) (string, error) {
				createCalls++
				return "", repository.ErrConflict
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, pairRepo, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		assert.Nil(t, info)
		assert.Equal(t, 3, createCalls)
	})

	t.Run("peek_error_propagates", func(t *testing.T) {
		repoErr := errors.New("redis and mysql both down")
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return nil, repoErr
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, &fakePairRepository{}, &fakeEventPublisher{}, nil, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.ErrorIs(t, err, repoErr)
		assert.Nil(t, info)
	})

	t.Run("preference_predicate_skips_incompatible", func(t *testing.T) {
		profiles := map[string]*model.ChatUser{
			"u1": {Uuid: "u1", Gender: 1, Age: 25},
			"u2": {Uuid: "u2", Gender: 1, Age: 30},
			"u3": {Uuid: "u3", Gender: 2, Age: 24},
		}
		userRepo := &fakeUserRepository{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.ChatUser, error) {
				return profiles[uuid], nil
			},
		}
		// u1 只想匹配女性，u2 不满足，u3 满足
		seekerFilters := matching.EncodeFilters(matching.Filters{Gender: 2})
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					{UserUuid: "u2", JoinedAt: base},
					{UserUuid: "u3", JoinedAt: base.Add(time.Second)},
					{UserUuid: "u1", JoinedAt: base.Add(2 * time.Second), Filters: seekerFilters},
				}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, _, candidateUUID string, _ int64, _ time.Time) (string, error) {
				assert.Equal(t, "u3", candidateUUID)
				return "", nil
			},
		}

		m := NewMatchmaker(userRepo, queueRepo, pairRepo, &fakeEventPublisher{}, matching.PreferenceCompatible, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "u3", info.PartnerUUID)
	})

	t.Run("candidate_profile_error_skips_candidate", func(t *testing.T) {
		userRepo := &fakeUserRepository{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.ChatUser, error) {
				if uuid == "u2" {
					return nil, repository.ErrRedis
				}
				return &model.ChatUser{Uuid: uuid}, nil
			},
		}
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					queueEntry("u2", base),
					queueEntry("u3", base.Add(time.Second)),
					queueEntry("u1", base.Add(2*time.Second)),
				}, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, _, candidateUUID string, _ int64, _ time.Time) (string, error) {
				assert.Equal(t, "u3", candidateUUID)
				return "", nil
			},
		}

		m := NewMatchmaker(userRepo, queueRepo, pairRepo, &fakeEventPublisher{}, matching.PreferenceCompatible, 3, 20)
		info, err := m.TryMatch(context.Background(), "u1")

		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "u3", info.PartnerUUID)
	})
}

// ==================== SweepOnce ====================

func TestMatchmakerSweepOnce(t *testing.T) {
	initMatchmakerTestLogger()

	base := time.Now().Add(-time.Minute)

	t.Run("pairs_until_queue_drained", func(t *testing.T) {
		// 模拟一个会被撮合逐渐掏空的队列
		var mu sync.Mutex
		waiting := []model.QueueEntry{
			queueEntry("u1", base),
			queueEntry("u2", base.Add(time.Second)),
			queueEntry("u3", base.Add(2*time.Second)),
			queueEntry("u4", base.Add(3*time.Second)),
		}

		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, limit int) ([]model.QueueEntry, error) {
				mu.Lock()
				defer mu.Unlock()
				out := make([]model.QueueEntry, len(waiting))
				copy(out, waiting)
				return out, nil
			},
		}
		pairRepo := &fakePairRepository{
			createPairFn: func(_ context.Context, seekerUUID, candidateUUID string, _ int64, _ time.Time) (string, error) {
				mu.Lock()
				defer mu.Unlock()
				next := waiting[:0]
				for _, e := range waiting {
					if e.UserUuid != seekerUUID && e.UserUuid != candidateUUID {
						next = append(next, e)
					}
				}
				waiting = next
				return "", nil
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, pairRepo, &fakeEventPublisher{}, nil, 3, 20)
		matched := m.SweepOnce(context.Background())

		assert.Equal(t, 2, matched)
		assert.Empty(t, waiting)
	})

	t.Run("stops_when_nothing_compatible", func(t *testing.T) {
		rejectAll := func(a, b matching.Candidate) bool { return false }
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{
					queueEntry("u1", base),
					queueEntry("u2", base.Add(time.Second)),
				}, nil
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, &fakePairRepository{}, &fakeEventPublisher{}, rejectAll, 3, 20)
		matched := m.SweepOnce(context.Background())

		assert.Zero(t, matched)
	})

	t.Run("returns_zero_when_queue_too_small", func(t *testing.T) {
		queueRepo := &fakeQueueRepository{
			peekCandidatesFn: func(_ context.Context, _ int) ([]model.QueueEntry, error) {
				return []model.QueueEntry{queueEntry("u1", base)}, nil
			},
		}

		m := NewMatchmaker(&fakeUserRepository{}, queueRepo, &fakePairRepository{}, &fakeEventPublisher{}, nil, 3, 20)
		assert.Zero(t, m.SweepOnce(context.Background()))
	})
}
