package service

import (
	"context"
	"sync"
	"testing"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/repository"
	"PairServer/model"
	"PairServer/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var userServiceLoggerOnce sync.Once

func initUserServiceTestLogger() {
	userServiceLoggerOnce.Do(func() {
		logger.ReplaceGlobal(zap.NewNop())
	})
}

func TestUserServiceUpsertProfile(t *testing.T) {
	initUserServiceTestLogger()

	t.Run("creates_profile", func(t *testing.T) {
		var ensureCalls int
		userRepo := &fakeUserRepository{
			ensureUserFn: func(_ context.Context, user *model.ChatUser) (*model.ChatUser, error) {
				ensureCalls++
				assert.Equal(t, "u1", user.Uuid)
				assert.Equal(t, int8(1), user.Gender)
				assert.Equal(t, int16(25), user.Age)
				assert.JSONEq(t, `["滑雪","电影"]`, user.Interests)
				return user, nil
			},
		}

		svc := NewUserService(userRepo)
		resp, err := svc.UpsertProfile(context.Background(), &dto.UpsertUserRequest{
			UserUUID:  "u1",
			Gender:    1,
			Age:       25,
			Interests: []string{"滑雪", "电影"},
		})

		require.NoError(t, err)
		assert.Equal(t, "u1", resp.UserUUID)
		assert.Equal(t, int8(1), resp.Gender)
		assert.Equal(t, int16(25), resp.Age)
		assert.Equal(t, []string{"滑雪", "电影"}, resp.Interests)
		assert.False(t, resp.Banned)
		assert.Equal(t, "idle", resp.Status)
		assert.Equal(t, 1, ensureCalls)
	})

	t.Run("repo_error_propagates", func(t *testing.T) {
		userRepo := &fakeUserRepository{
			ensureUserFn: func(_ context.Context, _ *model.ChatUser) (*model.ChatUser, error) {
				return nil, repository.ErrDatabase
			},
		}

		svc := NewUserService(userRepo)
		_, err := svc.UpsertProfile(context.Background(), &dto.UpsertUserRequest{UserUUID: "u1"})

		assert.ErrorIs(t, err, repository.ErrDatabase)
	})
}

func TestUserServiceGetProfile(t *testing.T) {
	initUserServiceTestLogger()

	t.Run("returns_profile_with_status", func(t *testing.T) {
		userRepo := &fakeUserRepository{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.ChatUser, error) {
				return &model.ChatUser{
					Uuid:      uuid,
					Gender:    2,
					Age:       30,
					Interests: `["旅行"]`,
					Banned:    model.BanStatusBanned,
				}, nil
			},
			getStatusFn: func(_ context.Context, _ string) (int8, error) {
				return model.UserStatusWaiting, nil
			},
		}

		svc := NewUserService(userRepo)
		resp, err := svc.GetProfile(context.Background(), "u1")

		require.NoError(t, err)
		assert.Equal(t, "u1", resp.UserUUID)
		assert.Equal(t, int8(2), resp.Gender)
		assert.Equal(t, []string{"旅行"}, resp.Interests)
		assert.True(t, resp.Banned)
		assert.Equal(t, "waiting", resp.Status)
	})

	t.Run("unknown_user", func(t *testing.T) {
		userRepo := &fakeUserRepository{
			getByUUIDFn: func(_ context.Context, _ string) (*model.ChatUser, error) {
				return nil, repository.ErrRecordNotFound
			},
		}

		svc := NewUserService(userRepo)
		_, err := svc.GetProfile(context.Background(), "u1")

		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("status_read_failure_degrades_to_idle", func(t *testing.T) {
		userRepo := &fakeUserRepository{
			getByUUIDFn: func(_ context.Context, uuid string) (*model.ChatUser, error) {
				return &model.ChatUser{Uuid: uuid}, nil
			},
			getStatusFn: func(_ context.Context, _ string) (int8, error) {
				return 0, repository.ErrRedis
			},
		}

		svc := NewUserService(userRepo)
		resp, err := svc.GetProfile(context.Background(), "u1")

		require.NoError(t, err)
		assert.Equal(t, "idle", resp.Status)
	})
}
