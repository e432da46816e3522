package service

import (
	"context"
	"errors"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/matching"
	"PairServer/apps/match/internal/repository"
	"PairServer/model"
	"PairServer/pkg/logger"
)

// userServiceImpl 用户档案服务实现
type userServiceImpl struct {
	userRepo repository.IUserRepository
}

// NewUserService 创建用户档案服务实例
func NewUserService(userRepo repository.IUserRepository) IUserService {
	return &userServiceImpl{
		userRepo: userRepo,
	}
}

// UpsertProfile 创建或更新用户档案
func (s *userServiceImpl) UpsertProfile(ctx context.Context, req *dto.UpsertUserRequest) (*dto.UserResponse, error) {
	user := &model.ChatUser{
		Uuid:      req.UserUUID,
		Gender:    req.Gender,
		Age:       req.Age,
		Interests: matching.EncodeInterests(req.Interests),
	}
	out, err := s.userRepo.EnsureUser(ctx, user)
	if err != nil {
		return nil, err
	}
	return s.convertWithStatus(ctx, out), nil
}

// GetProfile 查询用户档案
func (s *userServiceImpl) GetProfile(ctx context.Context, userUUID string) (*dto.UserResponse, error) {
	user, err := s.userRepo.GetByUUID(ctx, userUUID)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.convertWithStatus(ctx, user), nil
}

// convertWithStatus 组装档案响应并补充当前状态。
// 状态读取失败不影响档案返回，按 idle 降级。
func (s *userServiceImpl) convertWithStatus(ctx context.Context, user *model.ChatUser) *dto.UserResponse {
	status, err := s.userRepo.GetStatus(ctx, user.Uuid)
	if err != nil {
		if !errors.Is(err, repository.ErrRecordNotFound) {
			logger.Warn(ctx, "读取用户状态失败",
				logger.String("user_uuid", user.Uuid),
				logger.ErrorField("error", err),
			)
		}
		status = model.UserStatusIdle
	}

	return &dto.UserResponse{
		UserUUID:  user.Uuid,
		Gender:    user.Gender,
		Age:       user.Age,
		Interests: matching.ParseInterests(user.Interests),
		Banned:    user.Banned == model.BanStatusBanned,
		Status:    dto.StatusLabel(status),
	}
}
