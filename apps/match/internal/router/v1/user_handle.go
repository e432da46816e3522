package v1

import (
	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/middleware"
	"PairServer/apps/match/internal/service"
	"PairServer/consts"
	"PairServer/pkg/logger"
	"PairServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// UserHandler 用户档案处理器
type UserHandler struct {
	userService service.IUserService
}

// NewUserHandler 创建用户档案处理器
// userService: 用户档案服务
func NewUserHandler(userService service.IUserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// UpsertProfile 创建/更新用户档案接口
// @Summary 创建或更新用户档案
// @Description 首次调用创建档案，后续调用覆盖性别、年龄和兴趣标签
// @Tags 用户档案接口
// @Accept json
// @Produce json
// @Param request body dto.UpsertUserRequest true "档案请求"
// @Success 200 {object} dto.UserResponse
// @Router /api/v1/users [post]
func (h *UserHandler) UpsertProfile(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.UpsertUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	userResp, err := h.userService.UpsertProfile(ctx, &req)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "更新用户档案服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, userResp)
}

// GetProfile 查询用户档案接口
// @Summary 查询用户档案
// @Description 查询用户档案与当前状态
// @Tags 用户档案接口
// @Accept json
// @Produce json
// @Param userUuid path string true "用户UUID"
// @Success 200 {object} dto.UserResponse
// @Router /api/v1/users/{userUuid} [get]
func (h *UserHandler) GetProfile(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 从路径参数中获取userUuid
	userUuid := c.Param("userUuid")
	if userUuid == "" {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	userResp, err := h.userService.GetProfile(ctx, userUuid)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如用户不存在）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "查询用户档案服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, userResp)
}
