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

// MatchHandler 匹配处理器
type MatchHandler struct {
	matchService service.IMatchService
}

// NewMatchHandler 创建匹配处理器
// matchService: 匹配服务
func NewMatchHandler(matchService service.IMatchService) *MatchHandler {
	return &MatchHandler{
		matchService: matchService,
	}
}

// Join 加入匹配队列接口
// @Summary 加入匹配队列
// @Description 加入匹配队列并立即尝试撮合，可携带配对偏好
// @Tags 匹配接口
// @Accept json
// @Produce json
// @Param request body dto.JoinRequest true "入队请求"
// @Success 200 {object} dto.JoinResponse
// @Router /api/v1/match/join [post]
func (h *MatchHandler) Join(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.JoinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	joinResp, err := h.matchService.Join(ctx, &req)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如重复排队、用户被封禁等）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "加入匹配队列服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, joinResp)
}

// Leave 离开匹配队列接口
// @Summary 离开匹配队列
// @Description 从匹配队列中移除，已进入会话的用户需要走结束会话接口
// @Tags 匹配接口
// @Accept json
// @Produce json
// @Param request body dto.LeaveRequest true "离队请求"
// @Success 200 {object} dto.LeaveResponse
// @Router /api/v1/match/leave [post]
func (h *MatchHandler) Leave(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	leaveResp, err := h.matchService.Leave(ctx, &req)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如已被撮合进会话、不在队列中等）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "离开匹配队列服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, leaveResp)
}

// Status 查询匹配状态接口
// @Summary 查询匹配状态
// @Description 查询用户当前所处状态，排队中返回等待信息，会话中返回对端信息
// @Tags 匹配接口
// @Accept json
// @Produce json
// @Param userUuid query string true "用户UUID"
// @Success 200 {object} dto.StatusResponse
// @Router /api/v1/match/status [get]
func (h *MatchHandler) Status(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 从查询参数中获取userUuid
	userUuid := c.Query("userUuid")
	if userUuid == "" {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	statusResp, err := h.matchService.Status(ctx, userUuid)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如用户不存在）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "查询匹配状态服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, statusResp)
}

// Next 换人接口
// @Summary 换人
// @Description 结束当前会话并立即重新排队，不在会话中时直接排队
// @Tags 匹配接口
// @Accept json
// @Produce json
// @Param request body dto.NextRequest true "换人请求"
// @Success 200 {object} dto.JoinResponse
// @Router /api/v1/match/next [post]
func (h *MatchHandler) Next(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.NextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	nextResp, err := h.matchService.Next(ctx, &req)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如用户被封禁）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "换人服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, nextResp)
}
