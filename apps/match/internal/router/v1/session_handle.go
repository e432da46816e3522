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

// SessionHandler 会话处理器
type SessionHandler struct {
	sessionService service.ISessionService
}

// NewSessionHandler 创建会话处理器
// sessionService: 会话服务
func NewSessionHandler(sessionService service.ISessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// End 结束会话接口
// @Summary 结束当前会话
// @Description 主动结束当前会话，双方都回到空闲状态；重复结束返回业务码
// @Tags 会话接口
// @Accept json
// @Produce json
// @Param request body dto.EndSessionRequest true "结束会话请求"
// @Success 200 {object} dto.EndSessionResponse
// @Router /api/v1/session/end [post]
func (h *SessionHandler) End(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.EndSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	endResp, err := h.sessionService.End(ctx, &req)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如双方几乎同时挂断导致的不在会话中）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "结束会话服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, endResp)
}

// Report 举报接口
// @Summary 举报会话对端
// @Description 举报当前会话对端并结束会话，举报记录进入人工处理队列
// @Tags 会话接口
// @Accept json
// @Produce json
// @Param request body dto.ReportRequest true "举报请求"
// @Success 200 {object} dto.ReportResponse
// @Router /api/v1/report [post]
func (h *SessionHandler) Report(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.ReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	reportResp, err := h.sessionService.Report(ctx, &req)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如不在会话中无法举报）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "举报服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, reportResp)
}
