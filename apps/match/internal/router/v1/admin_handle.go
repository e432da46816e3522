package v1

import (
	"strconv"

	"PairServer/apps/match/internal/dto"
	"PairServer/apps/match/internal/middleware"
	"PairServer/apps/match/internal/service"
	"PairServer/consts"
	"PairServer/pkg/logger"
	"PairServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// AdminHandler 管理处理器
type AdminHandler struct {
	adminService service.IAdminService
}

// NewAdminHandler 创建管理处理器
// adminService: 管理服务
func NewAdminHandler(adminService service.IAdminService) *AdminHandler {
	return &AdminHandler{
		adminService: adminService,
	}
}

// Stats 运营统计接口
// @Summary 运营统计
// @Description 用户规模、排队深度、进行中会话和待处理举报的汇总
// @Tags 管理接口
// @Accept json
// @Produce json
// @Success 200 {object} dto.StatsResponse
// @Router /api/v1/admin/stats [get]
func (h *AdminHandler) Stats(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 调用服务层处理业务逻辑（依赖注入）
	statsResp, err := h.adminService.Stats(ctx)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "运营统计服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 2. 返回成功响应
	result.Success(c, statsResp)
}

// ListReports 举报列表接口
// @Summary 举报列表
// @Description 分页查询举报记录，可按处理状态过滤
// @Tags 管理接口
// @Accept json
// @Produce json
// @Param status query string false "处理状态(pending/ignored/banned，空为全部)"
// @Param page query int false "页码(默认1)"
// @Param pageSize query int false "每页数量(默认20)"
// @Success 200 {object} dto.ListReportsResponse
// @Router /api/v1/admin/reports [get]
func (h *AdminHandler) ListReports(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定查询参数
	var req dto.ListReportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	// 分页默认值和状态标签校验都在服务层
	listResp, err := h.adminService.ListReports(ctx, req.Status, req.Page, req.PageSize)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如状态标签非法）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "举报列表服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, listResp)
}

// ResolveReport 处理举报接口
// @Summary 处理举报
// @Description 对举报记录执行忽略或封禁动作，封禁会连带强制结束被举报人的会话
// @Tags 管理接口
// @Accept json
// @Produce json
// @Param id path int true "举报记录ID"
// @Param request body dto.ResolveReportRequest true "处理动作"
// @Success 200 {object} dto.ResolveReportResponse
// @Router /api/v1/admin/reports/{id}/resolve [post]
func (h *AdminHandler) ResolveReport(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 从路径参数中获取举报记录ID
	reportID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || reportID <= 0 {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 绑定请求数据
	var req dto.ResolveReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 3. 调用服务层处理业务逻辑（依赖注入）
	resolveResp, err := h.adminService.ResolveReport(ctx, reportID, req.Action)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如举报不存在、已处理过）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "处理举报服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 4. 返回成功响应
	result.Success(c, resolveResp)
}

// Ban 封禁用户接口
// @Summary 封禁用户
// @Description 封禁用户并清理其排队/会话状态
// @Tags 管理接口
// @Accept json
// @Produce json
// @Param request body dto.BanRequest true "封禁请求"
// @Success 200 {object} dto.BanResponse
// @Router /api/v1/admin/ban [post]
func (h *AdminHandler) Ban(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.BanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	banResp, err := h.adminService.Ban(ctx, req.UserUUID)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如用户不存在）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "封禁用户服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, banResp)
}

// Unban 解封用户接口
// @Summary 解封用户
// @Description 解除用户封禁标记
// @Tags 管理接口
// @Accept json
// @Produce json
// @Param request body dto.UnbanRequest true "解封请求"
// @Success 200 {object} dto.UnbanResponse
// @Router /api/v1/admin/unban [post]
func (h *AdminHandler) Unban(c *gin.Context) {
	ctx := middleware.NewContextWithGin(c)

	// 1. 绑定请求数据
	var req dto.UnbanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 2. 调用服务层处理业务逻辑（依赖注入）
	unbanResp, err := h.adminService.Unban(ctx, req.UserUUID)
	if err != nil {
		// 检查是否为业务错误
		if consts.IsNonServerError(service.ErrorCode(err)) {
			// 业务逻辑失败（如用户不存在）
			result.Fail(c, nil, service.ErrorCode(err))
			return
		}

		// 其他内部错误
		logger.Error(ctx, "解封用户服务内部错误",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	// 3. 返回成功响应
	result.Success(c, unbanResp)
}
