package service

import (
	"context"

	"PairServer/apps/match/internal/dto"
)

// ==================== 匹配服务接口 ====================

// IMatchService 匹配服务接口
// 职责：入队、出队、状态查询、换人
type IMatchService interface {
	// Join 加入匹配队列，入队成功后立即尝试撮合一次
	Join(ctx context.Context, req *dto.JoinRequest) (*dto.JoinResponse, error)

	// Leave 离开匹配队列
	Leave(ctx context.Context, req *dto.LeaveRequest) (*dto.LeaveResponse, error)

	// Status 查询用户当前状态（排队信息/会话信息）
	Status(ctx context.Context, userUUID string) (*dto.StatusResponse, error)

	// Next 结束当前会话并重新排队
	Next(ctx context.Context, req *dto.NextRequest) (*dto.JoinResponse, error)
}

// ==================== 会话服务接口 ====================

// ISessionService 会话服务接口
// 职责：结束会话、举报对端
type ISessionService interface {
	// End 主动结束当前会话
	End(ctx context.Context, req *dto.EndSessionRequest) (*dto.EndSessionResponse, error)

	// Report 举报当前会话对端，举报成立后会话随之结束
	Report(ctx context.Context, req *dto.ReportRequest) (*dto.ReportResponse, error)
}

// ==================== 用户服务接口 ====================

// IUserService 用户档案服务接口
// 职责：用户档案创建/更新与查询
type IUserService interface {
	// UpsertProfile 创建或更新用户档案
	UpsertProfile(ctx context.Context, req *dto.UpsertUserRequest) (*dto.UserResponse, error)

	// GetProfile 查询用户档案
	GetProfile(ctx context.Context, userUUID string) (*dto.UserResponse, error)
}

// ==================== 管理服务接口 ====================

// IAdminService 管理服务接口
// 职责：运营统计、举报处置、封禁管理
type IAdminService interface {
	// Stats 运营统计
	Stats(ctx context.Context) (*dto.StatsResponse, error)

	// ListReports 分页查询举报记录（statusLabel 为空表示全部）
	ListReports(ctx context.Context, statusLabel string, page, pageSize int) (*dto.ListReportsResponse, error)

	// ResolveReport 处理举报（ignore 忽略 / ban 封禁被举报人）
	ResolveReport(ctx context.Context, reportID int64, action string) (*dto.ResolveReportResponse, error)

	// Ban 封禁用户：打标记、踢出队列、强制结束进行中的会话
	Ban(ctx context.Context, userUUID string) (*dto.BanResponse, error)

	// Unban 解除封禁
	Unban(ctx context.Context, userUUID string) (*dto.UnbanResponse, error)
}
