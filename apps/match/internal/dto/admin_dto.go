package dto

import "PairServer/model"

// ==================== 管理端 DTO ====================

// StatsResponse 运营统计响应
type StatsResponse struct {
	TotalUsers     int64 `json:"totalUsers"`     // 注册用户总数
	IdleUsers      int64 `json:"idleUsers"`      // 空闲用户数
	WaitingUsers   int64 `json:"waitingUsers"`   // 排队中用户数
	ChattingUsers  int64 `json:"chattingUsers"`  // 会话中用户数
	BannedUsers    int64 `json:"bannedUsers"`    // 被封禁用户数
	QueueDepth     int64 `json:"queueDepth"`     // 当前队列深度
	ActiveSessions int64 `json:"activeSessions"` // 进行中会话数
	PendingReports int64 `json:"pendingReports"` // 待处理举报数
}

// ReportItem 举报记录
type ReportItem struct {
	ID           int64  `json:"id"`           // 举报记录ID
	ReporterUUID string `json:"reporterUuid"` // 举报人UUID
	ReportedUUID string `json:"reportedUuid"` // 被举报人UUID
	SessionID    int64  `json:"sessionId"`    // 会话ID
	Reason       string `json:"reason"`       // 举报理由
	Status       string `json:"status"`       // pending/ignored/banned
	CreatedAtMs  int64  `json:"createdAtMs"`  // 举报时间(毫秒)
}

// PaginationInfo 分页信息 DTO
type PaginationInfo struct {
	Page       int32 `json:"page"`       // 当前页码
	PageSize   int32 `json:"pageSize"`   // 每页大小
	Total      int64 `json:"total"`      // 总记录数
	TotalPages int32 `json:"totalPages"` // 总页数
}

// ListReportsResponse 举报列表响应
type ListReportsResponse struct {
	Items      []*ReportItem   `json:"items"`      // 举报列表
	Pagination *PaginationInfo `json:"pagination"` // 分页信息
}

// ListReportsRequest 举报列表查询请求
// 分页默认值由服务层补齐
type ListReportsRequest struct {
	Status   string `form:"status"`   // 处理状态标签（空为全部）
	Page     int    `form:"page"`     // 页码(默认1)
	PageSize int    `form:"pageSize"` // 每页数量(默认20)
}

// ResolveReportRequest 处理举报请求
type ResolveReportRequest struct {
	Action string `json:"action" binding:"required,oneof=ignore ban"` // 处理动作
}

// ResolveReportResponse 处理举报响应
type ResolveReportResponse struct {
	ReportID int64  `json:"reportId"` // 举报记录ID
	Action   string `json:"action"`   // 实际执行的动作
	Banned   bool   `json:"banned"`   // 被举报人是否已封禁
}

// BanRequest 封禁用户请求
type BanRequest struct {
	UserUUID string `json:"userUuid" binding:"required,max=64"` // 用户UUID
}

// BanResponse 封禁用户响应
type BanResponse struct {
	UserUUID         string `json:"userUuid"`         // 用户UUID
	SessionEnded     bool   `json:"sessionEnded"`     // 是否强制结束了进行中的会话
	RemovedFromQueue bool   `json:"removedFromQueue"` // 是否从匹配队列中移除
}

// UnbanRequest 解封用户请求
type UnbanRequest struct {
	UserUUID string `json:"userUuid" binding:"required,max=64"` // 用户UUID
}

// UnbanResponse 解封用户响应
type UnbanResponse struct {
	UserUUID string `json:"userUuid"` // 用户UUID
}

// ==================== 转换函数 ====================

// ReportStatusLabel 举报处理状态转可读标签
func ReportStatusLabel(status int8) string {
	switch status {
	case model.ReportStatusIgnored:
		return "ignored"
	case model.ReportStatusBanned:
		return "banned"
	default:
		return "pending"
	}
}

// ParseReportStatus 可读标签转举报处理状态，空串表示全部
func ParseReportStatus(label string) (int8, bool) {
	switch label {
	case "":
		return -1, true
	case "pending":
		return model.ReportStatusPending, true
	case "ignored":
		return model.ReportStatusIgnored, true
	case "banned":
		return model.ReportStatusBanned, true
	default:
		return 0, false
	}
}

// ConvertReportItem 举报模型转 DTO
func ConvertReportItem(m *model.UserReport) *ReportItem {
	if m == nil {
		return nil
	}
	return &ReportItem{
		ID:           m.Id,
		ReporterUUID: m.ReporterUuid,
		ReportedUUID: m.ReportedUuid,
		SessionID:    m.SessionId,
		Reason:       m.Reason,
		Status:       ReportStatusLabel(m.Status),
		CreatedAtMs:  m.CreatedAt.UnixMilli(),
	}
}
