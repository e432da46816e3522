package dto

import (
	"PairServer/apps/match/internal/matching"
	"PairServer/model"
)

// ==================== 匹配相关 DTO ====================

// FilterSpec 配对偏好，零值表示不限
type FilterSpec struct {
	Gender    int8     `json:"gender"`    // 期望对方性别(0:不限 1:男 2:女)
	MinAge    int16    `json:"minAge"`    // 期望对方最小年龄
	MaxAge    int16    `json:"maxAge"`    // 期望对方最大年龄
	Interests []string `json:"interests"` // 期望共同兴趣，任一交集即可
}

// JoinRequest 加入匹配队列请求
type JoinRequest struct {
	UserUUID string      `json:"userUuid" binding:"required,max=64"` // 用户UUID
	Filters  *FilterSpec `json:"filters"`                            // 配对偏好（可选）
}

// MatchInfo 匹配结果
type MatchInfo struct {
	PartnerUUID string `json:"partnerUuid"` // 对端用户UUID
	SessionID   int64  `json:"sessionId"`   // 会话ID
	StartedAtMs int64  `json:"startedAtMs"` // 会话开始时间(毫秒)
}

// JoinResponse 加入匹配队列响应
// 入队后立即撮合成功时 status 为 chatting 并携带 matched
type JoinResponse struct {
	Status     string     `json:"status"`               // waiting/chatting
	JoinedAtMs int64      `json:"joinedAtMs,omitempty"` // 入队时间(毫秒)
	Matched    *MatchInfo `json:"matched,omitempty"`    // 匹配结果
}

// LeaveRequest 离开匹配队列请求
type LeaveRequest struct {
	UserUUID string `json:"userUuid" binding:"required,max=64"` // 用户UUID
}

// LeaveResponse 离开匹配队列响应
type LeaveResponse struct {
	Status string `json:"status"` // idle
}

// StatusResponse 用户状态查询响应
type StatusResponse struct {
	UserUUID       string     `json:"userUuid"`                 // 用户UUID
	Status         string     `json:"status"`                   // idle/waiting/chatting
	JoinedAtMs     int64      `json:"joinedAtMs,omitempty"`     // 排队中: 入队时间(毫秒)
	WaitingSeconds int64      `json:"waitingSeconds,omitempty"` // 排队中: 已等待秒数
	Matched        *MatchInfo `json:"matched,omitempty"`        // 会话中: 匹配信息
}

// NextRequest 换人请求（结束当前会话并重新排队）
type NextRequest struct {
	UserUUID string      `json:"userUuid" binding:"required,max=64"` // 用户UUID
	Filters  *FilterSpec `json:"filters"`                            // 配对偏好（可选）
}

// ==================== 会话相关 DTO ====================

// EndSessionRequest 结束会话请求
type EndSessionRequest struct {
	UserUUID string `json:"userUuid" binding:"required,max=64"` // 用户UUID
}

// EndedInfo 被结束的会话信息
type EndedInfo struct {
	PartnerUUID     string `json:"partnerUuid"`     // 对端用户UUID
	SessionID       int64  `json:"sessionId"`       // 会话ID
	Reason          string `json:"reason"`          // 结束原因
	DurationSeconds int64  `json:"durationSeconds"` // 会话时长(秒)
}

// EndSessionResponse 结束会话响应
type EndSessionResponse struct {
	Status string     `json:"status"` // idle
	Ended  *EndedInfo `json:"ended"`  // 被结束的会话
}

// ReportRequest 举报当前会话对端请求
type ReportRequest struct {
	UserUUID string `json:"userUuid" binding:"required,max=64"` // 举报人UUID
	Reason   string `json:"reason" binding:"max=255"`           // 举报理由（可选）
}

// ReportResponse 举报响应
type ReportResponse struct {
	ReportID     int64 `json:"reportId"`     // 举报记录ID
	SessionEnded bool  `json:"sessionEnded"` // 会话是否已随举报结束
}

// ==================== 用户相关 DTO ====================

// UpsertUserRequest 创建/更新用户档案请求
type UpsertUserRequest struct {
	UserUUID  string   `json:"userUuid" binding:"required,max=64"`          // 用户UUID
	Gender    int8     `json:"gender" binding:"omitempty,min=0,max=2"`      // 性别(0:未知 1:男 2:女)
	Age       int16    `json:"age" binding:"omitempty,min=0,max=150"`       // 年龄
	Interests []string `json:"interests" binding:"omitempty,max=16,dive,max=32"` // 兴趣标签
}

// UserResponse 用户档案响应
type UserResponse struct {
	UserUUID  string   `json:"userUuid"`  // 用户UUID
	Gender    int8     `json:"gender"`    // 性别
	Age       int16    `json:"age"`       // 年龄
	Interests []string `json:"interests"` // 兴趣标签
	Banned    bool     `json:"banned"`    // 是否被封禁
	Status    string   `json:"status"`    // 当前状态
}

// ==================== 转换函数 ====================

// StatusLabel 将状态码转成接口返回的可读标签
func StatusLabel(status int8) string {
	switch status {
	case model.UserStatusWaiting:
		return "waiting"
	case model.UserStatusChatting:
		return "chatting"
	default:
		return "idle"
	}
}

// ConvertFilters 将请求里的配对偏好转换为撮合层结构
func ConvertFilters(spec *FilterSpec) matching.Filters {
	if spec == nil {
		return matching.Filters{}
	}
	return matching.Filters{
		Gender:    spec.Gender,
		MinAge:    spec.MinAge,
		MaxAge:    spec.MaxAge,
		Interests: spec.Interests,
	}
}
