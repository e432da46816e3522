package model

import (
	"time"
)

// UserReport 用户举报表
// 记录会话内对对端的举报，供管理端审阅；举报针对用户行为，不涉及消息内容。
type UserReport struct {
	Id           int64  `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	ReporterUuid string `gorm:"column:reporter_uuid;type:varchar(64);not null;index;comment:举报人标识"`
	ReportedUuid string `gorm:"column:reported_uuid;type:varchar(64);not null;index;comment:被举报人标识"`
	SessionId    int64  `gorm:"column:session_id;not null;comment:举报发生时的会话id"`
	Reason       string `gorm:"column:reason;type:varchar(255);comment:举报理由"`

	// 0待处理 1已忽略 2已封禁
	Status int8 `gorm:"column:status;not null;default:0;index;comment:处理状态"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserReport) TableName() string {
	return "user_report"
}

const (
	// ReportStatusPending 待处理
	ReportStatusPending int8 = 0
	// ReportStatusIgnored 已忽略
	ReportStatusIgnored int8 = 1
	// ReportStatusBanned 已封禁被举报人
	ReportStatusBanned int8 = 2
)
