package model

import (
	"time"
)

// PairRecord 活跃会话配对表（镜像双行）
// 一次配对写入两行：A->B 与 B->A，共享同一 session_id 与 started_at。
// 约束：uidx_pair_user 保证每个用户同一时刻至多一条配对记录，
// 是防止重复配对的数据库级兜底；会话结束时两行一并硬删除，不保留历史。
type PairRecord struct {
	Id          int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserUuid    string    `gorm:"column:user_uuid;type:varchar(64);not null;uniqueIndex:uidx_pair_user;comment:用户标识"`
	PartnerUuid string    `gorm:"column:partner_uuid;type:varchar(64);not null;index;comment:对端用户标识"`
	SessionId   int64     `gorm:"column:session_id;not null;index:idx_session;comment:会话id(雪花)"`
	StartedAt   time.Time `gorm:"column:started_at;type:datetime(3);not null;comment:会话开始时间，两行一致"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (PairRecord) TableName() string {
	return "pair_record"
}
