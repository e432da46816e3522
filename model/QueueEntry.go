package model

import (
	"time"
)

// QueueEntry 匹配等待队列表
// 约束：uidx_queue_user 保证同一用户最多一条排队记录；行存在 <=> 用户 status=1。
// 排序规则：joined_at 升序，毫秒级相同时按 user_uuid 升序（与 Redis ZSet 的同分字典序一致）。
type QueueEntry struct {
	Id       int64     `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	UserUuid string    `gorm:"column:user_uuid;type:varchar(64);not null;uniqueIndex:uidx_queue_user;comment:用户标识"`
	JoinedAt time.Time `gorm:"column:joined_at;type:datetime(3);not null;index:idx_joined_at;comment:入队时间(毫秒精度)"`
	Filters  string    `gorm:"column:filters;type:varchar(512);comment:入队时携带的筛选条件 JSON，引擎不解读"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (QueueEntry) TableName() string {
	return "queue_entry"
}
