package model

import (
	"time"
)

// ChatUser 匿名聊天用户表
// 核心用途：记录用户当前状态（空闲/排队/会话中）与匹配资料。
// 注意：status 只允许在仓储层事务内通过 CAS 更新，读路径走 Redis 缓存。
type ChatUser struct {
	Id   int64  `gorm:"column:id;primaryKey;autoIncrement;comment:自增id"`
	Uuid string `gorm:"column:uuid;type:varchar(64);not null;uniqueIndex:uidx_uuid;comment:外部用户标识"`

	// 匹配资料（仅作为兼容性判定扩展点的输入，引擎本身不解读）
	Gender    int8   `gorm:"column:gender;not null;default:0;comment:性别 0.未知 1.男 2.女"`
	Age       int16  `gorm:"column:age;not null;default:0;comment:年龄，0 表示未填写"`
	Interests string `gorm:"column:interests;type:varchar(255);comment:兴趣标签 JSON 数组"`

	// 0空闲 1排队中 2会话中
	Status int8 `gorm:"column:status;not null;default:0;index;comment:用户状态"`
	Banned int8 `gorm:"column:banned;not null;default:0;comment:封禁标记 0.正常 1.封禁"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (ChatUser) TableName() string {
	return "chat_user"
}

const (
	// UserStatusIdle 空闲（不在队列也不在会话中）
	UserStatusIdle int8 = 0
	// UserStatusWaiting 排队等待匹配
	UserStatusWaiting int8 = 1
	// UserStatusChatting 正在一对一会话中
	UserStatusChatting int8 = 2
)

const (
	// BanStatusNormal 正常
	BanStatusNormal int8 = 0
	// BanStatusBanned 已封禁（禁止进入匹配队列）
	BanStatusBanned int8 = 1
)

const (
	// GenderUnknown 未知
	GenderUnknown int8 = 0
	// GenderMale 男
	GenderMale int8 = 1
	// GenderFemale 女
	GenderFemale int8 = 2
)
