package util

import (
	"math/rand"

	"github.com/bwmarrin/snowflake"
)

var node *snowflake.Node

// InitSnowflake 初始化雪花 ID 生成器（进程启动时调用一次）。
// nodeId 在部署实例间必须唯一，否则会产生重复 ID。
func InitSnowflake(nodeId int64) error {
	n, err := snowflake.NewNode(nodeId)
	if err != nil {
		return err
	}
	node = n
	return nil
}

// GenID 生成全局唯一的 int64 ID。
// 未初始化时退化为随机数，只用于测试场景兜底。
func GenID() int64 {
	if node == nil {
		return rand.Int63()
	}
	return node.Generate().Int64()
}
