// Package ctxmeta 统一管理跨层透传的上下文元数据。
// key 使用字符串字面量（而非私有类型），保证 gin.Context、
// context.Context 和日志层读写同一组键。
package ctxmeta

import (
	"context"

	"github.com/gin-gonic/gin"
)

const (
	KeyTraceID  = "trace_id"
	KeyUserUUID = "user_uuid"
	KeyClientIP = "client_ip"
)

// WithTraceID 向上下文写入 trace_id。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, KeyTraceID, traceID)
}

// TraceID 从上下文读取 trace_id，不存在时返回空串。
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(KeyTraceID).(string)
	return v
}

// TraceIDFromGin 从 gin 上下文读取 trace_id（由 TraceLogger 中间件写入）。
func TraceIDFromGin(c *gin.Context) string {
	return c.GetString(KeyTraceID)
}

// WithUserUUID 向上下文写入用户 UUID。
func WithUserUUID(ctx context.Context, userUUID string) context.Context {
	return context.WithValue(ctx, KeyUserUUID, userUUID)
}

// UserUUID 从上下文读取用户 UUID，不存在时返回空串。
func UserUUID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(KeyUserUUID).(string)
	return v
}

// WithClientIP 向上下文写入客户端 IP。
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, KeyClientIP, ip)
}

// ClientIP 从上下文读取客户端 IP，不存在时返回空串。
func ClientIP(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(KeyClientIP).(string)
	return v
}

// Propagate 提取需要跨 goroutine 透传的字段，挂到全新的上下文上。
// 供 async.SetContextPropagator 使用，避免异步任务持有请求级 ctx 的取消信号。
func Propagate(parent context.Context) context.Context {
	ctx := context.Background()
	if parent == nil {
		return ctx
	}
	if v := TraceID(parent); v != "" {
		ctx = WithTraceID(ctx, v)
	}
	if v := UserUUID(parent); v != "" {
		ctx = WithUserUUID(ctx, v)
	}
	if v := ClientIP(parent); v != "" {
		ctx = WithClientIP(ctx, v)
	}
	return ctx
}
