package service

import (
	"errors"

	"PairServer/consts"
)

// 业务错误定义。
// Handler 层通过 ErrorCode 翻译为响应错误码，服务层内部用 errors.Is 判断。
var (
	// ErrUserNotFound 用户不存在
	ErrUserNotFound = errors.New("用户不存在")
	// ErrUserBanned 用户已被封禁，禁止进入匹配队列
	ErrUserBanned = errors.New("用户已被封禁")
	// ErrAlreadyQueued 已在匹配队列中
	ErrAlreadyQueued = errors.New("已在匹配队列中")
	// ErrAlreadyChatting 已在会话中
	ErrAlreadyChatting = errors.New("已在会话中")
	// ErrNotQueued 不在匹配队列中
	ErrNotQueued = errors.New("不在匹配队列中")
	// ErrNotInSession 当前不在会话中
	ErrNotInSession = errors.New("当前不在会话中")
	// ErrReportNotFound 举报记录不存在
	ErrReportNotFound = errors.New("举报记录不存在")
	// ErrReportResolved 举报已被处理过
	ErrReportResolved = errors.New("举报已处理")
	// ErrInvalidArgument 参数无效（正常情况下被 Handler 层的参数校验拦截）
	ErrInvalidArgument = errors.New("参数无效")
)

// errorCodes 业务错误到响应错误码的映射
var errorCodes = []struct {
	err  error
	code int32
}{
	{ErrUserNotFound, consts.CodeResourceNotFound},
	{ErrUserBanned, consts.CodeUserBanned},
	{ErrAlreadyQueued, consts.CodeAlreadyQueued},
	{ErrAlreadyChatting, consts.CodeAlreadyChatting},
	{ErrNotQueued, consts.CodeNotQueued},
	{ErrNotInSession, consts.CodeNotInSession},
	{ErrReportNotFound, consts.CodeReportNotFound},
	{ErrReportResolved, consts.CodeReportResolved},
	{ErrInvalidArgument, consts.CodeParamError},
}

// ErrorCode 提取业务错误对应的响应错误码。
// 未识别的错误一律按服务器内部错误处理。
func ErrorCode(err error) int32 {
	for _, m := range errorCodes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return consts.CodeInternalError
}
