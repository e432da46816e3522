package consts

// 通用错误码
const (
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	CodeParamError       = 10001 // 参数验证失败
	CodeBodyError        = 10002 // 请求体格式错误
	CodeResourceNotFound = 10003 // 资源不存在
	CodeMethodNotAllowed = 10004 // 请求方法不允许
	CodeTooManyRequests  = 10005 // 请求过于频繁
	CodeRequestTimeout   = 10006 // 请求处理超时
)

// 访问控制错误 (2xxxx)
const (
	CodePermissionDeny = 20001 // 权限不足（非管理员）
)

// 匹配模块错误 (15xxx)
const (
	CodeAlreadyQueued     = 15001 // 已在匹配队列中
	CodeAlreadyChatting   = 15002 // 已在会话中
	CodeNotQueued         = 15003 // 不在匹配队列中
	CodeUserBanned        = 15004 // 用户已被封禁
	CodeInvalidTransition = 15005 // 非法状态流转
)

// 会话模块错误 (16xxx)
const (
	CodeNotInSession    = 16001 // 当前不在会话中
	CodeNoActiveSession = 16002 // 没有可操作的会话
)

// 举报模块错误 (17xxx)
const (
	CodeReportNotFound = 17001 // 举报记录不存在
	CodeReportResolved = 17002 // 举报已处理
)

// 服务端错误 (3xxxx)
const (
	CodeInternalError      = 30001 // 服务器内部错误
	CodeServiceUnavailable = 30002 // 服务暂不可用（存储故障）
	CodeServiceBusy        = 30003 // 服务熔断中，请稍后重试
)

// 错误消息映射
var CodeMessage = map[int32]string{
	CodeSuccess: "success",

	// 客户端错误
	CodeParamError:       "参数验证失败",
	CodeBodyError:        "请求体格式错误",
	CodeResourceNotFound: "资源不存在",
	CodeMethodNotAllowed: "请求方法不允许",
	CodeTooManyRequests:  "请求过于频繁",
	CodeRequestTimeout:   "请求处理超时",

	// 访问控制
	CodePermissionDeny: "权限不足",

	// 匹配模块
	CodeAlreadyQueued:     "已在匹配队列中",
	CodeAlreadyChatting:   "已在会话中",
	CodeNotQueued:         "不在匹配队列中",
	CodeUserBanned:        "用户已被封禁",
	CodeInvalidTransition: "非法状态流转",

	// 会话模块
	CodeNotInSession:    "当前不在会话中",
	CodeNoActiveSession: "没有可操作的会话",

	// 举报模块
	CodeReportNotFound: "举报记录不存在",
	CodeReportResolved: "举报已处理",

	// 服务端错误
	CodeInternalError:      "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用",
	CodeServiceBusy:        "服务熔断中，请稍后重试",
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int32) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "未知错误"
}

// IsNonServerError 判断是否为非服务端错误（客户端参数或业务逻辑错误）。
// 这类错误属于正常业务流程，Handler 层不再重复记录错误日志。
func IsNonServerError(code int32) bool {
	return code > CodeSuccess && code < CodeInternalError
}

// 会话结束原因（pair_record 删除时上报）
const (
	EndReasonExplicit   = "explicit"   // 用户主动结束
	EndReasonDisconnect = "disconnect" // 连接断开
	EndReasonTimeout    = "timeout"    // 活跃超时
	EndReasonBanned     = "banned"     // 管理员封禁强制结束
	EndReasonReported   = "reported"   // 被举报后结束
)

// 匹配事件类型（Redis Pub/Sub + WebSocket 推送共用）
const (
	EventMatchFound   = "match_found"   // 匹配成功
	EventSessionEnded = "session_ended" // 会话结束
	EventQueueTimeout = "queue_timeout" // 排队超时被移出队列
)
