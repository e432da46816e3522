package middleware

import (
	"net"
	"strings"

	"PairServer/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
)

const (
	headerXRealIP       = "X-Real-IP"
	headerXForwardedFor = "X-Forwarded-For"
	headerClientIP      = "Client-IP"
	headerXClientIP     = "X-Client-IP"
)

// GetClientIP 从 Gin Context 中获取客户端真实 IP
// 优先级：X-Real-IP > X-Forwarded-For > Client-IP > RemoteAddr
func GetClientIP(c *gin.Context) string {
	// 1. 优先使用接入层设置的真实 IP
	if ip := c.GetHeader(headerXRealIP); ip != "" {
		return strings.TrimSpace(ip)
	}

	// 2. 使用 X-Forwarded-For（代理链），取第一个 IP（原始客户端）
	if xff := c.GetHeader(headerXForwardedFor); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	// 3. 客户端自带的 IP 头，必须通过格式校验才采信
	if ip := c.GetHeader(headerClientIP); ip != "" {
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := c.GetHeader(headerXClientIP); ip != "" {
		if net.ParseIP(ip) != nil {
			return ip
		}
	}

	// 4. 兜底走 Gin 的 ClientIP（含 RemoteAddr 逻辑）
	return c.ClientIP()
}

// GetClientIPSafe 安全获取 IP（包含格式验证）
func GetClientIPSafe(c *gin.Context) (string, bool) {
	ip := GetClientIP(c)
	if ip == "" {
		return "", false
	}
	if net.ParseIP(ip) == nil {
		return "", false
	}
	return ip, true
}

// ClientIPMiddleware 解析客户端 IP 并注入上下文
func ClientIPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := GetClientIP(c)

		// 注入到 Gin Context
		c.Set(ctxmeta.KeyClientIP, ip)

		// 注入到 request context，传递给下游
		ctx := ctxmeta.WithClientIP(c.Request.Context(), ip)
		*c.Request = *c.Request.WithContext(ctx)

		c.Next()
	}
}
