package middleware

import (
	"strings"
	"time"

	"kairo-keeper/internal/logger"
	"kairo-keeper/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIdHeader = "X-Request-Id"
	apiPrefix       = "/kairo/api/v1/"
)

/**
 * Map a gin route pattern to the group it is counted under
 * @param {string} fullPath - c.FullPath(), empty for unmatched routes
 * @returns {string} tunnels, binary, reload, health, metrics or unknown
 * @example
 * RouteGroup("/kairo/api/v1/tunnels/:id/logs") // "tunnels"
 */
func RouteGroup(fullPath string) string {
	switch {
	case fullPath == "":
		return "unknown"
	case fullPath == "/healthz":
		return "health"
	case fullPath == "/metrics":
		return "metrics"
	case strings.HasPrefix(fullPath, apiPrefix):
		rest := strings.TrimPrefix(fullPath, apiPrefix)
		if i := strings.IndexByte(rest, '/'); i >= 0 {
			rest = rest[:i]
		}
		if rest != "" {
			return rest
		}
	}
	return "unknown"
}

/**
 * HTTP请求统计中间件
 * @description
 * - 按路由分组(tunnels/binary/...)统计请求数量、耗时和失败数
 * - 为每个请求分配X-Request-Id, 客户端带来的会沿用
 * - 失败请求按状态码记录日志, 其余为debug
 */
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestId := c.GetHeader(RequestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		c.Header(RequestIdHeader, requestId)

		c.Next()

		group := RouteGroup(c.FullPath())
		status := c.Writer.Status()
		elapsed := time.Since(start)
		services.RecordAPIRequest(group, c.Request.Method, status, elapsed.Seconds())

		entry := logger.WithFields(logger.Fields{
			"request_id": requestId,
			"group":      group,
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     status,
			"latency":    elapsed.String(),
		})
		switch {
		case status >= 500:
			entry.Error("API request failed")
		case status >= 400:
			entry.Warn("API request rejected")
		default:
			entry.Debug("API request")
		}
	}
}
