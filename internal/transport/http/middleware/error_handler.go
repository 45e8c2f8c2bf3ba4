// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"TokenConsole/internal/core/port"
	"TokenConsole/internal/service/manifest"
)

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
// 处理器通过 c.Error(err) 附加错误，由这里统一映射为 HTTP 状态码。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		// 只处理最后一个错误，它通常是根本原因
		err := c.Errors.Last().Err

		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()})
			return
		}

		var manifestErr *manifest.ValidationError
		if errors.As(err, &manifestErr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "清单校验失败，已整体拒绝", "issues": manifestErr.Issues})
			return
		}

		switch {
		case errors.Is(err, port.ErrUnauthorized):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})

		case errors.Is(err, port.ErrNotFound), errors.Is(err, manifest.ErrManifestMissing):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrNotReady), errors.Is(err, port.ErrConnExhausted):
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})

		case errors.Is(err, port.ErrCommandTimeout):
			c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})

		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "服务器内部错误: " + err.Error()})
		}
	}
}
