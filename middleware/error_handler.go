package middleware

import (
	"merrimates/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandlerMiddleware 统一错误处理中间件
// 捕获 panic 和未处理的错误，返回统一格式的错误响应
func ErrorHandlerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.Error("Panic recovered",
					zap.Any("panic", err),
					zap.String("method", c.Request.Method),
					zap.String("path", c.Request.URL.Path))

				if !c.Writer.Written() {
					utils.InternalServerError(c, "internal server error")
				}

				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) > 0 {
			err := c.Errors.Last()
			logger.Error("Request error",
				zap.Error(err.Err),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path))

			if !c.Writer.Written() {
				utils.InternalServerError(c, err.Error())
			}
		}
	}
}
