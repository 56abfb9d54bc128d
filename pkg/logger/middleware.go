package logger

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GinLogger logs every admin API request; 4xx responses at warn, 5xx at error
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.String("ip", c.ClientIP()),
			zap.Int("status", status),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			Logger.Error("HTTP request", fields...)
		case status >= 400:
			Logger.Warn("HTTP request", fields...)
		default:
			Logger.Debug("HTTP request", fields...)
		}
	}
}

// LogError logs msg at error level with err attached
func LogError(msg string, err error, fields ...zap.Field) {
	Logger.Error(msg, append(fields, zap.Error(err))...)
}

func LogWarn(msg string, fields ...zap.Field) {
	Logger.Warn(msg, fields...)
}

func LogInfo(msg string, fields ...zap.Field) {
	Logger.Info(msg, fields...)
}

func LogDebug(msg string, fields ...zap.Field) {
	Logger.Debug(msg, fields...)
}

// Chat tags a log line with the chat it belongs to
func Chat(chatID int64) zap.Field {
	return zap.Int64("chat_id", chatID)
}
