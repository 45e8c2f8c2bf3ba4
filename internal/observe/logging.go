// Package observe file: internal/observe/logging.go
package observe

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger 初始化全局的结构化日志记录器。
// 它应该在 main 函数的早期被调用。
func InitLogger(levelStr string) {
	var level slog.Level

	// 根据配置字符串设置日志级别
	switch strings.ToUpper(levelStr) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "WARN":
		level = slog.LevelWarn
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelInfo // 默认为 INFO 级别
	}

	// JSON 处理器输出到标准输出，带源码位置便于排查
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     level,
		AddSource: true,
	})

	slog.SetDefault(slog.New(handler))
}
