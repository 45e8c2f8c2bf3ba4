// Package port file: internal/core/port/bridge.go
package port

import (
	"context"
	"errors"
	"time"
)

// ErrCommandTimeout 表示外部命令超过时间预算被终止。
// 它与非零退出码是两种不同的失败，绝不混淆上报。
var ErrCommandTimeout = errors.New("外部命令执行超时")

// CommandRequest 描述一次外部 CLI 调用：子命令及其参数，
// 不含工具名本身 (由桥接层配置注入)。
type CommandRequest struct {
	Args []string
}

// CommandResult 捕获子进程的完整输出与退出状态。
type CommandResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	Duration time.Duration `json:"duration"`
}

// Success 判断命令是否以零退出码结束。
func (r *CommandResult) Success() bool { return r != nil && r.ExitCode == 0 }

// CommandRunner 是外部进程端口：本工具不在进程内实现的领域操作
// (按名创建额度组、按名分配用户、迁移、清单批量导入) 全部经由它委托。
type CommandRunner interface {
	Run(ctx context.Context, req CommandRequest) (*CommandResult, error)
}
