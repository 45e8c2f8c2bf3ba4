// Package bridge 是外部进程端口的实现：把本工具不在进程内实现的领域操作
// 委托给 owui-token-tracking CLI，注入连接串并捕获完整输出。
// internal/service/bridge/bridge.go
package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"TokenConsole/internal/conf"
	"TokenConsole/internal/core/port"
	"TokenConsole/internal/observe"
)

// 断言 *Runner 实现 port.CommandRunner 接口，编译期校验
var _ port.CommandRunner = (*Runner)(nil)

// Runner 执行外部 CLI 命令。工作目录固定为定位到的 backend 根目录，
// 子进程通过 DATABASE_URL 环境变量拿到与本工具一致的数据库。
type Runner struct {
	cfg     conf.BridgeConfig
	dbURL   string
	workdir string
}

// New 创建桥接执行器。dbPath 是已解析的数据库文件路径。
// backend 根目录按配置的候选列表顺序定位，都不存在时留空并在运行时报错。
func New(cfg conf.BridgeConfig, dbPath string) *Runner {
	var workdir string
	for _, dir := range cfg.BackendDirs {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			workdir = dir
			break
		}
	}
	if workdir == "" {
		slog.Warn("[Bridge] 未定位到 backend 根目录，外部命令将无法执行", "candidates", cfg.BackendDirs)
	}
	return &Runner{
		cfg:     cfg,
		dbURL:   "sqlite:///" + dbPath,
		workdir: workdir,
	}
}

// ManifestPath 返回定位到的模型清单文件路径 (backend 未定位到时为空)。
func (r *Runner) ManifestPath() string {
	if r.workdir == "" {
		return ""
	}
	return filepath.Join(r.workdir, r.cfg.ManifestRelPath)
}

// Run 执行一次外部命令，固定超时。超时返回 port.ErrCommandTimeout，
// 与非零退出码严格区分：非零退出不是 Go 层面的 error，完整输出
// 连同退出码一起交给操作者判读。
func (r *Runner) Run(ctx context.Context, req port.CommandRequest) (*port.CommandResult, error) {
	if r.workdir == "" {
		return nil, fmt.Errorf("backend 根目录未定位到，无法执行外部命令 (候选: %v)", r.cfg.BackendDirs)
	}
	if len(req.Args) == 0 {
		return nil, errors.New("外部命令参数不能为空")
	}

	timeout := r.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, r.cfg.Tool, req.Args...)
	cmd.Dir = r.workdir
	cmd.Env = append(os.Environ(), "DATABASE_URL="+r.dbURL)
	// 超时只会杀死直接子进程，残留的孙进程可能仍占着输出管道；
	// WaitDelay 到期后强制关闭管道，保证 Run 在时限附近返回。
	grace := r.cfg.GraceDelay
	if grace <= 0 {
		grace = 3 * time.Second
	}
	cmd.WaitDelay = grace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := &port.CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: elapsed,
	}

	if runErr != nil {
		// 先看命令本身是否失败：恰好在截止时刻正常退出的命令不算超时
		if errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			observe.BridgeRuns.WithLabelValues("timeout").Inc()
			return nil, fmt.Errorf("%w: %s %v (耗时 %s)", port.ErrCommandTimeout, r.cfg.Tool, req.Args, elapsed)
		}

		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			// 非零退出：正常返回结果，由操作者判读输出
			result.ExitCode = exitErr.ExitCode()
			observe.BridgeRuns.WithLabelValues("nonzero_exit").Inc()
			slog.Warn("[Bridge] 外部命令以非零退出码结束",
				"tool", r.cfg.Tool, "args", req.Args, "exit_code", result.ExitCode, "stderr", result.Stderr)
			return result, nil
		}
		observe.BridgeRuns.WithLabelValues("spawn_failed").Inc()
		return nil, fmt.Errorf("启动外部命令 '%s' 失败: %w", r.cfg.Tool, runErr)
	}

	observe.BridgeRuns.WithLabelValues("ok").Inc()
	slog.Info("[Bridge] 外部命令执行成功", "tool", r.cfg.Tool, "args", req.Args, "duration", elapsed)
	return result, nil
}

/* ---------- 领域操作的类型化封装 ---------- */

// CreateCreditGroup 按名称创建额度组 (名称查找在外部系统的记录中完成)。
func (r *Runner) CreateCreditGroup(ctx context.Context, name string, maxCredit int64, description string) (*port.CommandResult, error) {
	return r.Run(ctx, port.CommandRequest{
		Args: []string{"credit-group", "create", name, strconv.FormatInt(maxCredit, 10), description},
	})
}

// AddUserToGroup 按组名把用户分配到额度组。
func (r *Runner) AddUserToGroup(ctx context.Context, userID, groupName string) (*port.CommandResult, error) {
	return r.Run(ctx, port.CommandRequest{
		Args: []string{"credit-group", "add-user", userID, groupName},
	})
}

// FindUserByEmail 在外部系统的用户记录中按邮箱查找。
func (r *Runner) FindUserByEmail(ctx context.Context, email string) (*port.CommandResult, error) {
	return r.Run(ctx, port.CommandRequest{
		Args: []string{"user", "find", "--email", email},
	})
}

// Migrate 执行初始迁移，可安全地重复运行。
func (r *Runner) Migrate(ctx context.Context) (*port.CommandResult, error) {
	return r.Run(ctx, port.CommandRequest{Args: []string{"init"}})
}

// SyncModels 从清单文件批量创建/更新模型计费记录。
func (r *Runner) SyncModels(ctx context.Context) (*port.CommandResult, error) {
	return r.Run(ctx, port.CommandRequest{
		Args: []string{"init", "--model-json", r.cfg.ManifestRelPath},
	})
}
