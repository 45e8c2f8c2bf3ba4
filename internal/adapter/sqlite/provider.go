// Package sqlite — 目标数据库 (webui.db) 的连接提供器与浏览适配器
// internal/adapter/sqlite/provider.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"TokenConsole/internal/conf"
	"TokenConsole/internal/core/port"

	_ "modernc.org/sqlite"
)

const (
	schemePlain    = "sqlite:///"
	schemeSQLCiper = "sqlite+sqlcipher:///"
)

// ResolveDatabasePath 从连接串或候选路径列表中解析出数据库文件的绝对路径。
// 连接串支持 sqlite:/// 与 sqlite+sqlcipher:/// 两种形式，剥离协议前缀后
// 统一补回前导斜杠；连接串为空或无法识别时按顺序探测候选路径，
// 都不存在则回退到第一个候选路径 (外部系统完成初始化后该文件才会出现)。
func ResolveDatabasePath(rawURL string, candidates []string) string {
	if rawURL != "" {
		var p string
		switch {
		case strings.HasPrefix(rawURL, schemePlain):
			p = rawURL[len(schemePlain):]
		case strings.HasPrefix(rawURL, schemeSQLCiper):
			p = rawURL[len(schemeSQLCiper):]
		}
		if p != "" {
			if !strings.HasPrefix(p, "/") {
				p = "/" + p
			}
			return p
		}
		log.Printf("警告: [ConnProvider] 无法识别的连接串 '%s'，回退到候选路径探测。", rawURL)
	}

	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			return c
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// ProbeResult 描述一次就绪探测的结论与诊断信息。
type ProbeResult struct {
	Ready      bool   `json:"ready"`
	Path       string `json:"path"`
	FileExists bool   `json:"file_exists"`
	DirExists  bool   `json:"dir_exists"`
	TableCount int    `json:"table_count"`
	Detail     string `json:"detail"`
}

// Provider 负责解析数据库位置并在外部系统完成初始化后打开连接。
// 重试计数不在这里维护：它属于会话状态，由表示层跨刷新周期推进。
type Provider struct {
	mu   sync.Mutex
	cfg  conf.DatabaseConfig
	path string
	db   *sql.DB
}

// NewProvider 创建连接提供器，路径解析只做一次。
func NewProvider(cfg conf.DatabaseConfig) *Provider {
	return &Provider{
		cfg:  cfg,
		path: ResolveDatabasePath(cfg.URL, cfg.CandidatePaths),
	}
}

// Path 返回解析后的数据库文件路径。
func (p *Provider) Path() string { return p.path }

// Probe 执行一次非阻塞的就绪探测。文件缺失与 "文件存在但没有任何用户表"
// 都是未就绪状态而非错误 (外部系统可能仍在初始化)。
func (p *Provider) Probe(ctx context.Context) *ProbeResult {
	res := &ProbeResult{Path: p.path}

	if p.path == "" {
		res.Detail = "未能解析出任何候选数据库路径"
		return res
	}
	if fi, err := os.Stat(filepath.Dir(p.path)); err == nil && fi.IsDir() {
		res.DirExists = true
	}
	if _, err := os.Stat(p.path); err != nil {
		res.Detail = fmt.Sprintf("数据库文件不存在: %s", p.path)
		return res
	}
	res.FileExists = true

	db, err := p.open(ctx)
	if err != nil {
		res.Detail = fmt.Sprintf("打开数据库失败: %v", err)
		return res
	}

	var count int
	err = db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'`).
		Scan(&count)
	if err != nil {
		res.Detail = fmt.Sprintf("读取 sqlite_master 失败: %v", err)
		return res
	}
	res.TableCount = count
	if count == 0 {
		res.Detail = "数据库文件存在但尚无任何用户表 (外部系统可能仍在迁移)"
		return res
	}

	res.Ready = true
	return res
}

// Connect 在目标就绪时返回打开的连接，否则返回 port.ErrNotReady。
func (p *Provider) Connect(ctx context.Context) (*sql.DB, error) {
	probe := p.Probe(ctx)
	if !probe.Ready {
		return nil, fmt.Errorf("%w: %s", port.ErrNotReady, probe.Detail)
	}
	return p.open(ctx)
}

// AwaitReady 以固定间隔做有界次数的就绪等待，绝不会无限阻塞。
// 预算耗尽后返回携带诊断信息的 port.ErrConnExhausted。
func (p *Provider) AwaitReady(ctx context.Context, attempts int, delay time.Duration) (*sql.DB, error) {
	if attempts < 1 {
		attempts = 1
	}
	var last *ProbeResult
	for i := 0; i < attempts; i++ {
		last = p.Probe(ctx)
		if last.Ready {
			return p.open(ctx)
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("%w (共 %d 次): 路径=%s, 目录存在=%v, 文件存在=%v, 详情=%s",
		port.ErrConnExhausted, attempts, last.Path, last.DirExists, last.FileExists, last.Detail)
}

// open 惰性打开并缓存 *sql.DB。带锁，可重入。
func (p *Provider) open(ctx context.Context) (*sql.DB, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.db != nil {
		return p.db, nil
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=ON", p.path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open '%s' 失败: %w", p.path, err)
	}
	if errPing := db.PingContext(ctx); errPing != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping 数据库 '%s' 失败: %w", p.path, errPing)
	}

	p.db = db
	log.Printf("信息: [ConnProvider] 成功打开数据库: %s", p.path)
	return db, nil
}

// Close 关闭缓存的连接。
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			log.Printf("警告: [ConnProvider] 关闭数据库连接失败: %v", err)
		}
		p.db = nil
	}
}
