// file: internal/adapter/sqlite/provider_test.go

package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"TokenConsole/internal/conf"
	"TokenConsole/internal/core/port"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// -----------------------------------------------------------------------------
// 测试辅助: 在临时目录生成真实的 SQLite 文件
// -----------------------------------------------------------------------------

// newTestDBFile 创建一个包含 schema 的数据库文件并返回其路径。
func newTestDBFile(t *testing.T, schema string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "webui.db")
	db, err := sql.Open("sqlite", "file:"+path)
	require.NoError(t, err, "无法创建测试数据库文件")
	// Ping 触发真实连接，确保文件落盘
	require.NoError(t, db.Ping())
	if schema != "" {
		_, err = db.Exec(schema)
		require.NoError(t, err, "建表失败")
	}
	require.NoError(t, db.Close())
	return path
}

// -----------------------------------------------------------------------------
// ResolveDatabasePath: 连接串两种形式 + 候选路径回退
// -----------------------------------------------------------------------------

func TestResolveDatabasePath_SchemeForms(t *testing.T) {
	cases := []struct {
		name string
		url  string
		want string
	}{
		{"普通连接串", "sqlite:///a/b.db", "/a/b.db"},
		{"加密连接串", "sqlite+sqlcipher:///x/y.db", "/x/y.db"},
		{"绝对路径四斜杠", "sqlite:////data/webui.db", "/data/webui.db"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveDatabasePath(tc.url, nil)
			if got != tc.want {
				t.Errorf("路径解析错误, got=%s, want=%s", got, tc.want)
			}
		})
	}
}

func TestResolveDatabasePath_CandidateFallback(t *testing.T) {
	existing := newTestDBFile(t, "")
	missing := filepath.Join(t.TempDir(), "absent.db")

	// 第一个候选不存在时应选中第二个
	got := ResolveDatabasePath("", []string{missing, existing})
	require.Equal(t, existing, got, "应探测到实际存在的候选路径")

	// 全部不存在时回退到第一个候选 (外部系统稍后才会创建它)
	got = ResolveDatabasePath("", []string{missing, missing + "2"})
	require.Equal(t, missing, got)
}

// -----------------------------------------------------------------------------
// Probe: 文件缺失 / 零表 / 就绪 三种状态
// -----------------------------------------------------------------------------

func TestProvider_Probe_MissingFile(t *testing.T) {
	p := NewProvider(conf.DatabaseConfig{
		CandidatePaths: []string{filepath.Join(t.TempDir(), "absent.db")},
	})
	res := p.Probe(context.Background())
	if res.Ready {
		t.Fatalf("文件缺失时不应就绪: %+v", res)
	}
	if res.FileExists {
		t.Errorf("诊断信息应标记文件不存在: %+v", res)
	}
	if !res.DirExists {
		t.Errorf("父目录存在, 诊断信息应如实反映: %+v", res)
	}
}

func TestProvider_Probe_ZeroTables(t *testing.T) {
	// 文件存在但没有任何用户表：是 "未就绪" 而非错误
	path := newTestDBFile(t, "")
	p := NewProvider(conf.DatabaseConfig{URL: "sqlite:///" + path})

	res := p.Probe(context.Background())
	if res.Ready {
		t.Fatalf("零表数据库不应判定为就绪: %+v", res)
	}
	if !res.FileExists || res.TableCount != 0 {
		t.Errorf("诊断信息错误: %+v", res)
	}
}

func TestProvider_Probe_Ready(t *testing.T) {
	path := newTestDBFile(t, `CREATE TABLE token_tracking_base_setting(setting_key TEXT PRIMARY KEY, setting_value TEXT, description TEXT);`)
	p := NewProvider(conf.DatabaseConfig{URL: "sqlite:///" + path})
	defer p.Close()

	res := p.Probe(context.Background())
	if !res.Ready || res.TableCount != 1 {
		t.Fatalf("包含用户表的数据库应判定为就绪: %+v", res)
	}

	db, err := p.Connect(context.Background())
	require.NoError(t, err)
	require.NoError(t, db.Ping())
}

// -----------------------------------------------------------------------------
// AwaitReady: 有界等待，预算耗尽后必须报告永久失败而不是无限阻塞
// -----------------------------------------------------------------------------

func TestProvider_AwaitReady_Exhausted(t *testing.T) {
	p := NewProvider(conf.DatabaseConfig{
		CandidatePaths: []string{filepath.Join(t.TempDir(), "absent.db")},
	})

	start := time.Now()
	_, err := p.AwaitReady(context.Background(), 3, 10*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, port.ErrConnExhausted) {
		t.Fatalf("预算耗尽应返回 ErrConnExhausted, got=%v", err)
	}
	// 3 次尝试只 sleep 2 次，远小于 1s；保证不会无限阻塞
	if elapsed > time.Second {
		t.Errorf("等待耗时异常: %v", elapsed)
	}
}

func TestProvider_Connect_NotReady(t *testing.T) {
	path := newTestDBFile(t, "")
	p := NewProvider(conf.DatabaseConfig{URL: "sqlite:///" + path})

	_, err := p.Connect(context.Background())
	if !errors.Is(err, port.ErrNotReady) {
		t.Fatalf("未就绪时 Connect 应返回 ErrNotReady, got=%v", err)
	}
}
