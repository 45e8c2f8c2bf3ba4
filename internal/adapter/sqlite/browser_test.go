// file: internal/adapter/sqlite/browser_test.go

package sqlite

import (
	"context"
	"errors"
	"testing"

	"TokenConsole/internal/conf"
	"TokenConsole/internal/core/port"

	"github.com/stretchr/testify/require"
)

const testSchema = `
CREATE TABLE token_tracking_credit_group(
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL UNIQUE,
    max_credit INTEGER NOT NULL,
    description TEXT
);
CREATE TABLE token_tracking_base_setting(
    setting_key TEXT PRIMARY KEY,
    setting_value TEXT,
    description TEXT
);
INSERT INTO token_tracking_credit_group VALUES ('cg-1', 'Starter Plan', 1000, '入门方案');
INSERT INTO token_tracking_base_setting VALUES ('beta', 'on', '');
`

// newTestBrowser 构造指向真实临时库的浏览适配器。
func newTestBrowser(t *testing.T) *Browser {
	t.Helper()
	path := newTestDBFile(t, testSchema)
	p := NewProvider(conf.DatabaseConfig{URL: "sqlite:///" + path})
	t.Cleanup(p.Close)
	return NewBrowser(p, conf.QueryConfig{DefaultLimit: 100, MaxLimit: 1000})
}

// -----------------------------------------------------------------------------
// ListTables / Columns
// -----------------------------------------------------------------------------

func TestBrowser_ListTables_Alphabetical(t *testing.T) {
	b := newTestBrowser(t)

	tables, err := b.ListTables(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"token_tracking_base_setting", "token_tracking_credit_group"}, tables,
		"表名应按字母序返回")
}

func TestBrowser_Columns(t *testing.T) {
	b := newTestBrowser(t)

	cols, err := b.Columns(context.Background(), "token_tracking_credit_group")
	require.NoError(t, err)
	require.Len(t, cols, 4)

	byName := map[string]int{}
	for i, c := range cols {
		byName[c.Name] = i
	}
	id := cols[byName["id"]]
	if !id.PrimaryKey {
		t.Errorf("id 列应标记为主键: %+v", id)
	}
	name := cols[byName["name"]]
	if !name.NotNull || name.DataType != "TEXT" {
		t.Errorf("name 列元数据错误: %+v", name)
	}

	// 第二次调用命中缓存，结果不变
	cached, err := b.Columns(context.Background(), "token_tracking_credit_group")
	require.NoError(t, err)
	require.Equal(t, cols, cached)
}

func TestBrowser_Columns_UnknownTable(t *testing.T) {
	b := newTestBrowser(t)

	_, err := b.Columns(context.Background(), "no_such_table")
	if !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("不存在的表应返回 ErrNotFound, got=%v", err)
	}
}

// -----------------------------------------------------------------------------
// Read: 有界读取、空结果与错误的区分
// -----------------------------------------------------------------------------

func TestBrowser_Read_Basic(t *testing.T) {
	b := newTestBrowser(t)

	res, err := b.Read(context.Background(), port.ReadRequest{
		Table: "token_tracking_credit_group",
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	require.EqualValues(t, 1, res.Total)
	require.Equal(t, "Starter Plan", res.Rows[0]["name"])
	require.EqualValues(t, 1000, res.Rows[0]["max_credit"])
}

func TestBrowser_Read_EmptyIsNotError(t *testing.T) {
	b := newTestBrowser(t)

	res, err := b.Read(context.Background(), port.ReadRequest{
		Table:   "token_tracking_credit_group",
		Filters: []port.Filter{{Field: "name", Value: "不存在的方案"}},
	})
	require.NoError(t, err, "空结果不是错误")
	require.Empty(t, res.Rows)
	require.EqualValues(t, 0, res.Total)
}

func TestBrowser_Read_UnknownTableIsError(t *testing.T) {
	b := newTestBrowser(t)

	_, err := b.Read(context.Background(), port.ReadRequest{Table: "ghost"})
	if !errors.Is(err, port.ErrNotFound) {
		t.Fatalf("查询不存在的表应报错, got=%v", err)
	}
}

func TestBrowser_Read_LimitClamped(t *testing.T) {
	b := newTestBrowser(t)

	// 注入多行数据
	db, err := b.provider.Connect(context.Background())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		_, err = db.Exec(`INSERT INTO token_tracking_base_setting(setting_key, setting_value, description) VALUES (?, '', '')`,
			"k"+string(rune('a'+i)))
		require.NoError(t, err)
	}

	res, err := b.Read(context.Background(), port.ReadRequest{
		Table: "token_tracking_base_setting",
		Limit: 5,
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 5, "行数应被 limit 截断")
	require.EqualValues(t, 21, res.Total, "总数不受 limit 影响")
}

// -----------------------------------------------------------------------------
// Mutate: 零行是正常结果；错误回滚不留部分效果
// -----------------------------------------------------------------------------

func TestBrowser_Mutate_UpdateUnknownKeyZeroRows(t *testing.T) {
	b := newTestBrowser(t)

	affected, err := b.Mutate(context.Background(), "update", "token_tracking_base_setting",
		map[string]any{"setting_value": "off"},
		[]port.Filter{{Field: "setting_key", Value: "ghost_key"}})
	require.NoError(t, err, "未匹配任何行不是执行错误")
	require.EqualValues(t, 0, affected)
}

func TestBrowser_Mutate_CreateAndDelete(t *testing.T) {
	b := newTestBrowser(t)
	ctx := context.Background()

	affected, err := b.Mutate(ctx, "create", "token_tracking_base_setting",
		map[string]any{"setting_key": "quota_banner", "setting_value": "1", "description": "横幅开关"}, nil)
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)

	affected, err = b.Mutate(ctx, "delete", "token_tracking_base_setting", nil,
		[]port.Filter{{Field: "setting_key", Value: "quota_banner"}})
	require.NoError(t, err)
	require.EqualValues(t, 1, affected)
}

func TestBrowser_Mutate_ConstraintViolationRollsBack(t *testing.T) {
	b := newTestBrowser(t)
	ctx := context.Background()

	// name 上有 UNIQUE 约束，重复插入必须失败且不留部分效果
	_, err := b.Mutate(ctx, "create", "token_tracking_credit_group",
		map[string]any{"id": "cg-2", "name": "Starter Plan", "max_credit": 500, "description": ""}, nil)
	require.Error(t, err, "唯一约束冲突应上报错误")

	res, errRead := b.Read(ctx, port.ReadRequest{Table: "token_tracking_credit_group"})
	require.NoError(t, errRead)
	require.EqualValues(t, 1, res.Total, "失败的写操作不应留下任何行")
}

func TestBrowser_Mutate_UnsupportedOperation(t *testing.T) {
	b := newTestBrowser(t)
	_, err := b.Mutate(context.Background(), "truncate", "token_tracking_base_setting", nil, nil)
	require.Error(t, err)
}
