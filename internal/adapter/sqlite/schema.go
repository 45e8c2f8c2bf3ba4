// Package sqlite file: internal/adapter/sqlite/schema.go
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"TokenConsole/internal/conf"
	"TokenConsole/internal/core/domain"
	"TokenConsole/internal/core/port"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// 断言 *Browser 实现核心端口，编译期校验
var (
	_ port.Introspector = (*Browser)(nil)
	_ port.Reader       = (*Browser)(nil)
)

const (
	columnCacheSize = 256
	columnCacheTTL  = 5 * time.Minute
)

// Browser 是目标数据库的浏览适配器：表清单、列元数据、有界读取与通用写操作。
// 列元数据带 TTL 的 LRU 缓存，外部 CLI 跑完迁移后由文件监视器使其失效。
type Browser struct {
	provider *Provider
	query    conf.QueryConfig
	colCache *lru.LRU[string, []domain.ColumnInfo]
}

// NewBrowser 创建浏览适配器。
func NewBrowser(p *Provider, q conf.QueryConfig) *Browser {
	if q.DefaultLimit < 1 {
		q.DefaultLimit = 100
	}
	if q.MaxLimit < q.DefaultLimit {
		q.MaxLimit = q.DefaultLimit
	}
	return &Browser{
		provider: p,
		query:    q,
		colCache: lru.NewLRU[string, []domain.ColumnInfo](columnCacheSize, nil, columnCacheTTL),
	}
}

// ListTables 按字母序返回所有用户表名。只读，无副作用。
func (b *Browser) ListTables(ctx context.Context) ([]string, error) {
	db, err := b.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("查询表清单失败: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if errScan := rows.Scan(&name); errScan != nil {
			log.Printf("警告: [Browser] ListTables 扫描表名失败: %v", errScan)
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// Columns 返回指定表的列元数据 (PRAGMA table_info)，带缓存。
// 表不存在时返回 port.ErrNotFound。
func (b *Browser) Columns(ctx context.Context, table string) ([]domain.ColumnInfo, error) {
	if table == "" {
		return nil, fmt.Errorf("表名不能为空")
	}
	if cached, ok := b.colCache.Get(table); ok {
		return cached, nil
	}

	db, err := b.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	exists, err := tableExists(ctx, db, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: 表 '%s'", port.ErrNotFound, table)
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`PRAGMA table_info(%q)`, table))
	if err != nil {
		return nil, fmt.Errorf("PRAGMA table_info for table %q 失败: %w", table, err)
	}
	defer rows.Close()

	var cols []domain.ColumnInfo
	for rows.Next() {
		var (
			cid       int
			colName   string
			colType   string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if errScan := rows.Scan(&cid, &colName, &colType, &notnull, &dfltValue, &pk); errScan != nil {
			log.Printf("警告: [Browser] 表 '%s' 扫描列信息失败: %v", table, errScan)
			continue
		}
		cols = append(cols, domain.ColumnInfo{
			Name:         colName,
			DataType:     colType,
			NotNull:      notnull != 0,
			PrimaryKey:   pk != 0,
			DefaultValue: dfltValue.String,
		})
	}
	if errRows := rows.Err(); errRows != nil {
		return nil, errRows
	}

	b.colCache.Add(table, cols)
	return cols, nil
}

// InvalidateSchemaCache 清空列元数据缓存。迁移或文件替换后调用。
func (b *Browser) InvalidateSchemaCache() {
	b.colCache.Purge()
	log.Printf("信息: [Browser] 列元数据缓存已清空。")
}

// tableExists 检查用户表是否存在
func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name = ?`, table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("检查表 '%s' 是否存在失败: %w", table, err)
	}
	return n > 0, nil
}
