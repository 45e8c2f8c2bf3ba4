// Package sqlite file: internal/adapter/sqlite/mutate.go
package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"TokenConsole/internal/core/port"
)

// Mutate 执行一次参数化的通用写操作 (create / update / delete)。
// 返回受影响的行数；零行是正常结果而非错误，是否意味着 "没有匹配" 由调用方判断。
// 任何执行错误都会回滚事务并原样上报，不留下部分效果。
func (b *Browser) Mutate(ctx context.Context, operation, table string, data map[string]any, filters []port.Filter) (affected int64, err error) {
	db, err := b.provider.Connect(ctx)
	if err != nil {
		return 0, err
	}

	var sqlStmt string
	var args []any

	switch operation {
	case "create":
		sqlStmt, args, err = buildInsertSQL(table, data)
	case "update":
		sqlStmt, args, err = buildUpdateSQL(table, data, filters)
	case "delete":
		sqlStmt, args, err = buildDeleteSQL(table, filters)
	default:
		return 0, fmt.Errorf("不支持的写操作类型: '%s'", operation)
	}
	if err != nil {
		return 0, fmt.Errorf("构建写操作SQL失败: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("开启事务失败 (表 '%s'): %w", table, err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
			slog.Warn("[Browser Mutate] 写操作失败，事务已回滚", "table", table, "operation", operation, "error", err)
		} else {
			if commitErr := tx.Commit(); commitErr != nil {
				err = fmt.Errorf("提交事务失败 (表 '%s'): %w", table, commitErr)
			}
		}
	}()

	res, err := tx.ExecContext(ctx, sqlStmt, args...)
	if err != nil {
		return 0, fmt.Errorf("写操作在表 '%s' 上执行失败: %w", table, err)
	}
	affected, _ = res.RowsAffected()
	return affected, nil
}
