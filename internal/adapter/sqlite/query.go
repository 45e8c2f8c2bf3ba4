// file: internal/adapter/sqlite/query.go
package sqlite

import (
	"context"
	"fmt"

	"TokenConsole/internal/core/port"

	"golang.org/x/sync/errgroup"
)

// Read 执行一次有界的表格读取。行数据与总数并发获取。
// 空结果返回 Rows 为空的 *ReadResult 与 nil error；执行失败返回非 nil error，
// 两者由调用方分别渲染为 "无数据" 与 "错误"。
func (b *Browser) Read(ctx context.Context, req port.ReadRequest) (*port.ReadResult, error) {
	db, err := b.provider.Connect(ctx)
	if err != nil {
		return nil, err
	}

	exists, err := tableExists(ctx, db, req.Table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: 表 '%s'", port.ErrNotFound, req.Table)
	}

	limit := req.Limit
	if limit < 1 {
		limit = b.query.DefaultLimit
	}
	if limit > b.query.MaxLimit {
		limit = b.query.MaxLimit
	}

	result := &port.ReadResult{Rows: make([]map[string]any, 0)}
	g, queryCtx := errgroup.WithContext(ctx)

	// Goroutine 1: 计算精确总数 (不受 limit 影响)
	g.Go(func() error {
		countSQL, countArgs, errBuild := buildCountSQL(req.Table, req.Filters)
		if errBuild != nil {
			return fmt.Errorf("构建COUNT查询失败: %w", errBuild)
		}
		return db.QueryRowContext(queryCtx, countSQL, countArgs...).Scan(&result.Total)
	})

	// Goroutine 2: 读取受限的行数据
	g.Go(func() error {
		sqlQuery, queryArgs, errBuild := buildSelectSQL(req.Table, req.Filters, limit)
		if errBuild != nil {
			return fmt.Errorf("构建SELECT查询失败: %w", errBuild)
		}

		rows, errExec := db.QueryContext(queryCtx, sqlQuery, queryArgs...)
		if errExec != nil {
			return fmt.Errorf("查询表 '%s' 失败: %w", req.Table, errExec)
		}
		defer rows.Close()

		columns, errCols := rows.Columns()
		if errCols != nil {
			return fmt.Errorf("读取表 '%s' 列名失败: %w", req.Table, errCols)
		}
		result.Columns = columns

		for rows.Next() {
			scanDest := make([]any, len(columns))
			scanDestPtrs := make([]any, len(columns))
			for i := range scanDest {
				scanDestPtrs[i] = &scanDest[i]
			}
			if errScan := rows.Scan(scanDestPtrs...); errScan != nil {
				return fmt.Errorf("扫描表 '%s' 行数据失败: %w", req.Table, errScan)
			}
			rowData := make(map[string]any, len(columns))
			for i, colName := range columns {
				if bytes, ok := scanDest[i].([]byte); ok {
					rowData[colName] = string(bytes)
				} else {
					rowData[colName] = scanDest[i]
				}
			}
			result.Rows = append(result.Rows, rowData)
		}
		if errRows := rows.Err(); errRows != nil {
			return fmt.Errorf("迭代表 '%s' 行数据时发生错误: %w", req.Table, errRows)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}
