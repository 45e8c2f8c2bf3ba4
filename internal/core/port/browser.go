// Package port file: internal/core/port/browser.go
package port

import (
	"TokenConsole/internal/core/domain"
	"context"
	"errors"
)

// Standard errors
var (
	// ErrNotReady 表示目标数据库尚未就绪 (文件缺失或无任何用户表)，可通过重试恢复。
	ErrNotReady = errors.New("数据库尚未就绪")
	// ErrConnExhausted 表示连接等待的重试预算已耗尽，属于永久性失败。
	ErrConnExhausted = errors.New("数据库连接重试次数已耗尽")
	// ErrNotFound 表示按标识查找的实体不存在。
	ErrNotFound = errors.New("指定的记录未找到")
	// ErrUnauthorized 表示会话未通过共享密码认证。
	ErrUnauthorized = errors.New("会话未认证或凭证无效")
)

// Filter 描述一个等值/模糊过滤条件。
type Filter struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Fuzzy bool   `json:"fuzzy"`
	Logic string `json:"logic"`
}

// ReadRequest 描述一次带行数上限的表格读取。
type ReadRequest struct {
	Table   string   `json:"table"`
	Filters []Filter `json:"filters"`
	Limit   int      `json:"limit"`
}

// ReadResult 是表格读取的结果。空结果 (Rows 为空且 err == nil)
// 与查询执行失败是两种不同的状态，调用方据此分别渲染 "无数据" 与 "错误"。
type ReadResult struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	Total   int64            `json:"total"`
}

// Introspector 按需列出表名与列元数据，只读无副作用。
type Introspector interface {
	ListTables(ctx context.Context) ([]string, error)
	Columns(ctx context.Context, table string) ([]domain.ColumnInfo, error)
}

// Reader 执行有界的参数化 SELECT。
type Reader interface {
	Read(ctx context.Context, req ReadRequest) (*ReadResult, error)
}
