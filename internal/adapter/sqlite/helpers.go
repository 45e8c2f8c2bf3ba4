// Package sqlite file: internal/adapter/sqlite/helpers.go
package sqlite

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"TokenConsole/internal/core/port"
)

// buildSelectSQL 构建带行数上限的浏览查询。limit 必须由调用方先行钳制。
func buildSelectSQL(tableName string, filters []port.Filter, limit int) (string, []any, error) {
	if tableName == "" {
		return "", nil, errors.New("表名不能为空 (buildSelectSQL)")
	}
	if limit < 1 {
		return "", nil, errors.New("行数上限必须为正 (buildSelectSQL)")
	}

	whereClause, whereArgs, err := buildWhereClause(filters)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT * FROM %q", tableName))
	if whereClause != "" {
		sb.WriteString(" ")
		sb.WriteString(whereClause)
	}
	sb.WriteString(" LIMIT ?")

	args := append(whereArgs, limit)
	return sb.String(), args, nil
}

// buildCountSQL 构建计算总数的SQL查询
func buildCountSQL(tableName string, filters []port.Filter) (string, []any, error) {
	if tableName == "" {
		return "", nil, errors.New("表名不能为空 (buildCountSQL)")
	}
	whereClause, whereArgs, err := buildWhereClause(filters)
	if err != nil {
		return "", nil, err
	}
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("SELECT COUNT(*) FROM %q", tableName))
	if whereClause != "" {
		sb.WriteString(" ")
		sb.WriteString(whereClause)
	}
	return sb.String(), whereArgs, nil
}

// buildInsertSQL 安全地构建 INSERT 语句
func buildInsertSQL(tableName string, data map[string]any) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, errors.New("INSERT 操作需要提供数据")
	}
	var cols, placeholders []string
	var args []any
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		cols = append(cols, fmt.Sprintf("%q", k))
		placeholders = append(placeholders, "?")
		args = append(args, data[k])
	}
	query := fmt.Sprintf("INSERT INTO %q (%s) VALUES (%s)", tableName, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	return query, args, nil
}

// buildUpdateSQL 安全地构建 UPDATE 语句
func buildUpdateSQL(tableName string, data map[string]any, filters []port.Filter) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, errors.New("UPDATE 操作需要提供更新数据")
	}
	var setClauses []string
	var args []any
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		setClauses = append(setClauses, fmt.Sprintf("%q = ?", k))
		args = append(args, data[k])
	}
	whereClause, whereArgs, err := buildWhereClause(filters)
	if err != nil {
		return "", nil, err
	}
	args = append(args, whereArgs...)
	query := fmt.Sprintf("UPDATE %q SET %s %s", tableName, strings.Join(setClauses, ", "), whereClause)
	return strings.TrimSpace(query), args, nil
}

// buildDeleteSQL 安全地构建 DELETE 语句
func buildDeleteSQL(tableName string, filters []port.Filter) (string, []any, error) {
	whereClause, whereArgs, err := buildWhereClause(filters)
	if err != nil {
		return "", nil, err
	}
	if whereClause == "" {
		return "", nil, errors.New("出于安全考虑，不允许无条件的DELETE操作")
	}
	query := fmt.Sprintf("DELETE FROM %q %s", tableName, whereClause)
	return query, whereArgs, nil
}

// buildWhereClause 是一个用于构建 WHERE 子句的通用辅助函数
func buildWhereClause(filters []port.Filter) (string, []any, error) {
	if len(filters) == 0 {
		return "", make([]any, 0), nil
	}

	var conditions []string
	args := make([]any, 0, len(filters))

	for i, f := range filters {
		var operator, value string
		if f.Fuzzy {
			operator = "LIKE"
			likeValue := strings.ReplaceAll(f.Value, `\`, `\\`)
			likeValue = strings.ReplaceAll(likeValue, `%`, `\%`)
			likeValue = strings.ReplaceAll(likeValue, `_`, `\_`)
			value = "%" + likeValue + "%"
		} else {
			operator = "="
			value = f.Value
		}
		conditions = append(conditions, fmt.Sprintf("%q %s ?", f.Field, operator))
		args = append(args, value)
		if i < len(filters)-1 {
			// 未指定连接符时默认为 AND
			logic := strings.ToUpper(f.Logic)
			switch logic {
			case "AND", "OR":
				conditions = append(conditions, logic)
			case "":
				conditions = append(conditions, "AND")
			default:
				return "", nil, fmt.Errorf("无效的逻辑操作符: %s", f.Logic)
			}
		}
	}
	return "WHERE " + strings.Join(conditions, " "), args, nil
}
