// file: internal/transport/http/router/handlers_data.go
package router

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"TokenConsole/internal/adapter/sqlite"
	"TokenConsole/internal/core/port"
)

// --- 元数据平面处理器 ---

// tablesHandler 返回目标库中所有用户表的名称
func tablesHandler(b *sqlite.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		tables, err := b.ListTables(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if tables == nil {
			tables = []string{}
		}
		c.JSON(http.StatusOK, gin.H{"data": tables})
	}
}

// columnsHandler 返回指定表的列元数据
func columnsHandler(b *sqlite.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		cols, err := b.Columns(c.Request.Context(), c.Param("tableName"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": cols})
	}
}

// --- 数据平面处理器 ---

// queryHandler 处理有界的表格读取请求
func queryHandler(b *sqlite.Browser) gin.HandlerFunc {
	type RequestBody struct {
		Table   string        `json:"table" binding:"required"`
		Filters []port.Filter `json:"filters"`
		Limit   int           `json:"limit"`
	}

	return func(c *gin.Context) {
		var reqBody RequestBody
		if err := c.ShouldBindJSON(&reqBody); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}

		result, err := b.Read(c.Request.Context(), port.ReadRequest{
			Table:   reqBody.Table,
			Filters: reqBody.Filters,
			Limit:   reqBody.Limit,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": result.Rows, "columns": result.Columns, "total": result.Total})
	}
}

// mutateHandler 处理表格编辑器发起的通用写操作 (增删改)。
// 影响零行是正常结果，由前端提示 "没有匹配的行" 而非报错。
func mutateHandler(b *sqlite.Browser) gin.HandlerFunc {
	type RequestBody struct {
		Operation string         `json:"operation" binding:"required,oneof=create update delete"`
		Table     string         `json:"table" binding:"required"`
		Data      map[string]any `json:"data"`
		Filters   []port.Filter  `json:"filters"`
	}

	return func(c *gin.Context) {
		var reqBody RequestBody
		if err := c.ShouldBindJSON(&reqBody); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}

		affected, err := b.Mutate(c.Request.Context(),
			reqBody.Operation, reqBody.Table, reqBody.Data, reqBody.Filters)
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"affected": affected})
	}
}

// exportHandler 把一次读取结果以 CSV 附件导出，行数上限与查询接口一致
func exportHandler(b *sqlite.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Query("table")
		if table == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 'table' 参数"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		result, err := b.Read(c.Request.Context(), port.ReadRequest{Table: table, Limit: limit})
		if err != nil {
			_ = c.Error(err)
			return
		}

		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", table+".csv"))

		w := csv.NewWriter(c.Writer)
		_ = w.Write(result.Columns)
		for _, row := range result.Rows {
			record := make([]string, len(result.Columns))
			for i, col := range result.Columns {
				if v, ok := row[col]; ok && v != nil {
					record[i] = fmt.Sprint(v)
				}
			}
			_ = w.Write(record)
		}
		w.Flush()
	}
}
