// file: internal/transport/http/router/handlers_admin.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"TokenConsole/internal/adapter/sqlite"
	"TokenConsole/internal/core/domain"
	"TokenConsole/internal/core/port"
	"TokenConsole/internal/service/bridge"
	"TokenConsole/internal/service/manifest"
	"TokenConsole/internal/service/store"
)

// commandJSON 把外部命令的执行结果原样交给操作者判读。
// 非零退出码不是 HTTP 错误，前端根据 exit_code 决定如何展示。
func commandJSON(c *gin.Context, res *port.CommandResult) {
	c.JSON(http.StatusOK, gin.H{
		"exit_code":   res.ExitCode,
		"stdout":      res.Stdout,
		"stderr":      res.Stderr,
		"duration_ms": res.Duration.Milliseconds(),
		"success":     res.Success(),
	})
}

// =============================================================================
//  额度组 (Credit Group) 处理器
// =============================================================================

func listCreditGroupsHandler(groups *store.CreditGroupStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := groups.List(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if list == nil {
			list = []domain.CreditGroup{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

// createCreditGroupHandler 委托外部 CLI 创建额度组，记录归外部系统所有
func createCreditGroupHandler(br *bridge.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name        string `json:"name" binding:"required"`
			MaxCredit   int64  `json:"max_credit" binding:"required"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}

		res, err := br.CreateCreditGroup(c.Request.Context(), req.Name, req.MaxCredit, req.Description)
		if err != nil {
			_ = c.Error(err)
			return
		}
		commandJSON(c, res)
	}
}

// deleteCreditGroupHandler 在单个事务中级联删除额度组及其全部用户分配
func deleteCreditGroupHandler(groups *store.CreditGroupStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		assignments, deleted, err := groups.DeleteCascade(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		// 目标记录不存在时 deleted 为 0，不视为错误
		c.JSON(http.StatusOK, gin.H{
			"deleted_groups":      deleted,
			"deleted_assignments": assignments,
		})
	}
}

func listGroupUsersHandler(groups *store.CreditGroupStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := groups.Assignments(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		if list == nil {
			list = []domain.GroupAssignment{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

// addGroupUserHandler 把用户分配到额度组。外部 CLI 按组名工作，
// 所以先用路径中的组 ID 换出组名。
func addGroupUserHandler(groups *store.CreditGroupStore, br *bridge.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的请求体: " + err.Error()})
			return
		}

		group, err := groups.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}

		res, err := br.AddUserToGroup(c.Request.Context(), req.UserID, group.Name)
		if err != nil {
			_ = c.Error(err)
			return
		}
		commandJSON(c, res)
	}
}

// =============================================================================
//  基础设置 (Base Setting) 处理器
// =============================================================================

func listSettingsHandler(settings *store.SettingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := settings.List(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if list == nil {
			list = []domain.BaseSetting{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func createSettingHandler(settings *store.SettingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload domain.BaseSetting
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}
		if err := settings.Create(c.Request.Context(), payload); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"status": "success"})
	}
}

func updateSettingHandler(settings *store.SettingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var payload struct {
			Value       string `json:"setting_value"`
			Description string `json:"description"`
		}
		if err := c.ShouldBindJSON(&payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}

		affected, err := settings.Update(c.Request.Context(), domain.BaseSetting{
			Key:         c.Param("key"),
			Value:       payload.Value,
			Description: payload.Description,
		})
		if err != nil {
			_ = c.Error(err)
			return
		}
		// 键不存在时 affected 为 0，由前端提示而非报错
		c.JSON(http.StatusOK, gin.H{"affected": affected})
	}
}

func deleteSettingHandler(settings *store.SettingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		affected, err := settings.Delete(c.Request.Context(), c.Param("key"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"affected": affected})
	}
}

// =============================================================================
//  模型计费 (Model Pricing) 处理器
// =============================================================================

func listModelsHandler(pricing *store.PricingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := pricing.List(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if list == nil {
			list = []domain.ModelPricing{}
		}
		c.JSON(http.StatusOK, gin.H{"data": list})
	}
}

func deleteModelHandler(pricing *store.PricingStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		affected, err := pricing.Delete(c.Request.Context(), c.Param("id"))
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"affected": affected})
	}
}

// =============================================================================
//  模型清单 (Manifest) 处理器
// =============================================================================

func getManifestHandler(svc *manifest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entries, err := svc.Load()
		if err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": entries})
	}
}

// putManifestHandler 整体替换清单；任何一条记录不合格都拒绝全部写入
func putManifestHandler(svc *manifest.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var entries []domain.ManifestEntry
		if err := c.ShouldBindJSON(&entries); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "无效的JSON请求体: " + err.Error()})
			return
		}
		if err := svc.Save(entries); err != nil {
			_ = c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "count": len(entries)})
	}
}

// =============================================================================
//  运维操作 (Ops) 与用户查找处理器
// =============================================================================

// migrateHandler 委托外部 CLI 执行初始迁移，成功后让表结构缓存失效
func migrateHandler(br *bridge.Runner, b *sqlite.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := br.Migrate(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		if res.Success() {
			b.InvalidateSchemaCache()
		}
		commandJSON(c, res)
	}
}

func modelSyncHandler(br *bridge.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := br.SyncModels(c.Request.Context())
		if err != nil {
			_ = c.Error(err)
			return
		}
		commandJSON(c, res)
	}
}

func findUserHandler(br *bridge.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		email := c.Query("email")
		if email == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "缺少 'email' 参数"})
			return
		}
		res, err := br.FindUserByEmail(c.Request.Context(), email)
		if err != nil {
			_ = c.Error(err)
			return
		}
		commandJSON(c, res)
	}
}
