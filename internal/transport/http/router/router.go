// file: internal/transport/http/router/router.go
package router

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"TokenConsole/internal/adapter/sqlite"
	"TokenConsole/internal/auth"
	"TokenConsole/internal/observe"
	"TokenConsole/internal/service/bridge"
	"TokenConsole/internal/service/manifest"
	"TokenConsole/internal/service/session"
	"TokenConsole/internal/service/store"
	"TokenConsole/internal/transport/http/middleware"
)

// Dependencies 结构体用于将所有依赖项注入到路由器中
type Dependencies struct {
	Provider *sqlite.Provider
	Browser  *sqlite.Browser
	Groups   *store.CreditGroupStore
	Settings *store.SettingStore
	Pricing  *store.PricingStore
	Bridge   *bridge.Runner
	Manifest *manifest.Service
	Auth     *auth.Manager
	Sessions *session.Store

	// 会话级连接重试预算：失败探测累计达到 AwaitAttempts 后，
	// /system/status 进入永久失败状态；AwaitDelay 作为轮询间隔提示下发给前端。
	AwaitAttempts int
	AwaitDelay    time.Duration
}

// New 创建并配置一个全新的、基于 Gin 的 HTTP 路由器
func New(deps Dependencies) http.Handler {
	router := gin.Default()

	// --- 配置全局中间件 ---
	router.Use(gzip.Gzip(gzip.DefaultCompression))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(observe.PrometheusMiddleware())

	router.GET("/metrics", gin.WrapH(observe.Handler()))

	loginLimiter := middleware.NewIPRateLimiter(rate.Limit(1), 10)
	loginLock := middleware.NewLoginFailureLock(5, 15*time.Minute)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.ErrorHandlingMiddleware())
	{
		// --- 系统/认证平面 (System/Auth Plane) ---
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/login",
				loginLimiter.Middleware(),
				loginLock.Middleware(),
				loginHandler(deps.Auth, deps.Sessions))
			authGroup.POST("/logout", requireSession(deps), logoutHandler(deps.Sessions))
		}
		systemGroup := v1.Group("/system")
		{
			// 未登录也可探测就绪状态；带会话时顺带累加会话内的重试计数
			systemGroup.GET("/status", attachSession(deps), statusHandler(deps))
		}

		// --- 元数据/发现平面 (Metadata/Discovery Plane) ---
		metaGroup := v1.Group("/meta")
		metaGroup.Use(requireSession(deps))
		{
			metaGroup.GET("/tables", tablesHandler(deps.Browser))
			metaGroup.GET("/tables/:tableName/columns", columnsHandler(deps.Browser))
		}

		// --- 数据平面 (Data Plane) ---
		dataGroup := v1.Group("/data")
		dataGroup.Use(requireSession(deps))
		{
			dataGroup.POST("/query", queryHandler(deps.Browser))
			dataGroup.POST("/mutate", mutateHandler(deps.Browser))
			dataGroup.GET("/export", exportHandler(deps.Browser))
		}

		// --- 控制平面 (Control Plane) ---
		adminGroup := v1.Group("/admin")
		adminGroup.Use(requireSession(deps))
		{
			groupsGroup := adminGroup.Group("/credit-groups")
			{
				groupsGroup.GET("", listCreditGroupsHandler(deps.Groups))
				groupsGroup.POST("", createCreditGroupHandler(deps.Bridge))
				groupsGroup.DELETE("/:id", deleteCreditGroupHandler(deps.Groups))
				groupsGroup.GET("/:id/users", listGroupUsersHandler(deps.Groups))
				groupsGroup.POST("/:id/users", addGroupUserHandler(deps.Groups, deps.Bridge))
			}

			settingsGroup := adminGroup.Group("/settings")
			{
				settingsGroup.GET("", listSettingsHandler(deps.Settings))
				settingsGroup.POST("", createSettingHandler(deps.Settings))
				settingsGroup.PUT("/:key", updateSettingHandler(deps.Settings))
				settingsGroup.DELETE("/:key", deleteSettingHandler(deps.Settings))
			}

			modelsGroup := adminGroup.Group("/models")
			{
				modelsGroup.GET("", listModelsHandler(deps.Pricing))
				modelsGroup.DELETE("/:id", deleteModelHandler(deps.Pricing))
			}

			manifestGroup := adminGroup.Group("/manifest")
			{
				manifestGroup.GET("", getManifestHandler(deps.Manifest))
				manifestGroup.PUT("", putManifestHandler(deps.Manifest))
			}

			opsGroup := adminGroup.Group("/ops")
			{
				opsGroup.POST("/migrate", migrateHandler(deps.Bridge, deps.Browser))
				opsGroup.POST("/model-sync", modelSyncHandler(deps.Bridge))
			}

			adminGroup.GET("/users/find", findUserHandler(deps.Bridge))
		}
	}

	return router
}

// =============================================================================
//  Gin 中间件 (Middleware)
// =============================================================================

const ctxSessionKey = "console_session"

// restoreSession 尝试从 Bearer Token 恢复会话并挂到上下文，失败时静默跳过。
// 只做 c.Set，不推进处理链，认证决策由调用方中间件自己做。
func restoreSession(deps Dependencies, c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return
	}
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := deps.Auth.ParseToken(tokenString)
	if err != nil {
		return
	}
	if s, err := deps.Sessions.Get(claims.ID); err == nil {
		c.Set(ctxSessionKey, s)
	}
}

// attachSession 恢复会话但不拦截请求，由后续处理器自行判断认证状态。
func attachSession(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		restoreSession(deps, c)
		c.Next()
	}
}

// requireSession 确保请求携带有效的会话令牌，否则中止请求并返回 401。
func requireSession(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		restoreSession(deps, c)
		if _, ok := c.Get(ctxSessionKey); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "需要认证"})
			return
		}
		c.Next()
	}
}

// sessionFrom 取出 attachSession 挂到上下文的会话，可能为 nil。
func sessionFrom(c *gin.Context) *session.Session {
	if v, ok := c.Get(ctxSessionKey); ok {
		if s, ok := v.(*session.Session); ok {
			return s
		}
	}
	return nil
}

// =============================================================================
//  系统与认证处理器
// =============================================================================

// loginHandler 校验共享管理密码，签发令牌并建立会话
func loginHandler(am *auth.Manager, sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Password string `form:"password" json:"password" binding:"required"`
		}
		if err := c.ShouldBind(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "密码不能为空"})
			return
		}
		if !am.CheckPassword(req.Password) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "密码无效"})
			return
		}
		token, jti, err := am.GenToken()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "生成令牌失败"})
			return
		}
		sessions.Create(jti)
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}

// logoutHandler 销毁当前会话
func logoutHandler(sessions *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if s := sessionFrom(c); s != nil {
			sessions.Revoke(s.ID)
		}
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}

// statusHandler 返回目标数据库的就绪探测结果，供前端判断是否进入等待页。
// 带会话时累加会话内的重试计数；计数耗尽预算后标记为永久失败，
// 前端据此停止轮询并展示完整诊断信息。
func statusHandler(deps Dependencies) gin.HandlerFunc {
	return func(c *gin.Context) {
		probe := deps.Provider.Probe(c.Request.Context())

		resp := gin.H{
			"ready":       probe.Ready,
			"path":        probe.Path,
			"file_exists": probe.FileExists,
			"dir_exists":  probe.DirExists,
			"table_count": probe.TableCount,
		}
		if probe.Detail != "" {
			resp["detail"] = probe.Detail
		}
		if !probe.Ready && deps.AwaitDelay > 0 {
			resp["retry_delay_ms"] = deps.AwaitDelay.Milliseconds()
		}
		if s := sessionFrom(c); s != nil {
			attempts := s.RecordProbe(probe.Ready, probe.Detail)
			resp["conn_attempts"] = attempts
			if !probe.Ready && deps.AwaitAttempts > 0 && attempts >= deps.AwaitAttempts {
				resp["retry_exhausted"] = true
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}
