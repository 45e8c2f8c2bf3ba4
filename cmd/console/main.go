// file: cmd/console/main.go

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"TokenConsole/internal/adapter/sqlite"
	"TokenConsole/internal/auth"
	"TokenConsole/internal/conf"
	"TokenConsole/internal/observe"
	"TokenConsole/internal/service/bridge"
	"TokenConsole/internal/service/manifest"
	"TokenConsole/internal/service/session"
	"TokenConsole/internal/service/store"
	"TokenConsole/internal/transport/http/router"
)

const version = "v1.0.0"

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("TokenConsole %s 正在启动...", version)

	configFile := flag.String("config", "", "可选的 YAML 配置文件路径")
	flag.Parse()

	// .env 是可选的，容器部署通常直接注入环境变量
	if err := godotenv.Load(); err == nil {
		log.Println("信息: 已加载 .env 文件。")
	}

	cfg, err := conf.Load(*configFile)
	if err != nil {
		log.Fatalf("CRITICAL: 加载配置失败: %v", err)
	}

	observe.InitLogger(cfg.Server.LogLevel)
	slog.Info("TokenConsole starting up", "version", version)

	provider := sqlite.NewProvider(cfg.Database)
	defer provider.Close()
	slog.Info("数据层: 目标数据库路径已解析", "path", provider.Path())

	// 启动时探测一次就绪状态，仅做记录，不阻塞启动：
	// 外部系统可能尚未完成首次建表，前端会通过 /system/status 轮询
	if probe := provider.Probe(context.Background()); probe.Ready {
		slog.Info("数据层: 目标数据库已就绪", "tables", probe.TableCount)
	} else {
		slog.Warn("数据层: 目标数据库尚未就绪", "detail", probe.Detail)
	}

	browser := sqlite.NewBrowser(provider, cfg.Query)
	if err := browser.StartWatcher(); err != nil {
		slog.Warn("数据层: 文件变更监听启动失败，表结构缓存将只按 TTL 过期", "error", err)
	}

	br := bridge.New(cfg.Bridge, provider.Path())
	slog.Info("桥接层: 外部 CLI 桥接初始化完成", "tool", cfg.Bridge.Tool)

	am := auth.NewManager(cfg.Auth)
	sessions := session.NewStore(cfg.Auth.SessionTTL)

	httpRouter := router.New(router.Dependencies{
		Provider: provider,
		Browser:  browser,
		Groups:   store.NewCreditGroupStore(provider),
		Settings: store.NewSettingStore(provider),
		Pricing:  store.NewPricingStore(provider),
		Bridge:   br,
		Manifest: manifest.NewService(br.ManifestPath),
		Auth:     am,
		Sessions: sessions,

		AwaitAttempts: cfg.Database.AwaitAttempts,
		AwaitDelay:    cfg.Database.AwaitDelay,
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: httpRouter,
	}

	go func() {
		slog.Info("TokenConsole 启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP服务启动失败", "error", err)
			os.Exit(1)
		}
	}()

	observe.Register()
	slog.Info("监控: metrics 已注册。")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("收到停机信号，准备优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		slog.Error("HTTP服务优雅关闭失败", "error", err)
		os.Exit(1)
	}

	slog.Info("HTTP服务已成功关闭。")
	slog.Info("程序即将退出。")
}
