// Package sqlite file: internal/adapter/sqlite/watcher.go
package sqlite

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const debounceDuration = 2 * time.Second

// StartWatcher 监视数据库所在目录。外部 CLI 执行迁移会重写 .db 文件，
// 事件防抖后清空列元数据缓存，使自省结果反映新结构。
func (b *Browser) StartWatcher() error {
	dir := filepath.Dir(b.provider.Path())
	if dir == "" || dir == "." {
		return fmt.Errorf("无法确定数据库目录，监视器未启动")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建 fsnotify watcher 失败: %w", err)
	}

	var timersMu sync.Mutex
	timers := make(map[string]*time.Timer)

	go func() {
		defer watcher.Close()
		log.Printf("信息: [Browser] 文件监视 goroutine 已启动，目录: %s", dir)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					log.Printf("警告: [Browser] 文件监视器事件通道已关闭。")
					return
				}
				cleanPath := filepath.Clean(event.Name)
				if !strings.HasSuffix(strings.ToLower(cleanPath), ".db") {
					continue
				}
				if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Rename) {
					continue
				}

				// 防抖：迁移过程会产生密集的写事件
				timersMu.Lock()
				if timer, exists := timers[cleanPath]; exists {
					timer.Stop()
				}
				timers[cleanPath] = time.AfterFunc(debounceDuration, func() {
					log.Printf("信息: [Browser] 检测到数据库文件变更: '%s'，刷新缓存。", cleanPath)
					b.InvalidateSchemaCache()
					timersMu.Lock()
					delete(timers, cleanPath)
					timersMu.Unlock()
				})
				timersMu.Unlock()
			case errWatch, ok := <-watcher.Errors:
				if !ok {
					log.Printf("警告: [Browser] 文件监视器错误通道已关闭。")
					return
				}
				log.Printf("错误: [Browser] 文件监视器报告错误: %v", errWatch)
			}
		}
	}()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("添加目录 '%s' 到监视器失败: %w", dir, err)
	}
	return nil
}
