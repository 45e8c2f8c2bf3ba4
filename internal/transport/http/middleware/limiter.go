// file: internal/transport/http/middleware/limiter.go
package middleware

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// limiterEntry 存储限制器和最后访问时间
type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter 按客户端 IP 做令牌桶限流，主要保护登录接口。
type IPRateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
	stopOnce sync.Once
}

// NewIPRateLimiter 创建一个新的IP速率限制器
func NewIPRateLimiter(r rate.Limit, b int) *IPRateLimiter {
	limiter := &IPRateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     r,
		burst:    b,
		stop:     make(chan struct{}),
	}
	go limiter.cleanupDaemon()
	return limiter
}

// Stop 终止后台清理协程。限流本身不受影响，可重复调用。
func (l *IPRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *IPRateLimiter) getLimiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, exists := l.limiters[ip]
	if !exists {
		limiter := rate.NewLimiter(l.rate, l.burst)
		l.limiters[ip] = &limiterEntry{limiter: limiter, lastSeen: time.Now()}
		return limiter
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanupDaemon 定期清理不活跃的IP条目
func (l *IPRateLimiter) cleanupDaemon() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.mu.Lock()
			for ip, entry := range l.limiters {
				if time.Since(entry.lastSeen) > 15*time.Minute {
					delete(l.limiters, ip)
				}
			}
			l.mu.Unlock()
		}
	}
}

// Middleware 返回一个Gin中间件
func (l *IPRateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.getLimiter(c.ClientIP()).Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "请求过于频繁，请稍后再试。"})
			return
		}
		c.Next()
	}
}

// ============================================================================
//  失败计数与临时锁定 (Failure Counting & Temporary Lockout)
// ============================================================================

// LoginFailureLock 按来源 IP 统计共享密码的失败次数，超限后临时锁定。
// 系统只有一把共享密码，所以计数键不含用户名。
type LoginFailureLock struct {
	failureCache    *cache.Cache
	maxFailures     int
	lockoutDuration time.Duration
}

// NewLoginFailureLock 创建一个新的登录失败锁定器
func NewLoginFailureLock(maxFailures int, lockoutDuration time.Duration) *LoginFailureLock {
	return &LoginFailureLock{
		failureCache:    cache.New(5*time.Minute, 10*time.Minute),
		maxFailures:     maxFailures,
		lockoutDuration: lockoutDuration,
	}
}

// Locked 判断该 IP 当前是否处于锁定状态。
func (l *LoginFailureLock) Locked(ip string) bool {
	_, found := l.failureCache.Get("lock:" + ip)
	return found
}

// RecordFailure 记录一次失败，达到上限后进入锁定。
func (l *LoginFailureLock) RecordFailure(ip string) {
	failureKey := "failures:" + ip

	// Increment 对不存在的 key 返回错误，此时设初始值 1
	if err := l.failureCache.Increment(failureKey, int64(1)); err != nil {
		l.failureCache.Set(failureKey, int64(1), cache.DefaultExpiration)
	}

	var currentFailures int
	if x, found := l.failureCache.Get(failureKey); found {
		currentFailures = int(x.(int64))
	}

	slog.Info("[Login Failure] 登录失败", "ip", ip, "failures", currentFailures)

	if currentFailures >= l.maxFailures {
		l.failureCache.Set("lock:"+ip, true, l.lockoutDuration)
		l.failureCache.Delete(failureKey)
		slog.Warn("[Login Lock] 来源 IP 已被临时锁定", "ip", ip, "duration", l.lockoutDuration)
	}
}

// RecordSuccess 成功登录后清零失败计数。
func (l *LoginFailureLock) RecordSuccess(ip string) {
	l.failureCache.Delete("failures:" + ip)
}

// Middleware 包裹登录处理器：锁定期间直接拒绝，按响应状态码更新计数。
func (l *LoginFailureLock) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if l.Locked(ip) {
			slog.Warn("[Login Lock] 已锁定的来源再次尝试登录", "ip", ip)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "密码无效"})
			return
		}

		c.Next()

		switch c.Writer.Status() {
		case http.StatusUnauthorized:
			l.RecordFailure(ip)
		case http.StatusOK:
			l.RecordSuccess(ip)
		}
	}
}
