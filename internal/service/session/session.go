// Package session 维护登录会话与会话级的连接重试状态。
// 重试计数挂在单个会话上，互不干扰，会话过期后自动归零。
// internal/service/session/session.go
package session

import (
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"TokenConsole/internal/core/port"
)

// Session 是一次已认证的控制台会话。
type Session struct {
	mu            sync.Mutex
	ID            string
	CreatedAt     time.Time
	connAttempts  int
	lastProbeFail string
}

// RecordProbe 记录一次连接探测结果。失败时累加会话内的重试计数，
// 成功时清零。返回累计失败次数。
func (s *Session) RecordProbe(ready bool, detail string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ready {
		s.connAttempts = 0
		s.lastProbeFail = ""
		return 0
	}
	s.connAttempts++
	s.lastProbeFail = detail
	return s.connAttempts
}

// ConnAttempts 返回当前会话累计的连接失败次数与最近一次失败详情。
func (s *Session) ConnAttempts() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connAttempts, s.lastProbeFail
}

// Store 是带 TTL 的会话存储，过期会话由底层缓存自动清理。
type Store struct {
	sessions *cache.Cache
	ttl      time.Duration
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{
		sessions: cache.New(ttl, 10*time.Minute),
		ttl:      ttl,
	}
}

// Create 以给定 ID (通常是 JWT 的 jti) 建立会话。
func (st *Store) Create(id string) *Session {
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
	}
	st.sessions.Set(id, s, st.ttl)
	return s
}

// Get 查找会话，不存在或已过期返回 port.ErrUnauthorized。
func (st *Store) Get(id string) (*Session, error) {
	v, ok := st.sessions.Get(id)
	if !ok {
		return nil, port.ErrUnauthorized
	}
	return v.(*Session), nil
}

// Revoke 主动销毁会话 (登出)。
func (st *Store) Revoke(id string) {
	st.sessions.Delete(id)
}

// Count 返回当前存活的会话数。
func (st *Store) Count() int {
	return st.sessions.ItemCount()
}
