// Package auth — 共享密码校验 + JWT 会话令牌
package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"TokenConsole/internal/conf"
)

// ErrInvalidToken 表示 JWT 无效、过期或解析失败。
var ErrInvalidToken = errors.New("invalid or expired token")

// Claim 定义 JWT 的载荷结构。jti 同时充当会话 ID。
type Claim struct {
	jwt.RegisteredClaims
}

// Manager 持有认证配置，负责密码校验与令牌签发/解析。
type Manager struct {
	cfg     conf.AuthConfig
	hmacKey []byte
}

// NewManager 创建认证管理器。未设置 CONSOLE_JWT_KEY 时退化为
// 进程内随机密钥：重启后旧令牌全部失效，但不会出现可预测的共享密钥。
func NewManager(cfg conf.AuthConfig) *Manager {
	key := []byte(cfg.JWTKey)
	if len(key) == 0 {
		key = []byte(uuid.NewString())
		log.Println("警告: 未设置环境变量 CONSOLE_JWT_KEY，使用进程内随机密钥，重启后所有会话失效。")
	}
	return &Manager{cfg: cfg, hmacKey: key}
}

// CheckPassword 校验共享管理密码。设置了 bcrypt 哈希时优先用哈希比对，
// 否则退回明文常量时间比较。
func (m *Manager) CheckPassword(password string) bool {
	if m.cfg.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(m.cfg.PasswordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(m.cfg.Password), []byte(password)) == 1
}

// GenToken 签发一个新的会话令牌，返回令牌字符串与作为会话 ID 的 jti。
func (m *Manager) GenToken() (string, string, error) {
	ttl := m.cfg.SessionTTL
	if ttl == 0 {
		ttl = 24 * time.Hour
	}
	jti := uuid.NewString()
	claims := Claim{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "TokenConsole",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.hmacKey)
	if err != nil {
		return "", "", fmt.Errorf("签名 JWT 失败: %w", err)
	}
	return signedToken, jti, nil
}

// ParseToken 解析并验证 JWT 字符串，返回其中的 Claim。
func (m *Manager) ParseToken(tokenString string) (*Claim, error) {
	claims := &Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("非预期的签名方法: %v", token.Header["alg"])
		}
		return m.hmacKey, nil
	})

	if err != nil {
		// 特别处理过期错误，使其能被外部识别
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, jwt.ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w (detail: %v)", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
