package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"sudooom.im.client/internal/model"
)

// Claims 服务端签发的会话 Token 声明
// 客户端只解析不校验签名（签名属于服务端），用于读取用户 ID 和过期时间
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// ParseToken 解析会话 Token（不校验签名）
func ParseToken(token string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// Session 已认证会话状态
// 登录后创建，登出或 401 时清空
type Session struct {
	mu        sync.RWMutex
	user      *model.User
	token     string
	expiresAt time.Time
}

func New() *Session {
	return &Session{}
}

// Establish 登录成功后建立会话
// token 可为空（纯 cookie 会话时服务端不回传 token）
func (s *Session) Establish(user model.User, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = &user
	s.token = token
	s.expiresAt = time.Time{}

	if token != "" {
		if claims, err := ParseToken(token); err == nil && claims.ExpiresAt != nil {
			s.expiresAt = claims.ExpiresAt.Time
		}
	}
}

// Clear 清空会话（登出或认证失效）
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	s.expiresAt = time.Time{}
}

// User 当前用户，未登录返回 false
func (s *Session) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return model.User{}, false
	}
	return *s.user, true
}

// UserID 当前用户 ID，未登录返回空串
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// Expired 会话 Token 是否已过期（无 token 时恒为 false，交给服务端判定）
func (s *Session) Expired(now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.expiresAt.IsZero() && now.After(s.expiresAt)
}
