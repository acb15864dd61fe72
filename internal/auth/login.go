// Package auth guards the admin area: password check, rate-limited login and
// signed session tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/opticfit/internal/ratelimit"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrTooManyAttempts    = errors.New("too many login attempts")
	ErrUnauthorized       = errors.New("unauthorized")
)

// LoginConfig configures the admin login.
type LoginConfig struct {
	PasswordHash  string // bcrypt; preferred
	PlainPassword string // local development fallback
	MaxAttempts   int
	Window        time.Duration
}

// LoginService checks the admin password and issues session tokens. Attempts
// are counted per client IP, and a successful login clears the count.
type LoginService struct {
	cfg      LoginConfig
	hasher   *BcryptPasswordHasher
	sessions *SessionManager
	limiter  ratelimit.Limiter
}

func NewLoginService(cfg LoginConfig, sessions *SessionManager, limiter ratelimit.Limiter) (*LoginService, error) {
	if cfg.PasswordHash == "" && cfg.PlainPassword == "" {
		return nil, errors.New("auth: no admin password configured")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &LoginService{
		cfg:      cfg,
		hasher:   NewBcryptPasswordHasher(0),
		sessions: sessions,
		limiter:  limiter,
	}, nil
}

// Sessions returns the token manager used to verify cookies.
func (s *LoginService) Sessions() *SessionManager {
	return s.sessions
}

// Login returns a signed session token for a correct password. A limiter
// failure denies the attempt.
func (s *LoginService) Login(ctx context.Context, clientIP, password string) (string, time.Time, error) {
	key := "login:" + clientIP

	allowed, err := s.limiter.Allow(ctx, key, s.cfg.MaxAttempts, s.cfg.Window)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("login rate limit: %w", err)
	}
	if !allowed {
		slog.Warn("login rate limited", "ip", clientIP)
		return "", time.Time{}, ErrTooManyAttempts
	}

	if !s.checkPassword(password) {
		slog.Warn("login failed", "ip", clientIP)
		return "", time.Time{}, ErrInvalidCredentials
	}

	if err := s.limiter.Reset(ctx, key); err != nil {
		slog.Warn("login: failed to reset rate limit", "ip", clientIP, "error", err)
	}
	return s.sessions.Issue(RoleAdmin)
}

func (s *LoginService) checkPassword(password string) bool {
	if password == "" {
		return false
	}
	if s.cfg.PasswordHash != "" {
		return s.hasher.Verify(password, s.cfg.PasswordHash) == nil
	}
	return equalPlain(password, s.cfg.PlainPassword)
}
