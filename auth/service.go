// Package auth signs the portfolio owner in and tracks their sessions.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kasuganosora/questfolio/cache"
	"github.com/kasuganosora/questfolio/config"
	mw "github.com/kasuganosora/questfolio/middleware"
	"github.com/kasuganosora/questfolio/model"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account disabled")
	ErrSessionExpired     = errors.New("session expired")
)

const cacheTimeout = 2 * time.Second

// Session is an issued login.
type Session struct {
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Service signs the admin in and out. Sessions live in the cache under
// mw.SessionKey(token) so the auth middleware can check them.
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	sec    config.SecurityConfig
	logger *zap.Logger
}

// NewService creates an auth Service.
func NewService(db *gorm.DB, c cache.Cache, sec config.SecurityConfig, logger *zap.Logger) *Service {
	if sec.JWTTTLH <= 0 {
		sec.JWTTTLH = 72 * time.Hour
	}
	return &Service{db: db, cache: c, sec: sec, logger: logger}
}

// EnsureAdmin creates the admin account, or updates its password hash when
// it already exists. An empty email or hash is a no-op.
func (s *Service) EnsureAdmin(ctx context.Context, email, passwordHash string) error {
	email = normEmail(email)
	if email == "" || passwordHash == "" {
		return nil
	}
	if _, err := bcrypt.Cost([]byte(passwordHash)); err != nil {
		return fmt.Errorf("auth: admin password hash: %w", err)
	}
	var acc model.Account
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&acc).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		acc = model.Account{Email: email, PasswordHash: passwordHash, Status: 1}
		if err := s.db.WithContext(ctx).Create(&acc).Error; err != nil {
			return fmt.Errorf("auth: create admin: %w", err)
		}
		s.logger.Info("admin account created", zap.String("email", email))
		return nil
	case err != nil:
		return fmt.Errorf("auth: load admin: %w", err)
	}
	if acc.PasswordHash == passwordHash {
		return nil
	}
	return s.db.WithContext(ctx).Model(&acc).Update("password_hash", passwordHash).Error
}

// SignInWithPassword checks the password against the account's bcrypt hash
// and issues a new session. ip is recorded as the last login address.
func (s *Service) SignInWithPassword(ctx context.Context, email, password, ip string) (*Session, error) {
	var acc model.Account
	err := s.db.WithContext(ctx).Where("email = ?", normEmail(email)).First(&acc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth: load account: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if acc.Status == 0 {
		return nil, ErrAccountDisabled
	}

	sess, err := s.issue(ctx, acc.ID)
	if err != nil {
		return nil, err
	}

	// Last login is best-effort.
	if err := s.db.WithContext(ctx).Model(&acc).Updates(map[string]interface{}{
		"last_login_at": time.Now(),
		"last_login_ip": ip,
	}).Error; err != nil {
		s.logger.Warn("record last login failed", zap.Int64("account_id", acc.ID), zap.Error(err))
	}
	return sess, nil
}

// GetSession returns the live session for token.
func (s *Service) GetSession(ctx context.Context, token string) (*Session, error) {
	claims, err := mw.ParseToken(token, s.sec.JWTSecret)
	if err != nil {
		return nil, ErrSessionExpired
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	v, err := s.cache.Get(cctx, mw.SessionKey(token))
	if cache.IsNotFound(err) {
		return nil, ErrSessionExpired
	}
	if err != nil {
		return nil, fmt.Errorf("auth: session lookup: %w", err)
	}
	if v != strconv.FormatInt(claims.AccountID, 10) {
		return nil, ErrSessionExpired
	}
	sess := &Session{Token: token, AccountID: claims.AccountID}
	if claims.ExpiresAt != nil {
		sess.ExpiresAt = claims.ExpiresAt.Time
	}
	return sess, nil
}

// SignOut drops the session. Unknown tokens are not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	return s.cache.Del(cctx, mw.SessionKey(token))
}

// RefreshSession swaps token for a fresh one with a full TTL.
func (s *Service) RefreshSession(ctx context.Context, token string) (*Session, error) {
	old, err := s.GetSession(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := s.SignOut(ctx, token); err != nil {
		return nil, fmt.Errorf("auth: drop old session: %w", err)
	}
	return s.issue(ctx, old.AccountID)
}

func (s *Service) issue(ctx context.Context, accountID int64) (*Session, error) {
	token, err := mw.GenerateToken(accountID, s.sec.JWTSecret, s.sec.JWTTTLH)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}
	cctx, cancel := context.WithTimeout(ctx, cacheTimeout)
	defer cancel()
	if err := s.cache.Set(cctx, mw.SessionKey(token), strconv.FormatInt(accountID, 10), s.sec.JWTTTLH); err != nil {
		return nil, fmt.Errorf("auth: store session: %w", err)
	}
	return &Session{Token: token, AccountID: accountID, ExpiresAt: time.Now().Add(s.sec.JWTTTLH)}, nil
}

func normEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
