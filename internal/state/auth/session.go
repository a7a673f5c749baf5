// Package auth keeps the login state: the bearer token persisted in the
// local store and installed on the API client.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/newthinker/stratdesk/internal/core"
	"github.com/newthinker/stratdesk/internal/form"
	"github.com/newthinker/stratdesk/internal/metrics"
	"github.com/newthinker/stratdesk/internal/storage/local"
	"go.uber.org/zap"
)

// TokenKey is the local storage key holding the access token.
const TokenKey = "token"

// API is the part of the backend client a session drives.
type API interface {
	Login(ctx context.Context, creds core.Credentials) (*core.Token, error)
	SetToken(token string)
}

// Claims are the token fields shown to the user. They are read without
// verifying the signature.
type Claims struct {
	Subject   string
	ExpiresAt time.Time
}

// Session tracks the current token and the last login error.
type Session struct {
	api     API
	token   *local.Item[string]
	logger  *zap.Logger
	metrics *metrics.Registry
	now     func() time.Time

	mu      sync.RWMutex
	current string
	err     error
}

// NewSession restores a stored token, if any, and installs it on api.
// reg may be nil.
func NewSession(api API, store *local.Store, logger *zap.Logger, reg *metrics.Registry) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Session{
		api:     api,
		token:   local.NewItem(store, TokenKey, ""),
		logger:  logger,
		metrics: reg,
		now:     time.Now,
	}
	s.Sync()
	return s
}

// Sync re-reads the stored token. It picks up a login or logout done by
// another process sharing the storage file.
func (s *Session) Sync() {
	tok := s.token.Get()

	s.mu.Lock()
	changed := tok != s.current
	s.current = tok
	s.mu.Unlock()

	if changed {
		s.api.SetToken(tok)
		s.logger.Debug("session token changed", zap.Bool("present", tok != ""))
	}
}

// Login validates the credentials, exchanges them for a token and persists it.
func (s *Session) Login(ctx context.Context, username, password string) error {
	f := form.NewLoginForm(username)
	f.SetValue(form.FieldPassword, password)
	if err := f.Check(); err != nil {
		s.setErr(err)
		return err
	}

	tok, err := s.api.Login(ctx, core.Credentials{Username: username, Password: password})
	if s.metrics != nil {
		s.metrics.RecordLogin(err)
	}
	if err != nil {
		s.logger.Warn("login failed", zap.String("username", username), zap.Error(err))
		s.setErr(err)
		return err
	}

	if err := s.token.Set(tok.AccessToken); err != nil {
		err = fmt.Errorf("persisting token: %w", err)
		s.setErr(err)
		return err
	}

	s.mu.Lock()
	s.current = tok.AccessToken
	s.err = nil
	s.mu.Unlock()
	s.api.SetToken(tok.AccessToken)

	s.logger.Info("logged in", zap.String("username", username))
	return nil
}

// Logout forgets the token locally. The backend keeps no session to end.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.current = ""
	s.err = nil
	s.mu.Unlock()
	s.api.SetToken("")

	if err := s.token.Remove(); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}

// Token returns the current access token, "" when logged out.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Err returns the last login error.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// IsAuthenticated reports whether a token is present and, for a JWT that
// carries exp, not yet expired. Opaque tokens count as authenticated.
func (s *Session) IsAuthenticated() bool {
	tok := s.Token()
	if tok == "" {
		return false
	}
	claims, err := parseClaims(tok)
	if err != nil || claims.ExpiresAt.IsZero() {
		return true
	}
	return s.now().Before(claims.ExpiresAt)
}

// Claims decodes the current token. It fails with ErrNotAuthenticated when
// logged out and with ErrTokenExpired when the token is past its exp.
func (s *Session) Claims() (Claims, error) {
	tok := s.Token()
	if tok == "" {
		return Claims{}, core.ErrNotAuthenticated
	}
	claims, err := parseClaims(tok)
	if err != nil {
		return Claims{}, err
	}
	if !claims.ExpiresAt.IsZero() && !s.now().Before(claims.ExpiresAt) {
		return claims, core.ErrTokenExpired
	}
	return claims, nil
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func parseClaims(tok string) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &rc); err != nil {
		return Claims{}, fmt.Errorf("token is not a JWT: %w", err)
	}
	c := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}
