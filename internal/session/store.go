package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"storefront/internal/api"
	"storefront/internal/domain"
	"storefront/internal/validate"
)

// Capability is a named permission level gating an operation.
type Capability string

const (
	// CapabilityAuthenticated requires any active session.
	CapabilityAuthenticated Capability = "authenticated"
	// CapabilityAdmin additionally requires an admin user.
	CapabilityAdmin Capability = "admin"
)

// Store is the single owner of the persisted session. All components
// that need the identity read through it; nothing else writes the
// session file. It implements api.SessionHook so the HTTP client can
// inject the token and purge on a 401.
type Store struct {
	file   *fileStore
	client *api.Client
	logger *zap.Logger

	mu      sync.RWMutex
	current *domain.Session
}

// NewStore creates a session store persisting to path. Call
// client.AttachSession with the returned store to complete the wiring.
func NewStore(path string, client *api.Client, logger *zap.Logger) *Store {
	return &Store{
		file:   &fileStore{path: path},
		client: client,
		logger: logger,
	}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// credentials is the token+user envelope both auth endpoints return.
type credentials struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

// Login authenticates with the backend and persists the session before
// returning, so dependent components see it synchronously.
func (s *Store) Login(ctx context.Context, email, password string) (*domain.Session, error) {
	req := loginRequest{Email: email, Password: password}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var creds credentials
	if err := s.client.Post(ctx, "/auth/login", req, &creds); err != nil {
		return nil, err
	}

	sess := &domain.Session{Token: creds.Token, User: creds.User, Validated: true}
	if err := s.accept(sess); err != nil {
		return nil, err
	}
	s.logger.Info("Logged in", zap.String("user_id", sess.User.ID), zap.Bool("admin", sess.User.IsAdmin))
	return s.snapshot(), nil
}

// Register creates an account and persists the resulting session with
// the same contract as Login.
func (s *Store) Register(ctx context.Context, name, email, password string) (*domain.Session, error) {
	req := registerRequest{Name: name, Email: email, Password: password}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	var creds credentials
	if err := s.client.Post(ctx, "/auth/register", req, &creds); err != nil {
		return nil, err
	}

	sess := &domain.Session{Token: creds.Token, User: creds.User, Validated: true}
	if err := s.accept(sess); err != nil {
		return nil, err
	}
	s.logger.Info("Registered", zap.String("user_id", sess.User.ID))
	return s.snapshot(), nil
}

// Logout clears the persisted session unconditionally. The in-memory
// session is dropped even if removing the file fails.
func (s *Store) Logout() error {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.file.purge(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.logger.Info("Logged out")
	return nil
}

// Restore loads the persisted session at startup. The session is
// trusted optimistically and tagged unvalidated until Revalidate or the
// first authenticated call succeeds; a token whose recorded expiry has
// already passed is purged immediately instead of restored. Returns
// (nil, nil) when no session is persisted.
func (s *Store) Restore() (*domain.Session, error) {
	sess, err := s.file.load()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}

	if expired(sess.Token) {
		s.logger.Info("Persisted session expired, purging", zap.String("user_id", sess.User.ID))
		if err := s.file.purge(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	sess.Validated = false
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.logger.Debug("Session restored", zap.String("user_id", sess.User.ID))
	return s.snapshot(), nil
}

// Revalidate confirms the current session against the backend and
// refreshes the stored profile. A rejection purges the session through
// the 401 path of the HTTP client.
func (s *Store) Revalidate(ctx context.Context) (*domain.Session, error) {
	if _, ok := s.Current(); !ok {
		return nil, &api.AuthError{Message: "no active session"}
	}

	var user domain.User
	if err := s.client.GetAuth(ctx, "/auth/me", nil, &user); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return nil, &api.AuthError{Message: "no active session"}
	}
	s.current.User = user
	s.current.Validated = true
	sess := *s.current
	s.mu.Unlock()

	if err := s.file.save(&sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// Current returns a copy of the active session, if any.
func (s *Store) Current() (*domain.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil, false
	}
	sess := *s.current
	return &sess, true
}

// Require checks the given capability against the active session. It
// returns an AuthError when no session exists and a ForbiddenError when
// admin is required but the session lacks it, mirroring the redirect
// targets of a navigation guard.
func (s *Store) Require(cap Capability) error {
	sess, ok := s.Current()
	if !ok {
		return &api.AuthError{Message: "no active session"}
	}
	if cap == CapabilityAdmin && !sess.User.IsAdmin {
		return &api.ForbiddenError{Message: "admin access required"}
	}
	return nil
}

// BearerToken implements api.SessionHook.
func (s *Store) BearerToken() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return "", false
	}
	return s.current.Token, true
}

// HandleUnauthorized implements api.SessionHook: any 401 on an
// authenticated call invalidates the persisted session.
func (s *Store) HandleUnauthorized() {
	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if err := s.file.purge(); err != nil {
		s.logger.Warn("Failed to purge session file", zap.Error(err))
	}
}

// accept installs a fresh session: persist first, then publish, so a
// failed write never leaves memory and disk disagreeing.
func (s *Store) accept(sess *domain.Session) error {
	if err := s.file.save(sess); err != nil {
		return err
	}
	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}

func (s *Store) snapshot() *domain.Session {
	sess, _ := s.Current()
	return sess
}

// expired inspects the token's exp claim without verifying the
// signature; verification is the backend's job. Tokens that do not
// parse as JWTs are treated as opaque and trusted until first use.
func expired(token string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(time.Now())
}
