// Package session owns the operator's authenticated session: the backend
// token and user profile, held in memory and mirrored into durable storage.
// No other package writes the storage keys.
package session

import (
	"context"
	"encoding/json"
	"sync"

	"parceldesk.org/internal/model"
)

// Status mirrors the auth slice lifecycle.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Service is the explicit session holder: init-from-storage on startup,
// Establish on login, Teardown on logout or token invalidation.
type Service struct {
	mu     sync.RWMutex
	store  Store
	token  string
	user   model.User
	hasUsr bool
	status Status
	errMsg string
}

// NewService creates an idle session backed by the given store.
func NewService(store Store) *Service {
	return &Service{store: store, status: StatusIdle}
}

// Init restores token and user from durable storage. A corrupt stored user
// clears the profile but keeps the token; the next refresh settles it.
func (s *Service) Init(ctx context.Context) error {
	token, _, err := s.store.Load(ctx, KeyToken)
	if err != nil {
		return err
	}
	rawUser, hasUser, err := s.store.Load(ctx, KeyUser)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.hasUsr = false
	if hasUser {
		var u model.User
		if err := json.Unmarshal([]byte(rawUser), &u); err == nil {
			s.user = u
			s.hasUsr = true
		}
	}
	return nil
}

// Token implements backend.TokenSource. Empty means anonymous.
func (s *Service) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the cached profile.
func (s *Service) User() (model.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.hasUsr
}

// Authenticated reports whether a token is present.
func (s *Service) Authenticated() bool {
	return s.Token() != ""
}

// Establish records a successful login: state and both storage keys.
func (s *Service) Establish(ctx context.Context, token string, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, KeyToken, token); err != nil {
		return err
	}
	if err := s.store.Save(ctx, KeyUser, string(raw)); err != nil {
		return err
	}

	s.mu.Lock()
	s.token = token
	s.user = user
	s.hasUsr = true
	s.status = StatusSucceeded
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

// UpdateUser persists a refreshed profile for the current token.
func (s *Service) UpdateUser(ctx context.Context, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	if err := s.store.Save(ctx, KeyUser, string(raw)); err != nil {
		return err
	}
	s.mu.Lock()
	s.user = user
	s.hasUsr = true
	s.status = StatusSucceeded
	s.errMsg = ""
	s.mu.Unlock()
	return nil
}

// Teardown destroys the session: both state and storage, not just an error
// mark. Used for logout and for refresh rejections (token invalidation).
func (s *Service) Teardown(ctx context.Context) error {
	err := s.store.Delete(ctx, KeyToken, KeyUser)

	s.mu.Lock()
	s.token = ""
	s.user = model.User{}
	s.hasUsr = false
	s.status = StatusIdle
	s.mu.Unlock()
	return err
}

// SetStatus records the auth operation lifecycle for rendering.
func (s *Service) SetStatus(status Status, errMsg string) {
	s.mu.Lock()
	s.status = status
	s.errMsg = errMsg
	s.mu.Unlock()
}

// Status returns the auth lifecycle state and last error message.
func (s *Service) Status() (Status, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.errMsg
}
