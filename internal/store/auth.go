package store

import (
	"context"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/model"
	"parceldesk.org/internal/session"
)

// Auth runs the session operations. State lives in the session service; this
// store only drives it.
type Auth struct {
	client *backend.Client
	bus    *lifecycle.Bus
	sess   *session.Service
}

// NewAuth wires the auth operations.
func NewAuth(client *backend.Client, bus *lifecycle.Bus, sess *session.Service) *Auth {
	return &Auth{client: client, bus: bus, sess: sess}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string     `json:"token"`
	User  model.User `json:"user"`
}

// Login exchanges credentials for a token and establishes the session.
func (a *Auth) Login(ctx context.Context, email, password string) error {
	done := a.bus.Track(ResourceAuth, "login")
	a.sess.SetStatus(session.StatusLoading, "")

	var resp loginResponse
	err := a.client.Post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		a.sess.SetStatus(session.StatusFailed, backend.Message(err))
		done(err)
		return err
	}
	if err := a.sess.Establish(ctx, resp.Token, resp.User); err != nil {
		a.sess.SetStatus(session.StatusFailed, err.Error())
		done(err)
		return err
	}
	done(nil)
	return nil
}

// Refresh refetches the current profile. Any rejection is treated as token
// invalidation: the session is torn down, not merely marked errored.
func (a *Auth) Refresh(ctx context.Context) error {
	done := a.bus.Track(ResourceAuth, "refresh")
	a.sess.SetStatus(session.StatusLoading, "")

	var user model.User
	if err := a.client.Get(ctx, "/users/me", nil, &user); err != nil {
		a.sess.SetStatus(session.StatusFailed, backend.Message(err))
		_ = a.sess.Teardown(ctx)
		done(err)
		return err
	}
	if err := a.sess.UpdateUser(ctx, user); err != nil {
		done(err)
		return err
	}
	done(nil)
	return nil
}

// Logout tears the session down locally. The backend holds no server-side
// session to revoke.
func (a *Auth) Logout(ctx context.Context) error {
	done := a.bus.Track(ResourceAuth, "logout")
	err := a.sess.Teardown(ctx)
	done(err)
	return err
}
