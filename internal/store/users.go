package store

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/model"
)

// Users caches the account list and the currently opened account.
type Users struct {
	client *backend.Client
	bus    *lifecycle.Bus

	mu      sync.RWMutex
	list    []model.User
	current *model.User
	err     string
}

// NewUsers creates an empty users store.
func NewUsers(client *backend.Client, bus *lifecycle.Bus) *Users {
	return &Users{client: client, bus: bus}
}

// Fetch replaces the list, accepting either a bare array or an {items}
// envelope.
func (u *Users) Fetch(ctx context.Context, query url.Values) error {
	done := u.bus.Track(ResourceUsers, "fetch")

	var raw json.RawMessage
	if err := u.client.Get(ctx, "/users", query, &raw); err != nil {
		u.setErr(backend.Message(err))
		done(err)
		return err
	}

	list, err := normalizeUserPayload(raw)
	if err != nil {
		u.setErr(err.Error())
		done(err)
		return err
	}

	u.mu.Lock()
	u.list = list
	u.err = ""
	u.mu.Unlock()
	done(nil)
	return nil
}

func normalizeUserPayload(raw json.RawMessage) ([]model.User, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []model.User
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, err
		}
		return list, nil
	}
	var envelope struct {
		Items []model.User `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, err
	}
	if envelope.Items == nil {
		envelope.Items = []model.User{}
	}
	return envelope.Items, nil
}

// Get loads one account into the current slot.
func (u *Users) Get(ctx context.Context, id string) (model.User, error) {
	done := u.bus.Track(ResourceUsers, "get")

	var user model.User
	if err := u.client.Get(ctx, "/users/"+id, nil, &user); err != nil {
		u.setErr(backend.Message(err))
		done(err)
		return model.User{}, err
	}

	u.mu.Lock()
	u.current = &user
	u.err = ""
	u.mu.Unlock()
	done(nil)
	return user, nil
}

// Register creates an account through the registration endpoint and prepends
// it to the list.
func (u *Users) Register(ctx context.Context, name, email, password, role string) (model.User, error) {
	done := u.bus.Track(ResourceUsers, "create")

	payload := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	}
	var created model.User
	if err := u.client.Post(ctx, "/auth/register", payload, &created); err != nil {
		u.setErr(backend.Message(err))
		done(err)
		return model.User{}, err
	}

	u.mu.Lock()
	u.list = append([]model.User{created}, u.list...)
	u.err = ""
	u.mu.Unlock()
	done(nil)
	return created, nil
}

// Update replaces the account in both the list and the current slot.
func (u *Users) Update(ctx context.Context, id string, payload any) (model.User, error) {
	done := u.bus.Track(ResourceUsers, "update")

	var updated model.User
	if err := u.client.Put(ctx, "/users/"+id, payload, &updated); err != nil {
		u.setErr(backend.Message(err))
		done(err)
		return model.User{}, err
	}

	u.mu.Lock()
	u.current = &updated
	for i := range u.list {
		if u.list[i].ID == updated.ID {
			u.list[i] = updated
			break
		}
	}
	u.err = ""
	u.mu.Unlock()
	done(nil)
	return updated, nil
}

// Delete removes the account by id.
func (u *Users) Delete(ctx context.Context, id string) error {
	done := u.bus.Track(ResourceUsers, "delete")

	if err := u.client.Delete(ctx, "/users/"+id, nil); err != nil {
		u.setErr(backend.Message(err))
		done(err)
		return err
	}

	u.mu.Lock()
	kept := u.list[:0]
	for _, user := range u.list {
		if user.ID != id {
			kept = append(kept, user)
		}
	}
	u.list = kept
	u.err = ""
	u.mu.Unlock()
	done(nil)
	return nil
}

// Snapshot returns a copy of the cached list.
func (u *Users) Snapshot() []model.User {
	u.mu.RLock()
	defer u.mu.RUnlock()
	list := make([]model.User, len(u.list))
	copy(list, u.list)
	return list
}

// Current returns the account opened on the detail screen.
func (u *Users) Current() (model.User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	if u.current == nil {
		return model.User{}, false
	}
	return *u.current, true
}

func (u *Users) setErr(msg string) {
	u.mu.Lock()
	u.err = msg
	u.mu.Unlock()
}
