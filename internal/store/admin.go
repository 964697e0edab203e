package store

import (
	"context"
	"encoding/json"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
)

// Admin wraps the backend maintenance endpoints.
type Admin struct {
	client *backend.Client
	bus    *lifecycle.Bus
}

// NewAdmin wires the admin operations.
func NewAdmin(client *backend.Client, bus *lifecycle.Bus) *Admin {
	return &Admin{client: client, bus: bus}
}

// Seed triggers backend data seeding and returns the raw response for
// display.
func (a *Admin) Seed(ctx context.Context, createAdmin bool) (json.RawMessage, error) {
	done := a.bus.Track(ResourceAdmin, "seed")

	var out json.RawMessage
	body := map[string]bool{"createAdmin": createAdmin}
	if err := a.client.Post(ctx, "/admin/seed", body, &out); err != nil {
		done(err)
		return nil, err
	}
	done(nil)
	return out, nil
}

// Metrics fetches the backend's metrics document verbatim.
func (a *Admin) Metrics(ctx context.Context) (json.RawMessage, error) {
	done := a.bus.Track(ResourceAdmin, "metrics")

	var out json.RawMessage
	if err := a.client.Get(ctx, "/admin/metrics", nil, &out); err != nil {
		done(err)
		return nil, err
	}
	done(nil)
	return out, nil
}
