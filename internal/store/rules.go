package store

import (
	"context"
	"sync"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/model"
)

// Rules is a plain CRUD cache of routing rules. Bucket reconciliation lives
// in the weightrules package, not here.
type Rules struct {
	client *backend.Client
	bus    *lifecycle.Bus

	mu   sync.RWMutex
	list []model.Rule
	err  string
}

// NewRules creates an empty rules store.
func NewRules(client *backend.Client, bus *lifecycle.Bus) *Rules {
	return &Rules{client: client, bus: bus}
}

// Fetch replaces the list.
func (r *Rules) Fetch(ctx context.Context) error {
	done := r.bus.Track(ResourceRules, "fetch")

	var list []model.Rule
	if err := r.client.Get(ctx, "/rules", nil, &list); err != nil {
		r.setErr(backend.Message(err))
		done(err)
		return err
	}

	r.mu.Lock()
	r.list = list
	r.err = ""
	r.mu.Unlock()
	done(nil)
	return nil
}

// Create prepends the new rule.
func (r *Rules) Create(ctx context.Context, payload any) (model.Rule, error) {
	done := r.bus.Track(ResourceRules, "create")

	var created model.Rule
	if err := r.client.Post(ctx, "/rules", payload, &created); err != nil {
		r.setErr(backend.Message(err))
		done(err)
		return model.Rule{}, err
	}

	r.mu.Lock()
	r.list = append([]model.Rule{created}, r.list...)
	r.err = ""
	r.mu.Unlock()
	done(nil)
	return created, nil
}

// Update writes the rule through to the backend. Callers refetch afterwards;
// the cache keeps its previous contents until then.
func (r *Rules) Update(ctx context.Context, id string, payload any) (model.Rule, error) {
	done := r.bus.Track(ResourceRules, "update")

	var updated model.Rule
	if err := r.client.Put(ctx, "/rules/"+id, payload, &updated); err != nil {
		r.setErr(backend.Message(err))
		done(err)
		return model.Rule{}, err
	}
	done(nil)
	return updated, nil
}

// Delete removes the rule by id.
func (r *Rules) Delete(ctx context.Context, id string) error {
	done := r.bus.Track(ResourceRules, "delete")

	if err := r.client.Delete(ctx, "/rules/"+id, nil); err != nil {
		r.setErr(backend.Message(err))
		done(err)
		return err
	}

	r.mu.Lock()
	kept := r.list[:0]
	for _, rule := range r.list {
		if rule.ID != id {
			kept = append(kept, rule)
		}
	}
	r.list = kept
	r.err = ""
	r.mu.Unlock()
	done(nil)
	return nil
}

// Snapshot returns a copy of the cached list.
func (r *Rules) Snapshot() []model.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	list := make([]model.Rule, len(r.list))
	copy(list, r.list)
	return list
}

func (r *Rules) setErr(msg string) {
	r.mu.Lock()
	r.err = msg
	r.mu.Unlock()
}
