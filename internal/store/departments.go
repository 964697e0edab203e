package store

import (
	"context"
	"sync"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/model"
)

// Departments caches the department list.
type Departments struct {
	client *backend.Client
	bus    *lifecycle.Bus

	mu   sync.RWMutex
	list []model.Department
	err  string
}

// NewDepartments creates an empty departments store.
func NewDepartments(client *backend.Client, bus *lifecycle.Bus) *Departments {
	return &Departments{client: client, bus: bus}
}

// Fetch replaces the list. A failed fetch yields an empty list rather than an
// error state: every screen can render without departments.
func (d *Departments) Fetch(ctx context.Context) error {
	done := d.bus.Track(ResourceDepartments, "fetch")

	var list []model.Department
	if err := d.client.Get(ctx, "/departments", nil, &list); err != nil {
		d.mu.Lock()
		d.list = []model.Department{}
		d.mu.Unlock()
		done(err)
		return nil
	}

	d.mu.Lock()
	d.list = list
	d.err = ""
	d.mu.Unlock()
	done(nil)
	return nil
}

// Create prepends the new department.
func (d *Departments) Create(ctx context.Context, payload any) (model.Department, error) {
	done := d.bus.Track(ResourceDepartments, "create")

	var created model.Department
	if err := d.client.Post(ctx, "/departments", payload, &created); err != nil {
		d.setErr(backend.Message(err))
		done(err)
		return model.Department{}, err
	}

	d.mu.Lock()
	d.list = append([]model.Department{created}, d.list...)
	d.err = ""
	d.mu.Unlock()
	done(nil)
	return created, nil
}

// Update replaces the department in place by id.
func (d *Departments) Update(ctx context.Context, id string, payload any) (model.Department, error) {
	done := d.bus.Track(ResourceDepartments, "update")

	var updated model.Department
	if err := d.client.Put(ctx, "/departments/"+id, payload, &updated); err != nil {
		d.setErr(backend.Message(err))
		done(err)
		return model.Department{}, err
	}

	d.mu.Lock()
	for i := range d.list {
		if d.list[i].ID == updated.ID {
			d.list[i] = updated
			break
		}
	}
	d.err = ""
	d.mu.Unlock()
	done(nil)
	return updated, nil
}

// Delete removes the department by id.
func (d *Departments) Delete(ctx context.Context, id string) error {
	done := d.bus.Track(ResourceDepartments, "delete")

	if err := d.client.Delete(ctx, "/departments/"+id, nil); err != nil {
		d.setErr(backend.Message(err))
		done(err)
		return err
	}

	d.mu.Lock()
	kept := d.list[:0]
	for _, dept := range d.list {
		if dept.ID != id {
			kept = append(kept, dept)
		}
	}
	d.list = kept
	d.err = ""
	d.mu.Unlock()
	done(nil)
	return nil
}

// Snapshot returns a copy of the cached list.
func (d *Departments) Snapshot() []model.Department {
	d.mu.RLock()
	defer d.mu.RUnlock()
	list := make([]model.Department, len(d.list))
	copy(list, d.list)
	return list
}

func (d *Departments) setErr(msg string) {
	d.mu.Lock()
	d.err = msg
	d.mu.Unlock()
}
