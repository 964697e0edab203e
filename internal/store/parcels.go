package store

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/url"
	"sync"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/model"
)

// Parcels caches the parcel list plus pagination metadata from the backend.
type Parcels struct {
	client *backend.Client
	bus    *lifecycle.Bus

	mu   sync.RWMutex
	list []model.Parcel
	meta map[string]any
	err  string
}

// NewParcels creates an empty parcels store.
func NewParcels(client *backend.Client, bus *lifecycle.Bus) *Parcels {
	return &Parcels{client: client, bus: bus, meta: map[string]any{}}
}

// UploadResult is the backend's answer to a container XML upload.
type UploadResult struct {
	Created int            `json:"created"`
	Parcels []model.Parcel `json:"parcels"`
}

// Fetch replaces the whole list. The backend may answer with a bare array or
// an {items, meta} envelope; both normalize to (list, meta). On failure the
// list stays untouched and the error message is recorded.
func (p *Parcels) Fetch(ctx context.Context, query url.Values) error {
	done := p.bus.Track(ResourceParcels, "fetch")

	var raw json.RawMessage
	if err := p.client.Get(ctx, "/parcels", query, &raw); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return err
	}

	list, meta, err := normalizeParcelPayload(raw)
	if err != nil {
		p.setErr(err.Error())
		done(err)
		return err
	}

	p.mu.Lock()
	p.list = list
	p.meta = meta
	p.err = ""
	p.mu.Unlock()
	done(nil)
	return nil
}

func normalizeParcelPayload(raw json.RawMessage) ([]model.Parcel, map[string]any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []model.Parcel
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, nil, err
		}
		return list, map[string]any{}, nil
	}
	var envelope struct {
		Items []model.Parcel `json:"items"`
		Meta  map[string]any `json:"meta"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, nil, err
	}
	if envelope.Items == nil {
		envelope.Items = []model.Parcel{}
	}
	if envelope.Meta == nil {
		envelope.Meta = map[string]any{}
	}
	return envelope.Items, envelope.Meta, nil
}

// Create prepends the new parcel.
func (p *Parcels) Create(ctx context.Context, payload any) (model.Parcel, error) {
	done := p.bus.Track(ResourceParcels, "create")

	var created model.Parcel
	if err := p.client.Post(ctx, "/parcels", payload, &created); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return model.Parcel{}, err
	}

	p.mu.Lock()
	p.list = append([]model.Parcel{created}, p.list...)
	p.err = ""
	p.mu.Unlock()
	done(nil)
	return created, nil
}

// Update replaces the parcel in place by id.
func (p *Parcels) Update(ctx context.Context, id string, payload any) (model.Parcel, error) {
	done := p.bus.Track(ResourceParcels, "update")

	var updated model.Parcel
	if err := p.client.Put(ctx, "/parcels/"+id, payload, &updated); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return model.Parcel{}, err
	}

	p.replace(updated)
	done(nil)
	return updated, nil
}

// Upload forwards a container XML file and prepends the created parcels.
func (p *Parcels) Upload(ctx context.Context, filename string, file io.Reader) (UploadResult, error) {
	done := p.bus.Track(ResourceParcels, "upload")

	var result UploadResult
	if err := p.client.PostMultipart(ctx, "/parcels/upload", "file", filename, file, &result); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return UploadResult{}, err
	}

	if len(result.Parcels) > 0 {
		p.mu.Lock()
		p.list = append(append([]model.Parcel{}, result.Parcels...), p.list...)
		p.mu.Unlock()
	}
	done(nil)
	return result, nil
}

// ApproveInsurance marks the parcel approved and replaces it in place.
func (p *Parcels) ApproveInsurance(ctx context.Context, id string) (model.Parcel, error) {
	return p.action(ctx, "approve", "/parcels/"+id+"/approve-insurance")
}

// Reassign moves the parcel to another department and replaces it in place.
func (p *Parcels) Reassign(ctx context.Context, id, departmentID string) (model.Parcel, error) {
	done := p.bus.Track(ResourceParcels, "reassign")

	var updated model.Parcel
	body := map[string]string{"departmentId": departmentID}
	if err := p.client.Post(ctx, "/parcels/"+id+"/reassign", body, &updated); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return model.Parcel{}, err
	}

	p.replace(updated)
	done(nil)
	return updated, nil
}

// MarkProcessed flags the parcel processed and replaces it in place.
func (p *Parcels) MarkProcessed(ctx context.Context, id string) (model.Parcel, error) {
	return p.action(ctx, "markProcessed", "/parcels/"+id+"/mark-processed")
}

func (p *Parcels) action(ctx context.Context, op, path string) (model.Parcel, error) {
	done := p.bus.Track(ResourceParcels, op)

	var updated model.Parcel
	if err := p.client.Post(ctx, path, nil, &updated); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return model.Parcel{}, err
	}

	p.replace(updated)
	done(nil)
	return updated, nil
}

// Get fetches one parcel without touching the cached list.
func (p *Parcels) Get(ctx context.Context, id string) (model.Parcel, error) {
	done := p.bus.Track(ResourceParcels, "getById")

	var parcel model.Parcel
	if err := p.client.Get(ctx, "/parcels/"+id, nil, &parcel); err != nil {
		done(err)
		return model.Parcel{}, err
	}
	done(nil)
	return parcel, nil
}

// Delete removes the parcel from the list, resolving the deleted id from the
// response body when present, else from the call argument.
func (p *Parcels) Delete(ctx context.Context, id string) error {
	done := p.bus.Track(ResourceParcels, "delete")

	var resp struct {
		DeletedID string `json:"deletedId"`
	}
	if err := p.client.Delete(ctx, "/parcels/"+id, &resp); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return err
	}

	deleted := resp.DeletedID
	if deleted == "" {
		deleted = id
	}
	p.mu.Lock()
	kept := p.list[:0]
	for _, parcel := range p.list {
		if parcel.ID != deleted {
			kept = append(kept, parcel)
		}
	}
	p.list = kept
	p.err = ""
	p.mu.Unlock()
	done(nil)
	return nil
}

// DeleteAll clears the whole list regardless of the response payload.
func (p *Parcels) DeleteAll(ctx context.Context) error {
	done := p.bus.Track(ResourceParcels, "deleteAll")

	if err := p.client.Delete(ctx, "/parcels", nil); err != nil {
		p.setErr(backend.Message(err))
		done(err)
		return err
	}

	p.mu.Lock()
	p.list = []model.Parcel{}
	p.err = ""
	p.mu.Unlock()
	done(nil)
	return nil
}

// Export downloads the filtered parcel list in the requested format.
func (p *Parcels) Export(ctx context.Context, format string, query url.Values) (backend.Binary, error) {
	done := p.bus.Track(ResourceParcels, "export")

	q := url.Values{}
	for key, vals := range query {
		q[key] = vals
	}
	if format == "" {
		format = "csv"
	}
	q.Set("format", format)

	bin, err := p.client.GetBinary(ctx, "/parcels/export", q)
	done(err)
	return bin, err
}

// DownloadRaw fetches the original container XML for one parcel.
func (p *Parcels) DownloadRaw(ctx context.Context, id string) (backend.Binary, error) {
	done := p.bus.Track(ResourceParcels, "downloadRaw")
	bin, err := p.client.GetBinary(ctx, "/parcels/"+id+"/raw", nil)
	done(err)
	return bin, err
}

// Snapshot returns a copy of the cached list and metadata.
func (p *Parcels) Snapshot() ([]model.Parcel, map[string]any) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	list := make([]model.Parcel, len(p.list))
	copy(list, p.list)
	meta := make(map[string]any, len(p.meta))
	for k, v := range p.meta {
		meta[k] = v
	}
	return list, meta
}

// Err returns the last recorded operation error message.
func (p *Parcels) Err() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.err
}

func (p *Parcels) replace(updated model.Parcel) {
	p.mu.Lock()
	for i := range p.list {
		if p.list[i].ID == updated.ID {
			p.list[i] = updated
			break
		}
	}
	p.err = ""
	p.mu.Unlock()
}

func (p *Parcels) setErr(msg string) {
	p.mu.Lock()
	p.err = msg
	p.mu.Unlock()
}
