package web

import (
	"encoding/json"
	"net/http"

	"parceldesk.org/internal/audit"
	"parceldesk.org/internal/backend"
)

type adminView struct {
	SeedResult string
	Metrics    string
}

func (c *Console) handleAdminPage(w http.ResponseWriter, r *http.Request) {
	if !c.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	c.render(w, "admin.html", c.page("Admin", "admin", adminView{}))
}

func (c *Console) handleAdminSeed(w http.ResponseWriter, r *http.Request) {
	if !c.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	if user, ok := c.sess.User(); ok {
		ctx = audit.WithActor(ctx, user.Email)
	}

	result, err := c.admin.Seed(ctx, true)
	if err != nil {
		c.notifier.Show(backend.Message(err), "error")
		http.Redirect(w, r, "/admin", http.StatusSeeOther)
		return
	}
	_ = audit.LogEvent(ctx, "admin.seed", map[string]any{"create_admin": true})
	c.notifier.Show("Seed completed", "success")
	c.render(w, "admin.html", c.page("Admin", "admin", adminView{SeedResult: pretty(result)}))
}

func (c *Console) handleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	if !c.requireAdmin(w, r) {
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw, err := c.admin.Metrics(r.Context())
	if err != nil {
		c.notifier.Show(backend.Message(err), "error")
		c.render(w, "admin.html", c.page("Admin", "admin", adminView{}))
		return
	}
	c.render(w, "admin.html", c.page("Admin", "admin", adminView{Metrics: pretty(raw)}))
}

func pretty(raw json.RawMessage) string {
	var buf any
	if err := json.Unmarshal(raw, &buf); err != nil {
		return string(raw)
	}
	out, err := json.MarshalIndent(buf, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(out)
}
