// Package web is the browser surface of the console: route registration,
// the session guard, and the server-rendered pages. All backend calls go
// through the resource stores; handlers only parse forms, invoke store
// operations and render templates.
package web

import (
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"

	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/model"
	"parceldesk.org/internal/notify"
	"parceldesk.org/internal/obs"
	"parceldesk.org/internal/session"
	"parceldesk.org/internal/store"
)

//go:embed templates/*.html
var templateFS embed.FS

// Console is the HTTP layer.
type Console struct {
	mux          *http.ServeMux
	templates    *template.Template
	cookieSecret []byte
	version      string

	sess        *session.Service
	auth        *store.Auth
	parcels     *store.Parcels
	departments *store.Departments
	rules       *store.Rules
	users       *store.Users
	admin       *store.Admin
	notifier    *notify.Notifier
	counter     *lifecycle.Counter
}

// Deps carries everything the console serves from.
type Deps struct {
	Session     *session.Service
	Auth        *store.Auth
	Parcels     *store.Parcels
	Departments *store.Departments
	Rules       *store.Rules
	Users       *store.Users
	Admin       *store.Admin
	Notifier    *notify.Notifier
	Counter     *lifecycle.Counter
}

func New(deps Deps, cookieSecret []byte, version string) *Console {
	c := &Console{
		mux:          http.NewServeMux(),
		templates:    template.Must(template.ParseFS(templateFS, "templates/*.html")),
		cookieSecret: cookieSecret,
		version:      version,
		sess:         deps.Session,
		auth:         deps.Auth,
		parcels:      deps.Parcels,
		departments:  deps.Departments,
		rules:        deps.Rules,
		users:        deps.Users,
		admin:        deps.Admin,
		notifier:     deps.Notifier,
		counter:      deps.Counter,
	}

	c.mux.HandleFunc("/healthz", c.healthz)
	c.mux.Handle("/metrics", obs.Handler())

	c.mux.HandleFunc("/login", c.handleLogin)
	c.mux.HandleFunc("/register", c.handleRegister)
	c.mux.HandleFunc("/logout", c.handleLogout)
	c.mux.HandleFunc("/profile", c.handleProfile)

	c.mux.HandleFunc("/parcels", c.handleParcelsCollection)
	c.mux.HandleFunc("/parcels/", c.handleParcelResource)

	c.mux.HandleFunc("/departments", c.handleDepartmentsCollection)
	c.mux.HandleFunc("/departments/", c.handleDepartmentResource)

	c.mux.HandleFunc("/rules", c.handleRulesPage)
	c.mux.HandleFunc("/rules/", c.handleRuleResource)

	c.mux.HandleFunc("/users", c.handleUsersCollection)
	c.mux.HandleFunc("/users/", c.handleUserResource)

	c.mux.HandleFunc("/admin", c.handleAdminPage)
	c.mux.HandleFunc("/admin/seed", c.handleAdminSeed)
	c.mux.HandleFunc("/admin/metrics", c.handleAdminMetrics)

	c.mux.HandleFunc("/", c.handleDashboard)

	return c
}

// Handler wires the full middleware chain around the mux.
func (c *Console) Handler() http.Handler {
	var h http.Handler = c.mux
	h = c.withGuard(h)
	h = MaxBodyBytes(h, 16<<20)
	h = RateLimit(h, 40, 20)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (c *Console) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "parceldesk-console",
		"version": c.version,
	})
}

// pageData is what every template receives.
type pageData struct {
	Title         string
	Active        string
	User          model.User
	Authenticated bool
	IsAdmin       bool
	Notification  notify.Notification
	Loading       int
	Data          any
}

func (c *Console) page(title, active string, data any) pageData {
	pd := pageData{
		Title:        title,
		Active:       active,
		Notification: c.notifier.Current(),
		Data:         data,
	}
	if c.counter != nil {
		pd.Loading = c.counter.InFlight()
	}
	if user, ok := c.sess.User(); ok {
		pd.User = user
		pd.Authenticated = true
		pd.IsAdmin = user.Role == model.RoleAdmin
	}
	return pd
}

func (c *Console) render(w http.ResponseWriter, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := c.templates.ExecuteTemplate(w, name, data); err != nil {
		obs.LogRequest(map[string]any{
			"type":     "render_error",
			"template": name,
			"error":    err.Error(),
		})
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func formValue(r *http.Request, key string) string {
	return strings.TrimSpace(r.FormValue(key))
}
