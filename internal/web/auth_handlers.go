package web

import (
	"net/http"

	"parceldesk.org/internal/audit"
	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/model"
)

type loginView struct {
	Error      string
	Registered bool
}

func (c *Console) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		view := loginView{Registered: r.URL.Query().Get("registered") == "1"}
		if _, msg := c.sess.Status(); msg != "" {
			view.Error = msg
		}
		c.render(w, "login.html", c.page("Sign in", "login", view))
	case http.MethodPost:
		c.login(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (c *Console) login(w http.ResponseWriter, r *http.Request) {
	email := formValue(r, "email")
	password := r.FormValue("password")
	if email == "" || password == "" {
		c.render(w, "login.html", c.page("Sign in", "login", loginView{Error: "email and password are required"}))
		return
	}

	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	if err := c.auth.Login(ctx, email, password); err != nil {
		c.render(w, "login.html", c.page("Sign in", "login", loginView{Error: backend.Message(err)}))
		return
	}

	user, _ := c.sess.User()
	if err := c.issueCookie(w, user.ID, user.Email, user.Role); err != nil {
		writeError(w, r, http.StatusInternalServerError, "could not establish session")
		return
	}
	_ = audit.LogEvent(audit.WithActor(ctx, user.Email), "auth.login", map[string]any{"user_id": user.ID})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (c *Console) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	name := formValue(r, "name")
	email := formValue(r, "email")
	password := r.FormValue("password")
	if name == "" || email == "" || password == "" {
		c.render(w, "login.html", c.page("Sign in", "login", loginView{Error: "name, email and password are required"}))
		return
	}

	if _, err := c.users.Register(r.Context(), name, email, password, model.RoleOperator); err != nil {
		c.render(w, "login.html", c.page("Sign in", "login", loginView{Error: backend.Message(err)}))
		return
	}
	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

func (c *Console) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	if user, ok := c.sess.User(); ok {
		ctx = audit.WithActor(ctx, user.Email)
	}
	_ = c.auth.Logout(r.Context())
	c.clearCookie(w)
	_ = audit.LogEvent(ctx, "auth.logout", nil)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (c *Console) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	// Refresh the profile from the backend; any rejection tears the
	// session down and the guard sends the next navigation to /login.
	if err := c.auth.Refresh(r.Context()); err != nil {
		c.clearCookie(w)
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, _ := c.sess.User()
	c.render(w, "profile.html", c.page("Profile", "profile", user))
}
