package web

import (
	"net/http"
	"strings"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/model"
)

type usersView struct {
	Users      []model.User
	Roles      []string
	FetchError string
}

func (c *Console) handleUsersCollection(w http.ResponseWriter, r *http.Request) {
	if !c.requireAdmin(w, r) {
		return
	}
	switch r.Method {
	case http.MethodGet:
		view := usersView{Roles: []string{model.RoleAdmin, model.RoleOperator, model.RoleInsurance}}
		if err := c.users.Fetch(r.Context(), r.URL.Query()); err != nil {
			view.FetchError = backend.Message(err)
		}
		view.Users = c.users.Snapshot()
		c.render(w, "users.html", c.page("Users", "users", view))
	case http.MethodPost:
		c.createUser(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (c *Console) createUser(w http.ResponseWriter, r *http.Request) {
	name := formValue(r, "name")
	email := formValue(r, "email")
	password := r.FormValue("password")
	role := formValue(r, "role")
	if role == "" {
		role = model.RoleOperator
	}
	if name == "" || email == "" || password == "" {
		c.notifier.Show("name, email and password are required", "error")
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}
	if _, err := c.users.Register(r.Context(), name, email, password, role); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("User created", "success")
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

func (c *Console) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if !c.requireAdmin(w, r) {
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/users/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "":
		c.userDetail(w, r, id)
	case "update":
		c.updateUser(w, r, id)
	case "delete":
		c.deleteUser(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (c *Console) userDetail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	user, err := c.users.Get(r.Context(), id)
	if err != nil {
		if backend.StatusOf(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, http.StatusBadGateway, backend.Message(err))
		return
	}
	view := usersView{Users: []model.User{user}, Roles: []string{model.RoleAdmin, model.RoleOperator, model.RoleInsurance}}
	c.render(w, "user_detail.html", c.page(user.Name, "users", view))
}

func (c *Console) updateUser(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	payload := map[string]any{}
	if name := formValue(r, "name"); name != "" {
		payload["name"] = name
	}
	if email := formValue(r, "email"); email != "" {
		payload["email"] = email
	}
	if role := formValue(r, "role"); role != "" {
		payload["role"] = role
	}
	if _, err := c.users.Update(r.Context(), id, payload); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("User updated", "success")
	}
	http.Redirect(w, r, "/users/"+id, http.StatusSeeOther)
}

func (c *Console) deleteUser(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := c.users.Delete(r.Context(), id); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("User deleted", "success")
	}
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}
