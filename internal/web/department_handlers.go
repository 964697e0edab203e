package web

import (
	"net/http"
	"strings"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/model"
)

type departmentsView struct {
	Departments []model.Department
}

func (c *Console) handleDepartmentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		// Fetch failure yields an empty catalog, the page still renders.
		_ = c.departments.Fetch(r.Context())
		view := departmentsView{Departments: c.departments.Snapshot()}
		c.render(w, "departments.html", c.page("Departments", "departments", view))
	case http.MethodPost:
		c.createDepartment(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (c *Console) createDepartment(w http.ResponseWriter, r *http.Request) {
	name := formValue(r, "name")
	if name == "" {
		c.notifier.Show("department name is required", "error")
		http.Redirect(w, r, "/departments", http.StatusSeeOther)
		return
	}
	payload := map[string]any{"name": name}
	if desc := formValue(r, "description"); desc != "" {
		payload["description"] = desc
	}
	if _, err := c.departments.Create(r.Context(), payload); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("Department created", "success")
	}
	http.Redirect(w, r, "/departments", http.StatusSeeOther)
}

func (c *Console) handleDepartmentResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/departments/")
	id, action, _ := strings.Cut(path, "/")
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "update":
		payload := map[string]any{
			"name":        formValue(r, "name"),
			"description": formValue(r, "description"),
		}
		if _, err := c.departments.Update(r.Context(), id, payload); err != nil {
			c.notifier.Show(backend.Message(err), "error")
		} else {
			c.notifier.Show("Department updated", "success")
		}
	case "delete":
		if err := c.departments.Delete(r.Context(), id); err != nil {
			c.notifier.Show(backend.Message(err), "error")
		} else {
			c.notifier.Show("Department deleted", "success")
		}
	default:
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, "/departments", http.StatusSeeOther)
}
