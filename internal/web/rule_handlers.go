package web

import (
	"net/http"
	"strings"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/model"
	"parceldesk.org/internal/weightrules"
)

type ruleRow struct {
	Department model.Department
	Max        string
}

type rulesView struct {
	Rows       []ruleRow
	Leftovers  map[string]string
	FetchError string
}

func (c *Console) handleRulesPage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	_ = c.departments.Fetch(r.Context())
	view := rulesView{}
	if err := c.rules.Fetch(r.Context()); err != nil {
		view.FetchError = backend.Message(err)
	}

	departments := c.departments.Snapshot()
	working := weightrules.Reconcile(departments, c.rules.Snapshot())

	known := make(map[string]bool, len(departments))
	for _, d := range departments {
		known[d.ID] = true
		view.Rows = append(view.Rows, ruleRow{Department: d, Max: working[d.ID]})
	}
	// References that resolved to no catalog department stay visible so an
	// operator can see stale bucket entries.
	view.Leftovers = map[string]string{}
	for key, max := range working {
		if !known[key] {
			view.Leftovers[key] = max
		}
	}

	c.render(w, "rules.html", c.page("Weight rules", "rules", view))
}

func (c *Console) handleRuleResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !c.requireAdmin(w, r) {
		return
	}
	action := strings.TrimPrefix(r.URL.Path, "/rules/")
	switch action {
	case "save":
		c.saveRule(w, r)
	case "save-all":
		c.saveAllRules(w, r)
	case "delete":
		c.deleteRuleBucket(w, r)
	default:
		http.NotFound(w, r)
	}
}

func findDepartment(departments []model.Department, id string) (model.Department, bool) {
	for _, d := range departments {
		if d.ID == id {
			return d, true
		}
	}
	return model.Department{}, false
}

// saveRule persists one department's threshold: patch the aggregate rule's
// bucket when an aggregate exists, otherwise create one.
func (c *Console) saveRule(w http.ResponseWriter, r *http.Request) {
	deptID := formValue(r, "departmentId")
	dept, ok := findDepartment(c.departments.Snapshot(), deptID)
	if !ok {
		c.notifier.Show("unknown department", "error")
		http.Redirect(w, r, "/rules", http.StatusSeeOther)
		return
	}

	max, err := weightrules.ParseMax(formValue(r, "maxKg"))
	if err != nil {
		c.notifier.Show("max weight must be a number", "error")
		http.Redirect(w, r, "/rules", http.StatusSeeOther)
		return
	}

	if aggregate, found := weightrules.FindAggregate(c.rules.Snapshot()); found {
		_, err = c.rules.Update(r.Context(), aggregate.ID, weightrules.PatchBucket(aggregate, dept, max))
	} else {
		buckets := []model.Bucket{{DepartmentID: dept.ID, MaxKg: max}}
		_, err = c.rules.Create(r.Context(), weightrules.NewAggregatePayload(buckets))
	}
	if err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("Rule saved for "+dept.Name, "success")
		_ = c.rules.Fetch(r.Context())
	}
	http.Redirect(w, r, "/rules", http.StatusSeeOther)
}

// saveAllRules rebuilds the aggregate's bucket list from the whole form.
func (c *Console) saveAllRules(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		c.notifier.Show("malformed form", "error")
		http.Redirect(w, r, "/rules", http.StatusSeeOther)
		return
	}

	departments := c.departments.Snapshot()
	working := make(map[string]string, len(departments))
	for _, d := range departments {
		working[d.ID] = strings.TrimSpace(r.PostForm.Get("max_" + d.ID))
	}

	buckets, err := weightrules.RebuildBuckets(departments, working)
	if err != nil {
		c.notifier.Show("max weight must be a number", "error")
		http.Redirect(w, r, "/rules", http.StatusSeeOther)
		return
	}

	if aggregate, found := weightrules.FindAggregate(c.rules.Snapshot()); found {
		_, err = c.rules.Update(r.Context(), aggregate.ID, weightrules.RebuildPayload(aggregate, buckets))
	} else {
		_, err = c.rules.Create(r.Context(), weightrules.NewAggregatePayload(buckets))
	}
	if err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("All rules saved", "success")
		_ = c.rules.Fetch(r.Context())
	}
	http.Redirect(w, r, "/rules", http.StatusSeeOther)
}

// deleteRuleBucket clears one department's threshold: drop its bucket from
// the aggregate, or delete the matching legacy rule when no aggregate holds
// it.
func (c *Console) deleteRuleBucket(w http.ResponseWriter, r *http.Request) {
	deptID := formValue(r, "departmentId")
	dept, ok := findDepartment(c.departments.Snapshot(), deptID)
	if !ok {
		c.notifier.Show("unknown department", "error")
		http.Redirect(w, r, "/rules", http.StatusSeeOther)
		return
	}

	rules := c.rules.Snapshot()
	var err error
	matched := false
	if aggregate, found := weightrules.FindAggregate(rules); found {
		_, err = c.rules.Update(r.Context(), aggregate.ID, weightrules.RemoveBucket(aggregate, dept))
		matched = true
	} else if legacy, found := weightrules.FindLegacyRule(rules, dept); found {
		err = c.rules.Delete(r.Context(), legacy.ID)
		matched = true
	}
	switch {
	case err != nil:
		c.notifier.Show(backend.Message(err), "error")
	case !matched:
		c.notifier.Show("No rule to delete for "+dept.Name, "warning")
	default:
		c.notifier.Show("Rule removed for "+dept.Name, "success")
		_ = c.rules.Fetch(r.Context())
	}
	http.Redirect(w, r, "/rules", http.StatusSeeOther)
}
