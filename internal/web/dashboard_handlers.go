package web

import (
	"net/http"
	"time"

	"parceldesk.org/internal/dashboard"
)

type dashboardView struct {
	Totals       dashboard.Totals
	Distribution []dashboard.Slice
	Series       []dashboard.Point
	FetchError   string
}

func (c *Console) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	// Department fetch failure yields an empty catalog, never an error.
	_ = c.departments.Fetch(r.Context())
	view := dashboardView{}
	if err := c.parcels.Fetch(r.Context(), nil); err != nil {
		view.FetchError = c.parcels.Err()
	}

	parcels, _ := c.parcels.Snapshot()
	departments := c.departments.Snapshot()
	view.Totals = dashboard.ComputeTotals(parcels, departments)
	view.Distribution = dashboard.Distribution(parcels, departments)
	view.Series = dashboard.CreatedSeries(parcels, time.Now())

	c.render(w, "dashboard.html", c.page("Dashboard", "dashboard", view))
}
