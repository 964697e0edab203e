package web

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"parceldesk.org/internal/audit"
	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/listview"
	"parceldesk.org/internal/model"
)

type parcelsView struct {
	Parcels     []model.Parcel
	Departments []model.Department
	Filters     listview.Filters
	Query       url.Values
	Sort        string
	Dir         string
	Page        int
	TotalPages  int
	Total       int
	FetchError  string
	Columns     []columnLink
	PrevURL     string
	NextURL     string
}

// columnLink is one table header: a sort link when Field is set, a plain
// label otherwise.
type columnLink struct {
	Field  string
	Label  string
	URL    string
	Active bool
	Dir    string
}

type parcelDetailView struct {
	Parcel      model.Parcel
	Departments []model.Department
}

func (c *Console) handleParcelsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		c.listParcels(w, r)
	case http.MethodPost:
		c.createParcel(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (c *Console) listParcels(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filters := listview.ParseFilters(q, time.Local)

	_ = c.departments.Fetch(r.Context())
	departments := c.departments.Snapshot()

	// Best-effort server-side filtering; the pipeline below re-applies the
	// same predicates authoritatively.
	view := parcelsView{Departments: departments, Filters: filters, Query: q}
	if err := c.parcels.Fetch(r.Context(), filters.BackendQuery()); err != nil {
		view.FetchError = c.parcels.Err()
	}

	list, _ := c.parcels.Snapshot()
	list = listview.Apply(list, filters, departments)

	view.Sort = q.Get("sort")
	view.Dir = q.Get("dir")
	if view.Dir != listview.Desc {
		view.Dir = listview.Asc
	}
	if view.Sort != "" {
		list = listview.Sort(list, view.Sort, view.Dir)
	}

	key := filters.Key()
	view.Total = len(list)
	view.TotalPages = listview.TotalPages(len(list), listview.PageSize)
	view.Page = pageFor(q, key, view.TotalPages)
	view.Parcels = listview.Paginate(list, view.Page, listview.PageSize)

	columns := []columnLink{
		{Field: listview.SortTrackingID, Label: "Tracking"},
		{Field: listview.SortDestination, Label: "Destination"},
		{Field: listview.SortWeight, Label: "Weight (kg)"},
		{Field: listview.SortValue, Label: "Value (EUR)"},
		{Field: listview.SortDepartment, Label: "Department"},
		{Label: "Insurance"},
		{Field: listview.SortCreatedAt, Label: "Created"},
	}
	for i, col := range columns {
		if col.Field == "" {
			continue
		}
		columns[i].Active = q.Get("sort") == col.Field
		columns[i].Dir = view.Dir
		columns[i].URL = sortLink(q, key, col.Field, view.Sort, view.Dir)
	}
	view.Columns = columns
	if view.Page > 1 {
		view.PrevURL = pageLink(q, key, view.Page-1)
	}
	if view.Page < view.TotalPages {
		view.NextURL = pageLink(q, key, view.Page+1)
	}

	c.render(w, "parcels.html", c.page("Parcels", "parcels", view))
}

func (c *Console) createParcel(w http.ResponseWriter, r *http.Request) {
	weight, err := strconv.ParseFloat(formValue(r, "weightKg"), 64)
	if err != nil {
		c.notifier.Show("weight must be a number", "error")
		http.Redirect(w, r, "/parcels", http.StatusSeeOther)
		return
	}
	value, err := strconv.ParseFloat(formValue(r, "valueEur"), 64)
	if err != nil {
		c.notifier.Show("value must be a number", "error")
		http.Redirect(w, r, "/parcels", http.StatusSeeOther)
		return
	}

	payload := map[string]any{
		"trackingId":  formValue(r, "trackingId"),
		"destination": formValue(r, "destination"),
		"weightKg":    weight,
		"valueEur":    value,
	}
	if dept := formValue(r, "departmentId"); dept != "" {
		payload["departmentId"] = dept
	}

	if _, err := c.parcels.Create(r.Context(), payload); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("Parcel created", "success")
	}
	http.Redirect(w, r, "/parcels", http.StatusSeeOther)
}

func (c *Console) handleParcelResource(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/parcels/")
	if path == "" {
		http.Redirect(w, r, "/parcels", http.StatusSeeOther)
		return
	}

	switch path {
	case "upload":
		c.handleUpload(w, r)
		return
	case "export":
		c.exportParcels(w, r)
		return
	case "delete-all":
		c.deleteAllParcels(w, r)
		return
	}

	id := path
	action := ""
	if i := strings.IndexByte(path, '/'); i >= 0 {
		id, action = path[:i], path[i+1:]
	}
	if id == "" {
		http.NotFound(w, r)
		return
	}

	switch action {
	case "":
		c.parcelDetail(w, r, id)
	case "approve":
		c.parcelAction(w, r, id, "approve")
	case "processed":
		c.parcelAction(w, r, id, "processed")
	case "reassign":
		c.reassignParcel(w, r, id)
	case "delete":
		c.deleteParcel(w, r, id)
	case "raw":
		c.downloadRaw(w, r, id)
	default:
		http.NotFound(w, r)
	}
}

func (c *Console) parcelDetail(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	parcel, err := c.parcels.Get(r.Context(), id)
	if err != nil {
		if backend.StatusOf(err) == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		writeError(w, r, http.StatusBadGateway, backend.Message(err))
		return
	}
	_ = c.departments.Fetch(r.Context())
	view := parcelDetailView{Parcel: parcel, Departments: c.departments.Snapshot()}
	c.render(w, "parcel_detail.html", c.page("Parcel "+parcel.TrackingID, "parcels", view))
}

func (c *Console) parcelAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var err error
	switch action {
	case "approve":
		_, err = c.parcels.ApproveInsurance(r.Context(), id)
	case "processed":
		_, err = c.parcels.MarkProcessed(r.Context(), id)
	}
	if err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("Parcel updated", "success")
	}
	redirectBack(w, r, "/parcels/"+id)
}

func (c *Console) reassignParcel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	dept := formValue(r, "departmentId")
	if dept == "" {
		c.notifier.Show("department is required", "error")
		redirectBack(w, r, "/parcels/"+id)
		return
	}
	if _, err := c.parcels.Reassign(r.Context(), id, dept); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		c.notifier.Show("Parcel reassigned", "success")
	}
	redirectBack(w, r, "/parcels/"+id)
}

func (c *Console) deleteParcel(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if err := c.parcels.Delete(r.Context(), id); err != nil {
		c.notifier.Show(backend.Message(err), "error")
		redirectBack(w, r, "/parcels/"+id)
		return
	}
	c.notifier.Show("Parcel deleted", "success")
	http.Redirect(w, r, "/parcels", http.StatusSeeOther)
}

func (c *Console) deleteAllParcels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	if !c.requireAdmin(w, r) {
		return
	}
	ctx := audit.WithRequestID(r.Context(), RequestIDFromContext(r.Context()))
	if user, ok := c.sess.User(); ok {
		ctx = audit.WithActor(ctx, user.Email)
	}
	if err := c.parcels.DeleteAll(ctx); err != nil {
		c.notifier.Show(backend.Message(err), "error")
	} else {
		_ = audit.LogEvent(ctx, "parcels.delete_all", nil)
		c.notifier.Show("All parcels deleted", "warning")
	}
	http.Redirect(w, r, "/parcels", http.StatusSeeOther)
}

func (c *Console) handleUpload(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		c.render(w, "upload.html", c.page("Upload parcels", "upload", nil))
	case http.MethodPost:
		c.uploadParcels(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (c *Console) uploadParcels(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		c.notifier.Show("choose a file to upload", "error")
		http.Redirect(w, r, "/parcels/upload", http.StatusSeeOther)
		return
	}
	defer file.Close()

	result, err := c.parcels.Upload(r.Context(), header.Filename, file)
	if err != nil {
		c.notifier.Show(backend.Message(err), "error")
		http.Redirect(w, r, "/parcels/upload", http.StatusSeeOther)
		return
	}
	c.notifier.Show(fmt.Sprintf("Created %d parcels", result.Created), "success")
	http.Redirect(w, r, "/parcels", http.StatusSeeOther)
}

func (c *Console) exportParcels(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	q := r.URL.Query()
	format := q.Get("format")
	filters := listview.ParseFilters(q, time.Local)

	bin, err := c.parcels.Export(r.Context(), format, filters.BackendQuery())
	if err != nil {
		writeError(w, r, http.StatusBadGateway, backend.Message(err))
		return
	}
	serveBinary(w, bin)
}

func (c *Console) downloadRaw(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	bin, err := c.parcels.DownloadRaw(r.Context(), id)
	if err != nil {
		writeError(w, r, http.StatusBadGateway, backend.Message(err))
		return
	}
	serveBinary(w, bin)
}

func serveBinary(w http.ResponseWriter, bin backend.Binary) {
	if bin.ContentType != "" {
		w.Header().Set("Content-Type", bin.ContentType)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if bin.Filename != "" {
		w.Header().Set("Content-Disposition", `attachment; filename="`+bin.Filename+`"`)
	}
	_, _ = w.Write(bin.Data)
}

// pageFor honors the page parameter only while the filter combination is
// unchanged (tracked via the fkey parameter carried on sort and page links);
// a changed filter set starts back at page 1. Sort links keep fkey, so
// changing a sort column does not reset the page.
func pageFor(q url.Values, key string, totalPages int) int {
	if q.Get("fkey") != key {
		return 1
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 || page > totalPages {
		return 1
	}
	return page
}

// sortLink flips the direction when the column is already active and starts
// ascending on a new column, preserving the current filters and page.
func sortLink(q url.Values, key, field, activeSort, activeDir string) string {
	out := cloneQuery(q)
	dir := listview.Asc
	if field == activeSort && activeDir == listview.Asc {
		dir = listview.Desc
	}
	out.Set("sort", field)
	out.Set("dir", dir)
	out.Set("fkey", key)
	return "/parcels?" + out.Encode()
}

func pageLink(q url.Values, key string, page int) string {
	out := cloneQuery(q)
	out.Set("page", strconv.Itoa(page))
	out.Set("fkey", key)
	return "/parcels?" + out.Encode()
}

func cloneQuery(q url.Values) url.Values {
	out := url.Values{}
	for k, vs := range q {
		for _, v := range vs {
			out.Add(k, v)
		}
	}
	return out
}

func redirectBack(w http.ResponseWriter, r *http.Request, fallback string) {
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && (u.Host == "" || u.Host == r.Host) && strings.HasPrefix(u.Path, "/") {
			http.Redirect(w, r, u.RequestURI(), http.StatusSeeOther)
			return
		}
	}
	http.Redirect(w, r, fallback, http.StatusSeeOther)
}
