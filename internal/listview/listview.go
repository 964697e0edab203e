// Package listview implements the parcels list pipeline: filters parsed from
// the URL, an authoritative client-side re-filter over the cached list, a
// stable single-column sort and fixed-size pagination. Everything here is a
// pure function of its inputs.
package listview

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"parceldesk.org/internal/model"
	"parceldesk.org/internal/weightrules"
)

// PageSize is fixed for the parcels table.
const PageSize = 20

// Sortable columns.
const (
	SortTrackingID  = "trackingId"
	SortDestination = "destination"
	SortDepartment  = "assignedDepartment"
	SortWeight      = "weightKg"
	SortValue       = "valueEur"
	SortCreatedAt   = "createdAt"
)

// Sort directions.
const (
	Asc  = "asc"
	Desc = "desc"
)

// dateLayout is the browser date-input format.
const dateLayout = "2006-01-02"

// Filters is the active predicate set. All predicates combine; zero fields
// are inactive.
type Filters struct {
	Query      string
	Department string
	Insurance  string
	// Assigned filters only on the literal values "true" and "false"; any
	// other present value means no filter.
	Assigned string
	Approval string
	From     time.Time
	To       time.Time
	Specific time.Time
}

// ParseFilters reads the predicate set from URL query parameters. Dates are
// interpreted in the given location (nil means local time).
func ParseFilters(values url.Values, loc *time.Location) Filters {
	if loc == nil {
		loc = time.Local
	}
	f := Filters{
		Query:      values.Get("q"),
		Department: values.Get("dept"),
		Insurance:  values.Get("insurance"),
		Assigned:   values.Get("assigned"),
		Approval:   values.Get("approval"),
	}
	f.From = parseDate(values.Get("from"), loc)
	f.To = parseDate(values.Get("to"), loc)
	f.Specific = parseDate(values.Get("specific"), loc)
	// Specific-date selection wins over an open range; the reverse is not
	// enforced, matching the screen behavior.
	if !f.Specific.IsZero() {
		f.From = time.Time{}
		f.To = time.Time{}
	}
	return f
}

func parseDate(value string, loc *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(dateLayout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// IsZero reports whether no predicate is active.
func (f Filters) IsZero() bool {
	return f.Query == "" && f.Department == "" && f.Insurance == "" &&
		f.Assigned == "" && (f.Approval == "" || f.Approval == "all") &&
		f.From.IsZero() && f.To.IsZero() && f.Specific.IsZero()
}

// Key is a canonical form of the filter set, used to reset pagination when
// filters (and only filters) change.
func (f Filters) Key() string {
	parts := []string{
		f.Query, f.Department, f.Insurance, f.Assigned, f.Approval,
		stamp(f.From), stamp(f.To), stamp(f.Specific),
	}
	return strings.Join(parts, "|")
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(dateLayout)
}

// BackendQuery renders the filters as the best-effort server query. The
// server may ignore any of them; Apply re-filters authoritatively.
func (f Filters) BackendQuery() url.Values {
	q := url.Values{}
	if f.Department != "" {
		q.Set("departmentId", f.Department)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Insurance != "" {
		q.Set("insurance", f.Insurance)
	}
	if f.Assigned != "" {
		q.Set("assigned", f.Assigned)
	}
	if !f.From.IsZero() {
		q.Set("from", f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		q.Set("to", f.To.Format(dateLayout))
	}
	if !f.Specific.IsZero() {
		q.Set("specific", f.Specific.Format(dateLayout))
	}
	return q
}

// Apply filters the list. The department predicate resolves both sides
// through the shared department-key resolver, so a filter by id matches
// parcels assigned by name and vice versa.
func Apply(list []model.Parcel, f Filters, departments []model.Department) []model.Parcel {
	out := make([]model.Parcel, 0, len(list))

	deptKey := ""
	if f.Department != "" {
		deptKey, _ = weightrules.ResolveKey(f.Department, departments)
	}

	for _, p := range list {
		if !matches(p, f, deptKey, departments) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func matches(p model.Parcel, f Filters, deptKey string, departments []model.Department) bool {
	if deptKey != "" {
		if p.AssignedDepartment.IsZero() {
			return false
		}
		key, _ := weightrules.ResolveRef(p.AssignedDepartment, departments)
		if key != deptKey {
			return false
		}
	}
	if f.Insurance != "" && p.InsuranceApproval.Status != f.Insurance {
		return false
	}
	switch f.Assigned {
	case "true":
		if p.AssignedDepartment.IsZero() {
			return false
		}
	case "false":
		if !p.AssignedDepartment.IsZero() {
			return false
		}
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(p.TrackingID), q) &&
			!strings.Contains(strings.ToLower(p.Destination), q) {
			return false
		}
	}
	switch f.Approval {
	case "pending":
		if p.InsuranceApproval.Status != model.InsurancePending {
			return false
		}
	case "unassigned":
		if !p.AssignedDepartment.IsZero() {
			return false
		}
	}

	when := p.EffectiveDate()
	if !f.From.IsZero() && when.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && when.After(f.To) {
		return false
	}
	if !f.Specific.IsZero() {
		start := time.Date(f.Specific.Year(), f.Specific.Month(), f.Specific.Day(), 0, 0, 0, 0, f.Specific.Location())
		end := start.Add(24*time.Hour - time.Millisecond)
		if when.Before(start) || when.After(end) {
			return false
		}
	}
	return true
}

// Sort orders the list by one column. String columns compare with the
// collator, numeric columns numerically, the date column falls back to
// updatedAt when createdAt is absent. The sort is stable; an unknown field
// leaves the order unchanged.
func Sort(list []model.Parcel, field, dir string) []model.Parcel {
	out := make([]model.Parcel, len(list))
	copy(out, list)

	col := collate.New(language.Und, collate.IgnoreCase)
	mul := 1
	if dir == Desc {
		mul = -1
	}

	less := func(a, b model.Parcel) int {
		switch field {
		case SortTrackingID:
			return col.CompareString(a.TrackingID, b.TrackingID)
		case SortDestination:
			return col.CompareString(a.Destination, b.Destination)
		case SortDepartment:
			return col.CompareString(a.AssignedDepartment.DisplayName(), b.AssignedDepartment.DisplayName())
		case SortWeight:
			return compareFloat(a.WeightKg, b.WeightKg)
		case SortValue:
			return compareFloat(a.ValueEur, b.ValueEur)
		case SortCreatedAt:
			return a.EffectiveDate().Compare(b.EffectiveDate())
		default:
			return 0
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return less(out[i], out[j])*mul < 0
	})
	return out
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Paginate returns the 1-indexed page of the given size.
func Paginate(list []model.Parcel, page, pageSize int) []model.Parcel {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * pageSize
	if start >= len(list) {
		return []model.Parcel{}
	}
	end := start + pageSize
	if end > len(list) {
		end = len(list)
	}
	return list[start:end]
}

// TotalPages is at least 1 even for an empty list.
func TotalPages(total, pageSize int) int {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	pages := (total + pageSize - 1) / pageSize
	if pages < 1 {
		return 1
	}
	return pages
}
