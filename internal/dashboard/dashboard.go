// Package dashboard derives the overview figures from the cached parcel and
// department lists. All computations are pure so the page can rebuild them
// on every render.
package dashboard

import (
	"sort"
	"time"

	"parceldesk.org/internal/model"
	"parceldesk.org/internal/weightrules"
)

// SeriesDays is the length of the created-per-day chart.
const SeriesDays = 7

// Totals are the headline counters.
type Totals struct {
	Parcels          int
	PendingInsurance int
	Unassigned       int
	Departments      int
}

// Slice is one department's share of the parcel list. Department references
// that resolve to no known department keep their raw label.
type Slice struct {
	Key   string
	Label string
	Count int
	Known bool
}

// Point is one day of the created series.
type Point struct {
	Day   time.Time
	Count int
}

// ComputeTotals counts the headline figures.
func ComputeTotals(parcels []model.Parcel, departments []model.Department) Totals {
	t := Totals{Parcels: len(parcels), Departments: len(departments)}
	for _, p := range parcels {
		if p.InsuranceApproval.Status == model.InsurancePending {
			t.PendingInsurance++
		}
		if p.AssignedDepartment.IsZero() {
			t.Unassigned++
		}
	}
	return t
}

// Distribution groups parcels by assigned department. Known departments are
// listed first in their catalog order, including zero-count entries, then
// unresolved labels sorted by count.
func Distribution(parcels []model.Parcel, departments []model.Department) []Slice {
	counts := map[string]int{}
	labels := map[string]string{}

	for _, p := range parcels {
		if p.AssignedDepartment.IsZero() {
			continue
		}
		key, ok := weightrules.ResolveRef(p.AssignedDepartment, departments)
		counts[key]++
		if !ok {
			labels[key] = p.AssignedDepartment.DisplayName()
		}
	}

	out := make([]Slice, 0, len(departments)+len(labels))
	for _, d := range departments {
		out = append(out, Slice{Key: d.ID, Label: d.Name, Count: counts[d.ID], Known: true})
		delete(counts, d.ID)
	}

	var rest []Slice
	for key, n := range counts {
		label := labels[key]
		if label == "" {
			label = key
		}
		rest = append(rest, Slice{Key: key, Label: label, Count: n})
	}
	sort.Slice(rest, func(i, j int) bool {
		if rest[i].Count != rest[j].Count {
			return rest[i].Count > rest[j].Count
		}
		return rest[i].Label < rest[j].Label
	})
	return append(out, rest...)
}

// CreatedSeries counts parcels created per calendar day over the trailing
// window ending at now. Parcels without a usable date are skipped.
func CreatedSeries(parcels []model.Parcel, now time.Time) []Point {
	start := midnight(now).AddDate(0, 0, -(SeriesDays - 1))

	series := make([]Point, SeriesDays)
	for i := range series {
		series[i].Day = start.AddDate(0, 0, i)
	}

	for _, p := range parcels {
		when := p.EffectiveDate()
		if when.IsZero() {
			continue
		}
		idx := int(midnight(when.In(now.Location())).Sub(start).Hours() / 24)
		if idx < 0 || idx >= SeriesDays {
			continue
		}
		series[idx].Count++
	}
	return series
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
