package listview

import (
	"net/url"
	"testing"
	"time"

	"parceldesk.org/internal/model"
)

func deptRef(id, name string) model.DepartmentRef {
	return model.DepartmentRef{ID: id, Name: name}
}

func ids(list []model.Parcel) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.ID
	}
	return out
}

func sampleDepartments() []model.Department {
	return []model.Department{
		{ID: "1", Name: "Standard"},
		{ID: "2", Name: "Heavy"},
	}
}

func sampleParcels() []model.Parcel {
	day := func(d int) time.Time {
		return time.Date(2026, 8, d, 10, 0, 0, 0, time.UTC)
	}
	return []model.Parcel{
		{ID: "p1", TrackingID: "TRK-100", Destination: "Berlin", WeightKg: 2, ValueEur: 50, AssignedDepartment: deptRef("1", "Standard"), InsuranceApproval: model.InsuranceApproval{Status: model.InsurancePending}, CreatedAt: day(1)},
		{ID: "p2", TrackingID: "TRK-200", Destination: "Amsterdam", WeightKg: 14, ValueEur: 900, AssignedDepartment: deptRef("2", "Heavy"), InsuranceApproval: model.InsuranceApproval{Status: model.InsuranceApproved}, CreatedAt: day(2)},
		{ID: "p3", TrackingID: "TRK-300", Destination: "berlin", WeightKg: 7, ValueEur: 120, UpdatedAt: day(3)},
		{ID: "p4", TrackingID: "TRK-400", Destination: "Chisinau", WeightKg: 1, ValueEur: 30, AssignedDepartment: model.DepartmentRef{Raw: "Standard"}, InsuranceApproval: model.InsuranceApproval{Status: model.InsurancePending}, CreatedAt: day(4)},
	}
}

func TestParseFiltersSpecificClearsRange(t *testing.T) {
	v := url.Values{}
	v.Set("from", "2026-08-01")
	v.Set("to", "2026-08-10")
	v.Set("specific", "2026-08-05")
	f := ParseFilters(v, time.UTC)
	if !f.From.IsZero() || !f.To.IsZero() {
		t.Fatalf("specific date should clear the open range: %+v", f)
	}
	if f.Specific.IsZero() {
		t.Fatal("specific date not parsed")
	}
}

func TestParseFiltersBadDateIgnored(t *testing.T) {
	v := url.Values{}
	v.Set("from", "yesterday")
	f := ParseFilters(v, time.UTC)
	if !f.From.IsZero() {
		t.Fatal("unparseable date should be inactive")
	}
}

func TestApplyIdentityAndIdempotence(t *testing.T) {
	parcels := sampleParcels()
	depts := sampleDepartments()

	if got := Apply(parcels, Filters{}, depts); len(got) != len(parcels) {
		t.Fatalf("empty filter set must be identity, got %d of %d", len(got), len(parcels))
	}

	f := Filters{Query: "trk", Insurance: model.InsurancePending}
	once := Apply(parcels, f, depts)
	twice := Apply(once, f, depts)
	if len(once) != len(twice) {
		t.Fatalf("apply is not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].ID != twice[i].ID {
			t.Fatalf("apply reordered on second pass at %d", i)
		}
	}
}

func TestApplyDepartmentMatchesIdNameAndRaw(t *testing.T) {
	parcels := sampleParcels()
	depts := sampleDepartments()

	// Filter by id matches parcels assigned by id and by raw name alike.
	byID := Apply(parcels, Filters{Department: "1"}, depts)
	if len(byID) != 2 || byID[0].ID != "p1" || byID[1].ID != "p4" {
		t.Fatalf("filter by id: got %+v", ids(byID))
	}

	byName := Apply(parcels, Filters{Department: "Standard"}, depts)
	if len(byName) != 2 {
		t.Fatalf("filter by name: got %+v", ids(byName))
	}
}

func TestApplyAssignedAndApproval(t *testing.T) {
	parcels := sampleParcels()
	depts := sampleDepartments()

	unassigned := Apply(parcels, Filters{Assigned: "false"}, depts)
	if len(unassigned) != 1 || unassigned[0].ID != "p3" {
		t.Fatalf("assigned=false: got %+v", ids(unassigned))
	}
	if got := Apply(parcels, Filters{Assigned: "maybe"}, depts); len(got) != len(parcels) {
		t.Fatalf("non-boolean assigned value must not filter, got %d", len(got))
	}

	pending := Apply(parcels, Filters{Approval: "pending"}, depts)
	if len(pending) != 2 {
		t.Fatalf("approval=pending: got %+v", ids(pending))
	}
	if got := Apply(parcels, Filters{Approval: "all"}, depts); len(got) != len(parcels) {
		t.Fatalf("approval=all must not filter, got %d", len(got))
	}
}

func TestApplyDateRangeUsesUpdatedAtFallback(t *testing.T) {
	parcels := sampleParcels()
	depts := sampleDepartments()

	f := ParseFilters(url.Values{"from": {"2026-08-03"}}, time.UTC)
	got := Apply(parcels, f, depts)
	// p3 has no createdAt but an updatedAt inside the range.
	if len(got) != 2 || got[0].ID != "p3" || got[1].ID != "p4" {
		t.Fatalf("from filter: got %+v", ids(got))
	}

	f = ParseFilters(url.Values{"specific": {"2026-08-02"}}, time.UTC)
	got = Apply(parcels, f, depts)
	if len(got) != 1 || got[0].ID != "p2" {
		t.Fatalf("specific day: got %+v", ids(got))
	}
}

func TestSortStableAndReversible(t *testing.T) {
	parcels := sampleParcels()

	asc := Sort(parcels, SortWeight, Asc)
	desc := Sort(parcels, SortWeight, Desc)
	for i := range asc {
		if asc[i].ID != desc[len(desc)-1-i].ID {
			t.Fatalf("desc is not the exact reversal at %d: %v vs %v", i, ids(asc), ids(desc))
		}
	}
	if asc[0].ID != "p4" || asc[3].ID != "p2" {
		t.Fatalf("weight asc: got %v", ids(asc))
	}

	// Equal destinations ignoring case keep their input order.
	byDest := Sort(parcels, SortDestination, Asc)
	if byDest[0].ID != "p2" {
		t.Fatalf("destination asc: got %v", ids(byDest))
	}
	var berlins []string
	for _, p := range byDest {
		if p.Destination == "Berlin" || p.Destination == "berlin" {
			berlins = append(berlins, p.ID)
		}
	}
	if len(berlins) != 2 || berlins[0] != "p1" || berlins[1] != "p3" {
		t.Fatalf("stable sort broke equal-key order: %v", berlins)
	}

	unknown := Sort(parcels, "color", Asc)
	for i := range parcels {
		if unknown[i].ID != parcels[i].ID {
			t.Fatalf("unknown sort field must keep order, got %v", ids(unknown))
		}
	}
}

func TestSortDateFallback(t *testing.T) {
	parcels := sampleParcels()
	got := Sort(parcels, SortCreatedAt, Desc)
	if got[0].ID != "p4" || got[1].ID != "p3" {
		t.Fatalf("createdAt desc with updatedAt fallback: got %v", ids(got))
	}
}

func TestPaginate(t *testing.T) {
	list := make([]model.Parcel, 47)
	for i := range list {
		list[i] = model.Parcel{ID: string(rune('a' + i%26))}
	}

	if got := TotalPages(len(list), PageSize); got != 3 {
		t.Fatalf("total pages: got %d", got)
	}
	if got := TotalPages(0, PageSize); got != 1 {
		t.Fatalf("empty list still has one page, got %d", got)
	}

	// Concatenating every page reconstructs the list.
	var all []model.Parcel
	for page := 1; page <= TotalPages(len(list), PageSize); page++ {
		chunk := Paginate(list, page, PageSize)
		if page < 3 && len(chunk) != PageSize {
			t.Fatalf("page %d: got %d items", page, len(chunk))
		}
		all = append(all, chunk...)
	}
	if len(all) != len(list) {
		t.Fatalf("pages do not reconstruct the list: %d of %d", len(all), len(list))
	}
	if got := Paginate(list, 9, PageSize); len(got) != 0 {
		t.Fatalf("past-the-end page must be empty, got %d", len(got))
	}
}
