// Package weightrules reconciles the department weight thresholds: one
// aggregate rule carries a bucket per department, legacy per-department
// rules are folded in as a fallback source, and department references of
// any shape (id, name, raw string) resolve through a single function shared
// with the parcel department filter.
package weightrules

import (
	"fmt"
	"strconv"
	"strings"

	"parceldesk.org/internal/model"
)

// Defaults applied when creating the aggregate rule.
const (
	AggregateName     = "weight-based-routing"
	AggregateType     = "weight"
	AggregatePriority = 10

	// LegacyNamePrefix is the naming convention of old standalone rules.
	LegacyNamePrefix = "Weight rule - "
)

// ResolveKey maps a reference string to the canonical department id:
// match by id first, then by name. Unresolved references keep the raw
// string as their key and report resolved=false.
func ResolveKey(ref string, departments []model.Department) (string, bool) {
	if ref == "" {
		return "", false
	}
	for _, d := range departments {
		if d.ID == ref {
			return d.ID, true
		}
	}
	for _, d := range departments {
		if d.Name == ref {
			return d.ID, true
		}
	}
	return ref, false
}

// ResolveRef resolves a structured department reference the same way.
func ResolveRef(ref model.DepartmentRef, departments []model.Department) (string, bool) {
	if ref.ID != "" {
		return ref.ID, true
	}
	if ref.Name != "" {
		for _, d := range departments {
			if d.Name == ref.Name {
				return d.ID, true
			}
		}
		return ref.Name, false
	}
	return ResolveKey(ref.Raw, departments)
}

// FindAggregate returns the single rule carrying a buckets list.
func FindAggregate(rules []model.Rule) (model.Rule, bool) {
	for _, r := range rules {
		if r.IsAggregate() {
			return r, true
		}
	}
	return model.Rule{}, false
}

// Reconcile computes the per-department working values shown on the rules
// screen. Keys are canonical department ids where resolvable, raw reference
// strings otherwise; every known department gets an entry, empty when no
// rule covers it. Values are the threshold rendered as a string, "" for
// null/unset.
func Reconcile(departments []model.Department, rules []model.Rule) map[string]string {
	working := map[string]string{}

	if aggregate, ok := FindAggregate(rules); ok {
		for _, b := range aggregate.Config.Buckets {
			if b.DepartmentID == "" {
				continue
			}
			key, _ := ResolveKey(b.DepartmentID, departments)
			working[key] = formatMax(b.MaxKg)
		}
	}

	// Legacy standalone rules are a fallback source, including the naming
	// convention ones.
	for _, r := range rules {
		if r.IsAggregate() {
			continue
		}
		key := ""
		switch {
		case !r.Department.IsZero():
			key, _ = ResolveRef(r.Department, departments)
		case strings.HasPrefix(r.Name, LegacyNamePrefix):
			name := strings.TrimPrefix(r.Name, LegacyNamePrefix)
			key, _ = ResolveKey(name, departments)
		}
		if key != "" && r.MaxKg != nil {
			working[key] = formatMax(r.MaxKg)
		}
	}

	// Normalize name-keyed entries onto the canonical id, then default every
	// department to an empty entry.
	for _, d := range departments {
		if v, ok := working[d.Name]; ok && d.Name != d.ID {
			if _, exists := working[d.ID]; !exists {
				working[d.ID] = v
			}
			delete(working, d.Name)
		}
		if _, ok := working[d.ID]; !ok {
			working[d.ID] = ""
		}
	}
	return working
}

// ParseMax converts a form value to a threshold: empty means unset.
func ParseMax(value string) (*float64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid max weight %q", value)
	}
	return &f, nil
}

func formatMax(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// rulePayload is the write shape for aggregate rule saves.
func rulePayload(base model.Rule, buckets []model.Bucket) map[string]any {
	name := base.Name
	if name == "" {
		name = AggregateName
	}
	typ := base.Type
	if typ == "" {
		typ = AggregateType
	}
	priority := base.Priority
	if priority == 0 {
		priority = AggregatePriority
	}
	return map[string]any{
		"name":     name,
		"type":     typ,
		"priority": priority,
		"config":   map[string]any{"buckets": buckets},
	}
}

// PatchBucket returns the aggregate update payload with the department's
// bucket replaced, or appended when missing.
func PatchBucket(aggregate model.Rule, dept model.Department, max *float64) map[string]any {
	buckets := make([]model.Bucket, len(aggregate.Config.Buckets))
	copy(buckets, aggregate.Config.Buckets)

	idx := -1
	for i, b := range buckets {
		if b.DepartmentID == dept.ID || b.DepartmentID == dept.Name {
			idx = i
			break
		}
	}
	if idx >= 0 {
		buckets[idx].MaxKg = max
	} else {
		buckets = append(buckets, model.Bucket{DepartmentID: dept.ID, MaxKg: max})
	}
	return rulePayload(aggregate, buckets)
}

// NewAggregatePayload builds the create payload for a fresh aggregate rule.
func NewAggregatePayload(buckets []model.Bucket) map[string]any {
	return rulePayload(model.Rule{}, buckets)
}

// RebuildPayload replaces the aggregate's whole bucket list while keeping
// its name, type and priority.
func RebuildPayload(aggregate model.Rule, buckets []model.Bucket) map[string]any {
	return rulePayload(aggregate, buckets)
}

// RebuildBuckets converts the full working map back into a bucket list, one
// bucket per known department, for the save-all action.
func RebuildBuckets(departments []model.Department, working map[string]string) ([]model.Bucket, error) {
	buckets := make([]model.Bucket, 0, len(departments))
	for _, d := range departments {
		max, err := ParseMax(working[d.ID])
		if err != nil {
			return nil, fmt.Errorf("department %s: %w", d.Name, err)
		}
		buckets = append(buckets, model.Bucket{DepartmentID: d.ID, MaxKg: max})
	}
	return buckets, nil
}

// RemoveBucket returns the aggregate update payload with the department's
// bucket dropped.
func RemoveBucket(aggregate model.Rule, dept model.Department) map[string]any {
	buckets := make([]model.Bucket, 0, len(aggregate.Config.Buckets))
	for _, b := range aggregate.Config.Buckets {
		if b.DepartmentID == dept.ID || b.DepartmentID == dept.Name {
			continue
		}
		buckets = append(buckets, b)
	}
	return rulePayload(aggregate, buckets)
}

// FindLegacyRule locates the standalone rule referencing the department,
// used when no aggregate rule exists to delete from.
func FindLegacyRule(rules []model.Rule, dept model.Department) (model.Rule, bool) {
	for _, r := range rules {
		if r.IsAggregate() || r.Department.IsZero() {
			continue
		}
		ref := r.Department
		if ref.ID == dept.ID || ref.Name == dept.Name || ref.Raw == dept.ID || ref.Raw == dept.Name {
			return r, true
		}
	}
	return model.Rule{}, false
}
