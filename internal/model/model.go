package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Role values the backend assigns to users.
const (
	RoleAdmin     = "admin"
	RoleOperator  = "operator"
	RoleInsurance = "insurance"
)

// Insurance approval states carried on parcels.
const (
	InsurancePending  = "pending"
	InsuranceApproved = "approved"
)

// User is the backend account record.
type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Department groups parcels for routing.
type Department struct {
	ID          string `json:"_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// DepartmentRef is a department reference as the backend serializes it:
// either a bare id/name string or an embedded {_id, name} object. The zero
// value means unassigned.
type DepartmentRef struct {
	ID   string
	Name string
	// Raw preserves the bare-string form so unresolved references keep
	// their original key.
	Raw string
}

// IsZero reports whether the parcel carries no department assignment.
func (d DepartmentRef) IsZero() bool {
	return d.ID == "" && d.Name == "" && d.Raw == ""
}

// Key returns the best available reference key: id, then name, then the
// raw string.
func (d DepartmentRef) Key() string {
	if d.ID != "" {
		return d.ID
	}
	if d.Name != "" {
		return d.Name
	}
	return d.Raw
}

// DisplayName returns the label shown in tables.
func (d DepartmentRef) DisplayName() string {
	if d.Name != "" {
		return d.Name
	}
	return d.Raw
}

func (d *DepartmentRef) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" || trimmed == `""` {
		*d = DepartmentRef{}
		return nil
	}
	if strings.HasPrefix(trimmed, `"`) {
		var raw string
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		*d = DepartmentRef{Raw: raw}
		return nil
	}
	var obj struct {
		ID   string `json:"_id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*d = DepartmentRef{ID: obj.ID, Name: obj.Name}
	return nil
}

func (d DepartmentRef) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	if d.ID == "" && d.Name == "" {
		return json.Marshal(d.Raw)
	}
	return json.Marshal(struct {
		ID   string `json:"_id"`
		Name string `json:"name,omitempty"`
	}{ID: d.ID, Name: d.Name})
}

// InsuranceApproval is the per-parcel insurance state.
type InsuranceApproval struct {
	Status string `json:"status,omitempty"`
}

// Parcel is the central backend entity. The console only caches it.
type Parcel struct {
	ID                 string            `json:"_id"`
	TrackingID         string            `json:"trackingId"`
	WeightKg           float64           `json:"weightKg"`
	ValueEur           float64           `json:"valueEur"`
	Destination        string            `json:"destination"`
	AssignedDepartment DepartmentRef     `json:"assignedDepartment,omitempty"`
	InsuranceApproval  InsuranceApproval `json:"insuranceApproval,omitempty"`
	Processed          bool              `json:"processed,omitempty"`
	CreatedAt          time.Time         `json:"createdAt,omitempty"`
	UpdatedAt          time.Time         `json:"updatedAt,omitempty"`
}

// EffectiveDate returns createdAt, falling back to updatedAt when the
// backend omitted it.
func (p Parcel) EffectiveDate() time.Time {
	if !p.CreatedAt.IsZero() {
		return p.CreatedAt
	}
	return p.UpdatedAt
}

// Bucket is one department threshold inside the aggregate weight rule.
// MaxKg is nullable: a saved-but-empty threshold round-trips as null.
type Bucket struct {
	DepartmentID string   `json:"departmentId"`
	MaxKg        *float64 `json:"maxKg"`
}

// Legacy payloads name the department under different keys.
func (b *Bucket) UnmarshalJSON(data []byte) error {
	var raw struct {
		DepartmentID string   `json:"departmentId"`
		Department   string   `json:"department"`
		DeptID       string   `json:"deptId"`
		MaxKg        *float64 `json:"maxKg"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id := raw.DepartmentID
	if id == "" {
		id = raw.Department
	}
	if id == "" {
		id = raw.DeptID
	}
	*b = Bucket{DepartmentID: id, MaxKg: raw.MaxKg}
	return nil
}

// RuleConfig carries the aggregate rule's bucket list. Nil Buckets means
// the rule is not the aggregate one.
type RuleConfig struct {
	Buckets []Bucket `json:"buckets,omitempty"`
}

// Rule is either the single aggregate weight-routing rule (Config.Buckets
// present) or a legacy per-department rule.
type Rule struct {
	ID         string        `json:"_id"`
	Name       string        `json:"name"`
	Type       string        `json:"type,omitempty"`
	Priority   int           `json:"priority,omitempty"`
	Config     RuleConfig    `json:"config,omitempty"`
	Department DepartmentRef `json:"department,omitempty"`
	MaxKg      *float64      `json:"maxKg,omitempty"`
}

// IsAggregate reports whether the rule carries the authoritative bucket list.
func (r Rule) IsAggregate() bool {
	return r.Config.Buckets != nil
}
