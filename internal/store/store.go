// Package store holds the per-resource caches of backend state. Each store
// exposes named operations that call the backend, publish lifecycle events
// and splice the decoded response into its slice under a fixed rule. Stores
// know nothing about each other; the loading counter observes them through
// the lifecycle bus alone.
package store

// Resource names carried on lifecycle events.
const (
	ResourceAuth        = "auth"
	ResourceParcels     = "parcels"
	ResourceDepartments = "departments"
	ResourceRules       = "rules"
	ResourceUsers       = "users"
	ResourceAdmin       = "admin"
)
