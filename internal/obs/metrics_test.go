package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/parcels":                      "/parcels",
		"/parcels/abc123":               "/parcels/:id",
		"/parcels/abc123/raw":           "/parcels/:id/raw",
		"/parcels/abc123/reassign":      "/parcels/:id/reassign",
		"/parcels/upload":               "/parcels/upload",
		"/parcels/export":               "/parcels/export",
		"/parcels/delete-all":           "/parcels/delete-all",
		"/users/u1":                     "/users/:id",
		"/users/u1/delete":              "/users/:id/delete",
		"/parcels/abc?approval=pending": "/parcels/:id",
		"/departments":                  "/departments",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
