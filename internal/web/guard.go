package web

import (
	"net/http"
	"strings"

	"parceldesk.org/internal/model"
)

var publicPaths = []string{
	"/login",
	"/register",
	"/healthz",
	"/metrics",
}
var publicPrefixes = []string{
	"/assets/",
}

// withGuard redirects unauthenticated browsers to the login page. A valid
// cookie alone is not enough: the server-side session must hold a backend
// token, so a torn-down session falls back to /login on the next navigation.
func (c *Console) withGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := c.verifyCookie(r); err != nil || !c.sess.Authenticated() {
			c.clearCookie(w)
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// requireAdmin gates the user-management and admin surfaces.
func (c *Console) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, ok := c.sess.User()
	if !ok || user.Role != model.RoleAdmin {
		http.Error(w, "forbidden", http.StatusForbidden)
		return false
	}
	return true
}
