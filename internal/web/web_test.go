package web

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"parceldesk.org/internal/backend"
	"parceldesk.org/internal/lifecycle"
	"parceldesk.org/internal/notify"
	"parceldesk.org/internal/session"
	"parceldesk.org/internal/store"
)

type memSessionStore struct {
	mu     sync.Mutex
	values map[string]string
}

func (m *memSessionStore) Save(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = value
	return nil
}

func (m *memSessionStore) Load(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSessionStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// fakeBackend is the external REST API the console proxies.
func fakeBackend() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"message": "wrong password"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": "backend-token",
			"user":  map[string]string{"_id": "u1", "name": "Ada", "email": req["email"], "role": req["role"]},
		})
	})
	mux.HandleFunc("/users/me", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"_id": "u1", "name": "Ada", "email": "ada@parceldesk.org", "role": "admin"})
	})
	mux.HandleFunc("/parcels", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"_id": "p1", "trackingId": "TRK-100", "destination": "Berlin", "weightKg": 2.5, "valueEur": 50},
			{"_id": "p2", "trackingId": "TRK-200", "destination": "Amsterdam", "weightKg": 12, "valueEur": 800},
		})
	})
	mux.HandleFunc("/departments", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]string{{"_id": "1", "name": "Standard"}})
	})
	mux.HandleFunc("/rules", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	})
	return httptest.NewServer(mux)
}

type consoleFixture struct {
	t        *testing.T
	server   *httptest.Server
	backend  *httptest.Server
	sess     *session.Service
	notifier *notify.Notifier
	cookies  []*http.Cookie
}

func newConsoleFixture(t *testing.T, role string) *consoleFixture {
	t.Helper()

	be := fakeBackend()
	t.Cleanup(be.Close)

	sess := session.NewService(&memSessionStore{})
	client := backend.New(be.URL, sess)
	bus := lifecycle.NewBus()
	counter := lifecycle.NewCounter(bus, nil)

	notifier := notify.New()
	deps := Deps{
		Session:     sess,
		Auth:        store.NewAuth(client, bus, sess),
		Parcels:     store.NewParcels(client, bus),
		Departments: store.NewDepartments(client, bus),
		Rules:       store.NewRules(client, bus),
		Users:       store.NewUsers(client, bus),
		Admin:       store.NewAdmin(client, bus),
		Notifier:    notifier,
		Counter:     counter,
	}
	console := New(deps, []byte("test-secret"), "test")
	srv := httptest.NewServer(console.Handler())
	t.Cleanup(srv.Close)

	f := &consoleFixture{t: t, server: srv, backend: be, sess: sess, notifier: notifier}
	if role != "" {
		f.login(role)
	}
	return f
}

func (f *consoleFixture) client() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (f *consoleFixture) login(role string) {
	f.t.Helper()
	form := url.Values{"email": {"ada@parceldesk.org"}, "password": {"secret"}}
	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.client().Do(req)
	if err != nil {
		f.t.Fatalf("login request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		f.t.Fatalf("login status: %d", resp.StatusCode)
	}
	f.cookies = resp.Cookies()

	// The fake backend echoes no role on login; set it via the session for
	// role-gating tests.
	if user, ok := f.sess.User(); ok {
		user.Role = role
		_ = f.sess.UpdateUser(context.Background(), user)
	}
}

func (f *consoleFixture) post(path string, form url.Values) *http.Response {
	f.t.Helper()
	req, _ := http.NewRequest(http.MethodPost, f.server.URL+path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, ck := range f.cookies {
		req.AddCookie(ck)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		f.t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (f *consoleFixture) get(path string) *http.Response {
	f.t.Helper()
	req, _ := http.NewRequest(http.MethodGet, f.server.URL+path, nil)
	for _, ck := range f.cookies {
		req.AddCookie(ck)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		f.t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(data)
}

func TestGuardRedirectsAnonymous(t *testing.T) {
	f := newConsoleFixture(t, "")

	resp := f.get("/parcels")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/login" {
		t.Fatalf("expected /login, got %q", loc)
	}
}

func TestHealthzIsPublic(t *testing.T) {
	f := newConsoleFixture(t, "")

	resp := f.get("/healthz")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz status: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "parceldesk-console") {
		t.Fatalf("unexpected healthz body: %s", body)
	}
}

func TestLoginFailureShowsServerMessage(t *testing.T) {
	f := newConsoleFixture(t, "")

	form := url.Values{"email": {"ada@parceldesk.org"}, "password": {"nope"}}
	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := f.client().Do(req)
	if err != nil {
		t.Fatalf("login request: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "wrong password") {
		t.Fatalf("expected server message in page, got: %s", body)
	}
	if len(resp.Cookies()) != 0 {
		t.Fatal("failed login must not set a session cookie")
	}
}

func TestLoginThenParcelsPage(t *testing.T) {
	f := newConsoleFixture(t, "admin")

	resp := f.get("/parcels")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("parcels status: %d", resp.StatusCode)
	}
	if !strings.Contains(body, "TRK-100") || !strings.Contains(body, "TRK-200") {
		t.Fatalf("parcels not rendered: %s", body)
	}
}

func TestParcelsFilterByQuery(t *testing.T) {
	f := newConsoleFixture(t, "admin")

	resp := f.get("/parcels?q=amster")
	body := readBody(t, resp)
	if strings.Contains(body, "TRK-100") {
		t.Fatal("filtered-out parcel still rendered")
	}
	if !strings.Contains(body, "TRK-200") {
		t.Fatal("matching parcel missing")
	}
}

func TestUsersPageGatedToAdmin(t *testing.T) {
	f := newConsoleFixture(t, "operator")

	resp := f.get("/users")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", resp.StatusCode)
	}
}

func TestLogoutTearsDownSession(t *testing.T) {
	f := newConsoleFixture(t, "admin")

	req, _ := http.NewRequest(http.MethodPost, f.server.URL+"/logout", nil)
	for _, ck := range f.cookies {
		req.AddCookie(ck)
	}
	resp, err := f.client().Do(req)
	if err != nil {
		t.Fatalf("logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("logout status: %d", resp.StatusCode)
	}
	if f.sess.Authenticated() {
		t.Fatal("session must be torn down after logout")
	}

	// The old cookie no longer passes the guard.
	resp = f.get("/parcels")
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected redirect after logout, got %d", resp.StatusCode)
	}
}

func TestParcelsSortAndPagingControls(t *testing.T) {
	f := newConsoleFixture(t, "admin")

	resp := f.get("/parcels")
	body := readBody(t, resp)
	if !strings.Contains(body, "sort=weightKg") || !strings.Contains(body, "sort=trackingId") {
		t.Fatalf("sort header links missing: %s", body)
	}
	if !strings.Contains(body, "Page 1 of 1") {
		t.Fatalf("pager missing: %s", body)
	}
}

func TestSortLinkTogglesDirection(t *testing.T) {
	q := url.Values{"sort": {"weightKg"}, "dir": {"asc"}, "page": {"3"}}

	// Clicking the active ascending column flips to descending.
	link := sortLink(q, "key", "weightKg", "weightKg", "asc")
	if !strings.Contains(link, "dir=desc") {
		t.Fatalf("active column did not toggle: %s", link)
	}
	// The page survives a sort change.
	if !strings.Contains(link, "page=3") {
		t.Fatalf("sort link dropped the page: %s", link)
	}

	// A new column starts ascending.
	link = sortLink(q, "key", "valueEur", "weightKg", "asc")
	if !strings.Contains(link, "dir=asc") || !strings.Contains(link, "sort=valueEur") {
		t.Fatalf("new column did not default to asc: %s", link)
	}
}

func TestPageForResetsWhenFiltersChange(t *testing.T) {
	q := url.Values{"page": {"3"}, "fkey": {"old-filters"}}
	if got := pageFor(q, "old-filters", 5); got != 3 {
		t.Fatalf("unchanged filters must keep the page, got %d", got)
	}
	if got := pageFor(q, "new-filters", 5); got != 1 {
		t.Fatalf("changed filters must reset the page, got %d", got)
	}
	if got := pageFor(url.Values{"page": {"9"}, "fkey": {"k"}}, "k", 5); got != 1 {
		t.Fatalf("out-of-range page must clip to 1, got %d", got)
	}
}

func TestRuleMutationsGatedToAdmin(t *testing.T) {
	f := newConsoleFixture(t, "operator")

	resp := f.post("/rules/save", url.Values{"departmentId": {"1"}, "maxKg": {"10"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for operator, got %d", resp.StatusCode)
	}
}

func TestDeleteRuleWithoutMatchWarns(t *testing.T) {
	f := newConsoleFixture(t, "admin")

	// Loads the department catalog; the fake backend has no rules at all.
	f.get("/rules").Body.Close()

	resp := f.post("/rules/delete", url.Values{"departmentId": {"1"}})
	resp.Body.Close()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("delete status: %d", resp.StatusCode)
	}
	n := f.notifier.Current()
	if !n.Open || n.Severity != notify.SeverityWarning {
		t.Fatalf("expected a warning, got %+v", n)
	}
	if !strings.Contains(n.Message, "No rule to delete") {
		t.Fatalf("unexpected message: %q", n.Message)
	}
}
