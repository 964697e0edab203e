package config

import (
	"encoding/json"
	"os"
	"strings"
)

// DefaultAPIBaseURL is used whenever no runtime configuration is found.
const DefaultAPIBaseURL = "http://localhost:5000/api"

// Config holds console startup settings. Environment variables win over the
// runtime config file; the file exists so deployments can repoint the backend
// without rebuilding.
type Config struct {
	// APIBaseURL is the external parcel backend, e.g. http://localhost:5000/api.
	APIBaseURL string
	// ListenAddr is the console's own bind address.
	ListenAddr string
	// SessionDSN selects Postgres session storage when set; otherwise the
	// console falls back to a local SQLite file at SessionPath.
	SessionDSN  string
	SessionPath string
	// CookieSecret signs the browser session cookie.
	CookieSecret string
}

type runtimeFile struct {
	APIBaseURL string `json:"apiBaseUrl"`
}

// Load assembles the configuration from the runtime config file (when
// present) and the environment. A missing or malformed config file is not an
// error: the hard-coded default backend URL applies.
func Load() Config {
	cfg := Config{
		APIBaseURL:   DefaultAPIBaseURL,
		ListenAddr:   ":8080",
		SessionPath:  "console-session.db",
		CookieSecret: os.Getenv("CONSOLE_COOKIE_SECRET"),
	}

	path := os.Getenv("CONSOLE_CONFIG_FILE")
	if path == "" {
		path = "config.json"
	}
	if base := readRuntimeBaseURL(path); base != "" {
		cfg.APIBaseURL = base
	}

	if v := strings.TrimSpace(os.Getenv("CONSOLE_API_BASE_URL")); v != "" {
		cfg.APIBaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("CONSOLE_LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.SessionDSN = strings.TrimSpace(os.Getenv("CONSOLE_SESSION_DSN"))
	if v := strings.TrimSpace(os.Getenv("CONSOLE_SESSION_PATH")); v != "" {
		cfg.SessionPath = v
	}
	return cfg
}

// readRuntimeBaseURL never fails: any read or decode problem means "use the
// default", matching the configured-at-runtime contract.
func readRuntimeBaseURL(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	var rf runtimeFile
	if err := json.Unmarshal(data, &rf); err != nil {
		return ""
	}
	return strings.TrimSpace(rf.APIBaseURL)
}
