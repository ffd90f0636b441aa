// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Default portal endpoints.
const (
	DefaultBootstrapURL = "http://www.cubadebate.cu"
	DefaultPortalURL    = "https://secure.etecsa.net:8443/"
	DefaultQueryURL     = "https://secure.etecsa.net:8443/EtecsaQueryServlet"
	DefaultLogoutURL    = "https://secure.etecsa.net:8443/LogoutServlet"
)

// Config holds the application configuration. It is built once at startup
// and passed to every component that needs a path or endpoint.
type Config struct {
	DataDir     string
	DBPath      string
	LogPath     string
	SessionDir  string
	HTTPTimeout time.Duration

	BootstrapURL string
	PortalURL    string
	QueryURL     string
	LogoutURL    string
}

// Load reads configuration from environment variables and returns a validated Config.
// All variables are optional:
//
//	NAUTA_DATA_DIR      (~/.local/share/nauta)
//	NAUTA_DB_PATH       (<data dir>/cards.db)
//	NAUTA_LOG_PATH      (<data dir>/connections.log)
//	NAUTA_SESSION_DIR   (<data dir>)
//	NAUTA_HTTP_TIMEOUT  (30s)
//	NAUTA_BOOTSTRAP_URL, NAUTA_PORTAL_URL, NAUTA_QUERY_URL, NAUTA_LOGOUT_URL
func Load() (*Config, error) {
	dataDir, ok := os.LookupEnv("NAUTA_DATA_DIR")
	if !ok || dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory (set NAUTA_DATA_DIR): %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share", "nauta")
	}

	timeout := 30 * time.Second
	if v, ok := os.LookupEnv("NAUTA_HTTP_TIMEOUT"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("NAUTA_HTTP_TIMEOUT has invalid duration %q: %w", v, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("NAUTA_HTTP_TIMEOUT must not be negative, got %s", parsed)
		}
		timeout = parsed
	}

	return &Config{
		DataDir:      dataDir,
		DBPath:       lookup("NAUTA_DB_PATH", filepath.Join(dataDir, "cards.db")),
		LogPath:      lookup("NAUTA_LOG_PATH", filepath.Join(dataDir, "connections.log")),
		SessionDir:   lookup("NAUTA_SESSION_DIR", dataDir),
		HTTPTimeout:  timeout,
		BootstrapURL: lookup("NAUTA_BOOTSTRAP_URL", DefaultBootstrapURL),
		PortalURL:    lookup("NAUTA_PORTAL_URL", DefaultPortalURL),
		QueryURL:     lookup("NAUTA_QUERY_URL", DefaultQueryURL),
		LogoutURL:    lookup("NAUTA_LOGOUT_URL", DefaultLogoutURL),
	}, nil
}

// EnsureDirs creates the directories holding the database, log and session
// files.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, filepath.Dir(c.DBPath), filepath.Dir(c.LogPath), c.SessionDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func lookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
