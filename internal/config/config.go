package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds runtime configuration sourced from an optional YAML file and env vars.
type Config struct {
	BackendURL      string
	CredentialPath  string
	CacheTTL        time.Duration
	PollInterval    time.Duration
	HTTPTimeout     time.Duration
	WatchCredential bool
}

// fileConfig mirrors the YAML file layout. Zero values mean "not set".
type fileConfig struct {
	BackendURL      string `yaml:"backend_url"`
	CredentialPath  string `yaml:"credential_path"`
	CacheTTLMinutes int    `yaml:"cache_ttl_minutes"`
	PollMinutes     int    `yaml:"poll_minutes"`
	HTTPTimeoutSecs int    `yaml:"http_timeout_seconds"`
	WatchCredential *bool  `yaml:"watch_credential"`
}

const (
	defaultBackendURL = "http://localhost:5000/api"
	defaultCacheTTL   = 5 * time.Minute
	defaultPoll       = 5 * time.Minute
	defaultTimeout    = 15 * time.Second
)

// Load reads configuration from DASH_CONFIG (if set) and the environment.
// Environment values override file values.
func Load() (Config, error) {
	var fc fileConfig
	if path := strings.TrimSpace(os.Getenv("DASH_CONFIG")); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &fc); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg := Config{
		BackendURL:     strings.TrimRight(fallback(os.Getenv("BACKEND_URL"), fallback(fc.BackendURL, defaultBackendURL)), "/"),
		CredentialPath: fallback(os.Getenv("DASH_CREDENTIAL_PATH"), fallback(fc.CredentialPath, defaultCredentialPath())),
		CacheTTL:       minutes(os.Getenv("DASHBOARD_CACHE_TTL_MINUTES"), fc.CacheTTLMinutes, defaultCacheTTL),
		PollInterval:   minutes(os.Getenv("SESSION_POLL_MINUTES"), fc.PollMinutes, defaultPoll),
		HTTPTimeout:    seconds(os.Getenv("HTTP_TIMEOUT_SECONDS"), fc.HTTPTimeoutSecs, defaultTimeout),
	}

	cfg.WatchCredential = fc.WatchCredential != nil && *fc.WatchCredential
	if v := strings.TrimSpace(os.Getenv("DASH_WATCH_CREDENTIAL")); v != "" {
		watch, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("DASH_WATCH_CREDENTIAL: %w", err)
		}
		cfg.WatchCredential = watch
	}

	u, err := url.Parse(cfg.BackendURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return Config{}, errors.New("BACKEND_URL must be an absolute URL")
	}
	if cfg.CredentialPath == "" {
		return Config{}, errors.New("DASH_CREDENTIAL_PATH is required")
	}

	return cfg, nil
}

func defaultCredentialPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "all-in-dash", "token")
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return strings.TrimSpace(value)
}

func minutes(env string, file int, def time.Duration) time.Duration {
	return positive(env, file, def, time.Minute)
}

func seconds(env string, file int, def time.Duration) time.Duration {
	return positive(env, file, def, time.Second)
}

func positive(env string, file int, def, unit time.Duration) time.Duration {
	if n, err := strconv.Atoi(strings.TrimSpace(env)); err == nil && n > 0 {
		return time.Duration(n) * unit
	}
	if file > 0 {
		return time.Duration(file) * unit
	}
	return def
}
