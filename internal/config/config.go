// Package config contains everything related to configuration
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// SummarizerKind selects the narrative backend.
type SummarizerKind string

const (
	// SummarizerBackend asks the bin backend's AI analysis endpoint.
	SummarizerBackend SummarizerKind = "backend"
	// SummarizerOllama asks a local Ollama server.
	SummarizerOllama SummarizerKind = "ollama"
	// SummarizerOff always uses the local fallback narrative.
	SummarizerOff SummarizerKind = "off"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath            string
	SessionPath             string
	APIURL                  string
	Summarizer              SummarizerKind
	OllamaURL               string
	OllamaModel             string
	LogPath                 string
	LogLevel                string
	SnapshotRefreshInterval time.Duration
	ImageRefreshInterval    time.Duration
	SummaryTimeout          time.Duration
	SyncConcurrency         int
}

// Default values
const (
	defaultAPIURL                  = "http://localhost:8000"
	defaultOllamaURL               = "http://localhost:11434"
	defaultOllamaModel             = "llama3.2"
	defaultLogLevel                = "info"
	defaultSnapshotRefreshInterval = 60 * time.Second
	defaultImageRefreshInterval    = 20 * time.Second
	defaultSummaryTimeout          = 30 * time.Second
	defaultSyncConcurrency         = 4
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	// Try loading .env from multiple locations
	envPaths := getEnvPaths()
	for _, path := range envPaths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DatabasePath:            getEnvString("DATABASE_PATH", defaultPath("binwatch.db")),
		SessionPath:             getEnvString("SESSION_PATH", defaultPath("session.json")),
		APIURL:                  strings.TrimRight(getEnvString("API_URL", defaultAPIURL), "/"),
		Summarizer:              SummarizerKind(strings.ToLower(getEnvString("SUMMARIZER", string(SummarizerBackend)))),
		OllamaURL:               getEnvString("OLLAMA_URL", defaultOllamaURL),
		OllamaModel:             getEnvString("OLLAMA_MODEL", defaultOllamaModel),
		LogPath:                 getEnvString("LOG_PATH", defaultPath("binwatch.log")),
		LogLevel:                getEnvString("LOG_LEVEL", defaultLogLevel),
		SnapshotRefreshInterval: getEnvDuration("SNAPSHOT_REFRESH_INTERVAL", defaultSnapshotRefreshInterval),
		ImageRefreshInterval:    getEnvDuration("IMAGE_REFRESH_INTERVAL", defaultImageRefreshInterval),
		SummaryTimeout:          getEnvDuration("SUMMARY_TIMEOUT", defaultSummaryTimeout),
		SyncConcurrency:         getEnvInt("SYNC_CONCURRENCY", defaultSyncConcurrency),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, p := range []string{cfg.DatabasePath, cfg.SessionPath, cfg.LogPath} {
		if p == "" {
			continue
		}
		if err := ensureDir(filepath.Dir(p)); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Validate checks values that cannot be defaulted silently.
func (c *Config) Validate() error {
	switch c.Summarizer {
	case SummarizerBackend, SummarizerOllama, SummarizerOff:
	default:
		return fmt.Errorf("SUMMARIZER must be one of backend, ollama, off (got %q)", c.Summarizer)
	}

	if _, err := url.ParseRequestURI(c.APIURL); err != nil {
		return fmt.Errorf("invalid API_URL %q: %w", c.APIURL, err)
	}
	if c.Summarizer == SummarizerOllama {
		if _, err := url.ParseRequestURI(c.OllamaURL); err != nil {
			return fmt.Errorf("invalid OLLAMA_URL %q: %w", c.OllamaURL, err)
		}
	}

	if c.SnapshotRefreshInterval <= 0 {
		return fmt.Errorf("SNAPSHOT_REFRESH_INTERVAL must be positive")
	}
	if c.ImageRefreshInterval <= 0 {
		return fmt.Errorf("IMAGE_REFRESH_INTERVAL must be positive")
	}
	if c.SummaryTimeout <= 0 {
		return fmt.Errorf("SUMMARY_TIMEOUT must be positive")
	}
	if c.SyncConcurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be at least 1")
	}
	return nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	// Current directory
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	// Home directory locations
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "binwatch", ".env"))
	}

	// Parent directories (useful for development)
	if cwd, err := os.Getwd(); err == nil {
		parent := filepath.Dir(cwd)
		paths = append(paths, filepath.Join(parent, ".env"))
		grandparent := filepath.Dir(parent)
		paths = append(paths, filepath.Join(grandparent, ".env"))
	}

	return paths
}

// defaultPath returns name inside the binwatch config directory.
func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".config", "binwatch", name)
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
