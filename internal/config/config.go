// Package config resolves the server configuration from environment
// variables with sane defaults. The serve commands load it once and
// pass the resulting Config down; nothing else reads the environment.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable names.
const (
	EnvAuthToken      = "HANDOVER_AUTH_TOKEN"
	EnvAllowedOrigins = "HANDOVER_ALLOWED_ORIGINS"
	EnvHTTPAddr       = "HANDOVER_HTTP_ADDR"
	EnvDocsDir        = "HANDOVER_DOCS_DIR"
	EnvAnalysisDir    = "HANDOVER_ANALYSIS_DIR"
	EnvArchivePath    = "HANDOVER_ARCHIVE_PATH"
	EnvRegenCommand   = "HANDOVER_REGEN_CMD"
	EnvSessionTTL     = "HANDOVER_SESSION_TTL"
	EnvMaxSessions    = "HANDOVER_MAX_SESSIONS"
)

// Config is the resolved server configuration.
type Config struct {
	// HTTPAddr is the host:port for the HTTP transport.
	HTTPAddr string
	// AuthToken gates the HTTP transport. Empty means no auth; preflight
	// refuses that on non-loopback binds.
	AuthToken string
	// AllowedOrigins is the Origin allow-list ("*" allows any).
	AllowedOrigins []string

	// DocsDir holds the generated markdown documents.
	DocsDir string
	// AnalysisDir holds the raw JSON analysis fragments.
	AnalysisDir string
	// ArchivePath is the SQLite archive location. Empty disables the
	// archive.
	ArchivePath string

	// RegenCommand is the shell command run by regeneration jobs. The
	// target document id is appended as the final argument when set.
	RegenCommand string

	// SessionTTL and MaxSessions bound terminal session retention.
	SessionTTL  time.Duration
	MaxSessions int
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTPAddr:    "127.0.0.1:8321",
		DocsDir:     "handover/docs",
		AnalysisDir: "handover/analysis",
		ArchivePath: "handover/archive.db",
		SessionTTL:  time.Hour,
		MaxSessions: 256,
	}
}

// FromEnv builds a Config from the environment on top of Default.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := os.Getenv(EnvHTTPAddr); v != "" {
		if _, _, err := net.SplitHostPort(v); err != nil {
			return cfg, fmt.Errorf("%s: %q is not host:port: %w", EnvHTTPAddr, v, err)
		}
		cfg.HTTPAddr = v
	}
	cfg.AuthToken = os.Getenv(EnvAuthToken)
	if v := os.Getenv(EnvAllowedOrigins); v != "" {
		cfg.AllowedOrigins = SplitOrigins(v)
	}
	if v := os.Getenv(EnvDocsDir); v != "" {
		cfg.DocsDir = v
	}
	if v := os.Getenv(EnvAnalysisDir); v != "" {
		cfg.AnalysisDir = v
	}
	if v, ok := os.LookupEnv(EnvArchivePath); ok {
		cfg.ArchivePath = v // explicit empty disables the archive
	}
	cfg.RegenCommand = os.Getenv(EnvRegenCommand)

	if v := os.Getenv(EnvSessionTTL); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return cfg, fmt.Errorf("%s: %q is not a positive duration", EnvSessionTTL, v)
		}
		cfg.SessionTTL = d
	}
	if v := os.Getenv(EnvMaxSessions); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return cfg, fmt.Errorf("%s: %q is not a positive integer", EnvMaxSessions, v)
		}
		cfg.MaxSessions = n
	}

	return cfg, nil
}

// BindHost returns the host part of HTTPAddr for preflight checks.
func (c Config) BindHost() string {
	host, _, err := net.SplitHostPort(c.HTTPAddr)
	if err != nil {
		return c.HTTPAddr
	}
	return host
}

// SplitOrigins parses a comma-separated origin list, trimming blanks.
func SplitOrigins(v string) []string {
	var origins []string
	for _, o := range strings.Split(v, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
