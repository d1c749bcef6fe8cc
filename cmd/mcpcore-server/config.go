package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Config holds application configuration loaded from environment
// variables. Ground: the teacher's cmd/mcplexer/config.go envOr idiom.
type Config struct {
	Mode       string     // "stdio", "http", or "both"
	HTTPAddr   string     // "127.0.0.1:8080"
	ServerName string     // advertised in initialize's ServerInfo.Name
	LogLevel   slog.Level // slog level

	DBDSN      string // sqlite DSN for audit/session history
	AgeKeyPath string // age identity file backing the OAuth signing key

	ConfigFile  string // path to mcpcore.yaml (tool/resource/OAuth-client seeding)
	ExternalURL string // external base URL the demo OAuth AS advertises as its issuer

	EnableOAuth              bool     // serve the demo OAuth 2.1 AS and require bearer auth on /mcp
	RequireResourceIndicator bool     // reject tokens missing an audience naming this server
	AllowOrigins             []string // empty means allow all (logged once at startup)
}

// defaultDataPath returns ~/.mcpcore/<filename>, falling back to a
// CWD-relative path if the home directory can't be resolved.
func defaultDataPath(filename string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filename
	}
	return filepath.Join(home, ".mcpcore", filename)
}

func loadConfig() (*Config, error) {
	httpAddr := envOr("MCPCORE_HTTP_ADDR", "")
	if httpAddr == "" {
		httpAddr = envOr("HOSTNAME", "127.0.0.1") + ":" + envOr("PORT", "8080")
	}

	cfg := &Config{
		Mode:       envOr("MCPCORE_MODE", "stdio"),
		HTTPAddr:   httpAddr,
		ServerName: envOr("SERVER_NAME", "mcpcore"),
		LogLevel:   parseLogLevel(envOr("LOG_LEVEL", "info")),

		DBDSN:      envOr("MCPCORE_DB_DSN", defaultDataPath("mcpcore.db")),
		AgeKeyPath: envOr("MCPCORE_AGE_KEY", ""),

		ConfigFile:  envOr("MCPCORE_CONFIG", defaultDataPath("mcpcore.yaml")),
		ExternalURL: envOr("MCPCORE_EXTERNAL_URL", ""),

		EnableOAuth:              envOr("MCPCORE_ENABLE_OAUTH", "true") == "true",
		RequireResourceIndicator: envOr("MCPCORE_REQUIRE_RESOURCE_INDICATOR", "false") == "true",
		AllowOrigins:             splitCSV(envOr("MCPCORE_ALLOW_ORIGINS", "")),
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLogLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
