package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the browser gateway.
type Config struct {
	// HTTP bind settings
	BindAddr         string
	PortCandidates   []string
	PortAutoFallback bool

	// Browser settings
	ProfileDir     string
	StartURL       string
	ViewportWidth  int
	ViewportHeight int
	Headless       bool

	// Streaming and gateway behavior
	StreamIntervalMS   int
	ScreenshotQuality  int
	AddTabDebounceSecs int

	// Storage
	SnapshotDir string
	StaticDir   string

	// Logging
	LogLevel string
	LogFile  string
}

// Load reads configuration from environment variables and optional .env file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	}

	cfg := &Config{
		BindAddr:           getEnvOrDefault("RBGW_BIND_ADDR", "127.0.0.1:8001"),
		PortCandidates:     splitList(getEnvOrDefault("RBGW_PORT_CANDIDATES", "127.0.0.1:8001,127.0.0.1:8002,127.0.0.1:8003")),
		PortAutoFallback:   getEnvBoolOrDefault("RBGW_PORT_AUTO_FALLBACK", true),
		ProfileDir:         getEnvOrDefault("RBGW_PROFILE_DIR", "browser_data"),
		StartURL:           getEnvOrDefault("RBGW_START_URL", "https://www.scrapingbee.com/blog/"),
		ViewportWidth:      getEnvIntOrDefault("RBGW_VIEWPORT_WIDTH", 1920),
		ViewportHeight:     getEnvIntOrDefault("RBGW_VIEWPORT_HEIGHT", 1080),
		Headless:           getEnvBoolOrDefault("RBGW_HEADLESS", false),
		StreamIntervalMS:   getEnvIntOrDefault("RBGW_STREAM_INTERVAL_MS", 100),
		ScreenshotQuality:  getEnvIntOrDefault("RBGW_SCREENSHOT_QUALITY", 80),
		AddTabDebounceSecs: getEnvIntOrDefault("RBGW_ADD_TAB_DEBOUNCE_SECS", 5),
		SnapshotDir:        getEnvOrDefault("RBGW_SNAPSHOT_DIR", "./snapshots"),
		StaticDir:          getEnvOrDefault("RBGW_STATIC_DIR", "./static"),
		LogLevel:           strings.ToLower(getEnvOrDefault("RBGW_LOG_LEVEL", "info")),
		LogFile:            getEnvOrDefault("RBGW_LOG_FILE", "logs/gateway.log"),
	}

	if cfg.StreamIntervalMS < 20 {
		cfg.StreamIntervalMS = 20
	}
	if cfg.ScreenshotQuality < 1 || cfg.ScreenshotQuality > 100 {
		cfg.ScreenshotQuality = 80
	}
	if cfg.ViewportWidth < 320 {
		cfg.ViewportWidth = 320
	}
	if cfg.ViewportHeight < 240 {
		cfg.ViewportHeight = 240
	}
	if cfg.AddTabDebounceSecs < 1 {
		cfg.AddTabDebounceSecs = 1
	}

	return cfg, nil
}

func splitList(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
