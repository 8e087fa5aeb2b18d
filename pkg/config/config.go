// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultUserAgent is sent on every upstream request that does not set its own.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port         int
	BaseURL      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Authentication
	APIPassword string

	// Upstream HTTP settings
	GlobalProxies   []string
	TransportRoutes []TransportRoute
	UTLSDomains     []string
	UserAgent       string
	RequestTimeout  time.Duration

	// Logging
	LogLevel string
	LogJSON  bool

	// FlareSolverr settings (for Cloudflare bypass)
	FlareSolverrURL     string
	FlareSolverrTimeout time.Duration

	// Local browser challenge solver
	BrowserSolver   bool
	BrowserPath     string
	BrowserHeadless bool

	// Sources
	EnabledSources   []string
	SourceHosts      map[string]string
	SourceExtraHosts map[string]map[string]string
}

// TransportRoute defines URL-specific proxy routing.
type TransportRoute struct {
	URLPattern string
	Proxy      string
	DisableSSL bool
	Direct     bool // If true, bypass global proxy and connect directly
}

// Load reads configuration from the environment, after merging a .env file
// from the working directory when one exists. Variables already set in the
// environment take precedence over the file.
func Load() *Config {
	_ = godotenv.Load()

	port := getEnvInt("PORT", 7860)
	cfg := &Config{
		Port:                port,
		BaseURL:             getEnvString("BASE_URL", fmt.Sprintf("http://localhost:%d", port)),
		ReadTimeout:         getEnvDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        getEnvDuration("WRITE_TIMEOUT", 120*time.Second),
		IdleTimeout:         getEnvDuration("IDLE_TIMEOUT", 60*time.Second),
		APIPassword:         os.Getenv("API_PASSWORD"),
		GlobalProxies:       getEnvStringSlice("GLOBAL_PROXIES", nil),
		UTLSDomains:         getEnvStringSlice("UTLS_DOMAINS", nil),
		UserAgent:           getEnvString("USER_AGENT", DefaultUserAgent),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		LogLevel:            getEnvString("LOG_LEVEL", "info"),
		LogJSON:             getEnvBool("LOG_JSON", false),
		FlareSolverrURL:     getEnvString("FLARESOLVERR_URL", ""),
		FlareSolverrTimeout: getEnvDuration("FLARESOLVERR_TIMEOUT", 60*time.Second),
		BrowserSolver:       getEnvBool("BROWSER_SOLVER", false),
		BrowserPath:         getEnvString("BROWSER_PATH", ""),
		BrowserHeadless:     getEnvBool("BROWSER_HEADLESS", true),
		EnabledSources:      getEnvStringSlice("ENABLED_SOURCES", nil),
		SourceHosts:         parseHostMap(os.Getenv("SOURCE_HOSTS")),
		SourceExtraHosts:    parseExtraHosts(os.Getenv("SOURCE_EXTRA_HOSTS")),
	}

	cfg.TransportRoutes = parseTransportRoutes(os.Getenv("TRANSPORT_ROUTES"))

	// Legacy single proxy support
	if globalProxy := os.Getenv("GLOBAL_PROXY"); globalProxy != "" && len(cfg.GlobalProxies) == 0 {
		cfg.GlobalProxies = []string{globalProxy}
	}

	return cfg
}

// SourceEnabled reports whether the source id should be registered.
// An empty ENABLED_SOURCES list enables everything.
func (c *Config) SourceEnabled(id string) bool {
	if len(c.EnabledSources) == 0 {
		return true
	}
	for _, s := range c.EnabledSources {
		if strings.EqualFold(s, id) {
			return true
		}
	}
	return false
}

// parseTransportRoutes parses the TRANSPORT_ROUTES env var.
// Format: {URL=pattern, PROXY=url, DISABLE_SSL=true}, {URL=pattern2}
func parseTransportRoutes(s string) []TransportRoute {
	if s == "" {
		return nil
	}

	var routes []TransportRoute
	for _, part := range strings.Split(strings.TrimSpace(s), "}, {") {
		part = strings.Trim(part, "{} ")
		if part == "" {
			continue
		}

		route := TransportRoute{}
		for _, field := range strings.Split(part, ", ") {
			key, value, ok := strings.Cut(field, "=")
			if !ok {
				continue
			}
			value = strings.TrimSpace(value)

			switch strings.ToUpper(strings.TrimSpace(key)) {
			case "URL":
				route.URLPattern = value
			case "PROXY":
				route.Proxy = value
			case "DISABLE_SSL":
				route.DisableSSL = strings.EqualFold(value, "true")
			case "DIRECT":
				route.Direct = strings.EqualFold(value, "true")
			}
		}
		if route.URLPattern != "" {
			routes = append(routes, route)
		}
	}

	return routes
}

// parseHostMap parses "id=https://host,id2=https://host2".
func parseHostMap(s string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		id, host, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || id == "" || host == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(id))] = strings.TrimRight(strings.TrimSpace(host), "/")
	}
	return out
}

// parseExtraHosts parses "id.role=https://host,..." into id -> role -> host.
func parseExtraHosts(s string) map[string]map[string]string {
	out := make(map[string]map[string]string)
	for key, host := range parseHostMap(s) {
		id, role, ok := strings.Cut(key, ".")
		if !ok || role == "" {
			continue
		}
		if out[id] == nil {
			out[id] = make(map[string]string)
		}
		out[id][role] = host
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return strings.ToLower(val) == "true" || val == "1"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		// Try parsing as seconds first
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getEnvStringSlice(key string, defaultVal []string) []string {
	if val := os.Getenv(key); val != "" {
		parts := strings.Split(val, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultVal
}
