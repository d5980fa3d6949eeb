// ABOUTME: Configuration loading and parsing for mcp-search-gateway
// ABOUTME: Supports YAML or TOML files with env var expansion, environment overrides and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file values.
const (
	EnvDefaultCollection = "DEFAULT_COLLECTION"
	EnvUpstreamBaseURL   = "UPSTREAM_BASE_URL"
	EnvEnableOAuth       = "ENABLE_OAUTH"
	EnvMockAPIKey        = "MOCK_API_KEY"
	EnvOAuthJWTSecret    = "OAUTH_JWT_SECRET"
	EnvHTTPAddr          = "HTTP_ADDR"
)

// MinJWTSecretLength is the shortest accepted HS256 secret.
const MinJWTSecretLength = 32

// Config represents the complete mcp-search-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale" toml:"tailscale"`
	Upstream  UpstreamConfig  `yaml:"upstream" toml:"upstream"`
	Cache     CacheConfig     `yaml:"cache" toml:"cache"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	OAuth     OAuthConfig     `yaml:"oauth" toml:"oauth"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing" toml:"tracing"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled" toml:"enabled"`
	Hostname  string `yaml:"hostname" toml:"hostname"`
	AuthKey   string `yaml:"auth_key" toml:"auth_key"`
	StateDir  string `yaml:"state_dir" toml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral" toml:"ephemeral"`
	HTTPS     bool   `yaml:"https" toml:"https"`   // Serve HTTPS on :443 with Tailscale certs
	Funnel    bool   `yaml:"funnel" toml:"funnel"` // Enable public Funnel (implies HTTPS)
}

// UpstreamConfig describes the search backend.
type UpstreamConfig struct {
	BaseURL           string `yaml:"base_url" toml:"base_url"`
	DefaultCollection string `yaml:"default_collection" toml:"default_collection"`
	MockAPIKey        string `yaml:"mock_api_key" toml:"mock_api_key"` // empty disables mock mode
	ClientName        string `yaml:"client_name" toml:"client_name"`

	Timeout    time.Duration `yaml:"-" toml:"-"`
	TimeoutRaw string        `yaml:"timeout" toml:"timeout"`
}

// CacheConfig holds organization-resolution cache settings
type CacheConfig struct {
	Backend    string `yaml:"backend" toml:"backend"` // memory, redis
	RedisURL   string `yaml:"redis_url" toml:"redis_url"`
	MaxEntries int    `yaml:"max_entries" toml:"max_entries"`
	ProbeLimit int    `yaml:"probe_limit" toml:"probe_limit"`

	TTL    time.Duration `yaml:"-" toml:"-"`
	TTLRaw string        `yaml:"ttl" toml:"ttl"`
}

// DatabaseConfig holds the resolution audit database location.
// An empty path disables auditing.
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// OAuthConfig holds delegated-auth settings
type OAuthConfig struct {
	Enabled              bool     `yaml:"enabled" toml:"enabled"`
	JWTSecret            string   `yaml:"jwt_secret" toml:"jwt_secret"`
	Issuer               string   `yaml:"issuer" toml:"issuer"`
	Audience             string   `yaml:"audience" toml:"audience"`
	PublicURL            string   `yaml:"public_url" toml:"public_url"`
	AuthorizationServers []string `yaml:"authorization_servers" toml:"authorization_servers"`
	Scopes               []string `yaml:"scopes" toml:"scopes"`
	RequiredScopes       []string `yaml:"required_scopes" toml:"required_scopes"` // every delegated token must carry these

	// Authorization-code exchange for /oauth/callback. Optional.
	ClientID     string `yaml:"client_id" toml:"client_id"`
	ClientSecret string `yaml:"client_secret" toml:"client_secret"`
	AuthURL      string `yaml:"auth_url" toml:"auth_url"`
	TokenURL     string `yaml:"token_url" toml:"token_url"`
	RedirectURL  string `yaml:"redirect_url" toml:"redirect_url"`
}

// CallbackEnabled reports whether enough is configured to exchange codes.
func (o OAuthConfig) CallbackEnabled() bool {
	return o.ClientID != "" && o.TokenURL != ""
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// TracingConfig holds OpenTelemetry configuration
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled" toml:"enabled"`
	ServiceName string `yaml:"service_name" toml:"service_name"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Server: ServerConfig{HTTPAddr: ":8000"},
		Tailscale: TailscaleConfig{
			Hostname: "mcp-search-gateway",
		},
		Upstream: UpstreamConfig{
			BaseURL:    "https://api.airweave.ai",
			MockAPIKey: "test-key",
			ClientName: "mcp-search-gateway",
			TimeoutRaw: "30s",
		},
		Cache: CacheConfig{
			Backend:    "memory",
			MaxEntries: 10_000,
			ProbeLimit: 25,
			TTLRaw:     "5m",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Tracing: TracingConfig{ServiceName: "mcp-search-gateway"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, anything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded, then the
// override variables are applied over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw file content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	return finish(cfg)
}

// FromEnv returns defaults with environment overrides applied, for running
// without a config file.
func FromEnv() (*Config, error) {
	return finish(Default())
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// envVarPattern matches ${VAR_NAME}.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		return os.Getenv(envVarPattern.FindStringSubmatch(match)[1])
	})
}

// applyEnvOverrides copies set override variables into cfg.
func applyEnvOverrides(cfg *Config) error {
	if v, ok := os.LookupEnv(EnvDefaultCollection); ok {
		cfg.Upstream.DefaultCollection = v
	}
	if v, ok := os.LookupEnv(EnvUpstreamBaseURL); ok && v != "" {
		cfg.Upstream.BaseURL = v
	}
	if v, ok := os.LookupEnv(EnvMockAPIKey); ok {
		cfg.Upstream.MockAPIKey = v
	}
	if v, ok := os.LookupEnv(EnvOAuthJWTSecret); ok && v != "" {
		cfg.OAuth.JWTSecret = v
	}
	if v, ok := os.LookupEnv(EnvHTTPAddr); ok && v != "" {
		cfg.Server.HTTPAddr = v
	}
	if v, ok := os.LookupEnv(EnvEnableOAuth); ok && v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s=%q is not a boolean", EnvEnableOAuth, v)
		}
		cfg.OAuth.Enabled = enabled
	}
	return nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Upstream.BaseURL == "" {
		return fmt.Errorf("upstream.base_url is required")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache.redis_url is required when cache.backend is redis")
		}
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got %q", c.Cache.Backend)
	}
	if c.Cache.MaxEntries <= 0 {
		return fmt.Errorf("cache.max_entries must be positive")
	}

	if c.OAuth.Enabled && len(c.OAuth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("oauth.jwt_secret must be at least %d bytes when oauth is enabled", MinJWTSecretLength)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Upstream.TimeoutRaw != "" {
		cfg.Upstream.Timeout, err = time.ParseDuration(cfg.Upstream.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing upstream.timeout %q: %w", cfg.Upstream.TimeoutRaw, err)
		}
	}

	if cfg.Cache.TTLRaw != "" {
		cfg.Cache.TTL, err = time.ParseDuration(cfg.Cache.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache.ttl %q: %w", cfg.Cache.TTLRaw, err)
		}
		if cfg.Cache.TTL <= 0 {
			return fmt.Errorf("cache.ttl must be positive, got %q", cfg.Cache.TTLRaw)
		}
	}

	return nil
}
