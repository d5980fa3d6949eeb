// Package config handles configuration loading for mcp-search-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML or TOML file (chosen by extension)
// with environment variable expansion, then a fixed set of environment
// variables override file values. Without a file, FromEnv returns the
// defaults plus the same overrides.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from MCP_GATEWAY_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/mcp-search-gateway/gateway.yaml
//     (or ~/.config/mcp-search-gateway/gateway.yaml)
//
// # Environment Overrides
//
//	DEFAULT_COLLECTION   upstream.default_collection
//	UPSTREAM_BASE_URL    upstream.base_url
//	MOCK_API_KEY         upstream.mock_api_key (empty disables mock mode)
//	ENABLE_OAUTH         oauth.enabled
//	OAUTH_JWT_SECRET     oauth.jwt_secret
//	HTTP_ADDR            server.http_addr
//
// # Example
//
//	server:
//	  http_addr: ":8000"
//
//	upstream:
//	  base_url: "https://api.airweave.ai"
//	  default_collection: "docs"
//	  timeout: "30s"
//
//	cache:
//	  backend: "memory"        # memory, redis
//	  redis_url: "${REDIS_URL}"
//	  ttl: "5m"
//	  max_entries: 10000
//
//	database:
//	  path: "/var/lib/mcp-search-gateway/audit.db"
//
//	oauth:
//	  enabled: true
//	  jwt_secret: "${OAUTH_JWT_SECRET}"
//	  authorization_servers: ["https://auth.example.com"]
//	  required_scopes: ["search"]  # delegated tokens without these get 403
//
//	tailscale:
//	  enabled: false
//	  hostname: "mcp-search-gateway"
//	  https: true     # :443 with Tailscale certs; funnel: true for public access
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// Duration values use Go's time.ParseDuration syntax.
package config
