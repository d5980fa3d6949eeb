// Package gateway orchestrates the mcp-search-gateway server components.
//
// # Overview
//
// The gateway owns the process-wide pieces (the organization cache, the
// optional audit store, the pooled upstream HTTP client and the JWT
// verifier) and mounts the stateless MCP handler behind a chi router.
// Nothing about an individual MCP request outlives that request.
//
// # HTTP Surface
//
//   - POST /mcp - MCP over Streamable HTTP, one fresh server per request
//   - DELETE /mcp - accepted, no-op (there are no sessions)
//   - GET /health - liveness with protocol version and mode
//   - GET / - service information and supported authentication
//   - GET /.well-known/oauth-protected-resource - when OAuth is enabled
//   - GET /oauth/callback - when an OAuth client is configured
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled, then shuts down
//
// Run listens on server.http_addr, or on a Tailscale node when
// tailscale.enabled is set (plain HTTP on :80, HTTPS on :443 with
// tailscale.https, or public Funnel with tailscale.funnel). Shutdown waits up
// to five seconds for in-flight requests, then closes the cache and store.
package gateway
