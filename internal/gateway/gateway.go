// ABOUTME: Gateway orchestrator that wires cache, resolver, audit store and the MCP handler
// ABOUTME: Owns the HTTP server lifecycle over TCP or a Tailscale tsnet node

package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"tailscale.com/ipn/ipnstate"
	"tailscale.com/tsnet"

	"github.com/2389/mcp-search-gateway/internal/auth"
	"github.com/2389/mcp-search-gateway/internal/config"
	"github.com/2389/mcp-search-gateway/internal/mcp"
	"github.com/2389/mcp-search-gateway/internal/orgcache"
	"github.com/2389/mcp-search-gateway/internal/resolver"
	"github.com/2389/mcp-search-gateway/internal/store"
	"github.com/2389/mcp-search-gateway/internal/upstream"
)

const shutdownTimeout = 5 * time.Second

// Gateway orchestrates the mcp-search-gateway server components.
type Gateway struct {
	config      *config.Config
	version     string
	cache       orgcache.Cache
	store       *store.SQLiteStore // nil when auditing is disabled
	resolver    *resolver.Resolver
	verifier    *auth.JWTVerifier // nil unless OAuth is enabled
	handler     *mcp.Handler
	httpClient  *http.Client
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	// publicURL is the configured external base URL; empty means derive it per request.
	publicURL string
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithVersion sets the version reported by the info endpoint and to the backend.
func WithVersion(version string) Option {
	return func(g *Gateway) {
		g.version = version
	}
}

// WithCache replaces the cache built from configuration.
func WithCache(cache orgcache.Cache) Option {
	return func(g *Gateway) {
		g.cache = cache
	}
}

// newCache builds the configured cache backend.
func newCache(ctx context.Context, cfg config.CacheConfig) (orgcache.Cache, error) {
	switch cfg.Backend {
	case "redis":
		return orgcache.NewRedis(ctx, cfg.RedisURL, cfg.TTL)
	default:
		return orgcache.NewMemory(cfg.TTL, cfg.MaxEntries), nil
	}
}

// initStore opens the audit store when a database path is configured.
func initStore(cfg config.DatabaseConfig) (*store.SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return store.NewSQLiteStore(cfg.Path)
}

// New creates a Gateway from configuration. Nothing listens until Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	gw := &Gateway{
		config:    cfg,
		version:   mcp.DefaultServerVersion,
		logger:    logger,
		publicURL: strings.TrimSuffix(cfg.OAuth.PublicURL, "/"),
	}
	for _, opt := range opts {
		opt(gw)
	}

	if gw.cache == nil {
		cache, err := newCache(context.Background(), cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("creating cache: %w", err)
		}
		gw.cache = cache
	}

	auditStore, err := initStore(cfg.Database)
	if err != nil {
		_ = gw.cache.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	gw.store = auditStore

	if err := gw.wire(); err != nil {
		_ = gw.closeComponents()
		return nil, err
	}

	gw.httpServer = &http.Server{
		Handler:           gw.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway initialized",
		"cache", cfg.Cache.Backend,
		"audit", auditStore != nil,
		"oauth", cfg.OAuth.Enabled,
		"mock", cfg.Upstream.MockAPIKey != "",
		"default_collection", cfg.Upstream.DefaultCollection,
	)
	return gw, nil
}

// wire builds the resolver, token verifier and MCP handler.
func (g *Gateway) wire() error {
	cfg := g.config

	// One pooled client serves every per-request upstream client.
	g.httpClient = upstream.NewHTTPClient(cfg.Upstream.Timeout)
	upstreamOpts := []upstream.Option{
		upstream.WithHTTPClient(g.httpClient),
		upstream.WithMockAPIKey(cfg.Upstream.MockAPIKey),
		upstream.WithClientInfo(cfg.Upstream.ClientName, g.version),
		upstream.WithLogger(g.logger.With("component", "upstream")),
	}

	rcfg := resolver.Config{
		Cache: g.cache,
		NewDirectory: func(token, baseURL string) resolver.Directory {
			return upstream.New(upstream.Config{APIKey: token, BaseURL: baseURL}, upstreamOpts...)
		},
		ProbeLimit: cfg.Cache.ProbeLimit,
		Logger:     g.logger.With("component", "resolver"),
	}
	// Assigning a nil *SQLiteStore would make a non-nil interface.
	if g.store != nil {
		rcfg.Recorder = g.store
	}
	res, err := resolver.New(rcfg)
	if err != nil {
		return fmt.Errorf("creating resolver: %w", err)
	}
	g.resolver = res

	if cfg.OAuth.Enabled {
		var vopts []auth.VerifierOption
		if cfg.OAuth.Issuer != "" {
			vopts = append(vopts, auth.WithIssuer(cfg.OAuth.Issuer))
		}
		if cfg.OAuth.Audience != "" {
			vopts = append(vopts, auth.WithAudience(cfg.OAuth.Audience))
		}
		verifier, err := auth.NewJWTVerifier([]byte(cfg.OAuth.JWTSecret), vopts...)
		if err != nil {
			return fmt.Errorf("creating token verifier: %w", err)
		}
		g.verifier = verifier
	}

	g.handler = mcp.NewHandler(mcp.HandlerConfig{
		Resolver:          g.resolver,
		DefaultCollection: cfg.Upstream.DefaultCollection,
		BaseURL:           cfg.Upstream.BaseURL,
		OAuthEnabled:      cfg.OAuth.Enabled,
		PublicURL:         g.publicURL,
		ServerOptions: []mcp.ServerOption{
			mcp.WithServerInfo(mcp.DefaultServerName, g.version),
			mcp.WithUpstreamOptions(upstreamOpts...),
		},
		Logger: g.logger.With("component", "mcp"),
	})
	return nil
}

// oauth2Config returns the authorization-code exchange configuration.
func (g *Gateway) oauth2Config() *oauth2.Config {
	o := g.config.OAuth
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Scopes:       o.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  o.AuthURL,
			TokenURL: o.TokenURL,
		},
	}
}

// Handler returns the root HTTP handler, for tests and embedding.
func (g *Gateway) Handler() http.Handler {
	return g.httpServer.Handler
}

// Store returns the audit store, or nil when auditing is disabled.
func (g *Gateway) Store() *store.SQLiteStore {
	return g.store
}

func (g *Gateway) setupTCPListener() (net.Listener, error) {
	g.logger.Info("starting gateway", "http_addr", g.config.Server.HTTPAddr)

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return nil, fmt.Errorf("listening on HTTP address: %w", err)
	}
	return ln, nil
}

// setupListener creates the listener based on configuration (Tailscale or TCP).
func (g *Gateway) setupListener(ctx context.Context) (net.Listener, error) {
	if g.config.Tailscale.Enabled {
		if g.config.Server.HTTPAddr != "" {
			g.logger.Warn("server.http_addr is ignored when tailscale is enabled",
				"http_addr", g.config.Server.HTTPAddr,
			)
		}
		return g.setupTailscaleListener(ctx)
	}
	return g.setupTCPListener()
}

// startServer serves HTTP in a goroutine, returning the error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run starts the HTTP server and blocks until the context is canceled.
// Returns nil on graceful shutdown, or the first server error.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := g.setupListener(ctx)
	if err != nil {
		return err
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout,
// since the run context is already canceled.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// resolveTailscaleStateDir returns the state directory, using default if not configured.
func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(homeDir, ".local", "share", "mcp-search-gateway", "tailscale"), nil
}

// resolveTailscaleAuthKey returns the auth key from config or environment.
func resolveTailscaleAuthKey(configured string) (string, error) {
	authKey := configured
	if authKey == "" {
		authKey = os.Getenv("TS_AUTHKEY")
	}
	if authKey == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or TS_AUTHKEY environment variable")
	}
	return authKey, nil
}

// setupTailscaleListener starts a tsnet node and returns its HTTP listener.
func (g *Gateway) setupTailscaleListener(ctx context.Context) (net.Listener, error) {
	tsCfg := g.config.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}

	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	g.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	g.logger.Info("starting tailscale node", "hostname", tsCfg.Hostname, "state_dir", stateDir, "ephemeral", tsCfg.Ephemeral)
	status, err := g.tsnetServer.Up(ctx)
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}

	g.logTailscaleStatus(tsCfg.Hostname, status)
	return g.createTailscaleHTTPListener(tsCfg)
}

// logTailscaleStatus logs info about the tailscale node status.
func (g *Gateway) logTailscaleStatus(hostname string, status *ipnstate.Status) {
	var tsAddr, dnsName string
	if len(status.TailscaleIPs) > 0 {
		tsAddr = status.TailscaleIPs[0].String()
	} else {
		g.logger.Warn("tailscale node has no IP addresses assigned")
	}
	if status.Self != nil {
		dnsName = status.Self.DNSName
	}
	g.logger.Info("tailscale node ready", "hostname", hostname, "tailscale_ip", tsAddr, "dns_name", dnsName)
}

// createTailscaleHTTPListener creates the appropriate HTTP listener based on config.
func (g *Gateway) createTailscaleHTTPListener(tsCfg config.TailscaleConfig) (net.Listener, error) {
	switch {
	case tsCfg.Funnel:
		g.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := g.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		return g.createTailscaleTLSListener()
	default:
		ln, err := g.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = g.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}

// createTailscaleTLSListener creates a TLS listener using Tailscale's auto-provisioned certs.
func (g *Gateway) createTailscaleTLSListener() (net.Listener, error) {
	g.logger.Info("enabling HTTPS with Tailscale certs on :443")
	ln, err := g.tsnetServer.Listen("tcp", ":443")
	if err != nil {
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
	}
	lc, err := g.tsnetServer.LocalClient()
	if err != nil {
		_ = ln.Close()
		_ = g.tsnetServer.Close()
		return nil, fmt.Errorf("getting tailscale local client: %w", err)
	}
	return tls.NewListener(ln, &tls.Config{
		GetCertificate: lc.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}), nil
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeComponents releases the cache, store and pooled connections.
func (g *Gateway) closeComponents() error {
	var errs []error
	if g.cache != nil {
		errs = appendCloseError(errs, "cache close", g.cache.Close())
	}
	if g.store != nil {
		errs = appendCloseError(errs, "store close", g.store.Close())
	}
	if g.httpClient != nil {
		g.httpClient.CloseIdleConnections()
	}
	return errors.Join(errs...)
}

// Shutdown gracefully stops the HTTP server and releases resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))

	if g.tsnetServer != nil {
		errs = appendCloseError(errs, "tailscale shutdown", g.tsnetServer.Close())
	}
	if err := g.closeComponents(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
