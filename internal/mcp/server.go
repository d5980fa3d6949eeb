// ABOUTME: Per-request MCP server factory bound to one request-scoped configuration.
// ABOUTME: Wraps an mcp-go MCPServer exposing the search and get-config tools.

package mcp

import (
	"log/slog"
	"sync"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/2389/mcp-search-gateway/internal/auth"
	"github.com/2389/mcp-search-gateway/internal/upstream"
)

// Default server identity reported in the MCP initialize result.
const (
	DefaultServerName    = "mcp-search-gateway"
	DefaultServerVersion = "dev"
)

// RequestConfig is assembled fresh for each inbound request and never
// mutated afterwards.
type RequestConfig struct {
	APIKey         string
	Collection     string
	BaseURL        string
	OrganizationID string // set only on the delegated path
	Source         auth.Source
}

// Server is one MCP server instance. It serves a single request and is
// closed when that request ends.
type Server struct {
	mcp      *mcpserver.MCPServer
	cfg      RequestConfig
	upstream *upstream.Client
	logger   *slog.Logger

	closeOnce sync.Once
	closeErr  error
	onClose   []func()
}

// ServerOption configures a Server.
type ServerOption func(*serverOptions)

type serverOptions struct {
	name         string
	version      string
	upstreamOpts []upstream.Option
	logger       *slog.Logger
}

// WithServerInfo sets the implementation name and version.
func WithServerInfo(name, version string) ServerOption {
	return func(o *serverOptions) {
		o.name = name
		o.version = version
	}
}

// WithUpstreamOptions passes options through to the upstream client.
func WithUpstreamOptions(opts ...upstream.Option) ServerOption {
	return func(o *serverOptions) {
		o.upstreamOpts = append(o.upstreamOpts, opts...)
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(o *serverOptions) {
		o.logger = logger
	}
}

// NewServer builds a server whose tools see only cfg. It has no side
// effects beyond allocation.
func NewServer(cfg RequestConfig, opts ...ServerOption) *Server {
	o := serverOptions{
		name:    DefaultServerName,
		version: DefaultServerVersion,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	client := upstream.New(upstream.Config{
		APIKey:         cfg.APIKey,
		BaseURL:        cfg.BaseURL,
		OrganizationID: cfg.OrganizationID,
	}, append([]upstream.Option{upstream.WithLogger(o.logger)}, o.upstreamOpts...)...)

	s := &Server{
		mcp: mcpserver.NewMCPServer(
			o.name,
			o.version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithRecovery(),
		),
		cfg:      cfg,
		upstream: client,
		logger:   o.logger,
	}
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// Config returns the configuration this server is bound to.
func (s *Server) Config() RequestConfig {
	return s.cfg
}

// OnClose registers fn to run when the server is closed.
func (s *Server) OnClose(fn func()) {
	s.onClose = append(s.onClose, fn)
}

// Close releases the upstream client and runs OnClose hooks. Safe to call
// more than once; only the first call has effect.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.upstream.Close()
		for _, fn := range s.onClose {
			fn()
		}
	})
	return s.closeErr
}
