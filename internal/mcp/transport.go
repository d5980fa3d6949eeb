// ABOUTME: Stateless Streamable HTTP transport construction for a per-request MCP server.
// ABOUTME: The factory seam lets tests substitute a transport and observe shutdown.

package mcp

import (
	"context"
	"net/http"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Transport serves one request against one Server and is shut down afterwards.
type Transport interface {
	http.Handler
	Shutdown(ctx context.Context) error
}

// TransportFactory builds the transport for a server.
type TransportFactory func(*Server) Transport

// NewStatelessTransport returns an mcp-go Streamable HTTP transport that
// keeps no session state between requests.
func NewStatelessTransport(s *Server) Transport {
	return mcpserver.NewStreamableHTTPServer(s.MCPServer(), mcpserver.WithStateLess(true))
}
