// Package mcp serves the gateway's Model Context Protocol endpoint.
//
// # Overview
//
// The endpoint is stateless. Each POST /mcp builds its own protocol server
// and Streamable HTTP transport from a RequestConfig, serves exactly that
// request, and tears both down. No state survives between requests, so any
// gateway replica can answer any request.
//
// # Request Lifecycle
//
//  1. The body is read (1MB limit) so early errors can echo the JSON-RPC id.
//  2. auth.Extract finds the credential; none means HTTP 401 / -32001.
//  3. The collection comes from X-Collection-Readable-Id or the configured
//     default; none means HTTP 400 / -32602.
//  4. Delegated credentials are resolved to an organization; failure means
//     HTTP 403 / -32002 with the resolver's message.
//  5. NewServer and the transport are built and the request is served.
//  6. Transport shutdown and server close run once, when the handler
//     returns or the client disconnects.
//
// Panics and construction failures are logged and answered with HTTP 500 /
// -32603 "Internal server error".
//
// # Tools
//
//   - search: query the bound collection (raw results or a completion)
//   - get-config: report the collection, backend, organization and auth mode
//
// # Other Methods
//
// DELETE /mcp succeeds without doing anything since there is no session to
// end. GET /mcp is refused with 405 because stateless transports cannot push.
package mcp
