// ABOUTME: JSON-RPC 2.0 envelopes for errors the gateway answers before the MCP server runs.
// ABOUTME: Echoes the request id (or null) and pairs each error code with an HTTP status.

package mcp

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Gateway error codes, in the implementation-defined server error range.
const (
	CodeAuthRequired     = -32001
	CodeResolutionFailed = -32002
)

const (
	msgAuthRequired        = "Authentication required. Provide an API key via X-API-Key or Authorization: Bearer."
	msgInternalError       = "Internal server error"
	msgCollectionRequired  = "No collection specified. Set the X-Collection-Readable-Id header or configure a default collection."
	msgRequestBodyTooLarge = "request body too large"
)

var nullID = json.RawMessage("null")

// requestID pulls the "id" member out of a JSON-RPC request body. Anything
// that is not an object with an id, including batches and garbage, yields null.
func requestID(body []byte) json.RawMessage {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil || len(probe.ID) == 0 {
		return nullID
	}
	return bytes.Clone(probe.ID)
}

// sendJSONRPCError sends a JSON-RPC error response with the given HTTP status.
func sendJSONRPCError(w http.ResponseWriter, logger *slog.Logger, status int, id json.RawMessage, code int, message string) {
	if len(id) == 0 {
		id = nullID
	}
	resp := JSONRPCResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &JSONRPCError{
			Code:    code,
			Message: message,
		},
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warn("failed to encode JSON-RPC error response", "error", err)
	}
}
