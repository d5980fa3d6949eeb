// ABOUTME: Stateless HTTP handler for the /mcp endpoint.
// ABOUTME: Per request: extract credential, resolve organization if delegated, build server + transport, tear down once.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/2389/mcp-search-gateway/internal/auth"
)

// HeaderCollection selects the collection for a request.
const HeaderCollection = "X-Collection-Readable-Id"

const teardownTimeout = 5 * time.Second

// Resolver maps a delegated token and collection to the owning organization.
type Resolver interface {
	Resolve(ctx context.Context, token, baseURL, collection string) (string, error)
}

// ServerFactory builds the per-request server.
type ServerFactory func(RequestConfig) (*Server, error)

// HandlerConfig configures the MCP HTTP handler.
type HandlerConfig struct {
	Resolver          Resolver // required when delegated credentials can reach the handler
	DefaultCollection string
	BaseURL           string
	OAuthEnabled      bool
	PublicURL         string // used for the WWW-Authenticate challenge; derived from the request when empty
	ServerOptions     []ServerOption
	NewServer         ServerFactory    // defaults to NewServer with ServerOptions
	NewTransport      TransportFactory // defaults to NewStatelessTransport
	Logger            *slog.Logger
}

// Handler implements the /mcp endpoint. It holds no per-request state.
type Handler struct {
	resolver          Resolver
	defaultCollection string
	baseURL           string
	oauthEnabled      bool
	publicURL         string
	newServer         ServerFactory
	newTransport      TransportFactory
	logger            *slog.Logger
}

// NewHandler creates the /mcp handler.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	newServer := cfg.NewServer
	if newServer == nil {
		opts := append([]ServerOption{WithServerLogger(logger)}, cfg.ServerOptions...)
		newServer = func(rc RequestConfig) (*Server, error) {
			return NewServer(rc, opts...), nil
		}
	}
	newTransport := cfg.NewTransport
	if newTransport == nil {
		newTransport = NewStatelessTransport
	}

	return &Handler{
		resolver:          cfg.Resolver,
		defaultCollection: cfg.DefaultCollection,
		baseURL:           cfg.BaseURL,
		oauthEnabled:      cfg.OAuthEnabled,
		publicURL:         cfg.PublicURL,
		newServer:         newServer,
		newTransport:      newTransport,
		logger:            logger,
	}
}

// ServeHTTP dispatches on method. Only POST carries protocol traffic.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		// No sessions exist to terminate.
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}` + "\n"))
	default:
		// No server-initiated streams without sessions.
		w.Header().Set("Allow", "POST, DELETE")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	// Read the body up front so early errors can echo the request id.
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		sendJSONRPCError(w, h.logger, http.StatusBadRequest, nil, JSONRPCParseError, "failed to read request body")
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		sendJSONRPCError(w, h.logger, http.StatusRequestEntityTooLarge, nil, JSONRPCInvalidRequest, msgRequestBodyTooLarge)
		return
	}
	id := requestID(body)
	r.Body = io.NopCloser(bytes.NewReader(body))

	cred, ok := auth.Extract(r)
	if !ok {
		h.RejectUnauthorized(w, r, nil)
		return
	}

	collection := r.Header.Get(HeaderCollection)
	if collection == "" {
		collection = h.defaultCollection
	}
	if collection == "" {
		sendJSONRPCError(w, h.logger, http.StatusBadRequest, id, JSONRPCInvalidParams, msgCollectionRequired)
		return
	}

	rc := RequestConfig{
		APIKey:     cred.Token,
		Collection: collection,
		BaseURL:    h.baseURL,
		Source:     cred.Source,
	}

	if cred.Source == auth.SourceDelegated {
		if h.resolver == nil {
			h.logger.Error("delegated credential received but no resolver configured")
			sendJSONRPCError(w, h.logger, http.StatusInternalServerError, id, JSONRPCInternalError, msgInternalError)
			return
		}
		orgID, err := h.resolver.Resolve(r.Context(), cred.Token, h.baseURL, collection)
		if err != nil {
			h.logger.Info("organization resolution failed", "collection", collection, "error", err)
			sendJSONRPCError(w, h.logger, http.StatusForbidden, id, CodeResolutionFailed, err.Error())
			return
		}
		rc.OrganizationID = orgID
	}

	h.serve(w, r, id, rc)
}

// serve runs one request through a freshly built server and transport.
// Teardown runs exactly once, on return or when the client goes away,
// whichever comes first.
func (h *Handler) serve(w http.ResponseWriter, r *http.Request, id json.RawMessage, rc RequestConfig) {
	tw := &trackingWriter{ResponseWriter: w}

	var teardown func()
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic handling MCP request",
				"panic", fmt.Sprint(rec),
				"stack", string(debug.Stack()),
			)
			if !tw.wroteHeader {
				sendJSONRPCError(tw, h.logger, http.StatusInternalServerError, id, JSONRPCInternalError, msgInternalError)
			}
		}
		if teardown != nil {
			teardown()
		}
	}()

	srv, err := h.newServer(rc)
	if err != nil {
		h.logger.Error("failed to build MCP server", "error", err)
		sendJSONRPCError(tw, h.logger, http.StatusInternalServerError, id, JSONRPCInternalError, msgInternalError)
		return
	}
	transport := h.newTransport(srv)

	teardown = sync.OnceFunc(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), teardownTimeout)
		defer cancel()
		if err := transport.Shutdown(ctx); err != nil {
			h.logger.Warn("transport shutdown failed", "error", err)
		}
		if err := srv.Close(); err != nil {
			h.logger.Warn("server close failed", "error", err)
		}
	})
	stop := context.AfterFunc(r.Context(), teardown)
	defer stop()

	transport.ServeHTTP(tw, r)
}

// RejectUnauthorized answers a request that carried no usable credential,
// or a delegated token that failed verification. A token missing a required
// scope gets 403 rather than 401.
func (h *Handler) RejectUnauthorized(w http.ResponseWriter, r *http.Request, err error) {
	if h.oauthEnabled {
		w.Header().Set("WWW-Authenticate", auth.WWWAuthenticate(auth.ResourceMetadataURL(r, h.publicURL), err))
	}
	status, msg := http.StatusUnauthorized, msgAuthRequired
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		msg = "Access token expired"
	case errors.Is(err, auth.ErrInsufficientScope):
		status, msg = http.StatusForbidden, "Access token lacks a required scope"
	case err != nil:
		msg = "Invalid access token"
	}
	sendJSONRPCError(w, h.logger, status, peekRequestID(r), CodeAuthRequired, msg)
}

// peekRequestID reads the id from r's body without consuming it.
func peekRequestID(r *http.Request) json.RawMessage {
	if r.Body == nil || r.Body == http.NoBody {
		return nullID
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize))
	if err != nil {
		return nullID
	}
	r.Body = io.NopCloser(bytes.NewReader(body))
	return requestID(body)
}

// trackingWriter remembers whether a response has started so a late panic
// does not write a second status line.
type trackingWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (tw *trackingWriter) WriteHeader(status int) {
	tw.wroteHeader = true
	tw.ResponseWriter.WriteHeader(status)
}

func (tw *trackingWriter) Write(b []byte) (int, error) {
	tw.wroteHeader = true
	return tw.ResponseWriter.Write(b)
}

func (tw *trackingWriter) Flush() {
	if f, ok := tw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (tw *trackingWriter) Unwrap() http.ResponseWriter {
	return tw.ResponseWriter
}
