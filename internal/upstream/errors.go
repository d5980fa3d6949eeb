// ABOUTME: Error type for non-success responses from the backend API.
// ABOUTME: Keeps status, message and body together for diagnostics.

package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is returned for any non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("upstream API error (status %d): %s", e.StatusCode, e.Message)
	if e.Body != "" && e.Body != e.Message {
		msg += " - body: " + e.Body
	}
	return msg
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func newAPIError(status int, body []byte) *APIError {
	trimmed := strings.TrimSpace(string(body))
	return &APIError{
		StatusCode: status,
		Message:    errorMessage(status, body),
		Body:       trimmed,
	}
}

// errorMessage pulls a human readable message out of common error bodies
// ({"detail": ...}, {"message": ...}, {"error": ...}).
func errorMessage(status int, body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err == nil {
		for _, key := range []string{"detail", "message", "error"} {
			if s, ok := parsed[key].(string); ok && s != "" {
				return s
			}
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return "unexpected status"
}
