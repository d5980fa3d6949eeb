// ABOUTME: Failure taxonomy for organization resolution.
// ABOUTME: No organizations, probe failure, and collection-not-found errors.

package resolver

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/mcp-search-gateway/internal/upstream"
)

// ErrNoOrganizations means the token is not a member of any organization.
var ErrNoOrganizations = errors.New("caller belongs to no organization")

// ProbeError is returned when a collection probe fails with anything other
// than 404. Resolution stops at the first such failure.
type ProbeError struct {
	OrganizationID string
	StatusCode     int
	Err            error
}

func (e *ProbeError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("probing organization %s for collection failed: %v", e.OrganizationID, e.Err)
	}
	return fmt.Sprintf("probing organization %s for collection failed with status %d: %v", e.OrganizationID, e.StatusCode, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// NotFoundError is returned when no accessible organization holds the collection.
type NotFoundError struct {
	Collection string
	Tried      []upstream.Organization
}

func (e *NotFoundError) Error() string {
	tried := make([]string, len(e.Tried))
	for i, org := range e.Tried {
		tried[i] = fmt.Sprintf("%s (%s)", org.Name, org.ID)
	}
	return fmt.Sprintf("collection %q not found in any accessible organization (tried: %s)",
		e.Collection, strings.Join(tried, ", "))
}
