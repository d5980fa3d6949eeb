// ABOUTME: Resolution audit records and store methods
// ABOUTME: Records which organization a token digest resolved to for a collection, and failures

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome classifies a resolution attempt.
type Outcome string

const (
	OutcomeCacheHit        Outcome = "cache_hit"
	OutcomeResolved        Outcome = "resolved"
	OutcomeNoOrganizations Outcome = "no_organizations"
	OutcomeProbeError      Outcome = "probe_error"
	OutcomeNotFound        Outcome = "not_found"
	OutcomeError           Outcome = "error"
)

// ValidOutcomes lists all outcomes accepted by the schema.
var ValidOutcomes = []Outcome{
	OutcomeCacheHit,
	OutcomeResolved,
	OutcomeNoOrganizations,
	OutcomeProbeError,
	OutcomeNotFound,
	OutcomeError,
}

// Resolution is one audit record. Tokens are only ever stored as digests.
type Resolution struct {
	ID             string        // UUID v4
	TokenDigest    string        // truncated sha256 of the caller's token
	Collection     string        // requested collection readable id
	OrganizationID string        // empty on failure
	Outcome        Outcome       // what happened
	Detail         string        // error text on failure
	Duration       time.Duration // time spent resolving
	CreatedAt      time.Time
}

// ResolutionFilter narrows ListResolutions.
type ResolutionFilter struct {
	Collection *string
	Outcome    *Outcome
	Since      *time.Time
	Limit      int // default 100, max 1000
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// AppendResolution stores a record. Generates ID and CreatedAt if not set.
func (s *SQLiteStore) AppendResolution(ctx context.Context, r *Resolution) error {
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	var orgID, detail *string
	if r.OrganizationID != "" {
		orgID = &r.OrganizationID
	}
	if r.Detail != "" {
		detail = &r.Detail
	}

	query := `
		INSERT INTO resolutions (resolution_id, token_digest, collection, organization_id, outcome, detail, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		r.ID,
		r.TokenDigest,
		r.Collection,
		orgID,
		string(r.Outcome),
		detail,
		r.Duration.Milliseconds(),
		r.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting resolution: %w", err)
	}

	s.logger.Debug("recorded resolution",
		"id", r.ID,
		"collection", r.Collection,
		"outcome", r.Outcome,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000).
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const resolutionsQuery = `
	SELECT resolution_id, token_digest, collection, organization_id, outcome, detail, duration_ms, created_at
	FROM resolutions
	WHERE (? IS NULL OR collection = ?)
	  AND (? IS NULL OR outcome = ?)
	  AND (? IS NULL OR created_at >= ?)
	ORDER BY created_at DESC, rowid DESC
	LIMIT ?
`

// ListResolutions returns records matching the filter, newest first.
func (s *SQLiteStore) ListResolutions(ctx context.Context, f ResolutionFilter) ([]Resolution, error) {
	var outcome, since *string
	if f.Outcome != nil {
		o := string(*f.Outcome)
		outcome = &o
	}
	if f.Since != nil {
		t := f.Since.UTC().Format(timeLayout)
		since = &t
	}

	rows, err := s.db.QueryContext(ctx, resolutionsQuery,
		f.Collection, f.Collection,
		outcome, outcome,
		since, since,
		normalizeLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying resolutions: %w", err)
	}
	defer rows.Close()

	var out []Resolution
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating resolutions: %w", err)
	}
	return out, nil
}

func scanResolution(scanner interface{ Scan(dest ...any) error }) (Resolution, error) {
	var r Resolution
	var orgID, detail *string
	var outcome, createdAt string
	var durationMS int64

	if err := scanner.Scan(
		&r.ID,
		&r.TokenDigest,
		&r.Collection,
		&orgID,
		&outcome,
		&detail,
		&durationMS,
		&createdAt,
	); err != nil {
		return r, fmt.Errorf("scanning resolution: %w", err)
	}

	if orgID != nil {
		r.OrganizationID = *orgID
	}
	if detail != nil {
		r.Detail = *detail
	}
	r.Outcome = Outcome(outcome)
	r.Duration = time.Duration(durationMS) * time.Millisecond

	var err error
	r.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return r, fmt.Errorf("parsing created_at: %w", err)
	}
	return r, nil
}
