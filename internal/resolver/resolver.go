// ABOUTME: Resolves which organization owns a collection for a delegated token.
// ABOUTME: Probes organizations in upstream order and caches the first exact match.

// Package resolver maps a (token, collection) pair to the organization that
// owns the collection. Delegated OAuth tokens can span several
// organizations, while backend search calls must be scoped to one.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2389/mcp-search-gateway/internal/orgcache"
	"github.com/2389/mcp-search-gateway/internal/store"
	"github.com/2389/mcp-search-gateway/internal/upstream"
)

// DefaultProbeLimit is the page size used when probing an organization's collections.
const DefaultProbeLimit = 25

var tracer = otel.Tracer("github.com/2389/mcp-search-gateway/internal/resolver")

// Directory is the slice of the backend API the resolver needs.
type Directory interface {
	ListOrganizations(ctx context.Context) ([]upstream.Organization, error)
	ListCollections(ctx context.Context, orgID, search string, limit int) ([]upstream.Collection, error)
}

// DirectoryFactory builds a Directory authenticated as token against baseURL.
type DirectoryFactory func(token, baseURL string) Directory

// Recorder receives one record per resolution attempt.
type Recorder interface {
	AppendResolution(ctx context.Context, r *store.Resolution) error
}

// Config holds the resolver's collaborators.
type Config struct {
	Cache        orgcache.Cache
	NewDirectory DirectoryFactory
	ProbeLimit   int
	Recorder     Recorder // optional
	Logger       *slog.Logger
}

// Resolver implements organization resolution with caching.
type Resolver struct {
	cache        orgcache.Cache
	newDirectory DirectoryFactory
	probeLimit   int
	recorder     Recorder
	logger       *slog.Logger
}

// New creates a Resolver.
func New(cfg Config) (*Resolver, error) {
	if cfg.Cache == nil {
		return nil, errors.New("cache is required")
	}
	if cfg.NewDirectory == nil {
		return nil, errors.New("directory factory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	limit := cfg.ProbeLimit
	if limit <= 0 {
		limit = DefaultProbeLimit
	}

	return &Resolver{
		cache:        cfg.Cache,
		newDirectory: cfg.NewDirectory,
		probeLimit:   limit,
		recorder:     cfg.Recorder,
		logger:       logger,
	}, nil
}

// Resolve returns the id of the first organization, in upstream order, that
// owns a collection whose readable id equals collection.
func (r *Resolver) Resolve(ctx context.Context, token, baseURL, collection string) (string, error) {
	ctx, span := tracer.Start(ctx, "resolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("collection", collection))

	start := time.Now()
	key := orgcache.Key(token, collection)

	orgID, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		// The cache is advisory; fall through to a full resolution
		r.logger.Warn("resolution cache read failed", "error", err)
	}
	if ok {
		span.SetAttributes(attribute.Bool("cache_hit", true), attribute.String("organization_id", orgID))
		r.record(ctx, token, collection, orgID, store.OutcomeCacheHit, "", start)
		return orgID, nil
	}

	orgID, err = r.probe(ctx, r.newDirectory(token, baseURL), collection)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, token, collection, "", outcomeFor(err), err.Error(), start)
		return "", err
	}

	if err := r.cache.Set(ctx, key, orgID); err != nil {
		r.logger.Warn("resolution cache write failed", "error", err)
	}

	span.SetAttributes(attribute.String("organization_id", orgID))
	r.record(ctx, token, collection, orgID, store.OutcomeResolved, "", start)
	r.logger.Debug("resolved organization for collection",
		"collection", collection,
		"organization_id", orgID,
		"token", orgcache.TokenDigest(token),
	)
	return orgID, nil
}

// probe walks the organizations in order and stops at the first exact match
// or the first hard probe failure.
func (r *Resolver) probe(ctx context.Context, dir Directory, collection string) (string, error) {
	orgs, err := dir.ListOrganizations(ctx)
	if err != nil {
		return "", fmt.Errorf("listing organizations: %w", err)
	}
	if len(orgs) == 0 {
		return "", ErrNoOrganizations
	}

	for _, org := range orgs {
		cols, err := dir.ListCollections(ctx, org.ID, collection, r.probeLimit)
		if upstream.IsNotFound(err) {
			r.logger.Debug("collection not in organization", "collection", collection, "organization_id", org.ID)
			continue
		}
		if err != nil {
			return "", &ProbeError{
				OrganizationID: org.ID,
				StatusCode:     upstream.StatusCode(err),
				Err:            err,
			}
		}
		for _, c := range cols {
			if c.ReadableID == collection {
				return org.ID, nil
			}
		}
	}

	return "", &NotFoundError{Collection: collection, Tried: orgs}
}

func (r *Resolver) record(ctx context.Context, token, collection, orgID string, outcome store.Outcome, detail string, start time.Time) {
	if r.recorder == nil {
		return
	}
	rec := &store.Resolution{
		TokenDigest:    orgcache.TokenDigest(token),
		Collection:     collection,
		OrganizationID: orgID,
		Outcome:        outcome,
		Detail:         detail,
		Duration:       time.Since(start),
	}
	if err := r.recorder.AppendResolution(ctx, rec); err != nil {
		r.logger.Warn("failed to record resolution", "error", err)
	}
}

// outcomeFor maps a resolution error to its audit outcome.
func outcomeFor(err error) store.Outcome {
	var probeErr *ProbeError
	var notFound *NotFoundError
	switch {
	case errors.Is(err, ErrNoOrganizations):
		return store.OutcomeNoOrganizations
	case errors.As(err, &probeErr):
		return store.OutcomeProbeError
	case errors.As(err, &notFound):
		return store.OutcomeNotFound
	default:
		return store.OutcomeError
	}
}
