// Package store persists the organization-resolution audit trail in SQLite.
//
// # Overview
//
// Every resolution attempt (cache hit, probe success or failure) can be
// appended as a Resolution record. Records carry a truncated digest of the
// caller's token, never the token itself. The store is optional: the gateway
// runs without it when database.path is empty.
//
// # Schema
//
//	resolutions(resolution_id, token_digest, collection, organization_id,
//	            outcome, detail, duration_ms, created_at)
//
// Timestamps are stored as fixed-width UTC text so they sort lexically.
// Outcomes are constrained by a CHECK clause to the Outcome constants.
//
// # Usage
//
//	s, err := store.NewSQLiteStore(path)
//	if err != nil {
//	    return err
//	}
//	defer s.Close()
//
//	outcome := store.OutcomeNotFound
//	records, err := s.ListResolutions(ctx, store.ResolutionFilter{Outcome: &outcome})
//
// The database uses WAL mode with a five second busy timeout, so the
// resolutions CLI can read while the gateway writes.
package store
