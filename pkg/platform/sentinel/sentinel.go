package sentinel

import "errors"

// Sentinel errors for storage facts. Document stores and their adapters return these
// (optionally wrapped) so services can translate them into domain errors:
// - ErrNotFound: document or record does not exist
// - ErrConflict: a write precondition (version token, create-only) did not hold
// - ErrInvalidState: stored data has an unexpected shape
// - ErrUnavailable: backing store unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
