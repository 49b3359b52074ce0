package domain

import (
	"strings"

	dErrors "lexicon/pkg/domain-errors"
)

// ResourceType names a top-level entity kind that receives a canonical id.
// Invariant: the value is one of the supported resource types.
//
// Usage: construct via ParseResourceType at trust boundaries; direct casting bypasses validation.
type ResourceType string

const (
	ResourceTerminology    ResourceType = "Terminology"
	ResourceTable          ResourceType = "Table"
	ResourceStudy          ResourceType = "Study"
	ResourceDataDictionary ResourceType = "DataDictionary"
)

// idPrefixes is the single source of truth for supported resource types and the prefix of
// the ids minted for them.
var idPrefixes = map[ResourceType]string{
	ResourceTerminology:    "tm",
	ResourceTable:          "tb",
	ResourceStudy:          "st",
	ResourceDataDictionary: "dd",
}

// ParseResourceType constructs a ResourceType from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseResourceType(s string) (ResourceType, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "resource type cannot be empty")
	}
	rt := ResourceType(s)
	if !rt.IsValid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unsupported resource type %q", s)
	}
	return rt, nil
}

// IsValid checks the value against the supported resource types.
func (rt ResourceType) IsValid() bool {
	_, ok := idPrefixes[rt]
	return ok
}

// IDPrefix returns the prefix used when minting canonical ids.
// Unknown types fall back to their first two letters, lowercased.
func (rt ResourceType) IDPrefix() string {
	if p, ok := idPrefixes[rt]; ok {
		return p
	}
	s := strings.ToLower(string(rt))
	if len(s) > 2 {
		s = s[:2]
	}
	return s
}

// Collection returns the top-level collection that stores documents of this type.
func (rt ResourceType) Collection() string {
	return string(rt)
}

func (rt ResourceType) String() string {
	return string(rt)
}
