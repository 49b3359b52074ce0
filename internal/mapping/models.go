package mapping

import (
	"lexicon/internal/terminology"
	"lexicon/internal/userinput"
)

// CodingMapping is a mapped target code.
type CodingMapping struct {
	terminology.Coding
	MappingRelationship string `json:"mapping_relationship,omitempty"`
	// FTDCode is the storage-normalized key of the target code.
	FTDCode string `json:"ftd_code,omitempty"`
	// UserInput is computed on read and never persisted.
	UserInput *userinput.Summary `json:"user_input,omitempty"`
}

// document is stored at Terminology/{id}/mappings/{code}.
type document struct {
	Code  string          `json:"code"`
	Codes []CodingMapping `json:"codes"`
}

func (d document) validCodes() []string {
	var out []string
	for _, c := range d.Codes {
		if c.IsValid() {
			out = append(out, c.Code)
		}
	}
	return out
}

// ReadOptions tune GetMappings and ListMappings.
type ReadOptions struct {
	// IncludeInvalid returns soft-deleted targets too.
	IncludeInvalid bool
	// WithUserInput attaches the vote and note summary of each pair.
	WithUserInput bool
}
