package terminology

import "lexicon/pkg/domain"

// Coding is one entry of a terminology.
type Coding struct {
	Code        string `json:"code"`
	Display     string `json:"display,omitempty"`
	System      string `json:"system,omitempty"`
	Description string `json:"description,omitempty"`
	// Valid is nil on records written before validity existed; those count as valid.
	Valid *bool `json:"valid,omitempty"`
	Rank  int   `json:"rank"`
}

// IsValid reports whether the entry is live. A missing flag counts as valid.
func (c Coding) IsValid() bool {
	return c.Valid == nil || *c.Valid
}

// SetValid stamps the validity flag.
func (c *Coding) SetValid(valid bool) {
	c.Valid = &valid
}

// Terminology is a controlled vocabulary.
type Terminology struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	URL         string   `json:"url,omitempty"`
	Description string   `json:"description,omitempty"`
	Codes       []Coding `json:"codes"`

	// Version is the storage version the terminology was read at.
	Version int64 `json:"-"`
}

// NaturalKey identifies the terminology across submissions: the url, else the name.
func (t *Terminology) NaturalKey() string {
	return NaturalKey(t.URL, t.Name)
}

func NaturalKey(url, name string) string {
	if url != "" {
		return url
	}
	return name
}

// Reference renders the resource reference "Terminology/{id}".
func (t *Terminology) Reference() string {
	return domain.CollectionTerminology + "/" + t.ID
}

// IndexOfValid returns the position of the valid entry for code, or -1.
func (t *Terminology) IndexOfValid(code string) int {
	for i, c := range t.Codes {
		if c.Code == code && c.IsValid() {
			return i
		}
	}
	return -1
}

// IndexOfInvalid returns the position of the most recent soft-deleted entry for code, or -1.
func (t *Terminology) IndexOfInvalid(code string) int {
	for i := len(t.Codes) - 1; i >= 0; i-- {
		if t.Codes[i].Code == code && !t.Codes[i].IsValid() {
			return i
		}
	}
	return -1
}

// HasCode reports whether a valid entry uses code.
func (t *Terminology) HasCode(code string) bool {
	return t.IndexOfValid(code) >= 0
}

// ValidCodes returns the live entries in rank order.
func (t *Terminology) ValidCodes() []Coding {
	out := make([]Coding, 0, len(t.Codes))
	for _, c := range t.Codes {
		if c.IsValid() {
			out = append(out, c)
		}
	}
	return out
}

func (t *Terminology) rerank() {
	for i := range t.Codes {
		t.Codes[i].Rank = i
	}
}

// CodeInput carries a code to add.
type CodeInput struct {
	Code        string
	Display     string
	System      string
	Description string
}

// CreateInput carries a new terminology.
type CreateInput struct {
	Name        string
	URL         string
	Description string
	Codes       []CodeInput
	// Reuse returns an existing terminology with the same natural key instead of failing.
	Reuse bool
}

// UpdateInput carries the fields to change; nil leaves a field untouched.
type UpdateInput struct {
	Name        *string
	URL         *string
	Description *string
}

// Reference points at another resource, e.g. "Terminology/tm-1".
type Reference struct {
	Reference string `json:"reference"`
}
