package table

import (
	"strings"

	"lexicon/internal/terminology"
	"lexicon/pkg/domain"
)

// Variable is one column of a data-dictionary table.
type Variable struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	DataType    string   `json:"data_type"`
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	Units       string   `json:"units,omitempty"`
}

// Table is a data-dictionary table. Its variables also form a shadow terminology.
type Table struct {
	ID          string                `json:"id"`
	Name        string                `json:"name"`
	URL         string                `json:"url,omitempty"`
	Description string                `json:"description,omitempty"`
	Terminology terminology.Reference `json:"terminology"`
	Variables   []Variable            `json:"variables"`
}

// TerminologyID extracts the shadow terminology id from its reference.
func (t *Table) TerminologyID() string {
	return strings.TrimPrefix(t.Terminology.Reference, domain.CollectionTerminology+"/")
}

type CreateInput struct {
	Name        string
	URL         string
	Description string
	Variables   []Variable
}
