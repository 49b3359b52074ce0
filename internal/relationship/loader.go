package relationship

import (
	"context"
	"errors"
	"fmt"

	"lexicon/internal/terminology"
	"lexicon/pkg/platform/sentinel"
)

// DefaultCodes seed the reference terminology.
var DefaultCodes = []terminology.CodeInput{
	{Code: "related-to", Display: "Related to"},
	{Code: "equivalent", Display: "Equivalent"},
	{Code: "source-is-narrower-than-target", Display: "Source is narrower than target"},
	{Code: "source-is-broader-than-target", Display: "Source is broader than target"},
	{Code: "not-related-to", Display: "Not related to"},
}

// Static serves a fixed code list.
type Static []string

func (s Static) Load(context.Context) ([]string, error) {
	return append([]string(nil), s...), nil
}

// DefaultStatic is the seed vocabulary as a Static loader.
func DefaultStatic() Static {
	out := make(Static, 0, len(DefaultCodes))
	for _, c := range DefaultCodes {
		out = append(out, c.Code)
	}
	return out
}

// StoreLoader reads the valid codes of the reference terminology.
type StoreLoader struct {
	repo          *terminology.Repository
	terminologyID string
}

func NewStoreLoader(repo *terminology.Repository, terminologyID string) *StoreLoader {
	return &StoreLoader{repo: repo, terminologyID: terminologyID}
}

func (l *StoreLoader) Load(ctx context.Context) ([]string, error) {
	t, err := l.repo.Load(ctx, l.terminologyID)
	if err != nil {
		return nil, fmt.Errorf("reference terminology %s: %w", l.terminologyID, err)
	}
	codes := make([]string, 0, len(t.Codes))
	for _, c := range t.ValidCodes() {
		codes = append(codes, c.Code)
	}
	return codes, nil
}

// Seed writes the reference terminology with DefaultCodes when it does not exist. Returns
// whether it was created.
func Seed(ctx context.Context, repo *terminology.Repository, terminologyID string) (bool, error) {
	t := &terminology.Terminology{
		ID:          terminologyID,
		Name:        "FTD Concept Map Relationship",
		Description: "Allowed relationships between a code and its mapped codes",
	}
	for i, in := range DefaultCodes {
		c := terminology.Coding{Code: in.Code, Display: in.Display, Rank: i}
		c.SetValid(true)
		t.Codes = append(t.Codes, c)
	}
	if err := repo.Create(ctx, t); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
