package identity

import (
	"time"

	"lexicon/pkg/domain"
)

// Record is a GlobalID document: the canonical id minted for one
// (resource type, domain, natural key) tuple.
type Record struct {
	ID           string              `json:"id"`
	ResourceType domain.ResourceType `json:"resource_type"`
	Domain       string              `json:"domain"`
	Key          string              `json:"key"`
	StorageID    string              `json:"storage_id,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
}
