package docstore

import (
	"encoding/json"
	"fmt"
)

// Snapshot is a point-in-time read of a document.
type Snapshot struct {
	id      string
	path    string
	version int64
	data    map[string]any
	exists  bool
}

// NewSnapshot builds a snapshot for an existing document. data is owned by the snapshot.
func NewSnapshot(id, path string, version int64, data map[string]any) Snapshot {
	return Snapshot{id: id, path: path, version: version, data: data, exists: true}
}

// Missing builds a snapshot for a document that does not exist.
func Missing(id, path string) Snapshot {
	return Snapshot{id: id, path: path}
}

func (s Snapshot) Exists() bool   { return s.exists }
func (s Snapshot) ID() string     { return s.id }
func (s Snapshot) Path() string   { return s.path }
func (s Snapshot) Version() int64 { return s.version }

// ToMap returns a deep copy of the document data; nil for a missing document.
func (s Snapshot) ToMap() map[string]any {
	if !s.exists {
		return nil
	}
	return CopyMap(s.data)
}

// Get returns a top-level field.
func (s Snapshot) Get(field string) (any, bool) {
	if !s.exists {
		return nil, false
	}
	v, ok := s.data[field]
	return v, ok
}

// DataTo decodes the document into v, which must be a pointer.
func (s Snapshot) DataTo(v any) error {
	if !s.exists {
		return fmt.Errorf("decode %s: document does not exist", s.path)
	}
	raw, err := json.Marshal(s.data)
	if err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", s.path, err)
	}
	return nil
}

// Encode converts a struct (or map) into the JSON-shaped map stored by every backend.
func Encode(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// Normalize canonicalizes document data so every backend stores and compares the same shapes:
// numbers become float64, nested structs become maps.
func Normalize(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	return Encode(data)
}

// CopyMap deep-copies JSON-shaped data.
func CopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = copyValue(t[i])
		}
		return out
	default:
		return v
	}
}
