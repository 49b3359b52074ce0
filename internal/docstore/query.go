package docstore

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Direction orders query results.
type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter is a field equality constraint.
type Filter struct {
	Field string
	Value any
}

// Query selects documents of one collection. The zero value matches everything.
type Query struct {
	Filters   []Filter
	OrderBy   string
	Direction Direction
	Max       int
}

// Where adds an equality filter on a top-level field.
func (q Query) Where(field string, value any) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), Filter{Field: field, Value: normalizeValue(value)})
	return q
}

// Order sorts results by field. Ties break on document id.
func (q Query) Order(field string, dir Direction) Query {
	q.OrderBy = field
	q.Direction = dir
	return q
}

// Limit caps the number of results. Zero means unlimited.
func (q Query) Limit(n int) Query {
	q.Max = n
	return q
}

// Matches reports whether data satisfies every filter.
func (q Query) Matches(data map[string]any) bool {
	for _, f := range q.Filters {
		v, ok := data[f.Field]
		if !ok || !reflect.DeepEqual(v, f.Value) {
			return false
		}
	}
	return true
}

// Apply filters, sorts and limits snapshots in memory. Backends without query pushdown use it,
// and pushdown backends run it again as the final authority on ordering.
func (q Query) Apply(snapshots []Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(snapshots))
	for _, s := range snapshots {
		if s.Exists() && q.Matches(s.data) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.OrderBy != "" {
			c := compareValues(out[i].data[q.OrderBy], out[j].data[q.OrderBy])
			if c != 0 {
				if q.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
		}
		return out[i].id < out[j].id
	})
	if q.Max > 0 && len(out) > q.Max {
		out = out[:q.Max]
	}
	return out
}

// FilterDocument renders the equality filters as a JSON object, for backends with containment queries.
func (q Query) FilterDocument() (string, bool) {
	if len(q.Filters) == 0 {
		return "", false
	}
	doc := make(map[string]any, len(q.Filters))
	for _, f := range q.Filters {
		doc[f.Field] = f.Value
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", false
	}
	return string(raw), true
}

func normalizeValue(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

// compareValues orders JSON-shaped scalars: missing/nil first, then bools, numbers, strings.
func compareValues(a, b any) int {
	ra, rb := rank(a), rank(b)
	if ra != rb {
		return ra - rb
	}
	switch x := a.(type) {
	case bool:
		y := b.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case float64:
		y := b.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(x, b.(string))
	case nil:
		return 0
	default:
		return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
	}
}

func rank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}
