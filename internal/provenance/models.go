package provenance

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"lexicon/pkg/domain"
)

// Action names the kind of change recorded in a provenance entry.
type Action string

const (
	ActionAdd                   Action = "Add"
	ActionEdit                  Action = "Edit"
	ActionRemove                Action = "Remove"
	ActionSoftDeleteMapping     Action = "SoftDeleteMapping"
	ActionSoftDeleteAllMappings Action = "SoftDeleteAllMappings"
)

// Ref addresses the resource a provenance record belongs to.
type Ref struct {
	Type domain.ResourceType
	ID   string
}

func (r Ref) String() string {
	return r.Type.String() + "/" + r.ID
}

// Change is one provenance entry.
type Change struct {
	Timestamp time.Time
	Action    Action
	Editor    string
	OldValue  string
	NewValue  string
}

// Display renders the change for API responses with an RFC3339Nano timestamp.
func (c Change) Display() DisplayChange {
	return DisplayChange{
		Timestamp: c.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:    c.Action,
		Editor:    c.Editor,
		OldValue:  c.OldValue,
		NewValue:  c.NewValue,
	}
}

// DisplayChange is a Change with its timestamp formatted for display.
type DisplayChange struct {
	Timestamp string `json:"timestamp"`
	Action    Action `json:"action"`
	Editor    string `json:"editor"`
	OldValue  string `json:"old_value,omitempty"`
	NewValue  string `json:"new_value,omitempty"`
}

// TimelineEntry is a change tagged with the target it was recorded on.
type TimelineEntry struct {
	Target string
	Change
}

// record is the stored document {target, changes}.
type record struct {
	Target  string        `json:"target"`
	Changes []storedEntry `json:"changes"`
}

type storedEntry struct {
	Timestamp timestamp `json:"timestamp"`
	Action    Action    `json:"action"`
	Editor    string    `json:"editor"`
	OldValue  string    `json:"old_value,omitempty"`
	NewValue  string    `json:"new_value,omitempty"`
}

func toStored(c Change) storedEntry {
	return storedEntry{
		Timestamp: timestamp(c.Timestamp),
		Action:    c.Action,
		Editor:    c.Editor,
		OldValue:  c.OldValue,
		NewValue:  c.NewValue,
	}
}

func (e storedEntry) change() Change {
	return Change{
		Timestamp: time.Time(e.Timestamp),
		Action:    e.Action,
		Editor:    e.Editor,
		OldValue:  e.OldValue,
		NewValue:  e.NewValue,
	}
}

// timestamp is written as RFC3339Nano. Older records carry epoch numbers (seconds, or
// milliseconds when the value is too large to be seconds) or numeric strings.
type timestamp time.Time

// Values above this are taken as milliseconds.
const maxEpochSeconds = 1e11

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := parseTimestamp(raw)
	if err != nil {
		return err
	}
	*t = timestamp(parsed)
	return nil
}

func parseTimestamp(raw any) (time.Time, error) {
	switch v := raw.(type) {
	case nil:
		return time.Time{}, nil
	case float64:
		return fromEpoch(v), nil
	case string:
		if v == "" {
			return time.Time{}, nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return parsed.UTC(), nil
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return fromEpoch(f), nil
		}
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
	default:
		return time.Time{}, fmt.Errorf("unrecognized timestamp %v", raw)
	}
}

func fromEpoch(v float64) time.Time {
	if v > maxEpochSeconds {
		return time.UnixMilli(int64(v)).UTC()
	}
	sec, frac := math.Modf(v)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC()
}
