// Package audit carries provenance change events out of the engine. Every successful
// provenance append produces one Event; publishers forward it to Kafka, NATS or memory.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event describes one appended provenance entry.
type Event struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	Target       string    `json:"target"`
	Action       string    `json:"action"`
	Editor       string    `json:"editor,omitempty"`
	OldValue     string    `json:"old_value,omitempty"`
	NewValue     string    `json:"new_value,omitempty"`
	// RequestID correlates the event with the originating call.
	RequestID string `json:"request_id,omitempty"`
}

// Key partitions events so every change of one resource stays ordered.
func (e Event) Key() string {
	return e.ResourceType + "/" + e.ResourceID
}

// Prepare fills the id and timestamp when unset.
func (e Event) Prepare(now time.Time) Event {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = now
	}
	return e
}

// Marshal renders the wire payload shared by every transport.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal change event: %w", err)
	}
	return data, nil
}

// Unmarshal parses a wire payload.
func Unmarshal(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("unmarshal change event: %w", err)
	}
	return e, nil
}

// Publisher forwards change events. Publish is synchronous; callers decide whether a failure
// matters.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Nop discards events. It backs the "none" change feed.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }
