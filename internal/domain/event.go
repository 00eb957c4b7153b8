package domain

import (
	"encoding/json"
	"time"
)

// EventType discriminates the closed tagged union of pipeline/job events.
// Adding a variant means extending this enum and the Event fields it uses;
// every emitter and subscriber is expected to switch over the full set.
type EventType string

const (
	EventQueueStart     EventType = "queue-start"
	EventItemStart      EventType = "item-start"
	EventItemProgress   EventType = "item-progress"
	EventItemDone       EventType = "item-done"
	EventItemError      EventType = "item-error"
	EventQueueDone      EventType = "queue-done"
	EventQueueCancelled EventType = "queue-cancelled"
)

// Event is one entry in a job's append-only history. Fields not relevant
// to a given Type are left zero; Type is the discriminator a consumer must
// switch on before reading the payload fields.
type Event struct {
	Type      EventType `json:"type"`
	JobID     string    `json:"jobId"`
	ItemID    string    `json:"itemId,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	ErrorKind ErrorKind `json:"errorKind,omitempty"`
	Message   string    `json:"message,omitempty"`
	Hint      string    `json:"hint,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// MarshalJSON renders Timestamp as RFC3339 for wire compatibility with the
// SSE event stream format.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	return json.Marshal(struct {
		alias
		Timestamp string `json:"timestamp"`
	}{
		alias:     alias(e),
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	aux := struct {
		*alias
		Timestamp string `json:"timestamp"`
	}{alias: (*alias)(e)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Timestamp != "" {
		t, err := time.Parse(time.RFC3339Nano, aux.Timestamp)
		if err != nil {
			return err
		}
		e.Timestamp = t
	}
	return nil
}

// NewQueueStart builds a queue-start event for jobID.
func NewQueueStart(jobID string) Event {
	return Event{Type: EventQueueStart, JobID: jobID, Timestamp: now()}
}

// NewItemStart builds an item-start event.
func NewItemStart(jobID, itemID string) Event {
	return Event{Type: EventItemStart, JobID: jobID, ItemID: itemID, Timestamp: now()}
}

// NewItemProgress builds an item-progress event for the given stage.
func NewItemProgress(jobID, itemID string, stage Stage) Event {
	return Event{Type: EventItemProgress, JobID: jobID, ItemID: itemID, Stage: stage, Timestamp: now()}
}

// NewItemDone builds an item-done event.
func NewItemDone(jobID, itemID string) Event {
	return Event{Type: EventItemDone, JobID: jobID, ItemID: itemID, Timestamp: now()}
}

// NewItemError builds an item-error event carrying the failure kind.
func NewItemError(jobID, itemID string, kind ErrorKind, message, hint string) Event {
	return Event{Type: EventItemError, JobID: jobID, ItemID: itemID, ErrorKind: kind, Message: message, Hint: hint, Timestamp: now()}
}

// NewQueueDone builds the terminal queue-done event.
func NewQueueDone(jobID string) Event {
	return Event{Type: EventQueueDone, JobID: jobID, Timestamp: now()}
}

// NewQueueCancelled builds the queue-cancelled event.
func NewQueueCancelled(jobID string) Event {
	return Event{Type: EventQueueCancelled, JobID: jobID, Timestamp: now()}
}

// now is a seam so tests can observe monotonic ordering without relying on
// wall-clock resolution; production code always uses time.Now.
var now = time.Now
