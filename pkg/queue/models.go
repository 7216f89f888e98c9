package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwebster45206/tracker-engine/pkg/engine"
)

// Source identifies who produced a request.
type Source string

const (
	// SourceAPI is a mutation accepted by the HTTP API for async apply.
	SourceAPI Source = "api"

	// SourceAutotrack is a mutation produced by reading console memory.
	SourceAutotrack Source = "autotrack"

	// SourceCLI is a mutation pushed by hand for debugging.
	SourceCLI Source = "cli"
)

// Request is one queued mutation for one tracker.
type Request struct {
	RequestID string          `json:"request_id"`
	Source    Source          `json:"source"`
	TrackerID uuid.UUID       `json:"tracker_id"`
	Mutation  engine.Mutation `json:"mutation"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// NewRequest stamps a request with a fresh ID and the current time.
func NewRequest(trackerID uuid.UUID, source Source, m engine.Mutation) *Request {
	return &Request{
		RequestID:  uuid.NewString(),
		Source:     source,
		TrackerID:  trackerID,
		Mutation:   m,
		EnqueuedAt: time.Now(),
	}
}

// ToJSON converts the request to JSON bytes for Redis
func (r *Request) ToJSON() ([]byte, error) {
	return json.Marshal(r)
}

// FromJSON parses a request from JSON bytes
func FromJSON(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}
