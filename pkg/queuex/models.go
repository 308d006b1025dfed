package queuex

import (
	"encoding/json"
	"time"
)

// Envelope wraps a queued payload with execution metadata and history. It is
// the queue-internal representation; the client-facing record lives in statusx.
type Envelope struct {
	ID       string          `json:"id"`
	Status   string          `json:"status"`
	Payload  json.RawMessage `json:"payload"`
	Metadata Metadata        `json:"metadata"`
	History  []HistoryEntry  `json:"history"`

	// Raw holds the original queued text when it could not be parsed as an
	// envelope. Consumers must tolerate this shape.
	Raw string `json:"-"`
}

// Metadata carries envelope bookkeeping. Attempts and LastError are mutated by
// the consumer through UpdateEnvelopeStatus.
type Metadata struct {
	Timestamp int64     `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	Attempts  int       `json:"attempts"`
	LastError string    `json:"lastError,omitempty"`
}

// HistoryEntry is one append-only status transition on the envelope.
type HistoryEntry struct {
	Status    string `json:"status"`
	Timestamp int64  `json:"timestamp"`
	Details   string `json:"details"`
}

// StatusPending is the initial envelope status set by Enqueue.
const StatusPending = "pending"
