package statusx

import "time"

// Status is a canonical job lifecycle state.
type Status string

const (
	StatusCreated    Status = "created"
	StatusProcessing Status = "processing"
	StatusDone       Status = "done"
	StatusError      Status = "error"
)

// Valid reports whether s is one of the canonical states.
func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusProcessing, StatusDone, StatusError:
		return true
	}
	return false
}

// HistoryEntry is one append-only transition in a record's status history.
type HistoryEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Record is the authoritative, client-facing job state.
//
// Invariants: StatusHistory has at least one entry and starts with "created";
// Status always equals the last history entry; UpdatedAt never decreases.
type Record struct {
	JobID           string         `json:"jobId"`
	Status          Status         `json:"status"`
	User            string         `json:"user"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	StatusHistory   []HistoryEntry `json:"statusHistory"`
	Payload         map[string]any `json:"payload"`
	Type            string         `json:"type"`
	Priority        string         `json:"priority"`
	RequestMetadata map[string]any `json:"requestMetadata"`

	// MatchedKey records which key variant GetJob found the record under.
	// Internal; dropped by FormatResponse.
	MatchedKey string `json:"_storeKey,omitempty"`
}

// JobData is the caller-supplied portion of a new record.
type JobData struct {
	Payload         map[string]any
	Type            string
	Priority        string
	RequestMetadata map[string]any
}

// Response is the client-visible projection of a Record.
type Response struct {
	JobID           string         `json:"jobId"`
	Status          Status         `json:"status"`
	User            string         `json:"user"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	Type            string         `json:"type"`
	Priority        string         `json:"priority"`
	StatusHistory   []HistoryEntry `json:"statusHistory"`
	Payload         map[string]any `json:"payload"`
	RequestMetadata map[string]any `json:"requestMetadata"`
}
