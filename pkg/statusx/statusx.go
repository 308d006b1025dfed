// Package statusx owns the canonical job record: status, timestamps and an
// append-only history, stored under a deterministic key with legacy-key
// fallback on reads.
package statusx

import (
	"context"
	"fmt"
	"time"

	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/astralabs/astra-backend/pkg/storex"
)

const canonicalKeyPrefix = "agent:rebalance:job:"

// legacyKeyPrefixes are older key layouts still present in existing data.
var legacyKeyPrefixes = []string{"rebalance:job:", "job:rebalance:"}

// Tracker reads and writes canonical job records.
type Tracker struct {
	store     storex.Store
	recordTTL time.Duration
}

// NewTracker creates a tracker over the given store with a 24h retention
// window.
func NewTracker(store storex.Store) *Tracker {
	return &Tracker{store: store, recordTTL: 24 * time.Hour}
}

// NewRecord builds the initial canonical record for a job. Pure; the caller
// persists it with Save.
func NewRecord(jobID string, data JobData, userID string) *Record {
	now := time.Now().UTC()
	jobType := data.Type
	if jobType == "" {
		jobType = "rebalance"
	}
	priority := data.Priority
	if priority == "" {
		priority = "normal"
	}
	payload := data.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	meta := data.RequestMetadata
	if meta == nil {
		meta = map[string]any{}
	}

	return &Record{
		JobID:     jobID,
		Status:    StatusCreated,
		User:      userID,
		CreatedAt: now,
		UpdatedAt: now,
		StatusHistory: []HistoryEntry{{
			Status:    StatusCreated,
			Timestamp: now,
			Message:   "Job created and queued",
		}},
		Payload:         payload,
		Type:            jobType,
		Priority:        priority,
		RequestMetadata: meta,
	}
}

// Save persists a record under the canonical key with the retention TTL.
func (t *Tracker) Save(ctx context.Context, record *Record) error {
	key := canonicalKeyPrefix + record.JobID
	if err := t.store.Set(ctx, key, record, t.recordTTL); err != nil {
		return statusxErrors.NewWithCause(ErrPersistFailed, err).WithDetail("job_id", record.JobID)
	}
	return nil
}

// UpdateStatus performs a read-modify-write on the canonical record, appending
// a history entry. Returns nil (not an error) when no record exists; callers
// log and continue.
//
// The get+set pair is not atomic: concurrent updates to the same job race and
// the later write wins. Single writer per job is assumed.
func (t *Tracker) UpdateStatus(ctx context.Context, jobID string, newStatus Status, message string) (*Record, error) {
	if !newStatus.Valid() {
		return nil, statusxErrors.New(ErrInvalidStatus).WithDetail("status", string(newStatus))
	}

	key := canonicalKeyPrefix + jobID
	var record Record
	found, err := t.store.GetInto(ctx, key, &record)
	if err != nil {
		return nil, statusxErrors.NewWithCause(ErrPersistFailed, err).WithDetail("job_id", jobID)
	}
	if !found {
		logx.Warnf("statusx: job %s not found for status update", jobID)
		return nil, nil
	}

	now := time.Now().UTC()
	if message == "" {
		message = fmt.Sprintf("Job status updated to %s", newStatus)
	}
	record.Status = newStatus
	if now.After(record.UpdatedAt) {
		record.UpdatedAt = now
	}
	record.StatusHistory = append(record.StatusHistory, HistoryEntry{
		Status:    newStatus,
		Timestamp: now,
		Message:   message,
	})

	if err := t.store.Set(ctx, key, record, t.recordTTL); err != nil {
		return nil, statusxErrors.NewWithCause(ErrPersistFailed, err).WithDetail("job_id", jobID)
	}

	logx.WithFields(logx.Fields{"job_id": jobID, "status": newStatus}).Infof("statusx: %s", message)
	return &record, nil
}

// GetJob looks up a record by ID, trying the canonical key first and then the
// legacy variants. The returned record notes which key matched. Returns nil
// when nothing matches.
func (t *Tracker) GetJob(ctx context.Context, jobID string) (*Record, error) {
	candidates := make([]string, 0, len(legacyKeyPrefixes)+1)
	candidates = append(candidates, canonicalKeyPrefix+jobID)
	for _, prefix := range legacyKeyPrefixes {
		candidates = append(candidates, prefix+jobID)
	}

	for _, key := range candidates {
		var record Record
		found, err := t.store.GetInto(ctx, key, &record)
		if err != nil {
			logx.Warnf("statusx: lookup failed for %s: %v", key, err)
			continue
		}
		if found {
			record.MatchedKey = key
			return &record, nil
		}
	}
	return nil, nil
}

// FormatResponse projects a record into the client-visible shape. Nil in, nil
// out.
func FormatResponse(record *Record) *Response {
	if record == nil {
		return nil
	}
	history := record.StatusHistory
	if history == nil {
		history = []HistoryEntry{}
	}
	payload := record.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	meta := record.RequestMetadata
	if meta == nil {
		meta = map[string]any{}
	}
	jobType := record.Type
	if jobType == "" {
		jobType = "rebalance"
	}
	priority := record.Priority
	if priority == "" {
		priority = "normal"
	}
	return &Response{
		JobID:           record.JobID,
		Status:          record.Status,
		User:            record.User,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
		Type:            jobType,
		Priority:        priority,
		StatusHistory:   history,
		Payload:         payload,
		RequestMetadata: meta,
	}
}
