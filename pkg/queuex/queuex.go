// Package queuex implements the producer and consumer sides of the list-backed
// job queue. Blocking pops are used when the store's persistent transport is
// present; otherwise the consumer polls with backoff.
package queuex

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/astralabs/astra-backend/pkg/storex"
)

// Queue enqueues and dequeues job envelopes through the store client.
type Queue struct {
	store  storex.Store
	jobTTL time.Duration
}

// Option configures a Queue.
type Option func(*Queue)

// WithJobTTL overrides the retention window of per-job envelope keys.
func WithJobTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.jobTTL = ttl }
}

// NewQueue creates a queue over the given store.
func NewQueue(store storex.Store, options ...Option) *Queue {
	q := &Queue{store: store, jobTTL: 24 * time.Hour}
	for _, o := range options {
		o(q)
	}
	return q
}

// NewJobID generates a job identifier from a millisecond timestamp and a random
// suffix. Collisions are negligible but not impossible; callers tolerate the
// rare retry.
func NewJobID() string {
	buf := make([]byte, 4)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func jobKey(queueKey, jobID string) string {
	return fmt.Sprintf("%s:job:%s", queueKey, jobID)
}

// Enqueue builds an envelope around payload and pushes it onto the tail of the
// list at queueKey. Returns the generated job ID.
func (q *Queue) Enqueue(ctx context.Context, queueKey string, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", queuexErrors.NewWithCause(ErrInvalidJob, err)
	}

	now := time.Now().UTC()
	env := Envelope{
		ID:      NewJobID(),
		Status:  StatusPending,
		Payload: data,
		Metadata: Metadata{
			Timestamp: now.UnixMilli(),
			CreatedAt: now,
			UpdatedAt: now,
		},
		History: []HistoryEntry{{
			Status:    StatusPending,
			Timestamp: now.UnixMilli(),
			Details:   "Job created",
		}},
	}

	if err := q.store.Push(ctx, queueKey, env); err != nil {
		return "", queuexErrors.NewWithCause(ErrEnqueueFailed, err).WithDetail("queue", queueKey)
	}
	return env.ID, nil
}

// DequeueOnce retrieves a single envelope. With the persistent transport it
// blocks up to timeout and returns nil on expiry; otherwise it performs one
// non-blocking pop. An unparseable item comes back as a raw envelope.
func (q *Queue) DequeueOnce(ctx context.Context, queueKey string, timeout time.Duration) (*Envelope, error) {
	var (
		raw   string
		found bool
		err   error
	)
	if q.store.SupportsBlocking() {
		raw, found, err = q.store.BlockingPop(ctx, queueKey, timeout)
	} else {
		raw, found, err = q.store.Pop(ctx, queueKey)
	}
	if err != nil {
		return nil, queuexErrors.NewWithCause(ErrDequeueFailed, err).WithDetail("queue", queueKey)
	}
	if !found {
		return nil, nil
	}
	return parseEnvelope(queueKey, raw), nil
}

func parseEnvelope(queueKey, raw string) *Envelope {
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil || env.ID == "" {
		logx.Warnf("queuex: unparseable item on %s, passing through raw", queueKey)
		return &Envelope{Raw: raw}
	}
	return &env
}

// UpdateEnvelopeStatus performs a read-modify-write on the per-job envelope key
// (<queueKey>:job:<jobID>), appending to history. Returns false when no
// envelope exists under that key. This key is independent from any copy of the
// envelope still sitting in the list; the two views are not synchronized.
func (q *Queue) UpdateEnvelopeStatus(ctx context.Context, queueKey, jobID, status, details string) (bool, error) {
	key := jobKey(queueKey, jobID)

	var env Envelope
	found, err := q.store.GetInto(ctx, key, &env)
	if err != nil {
		return false, queuexErrors.NewWithCause(ErrUpdateFailed, err).WithDetail("job_id", jobID)
	}
	if !found {
		return false, nil
	}

	now := time.Now().UTC()
	env.Status = status
	env.Metadata.UpdatedAt = now
	if status == "error" && details != "" {
		env.Metadata.LastError = details
	}
	env.History = append(env.History, HistoryEntry{
		Status:    status,
		Timestamp: now.UnixMilli(),
		Details:   details,
	})

	if err := q.store.Set(ctx, key, env, q.jobTTL); err != nil {
		return false, queuexErrors.NewWithCause(ErrUpdateFailed, err).WithDetail("job_id", jobID)
	}
	return true, nil
}

// SaveEnvelope persists an envelope under the per-job key with the queue's TTL.
func (q *Queue) SaveEnvelope(ctx context.Context, queueKey string, env *Envelope) error {
	if err := q.store.Set(ctx, jobKey(queueKey, env.ID), env, q.jobTTL); err != nil {
		return queuexErrors.NewWithCause(ErrUpdateFailed, err).WithDetail("job_id", env.ID)
	}
	return nil
}

// GetEnvelope fetches the per-job envelope. Returns nil when absent.
func (q *Queue) GetEnvelope(ctx context.Context, queueKey, jobID string) (*Envelope, error) {
	var env Envelope
	found, err := q.store.GetInto(ctx, jobKey(queueKey, jobID), &env)
	if err != nil {
		return nil, queuexErrors.NewWithCause(ErrDequeueFailed, err).WithDetail("job_id", jobID)
	}
	if !found {
		return nil, nil
	}
	return &env, nil
}
