// Package rebalance is the served surface: users submit rebalance jobs and
// poll their status, the agent pulls work and reports progress, and metrics
// are exposed for operators.
package rebalance

import (
	"context"
	"errors"
	"time"

	"github.com/astralabs/astra-backend/pkg/asyncx"
	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/astralabs/astra-backend/pkg/metricx"
	"github.com/astralabs/astra-backend/pkg/queuex"
	"github.com/astralabs/astra-backend/pkg/statusx"
	"github.com/astralabs/astra-backend/pkg/storex"
	"github.com/astralabs/astra-backend/pkg/wsx"
)

// Config tunes the service. Zero values fall back to the production defaults.
type Config struct {
	QueueKey        string
	TrackingKey     string
	StatusChannel   string
	RateLimit       int
	RateLimitWindow time.Duration
}

func (c *Config) withDefaults() {
	if c.QueueKey == "" {
		c.QueueKey = "agent:rebalance:request"
	}
	if c.TrackingKey == "" {
		c.TrackingKey = "agent:rebalance:jobs"
	}
	if c.StatusChannel == "" {
		c.StatusChannel = "agent:rebalance:status"
	}
	if c.RateLimit == 0 {
		c.RateLimit = 10
	}
	if c.RateLimitWindow == 0 {
		c.RateLimitWindow = time.Minute
	}
}

// Service composes the queue, the canonical tracker, metrics and the
// notification gateway behind the HTTP surface.
type Service struct {
	store   storex.Store
	queue   *queuex.Queue
	tracker *statusx.Tracker
	metrics *metricx.Metrics
	gateway *wsx.Gateway
	cfg     Config
}

// NewService wires the service over its collaborators.
func NewService(store storex.Store, queue *queuex.Queue, tracker *statusx.Tracker, metrics *metricx.Metrics, gateway *wsx.Gateway, cfg Config) *Service {
	cfg.withDefaults()
	return &Service{
		store:   store,
		queue:   queue,
		tracker: tracker,
		metrics: metrics,
		gateway: gateway,
		cfg:     cfg,
	}
}

// SubmitRebalance admits, enqueues and registers a new job for the user, then
// notifies their room. Returns the client-visible record.
func (s *Service) SubmitRebalance(ctx context.Context, user *authx.User, payload map[string]any, requestMeta map[string]any) (*statusx.Response, error) {
	start := time.Now()

	allowed, err := s.metrics.CheckRateLimit(ctx, user.PublicKey, s.cfg.RateLimit, s.cfg.RateLimitWindow)
	if err != nil {
		// A limiter outage must not take submissions down with it.
		logx.Warnf("rebalance: rate limiter unavailable for %s: %v", user.PublicKey, err)
		allowed = true
	}
	if !allowed {
		return nil, metricx.RateLimited(int(s.cfg.RateLimitWindow / time.Second))
	}

	if payload == nil {
		payload = map[string]any{}
	}
	queued := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		queued[k] = v
	}
	queued["user"] = user.PublicKey

	jobID, err := s.queue.Enqueue(ctx, s.cfg.QueueKey, queued)
	if err != nil {
		return nil, err
	}

	// The tracking list is a convenience index for the agent; losing an entry
	// only hides the job from the listing, not from direct lookup.
	if err := s.store.Push(ctx, s.cfg.TrackingKey, jobID); err != nil {
		logx.Warnf("rebalance: tracking push failed for %s: %v", jobID, err)
	}

	record := statusx.NewRecord(jobID, statusx.JobData{
		Payload:         payload,
		RequestMetadata: requestMeta,
	}, user.PublicKey)
	if err := s.tracker.Save(ctx, record); err != nil {
		return nil, err
	}

	if err := s.metrics.IncrementCounter(ctx, "jobs"); err != nil {
		logx.Warnf("rebalance: counter increment failed: %v", err)
	}
	if err := s.metrics.RecordJobTiming(ctx, jobID, start); err != nil {
		logx.Warnf("rebalance: timing record failed for %s: %v", jobID, err)
	}

	if err := s.gateway.EmitJobCreated(ctx, user.PublicKey, jobID); err != nil {
		logx.Warnf("rebalance: created event failed for %s: %v", jobID, err)
	}

	logx.WithFields(logx.Fields{"job_id": jobID, "user": user.PublicKey}).Info("rebalance: job submitted")
	return statusx.FormatResponse(record), nil
}

// GetJobStatus returns the client-visible record for a job.
func (s *Service) GetJobStatus(ctx context.Context, jobID string) (*statusx.Response, error) {
	record, err := s.tracker.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, rebalanceErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}
	return statusx.FormatResponse(record), nil
}

// AgentUpdateStatus applies a status transition reported by the agent,
// mirrors it onto the queue envelope, records failures and publishes the
// update for the realtime relay.
func (s *Service) AgentUpdateStatus(ctx context.Context, jobID string, status statusx.Status, message string) (*statusx.Response, error) {
	record, err := s.tracker.UpdateStatus(ctx, jobID, status, message)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, rebalanceErrors.New(ErrJobNotFound).WithDetail("job_id", jobID)
	}

	// Envelope mirror is best effort; the canonical record already moved.
	if _, err := s.queue.UpdateEnvelopeStatus(ctx, s.cfg.QueueKey, jobID, string(status), message); err != nil {
		logx.Warnf("rebalance: envelope mirror failed for %s: %v", jobID, err)
	}

	if status == statusx.StatusError {
		if err := s.metrics.RecordFailedJob(ctx, jobID, errors.New(message), record.Payload); err != nil {
			logx.Warnf("rebalance: failure record failed for %s: %v", jobID, err)
		}
	}

	update := map[string]any{
		"jobId":     jobID,
		"user":      record.User,
		"status":    string(status),
		"message":   message,
		"timestamp": time.Now().UnixMilli(),
	}
	if err := s.store.Publish(ctx, s.cfg.StatusChannel, update); err != nil {
		logx.Warnf("rebalance: status publish failed for %s: %v", jobID, err)
	}

	return statusx.FormatResponse(record), nil
}

// ListPendingJobs returns tracked jobs the agent still has work on, in
// submission order. Jobs whose records expired are skipped.
func (s *Service) ListPendingJobs(ctx context.Context) ([]*statusx.Response, error) {
	ids, err := s.store.Range(ctx, s.cfg.TrackingKey, 0, -1)
	if err != nil {
		return nil, err
	}

	records, err := asyncx.Map(ctx, ids, func(ctx context.Context, id string) (*statusx.Record, error) {
		record, err := s.tracker.GetJob(ctx, id)
		if err != nil {
			logx.Warnf("rebalance: listing lookup failed for %s: %v", id, err)
			return nil, nil
		}
		return record, nil
	})
	if err != nil {
		return nil, err
	}

	jobs := make([]*statusx.Response, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		if record.Status == statusx.StatusDone || record.Status == statusx.StatusError {
			continue
		}
		jobs = append(jobs, statusx.FormatResponse(record))
	}
	return jobs, nil
}

// MetricsSummary aggregates operational metrics over the last days.
func (s *Service) MetricsSummary(ctx context.Context, days int) (*metricx.Summary, error) {
	return s.metrics.GetSummary(ctx, days)
}
