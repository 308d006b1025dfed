// Package metricx keeps lightweight operational metrics in the store: per-day
// counters, failed-job records, a bounded set of execution durations, and a
// sliding-window rate limiter used for admission control.
package metricx

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/astralabs/astra-backend/pkg/storex"
)

const (
	metricsPrefix     = "metrics:agent:rebalance"
	countersKey       = metricsPrefix + ":counters"
	failedJobsKey     = metricsPrefix + ":failed"
	executionTimesKey = metricsPrefix + ":execution_times"
	rateLimiterKey    = metricsPrefix + ":rate"

	metricsTTL = 7 * 24 * time.Hour

	// executionTimesCap bounds the duration set; oldest-ranked entries are
	// trimmed past this.
	executionTimesCap = 1000
)

// Metrics records counters and enforces rate limits through the store.
type Metrics struct {
	store storex.Store
}

// New creates a metrics recorder over the given store.
func New(store storex.Store) *Metrics {
	return &Metrics{store: store}
}

func dayOf(t time.Time) string { return t.UTC().Format("2006-01-02") }

// IncrementCounter appends the current timestamp to today's list for metric.
// Cardinality is the count; the timestamps themselves are not read back.
func (m *Metrics) IncrementCounter(ctx context.Context, metric string) error {
	key := fmt.Sprintf("%s:%s:%s", countersKey, dayOf(time.Now()), metric)
	if err := m.store.Push(ctx, key, time.Now().UnixMilli()); err != nil {
		return err
	}
	return m.store.Expire(ctx, key, metricsTTL)
}

// failureInfo is the stored shape of a failed-job record.
type failureInfo struct {
	JobID     string `json:"jobId"`
	Error     string `json:"error"`
	Payload   any    `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// RecordFailedJob persists a failure record for later counting.
func (m *Metrics) RecordFailedJob(ctx context.Context, jobID string, jobErr error, payload any) error {
	msg := ""
	if jobErr != nil {
		msg = jobErr.Error()
	}
	if payload == nil {
		payload = map[string]any{}
	}
	info := failureInfo{
		JobID:     jobID,
		Error:     msg,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
	return m.store.Set(ctx, failedJobsKey+":"+jobID, info, metricsTTL)
}

// RecordJobTiming stores the job's duration in the execution-time set and
// trims it to the most recent entries.
func (m *Metrics) RecordJobTiming(ctx context.Context, jobID string, start time.Time) error {
	duration := time.Since(start).Milliseconds()
	if err := m.store.ZAdd(ctx, executionTimesKey, float64(duration), jobID); err != nil {
		return err
	}
	if err := m.store.ZRemRangeByRank(ctx, executionTimesKey, 0, int64(-executionTimesCap-1)); err != nil {
		return err
	}
	return m.store.Expire(ctx, executionTimesKey, metricsTTL)
}

// CheckRateLimit admits or rejects a request for identity under a sliding
// window. The current timestamp is recorded before counting, so a rejected
// request still counts against the window: rapid retries keep pushing the
// window out.
func (m *Metrics) CheckRateLimit(ctx context.Context, identity string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMilli()
	key := rateLimiterKey + ":" + identity

	if err := m.store.Push(ctx, key, now); err != nil {
		return false, err
	}
	if err := m.store.Expire(ctx, key, window); err != nil {
		return false, err
	}

	entries, err := m.store.Range(ctx, key, 0, -1)
	if err != nil {
		return false, err
	}

	windowStart := now - window.Milliseconds()
	recent := make([]any, 0, len(entries))
	for _, e := range entries {
		ts, err := strconv.ParseInt(e, 10, 64)
		if err != nil {
			continue
		}
		if ts > windowStart {
			recent = append(recent, ts)
		}
	}

	// Compact stale entries so the list tracks only the live window.
	if len(recent) < len(entries) {
		if err := m.store.Del(ctx, key); err != nil {
			logx.Warnf("metricx: rate window compaction failed for %s: %v", identity, err)
		} else if len(recent) > 0 {
			if err := m.store.Push(ctx, key, recent...); err != nil {
				logx.Warnf("metricx: rate window rebuild failed for %s: %v", identity, err)
			}
			_ = m.store.Expire(ctx, key, window)
		}
	}

	return len(recent) <= limit, nil
}

// Summary aggregates metrics over a day range.
type Summary struct {
	TotalJobs        int     `json:"totalJobs"`
	FailedJobs       int     `json:"failedJobs"`
	AvgExecutionTime float64 `json:"avgExecutionTime"`
	P95ExecutionTime float64 `json:"p95ExecutionTime"`
	RateLimit        struct {
		Hits    int `json:"hits"`
		Blocked int `json:"blocked"`
	} `json:"rateLimit"`
}

// GetSummary aggregates the "jobs" counter over the last days, counts failed
// jobs by key pattern, and estimates execution-time statistics from the
// bounded duration set. The p95 is a linear scan over at most
// executionTimesCap entries, not a proper quantile structure.
func (m *Metrics) GetSummary(ctx context.Context, days int) (*Summary, error) {
	if days <= 0 {
		days = 7
	}
	summary := &Summary{}

	now := time.Now().UTC()
	for d := 0; d <= days; d++ {
		day := dayOf(now.AddDate(0, 0, -days+d))
		key := fmt.Sprintf("%s:%s:jobs", countersKey, day)
		entries, err := m.store.Range(ctx, key, 0, -1)
		if err != nil {
			return nil, err
		}
		summary.TotalJobs += len(entries)
	}

	failedKeys, err := m.store.Keys(ctx, failedJobsKey+":*")
	if err != nil {
		return nil, err
	}
	summary.FailedJobs = len(failedKeys)

	members, err := m.store.ZRangeWithScores(ctx, executionTimesKey, 0, -1)
	if err != nil {
		return nil, err
	}
	if len(members) > 0 {
		var total float64
		for _, z := range members {
			total += z.Score
		}
		summary.AvgExecutionTime = total / float64(len(members))

		// ZRANGE returns ascending by score, so an index pick suffices.
		idx := int(math.Floor(float64(len(members)) * 0.95))
		if idx >= len(members) {
			idx = len(members) - 1
		}
		summary.P95ExecutionTime = members[idx].Score
	}

	return summary, nil
}
