package metricx

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/astralabs/astra-backend/pkg/storex"
	"github.com/redis/go-redis/v9"
)

func newTestMetrics(t *testing.T) (*Metrics, *storex.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := storex.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return New(store), store
}

func TestRateLimitAdmitsUpToLimit(t *testing.T) {
	ctx := context.Background()
	metrics, _ := newTestMetrics(t)

	admitted := 0
	for i := 0; i < 12; i++ {
		ok, err := metrics.CheckRateLimit(ctx, "user-1", 10, time.Minute)
		if err != nil {
			t.Fatalf("check %d: %v", i, err)
		}
		if ok {
			admitted++
		} else if i < 10 {
			t.Fatalf("request %d rejected under the limit", i)
		}
	}
	if admitted != 10 {
		t.Fatalf("expected 10 admitted, got %d", admitted)
	}
}

func TestRateLimitIsolatedPerIdentity(t *testing.T) {
	ctx := context.Background()
	metrics, _ := newTestMetrics(t)

	for i := 0; i < 3; i++ {
		if ok, err := metrics.CheckRateLimit(ctx, "a", 2, time.Minute); err != nil {
			t.Fatalf("check: %v", err)
		} else if ok != (i < 2) {
			t.Fatalf("identity a request %d: admitted=%v", i, ok)
		}
	}

	// Another identity starts with a fresh window.
	if ok, err := metrics.CheckRateLimit(ctx, "b", 2, time.Minute); err != nil || !ok {
		t.Fatalf("identity b first request rejected: ok=%v err=%v", ok, err)
	}
}

func TestCounterAccumulatesPerDay(t *testing.T) {
	ctx := context.Background()
	metrics, store := newTestMetrics(t)

	for i := 0; i < 3; i++ {
		if err := metrics.IncrementCounter(ctx, "jobs"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}

	key := fmt.Sprintf("%s:%s:jobs", countersKey, dayOf(time.Now()))
	entries, err := store.Range(ctx, key, 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
}

func TestRecordJobTimingTrimsSet(t *testing.T) {
	ctx := context.Background()
	metrics, store := newTestMetrics(t)

	start := time.Now()
	for i := 0; i < executionTimesCap+5; i++ {
		if err := metrics.RecordJobTiming(ctx, fmt.Sprintf("job-%d", i), start); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	members, err := store.ZRangeWithScores(ctx, executionTimesKey, 0, -1)
	if err != nil {
		t.Fatalf("zrange: %v", err)
	}
	if len(members) != executionTimesCap {
		t.Fatalf("expected set trimmed to %d, got %d", executionTimesCap, len(members))
	}
}

func TestGetSummary(t *testing.T) {
	ctx := context.Background()
	metrics, store := newTestMetrics(t)

	for i := 0; i < 4; i++ {
		if err := metrics.IncrementCounter(ctx, "jobs"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	if err := metrics.RecordFailedJob(ctx, "bad-1", errors.New("boom"), nil); err != nil {
		t.Fatalf("failed job: %v", err)
	}
	if err := metrics.RecordFailedJob(ctx, "bad-2", errors.New("boom again"), map[string]any{"amount": 5}); err != nil {
		t.Fatalf("failed job: %v", err)
	}
	for i, score := range []float64{100, 200, 300, 400} {
		if err := store.ZAdd(ctx, executionTimesKey, score, fmt.Sprintf("timed-%d", i)); err != nil {
			t.Fatalf("zadd: %v", err)
		}
	}

	summary, err := metrics.GetSummary(ctx, 7)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.TotalJobs != 4 {
		t.Fatalf("expected 4 total jobs, got %d", summary.TotalJobs)
	}
	if summary.FailedJobs != 2 {
		t.Fatalf("expected 2 failed jobs, got %d", summary.FailedJobs)
	}
	if summary.AvgExecutionTime != 250 {
		t.Fatalf("expected avg 250, got %v", summary.AvgExecutionTime)
	}
	if summary.P95ExecutionTime != 400 {
		t.Fatalf("expected p95 400, got %v", summary.P95ExecutionTime)
	}
}
