package queuex

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/astralabs/astra-backend/pkg/storex"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) (*Queue, *storex.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := storex.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	return NewQueue(store), store
}

func TestEnqueueBuildsEnvelope(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	jobID, err := q.Enqueue(ctx, "q:test", map[string]any{"action": "rebalance"})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if jobID == "" {
		t.Fatal("expected job id")
	}

	env, err := q.DequeueOnce(ctx, "q:test", time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if env.ID != jobID {
		t.Fatalf("id mismatch: %s vs %s", env.ID, jobID)
	}
	if env.Status != StatusPending {
		t.Fatalf("expected pending, got %s", env.Status)
	}
	if len(env.History) != 1 || env.History[0].Status != StatusPending {
		t.Fatalf("unexpected history: %+v", env.History)
	}

	var payload map[string]any
	if err := json.Unmarshal(env.Payload, &payload); err != nil || payload["action"] != "rebalance" {
		t.Fatalf("unexpected payload: %s", env.Payload)
	}
}

func TestDequeueDrainsExactly(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	const n = 5
	for i := 0; i < n; i++ {
		if _, err := q.Enqueue(ctx, "q:drain", map[string]int{"i": i}); err != nil {
			t.Fatalf("enqueue %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		env, err := q.DequeueOnce(ctx, "q:drain", time.Second)
		if err != nil {
			t.Fatalf("dequeue %d: %v", i, err)
		}
		if env == nil {
			t.Fatalf("expected job on pop %d", i)
		}
	}

	env, err := q.DequeueOnce(ctx, "q:drain", 100*time.Millisecond)
	if err != nil {
		t.Fatalf("final dequeue: %v", err)
	}
	if env != nil {
		t.Fatalf("expected empty queue, got %+v", env)
	}
}

func TestDequeueUnparseableItemReturnsRaw(t *testing.T) {
	ctx := context.Background()
	q, store := newTestQueue(t)

	if err := store.Push(ctx, "q:raw", "not-an-envelope"); err != nil {
		t.Fatalf("push: %v", err)
	}

	env, err := q.DequeueOnce(ctx, "q:raw", time.Second)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if env.Raw != "not-an-envelope" || env.ID != "" {
		t.Fatalf("expected raw passthrough, got %+v", env)
	}
}

func TestUpdateEnvelopeStatusAppendsHistory(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	jobID, _ := q.Enqueue(ctx, "q:upd", map[string]any{})
	env, _ := q.DequeueOnce(ctx, "q:upd", time.Second)
	if err := q.SaveEnvelope(ctx, "q:upd", env); err != nil {
		t.Fatalf("save: %v", err)
	}

	ok, err := q.UpdateEnvelopeStatus(ctx, "q:upd", jobID, "processing", "picked up")
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}

	got, err := q.GetEnvelope(ctx, "q:upd", jobID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != "processing" {
		t.Fatalf("expected processing, got %s", got.Status)
	}
	if len(got.History) != 2 || got.History[1].Details != "picked up" {
		t.Fatalf("unexpected history: %+v", got.History)
	}
}

func TestUpdateEnvelopeStatusMissingJob(t *testing.T) {
	ctx := context.Background()
	q, _ := newTestQueue(t)

	ok, err := q.UpdateEnvelopeStatus(ctx, "q:none", "nope", "done", "")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if ok {
		t.Fatal("expected no-op for missing envelope")
	}

	env, err := q.GetEnvelope(ctx, "q:none", "nope")
	if err != nil || env != nil {
		t.Fatalf("update must not create a job: env=%+v err=%v", env, err)
	}
}

func TestPollingWorkerProcessesAndSurvivesHandlerError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q, _ := newTestQueue(t)

	var mu sync.Mutex
	var seen []string

	stop := q.StartPollingWorker(ctx, "q:worker", func(_ context.Context, env *Envelope) error {
		mu.Lock()
		seen = append(seen, env.ID)
		mu.Unlock()
		if len(seen) == 1 {
			return errors.New("first handler call fails")
		}
		return nil
	}, WorkerOptions{BlockTimeout: 200 * time.Millisecond})
	defer stop()

	id1, _ := q.Enqueue(ctx, "q:worker", map[string]any{"n": 1})
	id2, _ := q.Enqueue(ctx, "q:worker", map[string]any{"n": 2})

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		done := len(seen) >= 2
		mu.Unlock()
		if done {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("worker did not process both jobs, saw %v", seen)
		case <-time.After(50 * time.Millisecond):
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if seen[0] != id1 || seen[1] != id2 {
		t.Fatalf("expected %s then %s, got %v", id1, id2, seen)
	}
}

func TestNewJobIDShape(t *testing.T) {
	id1 := NewJobID()
	id2 := NewJobID()
	if id1 == id2 {
		t.Fatal("consecutive ids should differ")
	}
	if len(id1) < 15 {
		t.Fatalf("suspiciously short id: %q", id1)
	}
}
