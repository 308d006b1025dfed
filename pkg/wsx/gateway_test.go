package wsx

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/storex"
)

type fakeConn struct {
	mu         sync.Mutex
	events     []Event
	failWrites bool
	received   chan Event
}

func (f *fakeConn) WriteJSON(v any) error {
	if f.failWrites {
		return errors.New("write failed")
	}
	event, _ := v.(Event)
	f.mu.Lock()
	f.events = append(f.events, event)
	f.mu.Unlock()
	if f.received != nil {
		f.received <- event
	}
	return nil
}

func (f *fakeConn) Close() error { return nil }

func (f *fakeConn) snapshot() []Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, len(f.events))
	copy(out, f.events)
	return out
}

func newTestGateway(t *testing.T) (*Gateway, *storex.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	store := storex.NewClientFromRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	verifier := authx.NewJWTVerifier("ws-test-secret", time.Hour, "")
	return NewGateway(store, verifier, Options{}), store
}

func TestEmitEventDeliversToLiveSocket(t *testing.T) {
	ctx := context.Background()
	gateway, store := newTestGateway(t)

	conn := &fakeConn{}
	gateway.Hub().Join("u1", conn)

	if err := gateway.EmitEvent(ctx, "u1", EventDone, map[string]any{"jobId": "j1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	events := conn.snapshot()
	if len(events) != 1 || events[0].Name != EventDone {
		t.Fatalf("unexpected events: %+v", events)
	}
	if events[0].Payload["jobId"] != "j1" {
		t.Fatalf("unexpected payload: %+v", events[0].Payload)
	}

	// Nothing should have been parked.
	pending, err := store.Range(ctx, pendingKey("u1"), 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected no pending events, got %d", len(pending))
	}
}

func TestEmitEventParksForOfflineUser(t *testing.T) {
	ctx := context.Background()
	gateway, store := newTestGateway(t)

	if err := gateway.EmitEvent(ctx, "ghost", EventCreated, map[string]any{"jobId": "j2"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	pending, err := store.Range(ctx, pendingKey("ghost"), 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("expected 1 parked event, got %d", len(pending))
	}
}

func TestParkedEventWireFormat(t *testing.T) {
	ctx := context.Background()
	gateway, store := newTestGateway(t)

	if err := gateway.EmitEvent(ctx, "offline-user", EventCreated, map[string]any{"jobId": "j1"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	raw, err := store.Range(ctx, pendingKey("offline-user"), 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(raw) != 1 {
		t.Fatalf("expected 1 parked event, got %d", len(raw))
	}

	// The serialized shape is read by external consumers and must keep the
	// {event, payload, ts} keys.
	var entry map[string]any
	if err := json.Unmarshal([]byte(raw[0]), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"event", "payload", "ts"} {
		if _, ok := entry[key]; !ok {
			t.Fatalf("parked event missing %q key: %v", key, entry)
		}
	}
	if entry["event"] != EventCreated {
		t.Fatalf("unexpected event name: %v", entry["event"])
	}
	payload, ok := entry["payload"].(map[string]any)
	if !ok || payload["jobId"] != "j1" {
		t.Fatalf("unexpected payload: %v", entry["payload"])
	}
}

func TestAttachReplaysPendingInOrder(t *testing.T) {
	ctx := context.Background()
	gateway, store := newTestGateway(t)

	for _, name := range []string{EventCreated, EventProcessing, EventDone} {
		if err := gateway.EmitEvent(ctx, "u2", name, map[string]any{"jobId": "j3"}); err != nil {
			t.Fatalf("emit %s: %v", name, err)
		}
	}

	conn := &fakeConn{}
	gateway.Attach(ctx, "u2", conn)
	defer gateway.Detach("u2", conn)

	events := conn.snapshot()
	if len(events) != 3 {
		t.Fatalf("expected 3 replayed events, got %d", len(events))
	}
	want := []string{EventCreated, EventProcessing, EventDone}
	for i, name := range want {
		if events[i].Name != name {
			t.Fatalf("event %d: got %s, want %s", i, events[i].Name, name)
		}
	}

	// Replay consumes the backlog.
	pending, err := store.Range(ctx, pendingKey("u2"), 0, -1)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected drained backlog, got %d entries", len(pending))
	}
}

func TestHubEvictsDeadSockets(t *testing.T) {
	hub := NewHub()
	dead := &fakeConn{failWrites: true}
	live := &fakeConn{}
	hub.Join("u3", dead)
	hub.Join("u3", live)

	if delivered := hub.Emit("u3", NewEvent(EventDone, nil)); delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if hub.Emit("u3", NewEvent(EventDone, nil)) != 1 {
		t.Fatal("dead socket must have been evicted")
	}
	if len(live.snapshot()) != 2 {
		t.Fatalf("live socket should have both events, got %d", len(live.snapshot()))
	}
}

func TestAuthenticate(t *testing.T) {
	gateway, _ := newTestGateway(t)

	verifier := authx.NewJWTVerifier("ws-test-secret", time.Hour, "")
	token, err := verifier.Sign("pubkey-9", "")
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	userID, err := gateway.Authenticate("Bearer " + token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if userID != "pubkey-9" {
		t.Fatalf("unexpected user: %s", userID)
	}

	if _, err := gateway.Authenticate("garbage"); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestRelayForwardsStatusUpdates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	gateway, store := newTestGateway(t)

	conn := &fakeConn{received: make(chan Event, 8)}
	gateway.Hub().Join("u4", conn)

	go func() {
		if err := gateway.RunRelay(ctx); err != nil {
			t.Errorf("relay: %v", err)
		}
	}()

	// The subscription races relay startup; keep publishing until the event
	// lands.
	payload := map[string]any{"jobId": "j9", "user": "u4", "status": "done"}
	deadline := time.After(5 * time.Second)
	for {
		if err := store.Publish(ctx, "agent:rebalance:status", payload); err != nil {
			t.Fatalf("publish: %v", err)
		}
		select {
		case event := <-conn.received:
			if event.Name != EventProcessing {
				t.Fatalf("relay must emit %s, got %s", EventProcessing, event.Name)
			}
			if event.Payload["status"] != "done" || event.Payload["jobId"] != "j9" {
				t.Fatalf("unexpected relay payload: %+v", event.Payload)
			}
			return
		case <-deadline:
			t.Fatal("relay event never arrived")
		case <-time.After(50 * time.Millisecond):
		}
	}
}
