// Package wsx is the realtime notification gateway: authenticated sockets
// join per-user rooms, events for offline users are parked in the store and
// replayed on reconnect, and a pub/sub relay forwards job status updates
// published by workers.
package wsx

import (
	"context"
	"encoding/json"
	"time"

	"github.com/astralabs/astra-backend/pkg/authx"
	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/astralabs/astra-backend/pkg/storex"
)

const pendingKeyPrefix = "ws:pending:user:"

// Options tune the gateway.
type Options struct {
	// StatusChannel is the pub/sub channel the relay subscribes to.
	StatusChannel string
	// PendingTTL bounds how long parked events survive for offline users.
	PendingTTL time.Duration
}

func (o *Options) withDefaults() {
	if o.StatusChannel == "" {
		o.StatusChannel = "agent:rebalance:status"
	}
	if o.PendingTTL == 0 {
		o.PendingTTL = 24 * time.Hour
	}
}

// Gateway owns the hub, the pending-event store and the status relay.
type Gateway struct {
	hub      *Hub
	store    storex.Store
	verifier authx.TokenVerifier
	opts     Options
}

// NewGateway wires the gateway. The verifier authenticates socket handshakes.
func NewGateway(store storex.Store, verifier authx.TokenVerifier, opts Options) *Gateway {
	opts.withDefaults()
	return &Gateway{
		hub:      NewHub(),
		store:    store,
		verifier: verifier,
		opts:     opts,
	}
}

// Hub exposes the room registry, mainly for tests and diagnostics.
func (g *Gateway) Hub() *Hub { return g.hub }

// Authenticate normalizes and verifies a handshake token, returning the user
// identity the socket belongs to.
func (g *Gateway) Authenticate(rawToken string) (string, error) {
	token := authx.NormalizeToken(rawToken)
	if token == "" {
		return "", wsxErrors.New(ErrUnauthorized)
	}
	claims, err := g.verifier.Verify(token)
	if err != nil {
		return "", wsxErrors.NewWithCause(ErrUnauthorized, err)
	}
	return claims.Subject, nil
}

// Attach joins the socket to the user's room and replays any events parked
// while the user was offline. The caller owns the socket's read loop and must
// call Detach when it ends.
func (g *Gateway) Attach(ctx context.Context, userID string, conn Conn) {
	g.hub.Join(userID, conn)
	logx.WithField("user", userID).Info("wsx: socket joined")
	g.replayPending(ctx, userID)
}

// Detach removes the socket from the user's room.
func (g *Gateway) Detach(userID string, conn Conn) {
	g.hub.Leave(userID, conn)
	logx.WithField("user", userID).Info("wsx: socket left")
}

func pendingKey(userID string) string { return pendingKeyPrefix + userID }

// replayPending drains the user's parked events into the room in FIFO order.
// The key is deleted only after the whole drain, so a crash mid-replay
// re-delivers on the next connect: delivery is at-least-once, never silently
// lost.
func (g *Gateway) replayPending(ctx context.Context, userID string) {
	key := pendingKey(userID)
	raw, err := g.store.Range(ctx, key, 0, -1)
	if err != nil {
		logx.Warnf("wsx: pending replay read failed for %s: %v", userID, err)
		return
	}
	if len(raw) == 0 {
		return
	}

	for _, entry := range raw {
		var event Event
		if err := json.Unmarshal([]byte(entry), &event); err != nil {
			logx.Warnf("wsx: dropping unparseable pending event for %s", userID)
			continue
		}
		g.hub.Emit(userID, event)
	}
	if err := g.store.Del(ctx, key); err != nil {
		logx.Warnf("wsx: pending cleanup failed for %s: %v", userID, err)
	}
	logx.WithFields(logx.Fields{"user": userID, "count": len(raw)}).Info("wsx: replayed pending events")
}

// EmitEvent delivers an event to the user's room, parking it in the store
// when nobody is connected. After parking it re-checks the room: a socket
// that joined mid-park gets the event replayed immediately instead of waiting
// for its next reconnect.
func (g *Gateway) EmitEvent(ctx context.Context, userID, name string, data map[string]any) error {
	event := NewEvent(name, data)

	if g.hub.Emit(userID, event) > 0 {
		return nil
	}

	key := pendingKey(userID)
	if err := g.store.Push(ctx, key, event); err != nil {
		return wsxErrors.NewWithCause(ErrPersistFailed, err).WithDetail("user", userID)
	}
	if err := g.store.Expire(ctx, key, g.opts.PendingTTL); err != nil {
		logx.Warnf("wsx: pending expire failed for %s: %v", userID, err)
	}

	if g.hub.HasListeners(userID) {
		g.replayPending(ctx, userID)
	}
	return nil
}

// EmitJobCreated notifies the user that their job was accepted and queued.
func (g *Gateway) EmitJobCreated(ctx context.Context, userID, jobID string) error {
	return g.EmitEvent(ctx, userID, EventCreated, map[string]any{
		"jobId":  jobID,
		"status": "created",
	})
}

// statusMessage is the relay's view of a published status update.
type statusMessage struct {
	JobID  string `json:"jobId"`
	User   string `json:"user"`
	UserID string `json:"userId"`
	Status string `json:"status"`
}

// RunRelay subscribes to the status channel and forwards updates to user
// rooms until ctx is cancelled. Every forwarded update is emitted under the
// processing event name regardless of the published status; clients key off
// data.status, not the event name.
func (g *Gateway) RunRelay(ctx context.Context) error {
	sub, err := g.store.Subscribe(ctx, g.opts.StatusChannel)
	if err != nil {
		return wsxErrors.NewWithCause(ErrRelayFailed, err).WithDetail("channel", g.opts.StatusChannel)
	}
	defer sub.Close()

	logx.WithField("channel", g.opts.StatusChannel).Info("wsx: status relay started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.Messages():
			if !ok {
				return nil
			}
			g.handleRelayMessage(ctx, msg.Payload)
		}
	}
}

func (g *Gateway) handleRelayMessage(ctx context.Context, payload string) {
	var msg statusMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		logx.Warnf("wsx: discarding unparseable relay message: %v", err)
		return
	}
	userID := msg.User
	if userID == "" {
		userID = msg.UserID
	}
	if userID == "" {
		logx.Warn("wsx: relay message has no user, discarding")
		return
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(payload), &data); err != nil {
		data = map[string]any{"jobId": msg.JobID, "status": msg.Status}
	}

	if err := g.EmitEvent(ctx, userID, EventProcessing, data); err != nil {
		logx.Warnf("wsx: relay emit failed for %s: %v", userID, err)
	}
}
