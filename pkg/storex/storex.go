// Package storex abstracts the two redis transports (Upstash-style REST and a
// persistent TCP connection) behind one capability surface. Plain commands work
// on either transport; blocking pops and subscriptions need the persistent one.
package storex

import (
	"context"
	"time"
)

// Message is a single pub/sub message.
type Message struct {
	Channel string
	Payload string
}

// ZMember is a sorted-set member with its score.
type ZMember struct {
	Member string
	Score  float64
}

// Subscription is a live pub/sub subscription. Messages closes when the
// subscription is closed.
type Subscription interface {
	Messages() <-chan Message
	Close() error
}

// Store is the capability surface shared by all components.
//
// Writes serialize non-string values to JSON. Get best-effort-deserializes:
// when the stored text is not valid JSON the raw string comes back instead of
// an error, so consumers must tolerate either shape. Pop and Range return the
// raw stored text.
type Store interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (any, error)
	GetInto(ctx context.Context, key string, dest any) (bool, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error

	Publish(ctx context.Context, channel string, message any) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)

	Push(ctx context.Context, key string, values ...any) error
	Pop(ctx context.Context, key string) (string, bool, error)
	BlockingPop(ctx context.Context, key string, timeout time.Duration) (string, bool, error)
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)

	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error

	Keys(ctx context.Context, pattern string) ([]string, error)

	// SupportsBlocking reports whether BlockingPop and Subscribe are usable.
	SupportsBlocking() bool
}

// transport is the per-backend command set. Both transports speak raw strings;
// serialization happens in the client.
type transport interface {
	Ping(ctx context.Context) error
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Del(ctx context.Context, key string) error
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Publish(ctx context.Context, channel, payload string) error
	Push(ctx context.Context, key string, values ...string) error
	Pop(ctx context.Context, key string) (string, bool, error)
	Range(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error)
	ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}
