package storex

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisTransport is the persistent transport backed by go-redis. It is the only
// transport able to serve blocking pops and subscriptions.
type redisTransport struct {
	rdb *redis.Client
}

func newRedisTransport(url string) (*redisTransport, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("url", "invalid redis url")
	}
	return &redisTransport{rdb: redis.NewClient(opts)}, nil
}

// newRedisTransportFromClient wraps an existing client. Used by tests and by
// callers that already own a connection.
func newRedisTransportFromClient(rdb *redis.Client) *redisTransport {
	return &redisTransport{rdb: rdb}
}

func (t *redisTransport) Ping(ctx context.Context) error {
	return t.rdb.Ping(ctx).Err()
}

func (t *redisTransport) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return t.rdb.Set(ctx, key, value, ttl).Err()
}

func (t *redisTransport) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := t.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (t *redisTransport) Del(ctx context.Context, key string) error {
	return t.rdb.Del(ctx, key).Err()
}

func (t *redisTransport) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return t.rdb.Expire(ctx, key, ttl).Err()
}

func (t *redisTransport) Publish(ctx context.Context, channel, payload string) error {
	return t.rdb.Publish(ctx, channel, payload).Err()
}

func (t *redisTransport) Push(ctx context.Context, key string, values ...string) error {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return t.rdb.RPush(ctx, key, args...).Err()
}

func (t *redisTransport) Pop(ctx context.Context, key string) (string, bool, error) {
	val, err := t.rdb.LPop(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// BlockingPop waits up to timeout for an item. A timeout is not an error.
func (t *redisTransport) BlockingPop(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	res, err := t.rdb.BLPop(ctx, timeout, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return "", false, nil
		}
		return "", false, err
	}
	// res[0] is the key, res[1] the value
	return res[1], true, nil
}

func (t *redisTransport) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return t.rdb.LRange(ctx, key, start, stop).Result()
}

func (t *redisTransport) ZAdd(ctx context.Context, key string, score float64, member string) error {
	return t.rdb.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (t *redisTransport) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	return t.rdb.ZRange(ctx, key, start, stop).Result()
}

func (t *redisTransport) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	zs, err := t.rdb.ZRangeWithScores(ctx, key, start, stop).Result()
	if err != nil {
		return nil, err
	}
	members := make([]ZMember, len(zs))
	for i, z := range zs {
		member, _ := z.Member.(string)
		members[i] = ZMember{Member: member, Score: z.Score}
	}
	return members, nil
}

func (t *redisTransport) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	return t.rdb.ZRemRangeByRank(ctx, key, start, stop).Err()
}

func (t *redisTransport) Keys(ctx context.Context, pattern string) ([]string, error) {
	return t.rdb.Keys(ctx, pattern).Result()
}

func (t *redisTransport) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	ps := t.rdb.Subscribe(ctx, channel)
	// Force the SUBSCRIBE round-trip so a dead connection fails here, not on
	// first receive.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, err
	}

	sub := &redisSubscription{ps: ps, msgs: make(chan Message, 16)}
	go sub.pump()
	return sub, nil
}

func (t *redisTransport) Close() error { return t.rdb.Close() }

type redisSubscription struct {
	ps   *redis.PubSub
	msgs chan Message
}

func (s *redisSubscription) pump() {
	defer close(s.msgs)
	for m := range s.ps.Channel() {
		s.msgs <- Message{Channel: m.Channel, Payload: m.Payload}
	}
}

func (s *redisSubscription) Messages() <-chan Message { return s.msgs }

func (s *redisSubscription) Close() error { return s.ps.Close() }
