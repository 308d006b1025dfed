package storex

import (
	"context"
	"encoding/json"
	"time"

	"github.com/astralabs/astra-backend/pkg/logx"
	"github.com/redis/go-redis/v9"
)

// Options configures the store client. Either transport may be left blank.
type Options struct {
	// RestURL and RestToken configure the request/response transport.
	RestURL   string
	RestToken string

	// RedisURL configures the persistent transport.
	RedisURL string

	// PingAttempts and PingBackoff control construction-time connectivity
	// verification. Backoff grows linearly: backoff × attempt.
	PingAttempts int
	PingBackoff  time.Duration
}

func (o *Options) withDefaults() {
	if o.PingAttempts <= 0 {
		o.PingAttempts = 3
	}
	if o.PingBackoff <= 0 {
		o.PingBackoff = 500 * time.Millisecond
	}
}

// Client selects between the two transports per operation. Plain commands go to
// the request/response transport when configured; blocking pops and
// subscriptions always need the persistent one.
type Client struct {
	rest  *restTransport
	redis *redisTransport
}

var _ Store = (*Client)(nil)

// NewClient builds a client from options, verifying connectivity to each
// configured transport. An unreachable transport is logged and treated as
// absent; it is not fatal.
func NewClient(ctx context.Context, opts Options) *Client {
	opts.withDefaults()
	c := &Client{}

	if opts.RestURL != "" && opts.RestToken != "" {
		rest := newRestTransport(opts.RestURL, opts.RestToken)
		if pingTransport(ctx, rest, "rest", opts.PingAttempts, opts.PingBackoff) {
			c.rest = rest
		}
	}

	if opts.RedisURL != "" {
		rt, err := newRedisTransport(opts.RedisURL)
		if err != nil {
			logx.WithError(err).Error("storex: failed to create persistent transport")
		} else if pingTransport(ctx, rt, "persistent", opts.PingAttempts, opts.PingBackoff) {
			c.redis = rt
		}
	}

	return c
}

// NewClientFromRedis wraps an existing go-redis client as the persistent
// transport. Used by tests and by callers that manage their own connection.
func NewClientFromRedis(rdb *redis.Client) *Client {
	return &Client{redis: newRedisTransportFromClient(rdb)}
}

func pingTransport(ctx context.Context, t transport, name string, attempts int, backoff time.Duration) bool {
	for i := 1; i <= attempts; i++ {
		if err := t.Ping(ctx); err == nil {
			logx.Infof("storex: %s transport connected", name)
			return true
		} else if i < attempts {
			logx.Warnf("storex: %s transport ping attempt %d failed: %v", name, i, err)
			time.Sleep(backoff * time.Duration(i))
		} else {
			logx.WithError(err).Errorf("storex: %s transport unreachable after %d attempts", name, attempts)
		}
	}
	return false
}

// SupportsBlocking reports whether the persistent transport is available.
func (c *Client) SupportsBlocking() bool { return c.redis != nil }

// Close releases the persistent transport connection, if any.
func (c *Client) Close() error {
	if c.redis != nil {
		return c.redis.Close()
	}
	return nil
}

// pick returns the transport for plain commands, preferring request/response.
func (c *Client) pick() (transport, error) {
	if c.rest != nil {
		return c.rest, nil
	}
	if c.redis != nil {
		return c.redis, nil
	}
	return nil, storexErrors.New(ErrUnavailable)
}

func (c *Client) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	payload, err := Serialize(value)
	if err != nil {
		return err
	}
	if err := t.Set(ctx, key, payload, ttl); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "SET").WithDetail("key", key)
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) (any, error) {
	t, errv := c.pick()
	if errv != nil {
		return nil, errv
	}
	raw, found, err := t.Get(ctx, key)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "GET").WithDetail("key", key)
	}
	if !found {
		return nil, nil
	}
	return TryParse(raw), nil
}

// GetInto unmarshals the value at key into dest. Returns false when the key is
// absent.
func (c *Client) GetInto(ctx context.Context, key string, dest any) (bool, error) {
	t, errv := c.pick()
	if errv != nil {
		return false, errv
	}
	raw, found, err := t.Get(ctx, key)
	if err != nil {
		return false, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "GET").WithDetail("key", key)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		return false, storexErrors.NewWithCause(ErrCommand, err).WithDetail("key", key).WithDetail("reason", "undecodable value")
	}
	return true, nil
}

func (c *Client) Del(ctx context.Context, key string) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	if err := t.Del(ctx, key); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "DEL").WithDetail("key", key)
	}
	return nil
}

func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	if err := t.Expire(ctx, key, ttl); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "EXPIRE").WithDetail("key", key)
	}
	return nil
}

func (c *Client) Publish(ctx context.Context, channel string, message any) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	payload, err := Serialize(message)
	if err != nil {
		return err
	}
	if err := t.Publish(ctx, channel, payload); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "PUBLISH").WithDetail("channel", channel)
	}
	return nil
}

func (c *Client) Push(ctx context.Context, key string, values ...any) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	payloads := make([]string, len(values))
	for i, v := range values {
		p, err := Serialize(v)
		if err != nil {
			return err
		}
		payloads[i] = p
	}
	if err := t.Push(ctx, key, payloads...); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "RPUSH").WithDetail("key", key)
	}
	return nil
}

func (c *Client) Pop(ctx context.Context, key string) (string, bool, error) {
	t, errv := c.pick()
	if errv != nil {
		return "", false, errv
	}
	raw, found, err := t.Pop(ctx, key)
	if err != nil {
		return "", false, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "LPOP").WithDetail("key", key)
	}
	return raw, found, nil
}

// BlockingPop waits up to timeout for an item. It requires the persistent
// transport; callers should check SupportsBlocking and fall back to Pop.
func (c *Client) BlockingPop(ctx context.Context, key string, timeout time.Duration) (string, bool, error) {
	if c.redis == nil {
		return "", false, storexErrors.New(ErrUnsupported).WithDetail("op", "BLPOP")
	}
	raw, found, err := c.redis.BlockingPop(ctx, key, timeout)
	if err != nil {
		return "", false, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "BLPOP").WithDetail("key", key)
	}
	return raw, found, nil
}

func (c *Client) Range(ctx context.Context, key string, start, stop int64) ([]string, error) {
	t, errv := c.pick()
	if errv != nil {
		return nil, errv
	}
	items, err := t.Range(ctx, key, start, stop)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "LRANGE").WithDetail("key", key)
	}
	return items, nil
}

func (c *Client) ZAdd(ctx context.Context, key string, score float64, member string) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	if err := t.ZAdd(ctx, key, score, member); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "ZADD").WithDetail("key", key)
	}
	return nil
}

func (c *Client) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	t, errv := c.pick()
	if errv != nil {
		return nil, errv
	}
	members, err := t.ZRange(ctx, key, start, stop)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "ZRANGE").WithDetail("key", key)
	}
	return members, nil
}

func (c *Client) ZRangeWithScores(ctx context.Context, key string, start, stop int64) ([]ZMember, error) {
	t, errv := c.pick()
	if errv != nil {
		return nil, errv
	}
	members, err := t.ZRangeWithScores(ctx, key, start, stop)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "ZRANGE").WithDetail("key", key)
	}
	return members, nil
}

func (c *Client) ZRemRangeByRank(ctx context.Context, key string, start, stop int64) error {
	t, errv := c.pick()
	if errv != nil {
		return errv
	}
	if err := t.ZRemRangeByRank(ctx, key, start, stop); err != nil {
		return storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "ZREMRANGEBYRANK").WithDetail("key", key)
	}
	return nil
}

func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	t, errv := c.pick()
	if errv != nil {
		return nil, errv
	}
	keys, err := t.Keys(ctx, pattern)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "KEYS").WithDetail("pattern", pattern)
	}
	return keys, nil
}

// Subscribe opens a pub/sub subscription on the persistent transport.
func (c *Client) Subscribe(ctx context.Context, channel string) (Subscription, error) {
	if c.redis == nil {
		return nil, storexErrors.New(ErrUnsupported).WithDetail("op", "SUBSCRIBE")
	}
	sub, err := c.redis.Subscribe(ctx, channel)
	if err != nil {
		return nil, storexErrors.NewWithCause(ErrCommand, err).WithDetail("op", "SUBSCRIBE").WithDetail("channel", channel)
	}
	return sub, nil
}
