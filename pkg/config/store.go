package config

import "time"

// StoreConfig configures the two redis transports. Either may be absent; the
// store client works with whichever is reachable.
type StoreConfig struct {
	// RestURL/RestToken configure the Upstash-style request/response transport.
	RestURL   string
	RestToken string

	// RedisURL configures the persistent (TCP) transport, e.g. redis://host:6379/0.
	RedisURL string

	PingAttempts int
	PingBackoff  time.Duration
}

func loadStoreConfig() StoreConfig {
	return StoreConfig{
		RestURL:      getEnv("UPSTASH_REDIS_REST_URL", ""),
		RestToken:    getEnv("UPSTASH_REDIS_REST_TOKEN", ""),
		RedisURL:     getEnv("REDIS_URL", ""),
		PingAttempts: getEnvInt("STORE_PING_ATTEMPTS", 3),
		PingBackoff:  getEnvDuration("STORE_PING_BACKOFF", 500*time.Millisecond),
	}
}
