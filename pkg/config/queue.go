package config

import "time"

// QueueConfig configures the rebalance job queue and its polling worker.
type QueueConfig struct {
	RequestKey  string
	TrackingKey string
	JobTTL      time.Duration

	PollInterval    time.Duration
	MaxPollInterval time.Duration
	BackoffFactor   float64
	BlockTimeout    time.Duration
}

func loadQueueConfig() QueueConfig {
	return QueueConfig{
		RequestKey:      getEnv("QUEUE_REQUEST_KEY", "agent:rebalance:request"),
		TrackingKey:     getEnv("QUEUE_TRACKING_KEY", "agent:rebalance:jobs"),
		JobTTL:          getEnvDuration("QUEUE_JOB_TTL", 24*time.Hour),
		PollInterval:    getEnvDuration("QUEUE_POLL_INTERVAL", 500*time.Millisecond),
		MaxPollInterval: getEnvDuration("QUEUE_MAX_POLL_INTERVAL", 5*time.Second),
		BackoffFactor:   getEnvFloat("QUEUE_BACKOFF_FACTOR", 1.5),
		BlockTimeout:    getEnvDuration("QUEUE_BLOCK_TIMEOUT", 5*time.Second),
	}
}
