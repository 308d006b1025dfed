package config

import "time"

// GatewayConfig configures the websocket notification gateway.
type GatewayConfig struct {
	StatusChannel string
	PendingTTL    time.Duration

	RateLimit       int
	RateLimitWindow time.Duration
}

func loadGatewayConfig() GatewayConfig {
	return GatewayConfig{
		StatusChannel:   getEnv("GATEWAY_STATUS_CHANNEL", "agent:rebalance:status"),
		PendingTTL:      getEnvDuration("GATEWAY_PENDING_TTL", 24*time.Hour),
		RateLimit:       getEnvInt("RATE_LIMIT_MAX", 10),
		RateLimitWindow: getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
	}
}
