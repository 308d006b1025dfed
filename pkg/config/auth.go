package config

import "time"

// AuthConfig configures JWT verification and issuing.
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
	Issuer    string

	// AgentKey guards the agent callback routes. Empty disables the check,
	// which is only acceptable in local development.
	AgentKey string
}

func loadAuthConfig() AuthConfig {
	return AuthConfig{
		JWTSecret: getEnv("JWT_SECRET", "change-me"),
		TokenTTL:  getEnvDuration("ACCESS_TOKEN_TTL", 7*24*time.Hour),
		Issuer:    getEnv("JWT_ISSUER", "astra-backend"),
		AgentKey:  getEnv("AGENT_API_KEY", ""),
	}
}
