package internal

import (
	"strings"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,required=true"`
	Port                 int           `env:"PORT,required=true"`
	RedisURL             string        `env:"REDIS_URL,required=true"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LogLevel             string        `env:"LOG_LEVEL,required=true"`
	JWTSecret            string        `env:"JWT_SECRET,required=true"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,required=true"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,required=true"`
	PresenceTTL          time.Duration `env:"PRESENCE_TTL,required=true"`
	SweepInterval        time.Duration `env:"SWEEP_INTERVAL,required=true"`
	RestartInterval      time.Duration `env:"RESTART_INTERVAL,required=true"`
	HealthInterval       time.Duration `env:"HEALTH_INTERVAL,required=true"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AllowedReactions     string        `env:"ALLOWED_REACTIONS"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
}

// ReactionList splits the configured allow-list. When the variable is unset
// the stock thumbs pair applies; an explicit "*" lifts the restriction.
func (c Config) ReactionList() []string {
	switch strings.TrimSpace(c.AllowedReactions) {
	case "":
		return []string{"👍", "👎"}
	case "*":
		return nil
	}
	parts := strings.Split(c.AllowedReactions, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
