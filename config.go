package partyhub

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the full server configuration, loaded from the environment.
type Config struct {
	ListenAddr string `env:"PARTYHUB_LISTEN_ADDR" envDefault:":8080"`

	// Exchange picks the fan-out transport: local, redis or nats.
	Exchange      string `env:"PARTYHUB_EXCHANGE" envDefault:"local"`
	ChannelPrefix string `env:"PARTYHUB_CHANNEL_PREFIX" envDefault:"partyhub"`

	// RedisAddr also backs the notification store and the user-info
	// cache when set.
	RedisAddr string `env:"PARTYHUB_REDIS_ADDR"`
	NATSURL   string `env:"PARTYHUB_NATS_URL"`

	MaxPartySize  int           `env:"PARTYHUB_MAX_PARTY_SIZE" envDefault:"8"`
	InviteTTL     time.Duration `env:"PARTYHUB_INVITE_TTL" envDefault:"24h"`
	MaxChatLength int           `env:"PARTYHUB_MAX_CHAT_LEN" envDefault:"500"`

	LogLevel string `env:"PARTYHUB_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig parses and validates the environment configuration.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	switch cfg.Exchange {
	case "local":
	case "redis":
		if cfg.RedisAddr == "" {
			return cfg, fmt.Errorf("exchange %q needs PARTYHUB_REDIS_ADDR", cfg.Exchange)
		}
	case "nats":
		if cfg.NATSURL == "" {
			return cfg, fmt.Errorf("exchange %q needs PARTYHUB_NATS_URL", cfg.Exchange)
		}
	default:
		return cfg, fmt.Errorf("unknown exchange %q", cfg.Exchange)
	}
	return cfg, nil
}
