package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config carries everything the service reads from the environment.
type Config struct {
	AppName  string `env:"INKWELL_APP_NAME" envDefault:"inkwell-auth"`
	AppEnv   string `env:"INKWELL_APP_ENV" envDefault:"local"`
	HTTPAddr string `env:"INKWELL_HTTP_ADDR" envDefault:":8080"`

	PostgresDSN string `env:"INKWELL_PG_DSN"`

	AccessTokenTTL time.Duration `env:"INKWELL_ACCESS_TOKEN_TTL" envDefault:"1h"`
	InvitationTTL  time.Duration `env:"INKWELL_INVITATION_TTL" envDefault:"720h"`

	RateLimitBurst     int   `env:"INKWELL_RATE_BURST" envDefault:"20"`
	RateLimitPerSecond int   `env:"INKWELL_RATE_PER_SECOND" envDefault:"10"`
	MaxBodyBytes       int64 `env:"INKWELL_MAX_BODY_BYTES" envDefault:"1048576"`

	DefaultLanguage string `env:"INKWELL_DEFAULT_LANGUAGE" envDefault:"en"`
}

// Load reads the configuration from the environment, honouring a local
// .env file when present.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad is Load for entrypoints that cannot continue without config.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}
