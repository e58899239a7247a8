// Package config loads server configuration from an optional YAML file
// followed by CHECKIN_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"checkin/internal/proof/issuer"
	"checkin/internal/proof/models"
)

// Replay store backends.
const (
	ReplayStoreMemory   = "memory"
	ReplayStoreRedis    = "redis"
	ReplayStorePostgres = "postgres"
	ReplayStoreNone     = "none"
)

// Config is the full server configuration.
type Config struct {
	Server Server       `yaml:"server"`
	Proof  Proof        `yaml:"proof"`
	Log    Log          `yaml:"log"`
	Replay Replay       `yaml:"replay"`
	Issuer IssuerConfig `yaml:"issuer"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// Proof holds proof verification settings.
type Proof struct {
	TTL time.Duration `yaml:"ttl"`
}

// Log selects the slog level and handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Replay selects and configures the replay guard backend.
type Replay struct {
	Store       string      `yaml:"store"`
	Redis       RedisConfig `yaml:"redis"`
	DatabaseURL string      `yaml:"databaseURL"`
}

// RedisConfig configures the go-redis client.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"poolSize"`
	MinIdleConns int           `yaml:"minIdleConns"`
	DialTimeout  time.Duration `yaml:"dialTimeout"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// IssuerConfig enables the signed artifact envelope when Key is set.
type IssuerConfig struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// Enabled reports whether artifacts are signed.
func (c IssuerConfig) Enabled() bool {
	return c.Key != ""
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
		Proof:  Proof{TTL: models.DefaultTTL},
		Log:    Log{Level: "info", Format: "text"},
		Replay: Replay{
			Store: ReplayStoreMemory,
			Redis: RedisConfig{
				PoolSize:     10,
				MinIdleConns: 2,
				DialTimeout:  5 * time.Second,
				ReadTimeout:  3 * time.Second,
				WriteTimeout: 3 * time.Second,
			},
		},
		Issuer: IssuerConfig{Name: "checkin"},
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("CHECKIN_ADDR", &c.Server.Addr)
	str("CHECKIN_LOG_LEVEL", &c.Log.Level)
	str("CHECKIN_LOG_FORMAT", &c.Log.Format)
	str("CHECKIN_REPLAY_STORE", &c.Replay.Store)
	str("CHECKIN_REDIS_URL", &c.Replay.Redis.URL)
	str("CHECKIN_DATABASE_URL", &c.Replay.DatabaseURL)
	str("CHECKIN_ISSUER_KEY", &c.Issuer.Key)
	str("CHECKIN_ISSUER_NAME", &c.Issuer.Name)

	if v, ok := lookup("CHECKIN_PROOF_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CHECKIN_PROOF_TTL: %w", err)
		}
		c.Proof.TTL = ttl
	}
	return nil
}

// Validate reports every inconsistency at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Proof.TTL <= 0 {
		errs = append(errs, errors.New("proof.ttl must be positive"))
	}
	switch c.Replay.Store {
	case ReplayStoreMemory, ReplayStoreNone:
	case ReplayStoreRedis:
		if c.Replay.Redis.URL == "" {
			errs = append(errs, errors.New("replay.redis.url is required for the redis store"))
		}
	case ReplayStorePostgres:
		if c.Replay.DatabaseURL == "" {
			errs = append(errs, errors.New("replay.databaseURL is required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown replay store %q", c.Replay.Store))
	}
	if c.Issuer.Enabled() && len(c.Issuer.Key) < issuer.MinKeyLength {
		errs = append(errs, fmt.Errorf("issuer.key must be at least %d bytes", issuer.MinKeyLength))
	}
	return errors.Join(errs...)
}
