package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"onlyconnect-service/internal/store"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		Prefix   string `yaml:"prefix"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Store struct {
		// Backend is "memory" or "redis". Empty picks redis when an address is set.
		Backend        string `yaml:"backend"`
		MaxAttempts    int    `yaml:"max_attempts"`
		InitialBackoff string `yaml:"initial_backoff"`
	} `yaml:"store"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Store.Backend {
	case "", BackendMemory:
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("store backend redis needs redis.addr")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.MaxAttempts < 0 {
		return fmt.Errorf("store.max_attempts must not be negative")
	}
	return nil
}

// StoreBackend resolves the configured backend.
func (c Config) StoreBackend() string {
	if c.Store.Backend != "" {
		return c.Store.Backend
	}
	if c.Redis.Addr != "" {
		return BackendRedis
	}
	return BackendMemory
}

// RetryPolicy returns the transaction retry policy, defaulting unset fields.
func (c Config) RetryPolicy() store.RetryPolicy {
	policy := store.DefaultRetryPolicy
	if c.Store.MaxAttempts > 0 {
		policy.MaxAttempts = c.Store.MaxAttempts
	}
	policy.InitialBackoff = TTLDuration(c.Store.InitialBackoff, policy.InitialBackoff)
	return policy
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
