// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type APIConfig struct {
	Port        int    `yaml:"port"`
	OpsPort     int    `yaml:"ops_port"`
	OpsSecret   string `yaml:"ops_secret"` // HMAC secret for ops JWT auth
	RatePerMin  int    `yaml:"rate_per_min"`
	MaxBodySize int64  `yaml:"max_body_size"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BridgeConfig points at the messaging gateway that delivers replies back to
// users. Empty URL means polling-only operation.
type BridgeConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
}

// QueueConfig tunes the ordered pipeline. ClaimTimeout is the staleness
// threshold after which the sweeper reclaims an unacknowledged entry;
// LockTTL must exceed it so a dead worker's claim goes stale before its
// conversation lock does.
type QueueConfig struct {
	Group         string        `yaml:"group"`
	Workers       int           `yaml:"workers"`
	TickInterval  time.Duration `yaml:"tick_interval"`
	ClaimTimeout  time.Duration `yaml:"claim_timeout"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
	LockTTL       time.Duration `yaml:"lock_ttl"`
	JobTTL        time.Duration `yaml:"job_ttl"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	PollMaxWait   time.Duration `yaml:"poll_max_wait"`
	HistoryLimit  int           `yaml:"history_limit"`
	RetentionDays int           `yaml:"retention_days"`
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Bridge   BridgeConfig   `yaml:"bridge"`
	AI       AIConfig       `yaml:"ai"`
	Queue    QueueConfig    `yaml:"queue"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Env overrides for secrets so they stay out of the YAML file.
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.AI.OpenAIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.GeminiKey = v
	}
	if v := os.Getenv("OPS_JWT_SECRET"); v != "" {
		cfg.API.OpsSecret = v
	}
	if v := os.Getenv("BRIDGE_TOKEN"); v != "" {
		cfg.Bridge.Token = v
	}

	cfg.applyDefaults()

	// Minimal validation
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Queue.LockTTL <= cfg.Queue.ClaimTimeout {
		return nil, errors.New("queue.lock_ttl must exceed queue.claim_timeout")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.API.Port == 0 {
		cfg.API.Port = 8080
	}
	if cfg.API.OpsPort == 0 {
		cfg.API.OpsPort = 9090
	}
	if cfg.API.RatePerMin <= 0 {
		cfg.API.RatePerMin = 20
	}
	if cfg.API.MaxBodySize <= 0 {
		cfg.API.MaxBodySize = 1 << 20
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}
	q := &cfg.Queue
	if q.Group == "" {
		q.Group = "chat-workers"
	}
	if q.Workers <= 0 {
		q.Workers = 8
	}
	if q.TickInterval <= 0 {
		q.TickInterval = time.Second
	}
	if q.ClaimTimeout <= 0 {
		q.ClaimTimeout = 2 * time.Minute
	}
	if q.SweepInterval <= 0 {
		q.SweepInterval = 30 * time.Second
	}
	if q.LockTTL <= 0 {
		q.LockTTL = q.ClaimTimeout + time.Minute
	}
	if q.JobTTL <= 0 {
		q.JobTTL = time.Hour
	}
	if q.PollInterval <= 0 {
		q.PollInterval = 2 * time.Second
	}
	if q.PollMaxWait <= 0 {
		q.PollMaxWait = 2 * time.Minute
	}
	if q.HistoryLimit <= 0 {
		q.HistoryLimit = 15
	}
	if q.RetentionDays <= 0 {
		q.RetentionDays = 90
	}
}
