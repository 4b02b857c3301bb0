package reach

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all process-level settings. It is read once at start-up.
type Config struct {
	// MinFollowers is the default follower threshold for new jobs. Zero
	// admits every account; LoadConfig starts from DefaultMinFollowers so an
	// absent key and an explicit 0 stay distinct.
	MinFollowers int `yaml:"min_followers"`

	// MaxDepth is the largest depth a job may request.
	MaxDepth int `yaml:"max_depth"`

	// CacheTTL is how long a cached profile stays valid.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// StorePath is the BadgerDB directory.
	StorePath string `yaml:"store_path"`

	// Workers bounds how many jobs run at once.
	Workers int `yaml:"workers"`

	// QueueSize bounds how many jobs may wait for a worker.
	QueueSize int `yaml:"queue_size"`

	// FollowerLimit caps each follower-list fetch. Zero fetches all.
	FollowerLimit int `yaml:"follower_limit"`

	// PaceMin and PaceMax bound the random delay before every provider call.
	PaceMin time.Duration `yaml:"pace_min"`
	PaceMax time.Duration `yaml:"pace_max"`

	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	Provider ProviderConfig `yaml:"provider"`
	Neo4j    Neo4jConfig    `yaml:"neo4j"`
}

// ProviderConfig carries the provider account used for the shared session.
type ProviderConfig struct {
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	TOTPSecret string `yaml:"totp_secret"`
	Proxy      string `yaml:"proxy"`

	// AuthToken and CT0 seed the session from browser cookies, skipping the
	// login flow when no saved session exists.
	AuthToken string `yaml:"auth_token"`
	CT0       string `yaml:"ct0"`

	SessionDir string        `yaml:"session_dir"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// Neo4jConfig enables follow-edge export when URI is set.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// DefaultMinFollowers is the follower threshold used when none is configured.
const DefaultMinFollowers = 3000

// defaults fills in zero-value fields. MinFollowers is left alone because
// zero is a meaningful threshold.
func (cfg *Config) defaults() {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 3
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if cfg.StorePath == "" {
		cfg.StorePath = "./data"
	}
	if cfg.Workers == 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = 64
	}
	if cfg.PaceMin == 0 {
		cfg.PaceMin = time.Second
	}
	if cfg.PaceMax == 0 {
		cfg.PaceMax = 3 * time.Second
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.Provider.SessionTTL == 0 {
		cfg.Provider.SessionTTL = 24 * time.Hour
	}
	if cfg.Neo4j.Database == "" {
		cfg.Neo4j.Database = "neo4j"
	}
}

// Validate rejects settings the service cannot run with.
func (cfg *Config) Validate() error {
	switch {
	case cfg.MinFollowers < 0:
		return errors.New("min_followers must not be negative")
	case cfg.MaxDepth < 1:
		return errors.New("max_depth must be at least 1")
	case cfg.Workers < 1:
		return errors.New("workers must be at least 1")
	case cfg.QueueSize < 1:
		return errors.New("queue_size must be at least 1")
	case cfg.PaceMin < 0 || cfg.PaceMax < cfg.PaceMin:
		return fmt.Errorf("invalid pacing window %s-%s", cfg.PaceMin, cfg.PaceMax)
	}
	return nil
}

// LoadConfig reads an optional YAML file, applies REACH_* environment
// overrides, then fills defaults. An empty path skips the file.
func LoadConfig(path string) (Config, error) {
	cfg := Config{MinFollowers: DefaultMinFollowers}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	cfg.defaults()
	return cfg, cfg.Validate()
}

// applyEnv overrides fields from the environment. lookup is os.LookupEnv
// outside of tests.
func (cfg *Config) applyEnv(lookup func(string) (string, bool)) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"REACH_MIN_FOLLOWERS", &cfg.MinFollowers},
		{"REACH_MAX_DEPTH", &cfg.MaxDepth},
		{"REACH_WORKERS", &cfg.Workers},
		{"REACH_QUEUE_SIZE", &cfg.QueueSize},
		{"REACH_FOLLOWER_LIMIT", &cfg.FollowerLimit},
	}
	for _, f := range ints {
		if v, ok := lookup(f.key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = n
		}
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"REACH_CACHE_TTL", &cfg.CacheTTL},
		{"REACH_PACE_MIN", &cfg.PaceMin},
		{"REACH_PACE_MAX", &cfg.PaceMax},
		{"REACH_SESSION_TTL", &cfg.Provider.SessionTTL},
	}
	for _, f := range durations {
		if v, ok := lookup(f.key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
			*f.dst = d
		}
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"REACH_STORE_PATH", &cfg.StorePath},
		{"REACH_HTTP_ADDR", &cfg.HTTPAddr},
		{"REACH_LOG_LEVEL", &cfg.LogLevel},
		{"REACH_LOG_FORMAT", &cfg.LogFormat},
		{"REACH_USERNAME", &cfg.Provider.Username},
		{"REACH_PASSWORD", &cfg.Provider.Password},
		{"REACH_TOTP_SECRET", &cfg.Provider.TOTPSecret},
		{"REACH_PROXY", &cfg.Provider.Proxy},
		{"REACH_AUTH_TOKEN", &cfg.Provider.AuthToken},
		{"REACH_CT0", &cfg.Provider.CT0},
		{"REACH_SESSION_DIR", &cfg.Provider.SessionDir},
		{"REACH_NEO4J_URI", &cfg.Neo4j.URI},
		{"REACH_NEO4J_USERNAME", &cfg.Neo4j.Username},
		{"REACH_NEO4J_PASSWORD", &cfg.Neo4j.Password},
		{"REACH_NEO4J_DATABASE", &cfg.Neo4j.Database},
	}
	for _, f := range strs {
		if v, ok := lookup(f.key); ok && v != "" {
			*f.dst = v
		}
	}
	return nil
}
