package twitter

import (
	"context"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"

	reach "github.com/anatolykoptev/go-reach"
)

// ClientConfig holds all configuration for the Twitter provider.
type ClientConfig struct {
	// Username and Password identify the single account whose session all
	// jobs share.
	Username string
	Password string

	// AuthToken and CT0 seed the session directly, skipping the login flow.
	AuthToken string
	CT0       string

	// TOTPSecret answers the two-factor challenge without a prompt.
	TOTPSecret string

	// TwoFactorCode is asked for a code when the login flow requires one and
	// no TOTPSecret is set. Leave nil for non-interactive processes.
	TwoFactorCode func(ctx context.Context) (string, error)

	// Proxy is an optional proxy URL for all requests.
	Proxy string

	// ProfileIndex selects the browser profile from stealth.BuiltinProfiles.
	ProfileIndex int

	// SessionDir overrides the default session persistence directory.
	// Default: ~/.go-reach/sessions
	SessionDir string

	// SessionTTL controls how long saved sessions are considered valid.
	SessionTTL time.Duration

	// RateLimit configures per-endpoint rate limiting for the session.
	RateLimit ratelimit.Config

	// MaxRateLimitWait is the longest a request waits for a rate-limited
	// endpoint to reopen before failing.
	MaxRateLimitWait time.Duration

	// PagePacer runs before every follower page after the first.
	// Default: reach.DefaultPacer
	PagePacer reach.Pacer

	// LoginTimeout bounds the whole login flow.
	LoginTimeout time.Duration
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
	if cfg.MaxRateLimitWait == 0 {
		cfg.MaxRateLimitWait = 15 * time.Minute
	}
	if cfg.PagePacer == nil {
		cfg.PagePacer = reach.DefaultPacer
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = 3 * time.Minute
	}
}
