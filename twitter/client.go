// Package twitter implements reach.Provider on top of the X/Twitter web
// GraphQL API using one authenticated session.
package twitter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"

	reach "github.com/anatolykoptev/go-reach"
)

// transport is the part of *stealth.BrowserClient the client uses.
type transport interface {
	DoWithHeaderOrder(method, urlStr string, headers map[string]string, body io.Reader, order []string) ([]byte, map[string]string, int, error)
	GetCookieValue(urlStr, name string) string
}

// Client is the provider client. It is safe for concurrent use; all callers
// share its session.
type Client struct {
	bc      transport
	cfg     ClientConfig
	sess    *session
	backoff func(attempt int) time.Duration

	persistMu sync.Mutex
}

var _ reach.Provider = (*Client)(nil)

// NewClient builds the HTTP client and session. It does not log in; call
// Login before the first request.
func NewClient(cfg ClientConfig) (*Client, error) {
	cfg.defaults()
	if cfg.Username == "" {
		return nil, errors.New("twitter: username is required")
	}

	sess := newSession(cfg.Username, cfg.ProfileIndex, cfg.RateLimit)

	opts := []stealth.ClientOption{
		stealth.WithHeaderOrder(twitterHeaderOrder),
		stealth.WithProfile(sess.profile.TLSProfile),
	}
	if cfg.Proxy != "" {
		opts = append(opts, stealth.WithProxy(cfg.Proxy))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}
	if cfg.Proxy != "" {
		slog.Info("twitter client using proxy", slog.String("proxy", stealth.MaskProxy(cfg.Proxy)))
	}

	return &Client{bc: bc, cfg: cfg, sess: sess, backoff: stealth.DefaultBackoff.Duration}, nil
}

// Connect is NewClient followed by Login.
func Connect(ctx context.Context, cfg ClientConfig) (*Client, error) {
	c, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx); err != nil {
		return c, err
	}
	return c, nil
}

// Username returns the account the session belongs to.
func (c *Client) Username() string { return c.sess.username }

// doRequest executes a single request with the session's header order.
func (c *Client) doRequest(method, urlStr string, headers map[string]string) ([]byte, map[string]string, int, error) {
	return c.bc.DoWithHeaderOrder(method, urlStr, headers, nil, twitterHeaderOrder)
}
