package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	reach "github.com/anatolykoptev/go-reach"
)

const maxRetries = 3

var (
	errNoSession   = errors.New("no authenticated session")
	errRateLimited = errors.New("429 rate limited")
)

// doGET executes an authenticated GET with retry, ct0 rotation and
// per-endpoint rate limiting. op and subject label the returned
// *reach.ProviderError. Session failures are never retried.
func (c *Client) doGET(ctx context.Context, op, subject string, ep Endpoint, url string) ([]byte, error) {
	if !c.sess.authenticated() {
		return nil, reach.NewProviderError(op, subject, reach.ErrAuth, errNoSession)
	}

	var lastErr error
	for attempt := range maxRetries {
		if attempt > 0 {
			if err := sleepCtx(ctx, c.backoff(attempt)); err != nil {
				return nil, err
			}
		}
		if err := c.waitForSlot(ctx, ep.Name); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, reach.NewProviderError(op, subject, reach.ErrProvider, err)
		}

		if c.sess.CT0Age() > ct0MaxAge {
			c.sess.RotateCT0()
			slog.Info("ct0 rotated (proactive)", slog.String("user", c.sess.username))
			c.persist()
		}

		authTok, ct0, ua := c.sess.Credentials()
		body, respHdrs, status, err := c.doRequest("GET", url, twitterHeaders(authTok, ct0, ua))
		if err != nil {
			slog.Warn("request failed", slog.String("endpoint", ep.Name), slog.Int("attempt", attempt+1), slog.Any("error", err))
			lastErr = err
			continue
		}

		class := classifyError(body)
		switch {
		case status == 429:
			reset := parseRateLimitReset(respHdrs["x-rate-limit-reset"])
			c.sess.markRateLimited(ep.Name, reset)
			slog.Warn("rate limited", slog.String("endpoint", ep.Name), slog.Time("until", reset))
			lastErr = errRateLimited
			continue

		case class == errCSRF:
			slog.Warn("CSRF error 353, rotating ct0", slog.String("user", c.sess.username))
			c.sess.RotateCT0()
			c.persist()
			lastErr = errors.New("csrf token rejected")
			continue

		case status == 401 || status == 403:
			kind := class.kind()
			if class == errNone || kind == reach.ErrProvider {
				kind = reach.ErrAuth
			}
			return nil, reach.NewProviderError(op, subject, kind,
				fmt.Errorf("HTTP %d: %s", status, truncateBytes(body, 200)))

		case status == 404:
			return nil, reach.NewProviderError(op, subject, reach.ErrNotFound, fmt.Errorf("HTTP %d", status))

		case status >= 500:
			slog.Warn("server error, retrying", slog.String("endpoint", ep.Name), slog.Int("status", status))
			lastErr = fmt.Errorf("HTTP %d: %s", status, truncateBytes(body, 200))
			continue

		case status != 200:
			return nil, reach.NewProviderError(op, subject, reach.ErrProvider,
				fmt.Errorf("HTTP %d: %s", status, truncateBytes(body, 200)))
		}

		switch class {
		case errNone:
			c.refreshCT0(respHdrs, ct0)
			return body, nil

		case errInternal:
			if hasResponseData(body) {
				c.refreshCT0(respHdrs, ct0)
				slog.Debug("error 131 with usable data, treating as success", slog.String("endpoint", ep.Name))
				return body, nil
			}
			lastErr = errors.New("internal error (131)")
			continue

		default:
			slog.Warn("api error", slog.String("endpoint", ep.Name), slog.String("class", class.String()))
			return nil, reach.NewProviderError(op, subject, class.kind(), fmt.Errorf("api error: %s", class))
		}
	}

	return nil, reach.NewProviderError(op, subject, reach.ErrProvider,
		fmt.Errorf("failed after %d attempts: %w", maxRetries, lastErr))
}

// refreshCT0 adopts a ct0 the server set in its response.
func (c *Client) refreshCT0(respHdrs map[string]string, current string) {
	if newCT0 := extractCT0FromHeaders(respHdrs); newCT0 != "" && newCT0 != current {
		c.sess.SetCT0(newCT0)
		c.persist()
	}
}

// waitForSlot blocks until the session may call endpoint again, failing if
// the endpoint stays closed longer than MaxRateLimitWait.
func (c *Client) waitForSlot(ctx context.Context, endpoint string) error {
	for !c.sess.allow(endpoint) {
		until := c.sess.availableAt(endpoint)
		wait := time.Until(until)
		if wait > c.cfg.MaxRateLimitWait {
			return fmt.Errorf("%s rate limited until %s", endpoint, until.Format(time.RFC3339))
		}
		if wait <= 0 {
			wait = time.Second
		}
		slog.Info("endpoint rate limited, waiting", slog.String("endpoint", endpoint), slog.Duration("wait", wait))
		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

// hasResponseData returns true if the JSON body contains a non-null "data" field.
func hasResponseData(body []byte) bool {
	var probe struct {
		Data json.RawMessage `json:"data"`
	}
	if json.Unmarshal(body, &probe) != nil {
		return false
	}
	return len(probe.Data) > 0 && string(probe.Data) != "null"
}
