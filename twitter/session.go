package twitter

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// session is the authenticated state shared by every request. Only the
// CSRF token changes after login; the account itself is never switched.
type session struct {
	username  string
	userAgent string
	profile   stealth.BrowserProfile

	mu             sync.Mutex
	authToken      string
	ct0            string
	ct0RefreshedAt time.Time
	limiter        *ratelimit.Limiter
}

func newSession(username string, profileIdx int, rl ratelimit.Config) *session {
	p := stealth.BuiltinProfiles[profileIdx%len(stealth.BuiltinProfiles)]
	return &session{
		username:  username,
		userAgent: p.UserAgent,
		profile:   p,
		limiter:   ratelimit.NewLimiter(rl),
	}
}

// Credentials returns a snapshot of (authToken, ct0, userAgent) under lock.
func (s *session) Credentials() (authToken, ct0, userAgent string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken, s.ct0, s.userAgent
}

// SetCredentials atomically updates auth_token and ct0.
func (s *session) SetCredentials(authToken, ct0 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authToken = authToken
	s.ct0 = ct0
	s.ct0RefreshedAt = time.Now()
}

// authenticated reports whether the session holds an auth token.
func (s *session) authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authToken != ""
}

// CT0Age returns the time since the ct0 token was last refreshed.
func (s *session) CT0Age() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ct0RefreshedAt.IsZero() {
		return 24 * time.Hour
	}
	return time.Since(s.ct0RefreshedAt)
}

// RotateCT0 generates a fresh ct0 token.
func (s *session) RotateCT0() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ct0 = GenerateCT0()
	s.ct0RefreshedAt = time.Now()
}

// SetCT0 updates the ct0 from a server response.
func (s *session) SetCT0(ct0 string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ct0 = ct0
	s.ct0RefreshedAt = time.Now()
}

// allow consumes a request slot for endpoint.
func (s *session) allow(endpoint string) bool {
	return s.limiter.Allow(endpoint)
}

// markRateLimited blocks endpoint until the given time.
func (s *session) markRateLimited(endpoint string, until time.Time) {
	s.limiter.MarkRateLimited(endpoint, until)
}

// availableAt returns when endpoint can be called again.
func (s *session) availableAt(endpoint string) time.Time {
	return s.limiter.AvailableAt(endpoint)
}

// --- persistence ---

// sessionDir returns the directory for persisting session cookies.
func sessionDir(override string) string {
	if override != "" {
		return override
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".go-reach", "sessions")
}

// sessionPath returns the file path for a given username's session.
func sessionPath(dir, username string) string {
	return filepath.Join(dir, username+".json")
}

// savedSession holds serialized cookie data for persistence.
type savedSession struct {
	AuthToken string    `json:"auth_token"`
	CT0       string    `json:"ct0"`
	SavedAt   time.Time `json:"saved_at"`
}

// saveSession persists auth_token and ct0 to disk.
func saveSession(dir, username, authToken, ct0 string) error {
	d := sessionDir(dir)
	if err := os.MkdirAll(d, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := json.MarshalIndent(savedSession{AuthToken: authToken, CT0: ct0, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	path := sessionPath(d, username)
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("write session %s: %w", path, err)
	}
	slog.Debug("session saved", slog.String("user", username))
	return nil
}

// writeFileAtomic writes data to a temp file beside path and renames it into
// place, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// loadSession loads a persisted session. A missing or expired file yields
// empty credentials and no error.
func loadSession(dir, username string, ttl time.Duration) (authToken, ct0 string, err error) {
	data, err := os.ReadFile(sessionPath(sessionDir(dir), username))
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", nil
		}
		return "", "", err
	}
	var s savedSession
	if err := json.Unmarshal(data, &s); err != nil {
		return "", "", fmt.Errorf("decode session: %w", err)
	}
	if time.Since(s.SavedAt) > ttl {
		slog.Debug("session expired", slog.String("user", username))
		return "", "", nil
	}
	return s.AuthToken, s.CT0, nil
}

// persist writes the current credentials, logging failures. Writes are
// serialized so the file always ends up holding the latest snapshot.
func (c *Client) persist() {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()
	authTok, ct0, _ := c.sess.Credentials()
	if err := saveSession(c.cfg.SessionDir, c.sess.username, authTok, ct0); err != nil {
		slog.Warn("session save failed", slog.String("user", c.sess.username), slog.Any("error", err))
	}
}
