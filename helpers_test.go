package reach

import (
	"context"
	"errors"
	"sync"
	"time"
)

// stubProvider serves a fixed graph. Followers are returned in insertion
// order with only the handle set, like a real follower page.
type stubProvider struct {
	mu           sync.Mutex
	nextID       int64
	profiles     map[string]Profile
	followers    map[int64][]string
	profileErr   map[string]error
	followersErr map[int64]error

	profileCalls   map[string]int
	followerCalls  map[int64]int
	onFetchProfile func(ctx context.Context, handle string)
}

func newStubProvider() *stubProvider {
	return &stubProvider{
		profiles:      make(map[string]Profile),
		followers:     make(map[int64][]string),
		profileErr:    make(map[string]error),
		followersErr:  make(map[int64]error),
		profileCalls:  make(map[string]int),
		followerCalls: make(map[int64]int),
	}
}

// add registers an account and its followers (by handle) and returns its id.
func (s *stubProvider) add(handle string, followerCount int, private bool, followers ...string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := NormalizeHandle(handle)
	p, ok := s.profiles[key]
	if !ok {
		s.nextID++
		p.ID = s.nextID
	}
	p.Handle = handle
	p.DisplayName = handle
	p.FollowerCount = followerCount
	p.Private = private
	s.profiles[key] = p
	s.followers[p.ID] = followers
	return p.ID
}

func (s *stubProvider) id(handle string) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profiles[NormalizeHandle(handle)].ID
}

func (s *stubProvider) FetchProfile(ctx context.Context, handle string) (Profile, error) {
	if err := ctx.Err(); err != nil {
		return Profile{}, err
	}
	key := NormalizeHandle(handle)
	s.mu.Lock()
	s.profileCalls[key]++
	hook := s.onFetchProfile
	err := s.profileErr[key]
	p, ok := s.profiles[key]
	s.mu.Unlock()

	if hook != nil {
		hook(ctx, key)
	}
	if err != nil {
		return Profile{}, err
	}
	if !ok {
		return Profile{}, NewProviderError("profile", handle, ErrNotFound, nil)
	}
	return p, nil
}

func (s *stubProvider) FetchFollowers(ctx context.Context, userID int64, limit int) ([]Profile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.followerCalls[userID]++
	if err := s.followersErr[userID]; err != nil {
		return nil, err
	}
	handles := s.followers[userID]
	if limit > 0 && len(handles) > limit {
		handles = handles[:limit]
	}
	out := make([]Profile, 0, len(handles))
	for _, h := range handles {
		out = append(out, Profile{Handle: h})
	}
	return out, nil
}

func (s *stubProvider) profileCallsFor(handle string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profileCalls[NormalizeHandle(handle)]
}

func (s *stubProvider) followerCallsFor(handle string) int {
	id := s.id(handle)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.followerCalls[id]
}

func (s *stubProvider) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.profileCalls {
		n += c
	}
	for _, c := range s.followerCalls {
		n += c
	}
	return n
}

// countingPacer records Pace calls without sleeping.
type countingPacer struct {
	mu    sync.Mutex
	calls int
}

func (p *countingPacer) Pace(ctx context.Context) error {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	return ctx.Err()
}

func (p *countingPacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var errStoreDown = errors.New("store unavailable")

// memStore is a map-backed kv.Store with switchable failures.
type memStore struct {
	mu        sync.Mutex
	data      map[string][]byte
	ttls      map[string]time.Duration
	failGet   bool
	failSet   bool
	failAfter int // Set calls allowed before failSet kicks in; 0 means immediately
	sets      int
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (m *memStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return nil, false, errStoreDown
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key string, val []byte) error {
	return m.SetWithExpiry(ctx, key, val, 0)
}

func (m *memStore) SetWithExpiry(_ context.Context, key string, val []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	if m.failSet && m.sets > m.failAfter {
		return errStoreDown
	}
	m.data[key] = append([]byte(nil), val...)
	m.ttls[key] = ttl
	return nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) setFailures(get, set bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failGet = get
	m.failSet = set
}

// collectProgress records progress events in order.
type collectProgress struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (c *collectProgress) Report(_ context.Context, ev ProgressEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func handles(items []ResultItem) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Handle)
	}
	return out
}
