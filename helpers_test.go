package tierauth

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"
)

const (
	testAddress = "203.0.113.7"
	testAgent   = "test-agent/1.0"
)

var errStoreDown = errors.New("store down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{now: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]TokenRecord
	nextID  int
	inserts int
	updates int
	fail    bool

	// findHook, when set, runs once after the next Find computes its result
	// and before that result is returned, so a test can interleave competing
	// lifecycle calls at the lookup boundary.
	findHook func()
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]TokenRecord)}
}

func (s *fakeStore) Find(_ context.Context, filter TokenFilter) ([]TokenRecord, error) {
	out, err := s.findLocked(filter)
	if err != nil {
		return nil, err
	}
	if hook := s.findHook; hook != nil {
		s.findHook = nil
		hook()
	}
	return out, nil
}

func (s *fakeStore) findLocked(filter TokenFilter) ([]TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errStoreDown
	}

	var out []TokenRecord
	for _, record := range s.records {
		if filter.Token != "" && record.Token != filter.Token {
			continue
		}
		if filter.Address != "" && record.Address != filter.Address {
			continue
		}
		if filter.UserAgent != "" && record.UserAgent != filter.UserAgent {
			continue
		}
		if !filter.ActiveAt.IsZero() && !record.ExpiresAt.After(filter.ActiveAt) {
			continue
		}
		out = append(out, record)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return out[i].ID > out[j].ID
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *fakeStore) Insert(_ context.Context, record TokenRecord) (TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return TokenRecord{}, errStoreDown
	}

	s.nextID++
	s.inserts++
	record.ID = fmt.Sprintf("rec-%04d", s.nextID)
	s.records[record.ID] = record
	return record, nil
}

func (s *fakeStore) Update(_ context.Context, id string, mutation TokenMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errStoreDown
	}

	record, ok := s.records[id]
	if !ok {
		return errors.New("no such record")
	}
	s.updates++
	if mutation.Token != nil {
		record.Token = *mutation.Token
	}
	if mutation.UserID != nil {
		record.UserID = *mutation.UserID
	}
	if mutation.IssuedAt != nil {
		record.IssuedAt = *mutation.IssuedAt
	}
	if mutation.ExpiresAt != nil {
		record.ExpiresAt = *mutation.ExpiresAt
	}
	s.records[id] = record
	return nil
}

func (s *fakeStore) get(t *testing.T, id string) TokenRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[id]
	if !ok {
		t.Fatalf("record %s not found", id)
	}
	return record
}

func (s *fakeStore) only(t *testing.T) TokenRecord {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.records) != 1 {
		t.Fatalf("expected exactly one record, have %d", len(s.records))
	}
	for _, record := range s.records {
		return record
	}
	return TokenRecord{}
}

type fakeDirectory struct {
	users map[string]UserRecord
	fail  bool
}

func (d *fakeDirectory) FindByField(_ context.Context, field, value string) (*UserRecord, error) {
	if d.fail {
		return nil, errors.New("directory down")
	}
	if field != "id" {
		return nil, nil
	}
	user, ok := d.users[value]
	if !ok {
		return nil, nil
	}
	return &user, nil
}

// fakeSync is an in-memory SessionSync standing in for the cookie and
// session layer.
type fakeSync struct {
	mu          sync.Mutex
	token       string
	hasToken    bool
	durable     string
	hasDurable  bool
	identity    Identity
	hasIdentity bool
}

func (f *fakeSync) Token() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.token, f.hasToken
}

func (f *fakeSync) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = token
	f.hasToken = token != ""
}

func (f *fakeSync) ClearToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.token = ""
	f.hasToken = false
}

func (f *fakeSync) DurableToken() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.durable, f.hasDurable
}

func (f *fakeSync) SetDurableToken(token string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durable = token
	f.hasDurable = true
}

func (f *fakeSync) ClearDurableToken() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.durable = ""
	f.hasDurable = false
}

func (f *fakeSync) Identity() (Identity, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.identity, f.hasIdentity
}

func (f *fakeSync) SetIdentity(identity Identity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = identity
	f.hasIdentity = identity.UserID != ""
}

func (f *fakeSync) ClearIdentity() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.identity = Identity{}
	f.hasIdentity = false
}

func testConfig(t *testing.T) Config {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}

	cfg := defaultConfig()
	cfg.Token.PrivateKey = []byte(priv)
	cfg.Token.PublicKey = []byte(pub)
	cfg.Token.UpdateExpiration = time.Hour
	cfg.Token.SessionExpiration = 24 * time.Hour
	cfg.Token.AuthExpiration = 72 * time.Hour
	cfg.Token.VisitorExpiration = 720 * time.Hour
	cfg.Metrics.Enabled = true
	return cfg
}

type testEnv struct {
	lifecycle *Lifecycle
	store     *fakeStore
	directory *fakeDirectory
	clock     *fakeClock
	sync      *fakeSync
	ctx       context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithConfig(t, testConfig(t))
}

func newTestEnvWithConfig(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	ts := newFakeStore()
	dir := &fakeDirectory{users: map[string]UserRecord{
		"42": {ID: "42", Email: "alice@example.com", Name: "Alice"},
	}}
	clock := newFakeClock(time.Now().Truncate(time.Second))

	lifecycle, err := New().
		WithConfig(cfg).
		WithTokenStore(ts).
		WithUserDirectory(dir).
		WithClock(clock.Now).
		Build()
	if err != nil {
		t.Fatalf("build lifecycle: %v", err)
	}
	t.Cleanup(lifecycle.Close)

	return &testEnv{
		lifecycle: lifecycle,
		store:     ts,
		directory: dir,
		clock:     clock,
		sync:      &fakeSync{},
		ctx:       WithUserAgent(WithClientAddress(context.Background(), testAddress), testAgent),
	}
}

// mustUpdate runs one refresh cycle and fails the test on error.
func (e *testEnv) mustUpdate(t *testing.T) {
	t.Helper()
	if err := e.lifecycle.Update(e.ctx, e.sync); err != nil {
		t.Fatalf("update failed: %v", err)
	}
}
