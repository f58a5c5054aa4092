package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/mlevaskis/tierauth"
)

func newRedisStore(t *testing.T) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewRedis(rdb, "tierauth-test"), mr
}

func TestRedisInsertAndFindByToken(t *testing.T) {
	s, _ := newRedisStore(t)
	record := seedRecord(t, s, "tok-a", "42", time.Now(), time.Hour)

	found, err := s.Find(context.Background(), tierauth.TokenFilter{Token: "tok-a"})
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != record.ID || found[0].UserID != "42" {
		t.Fatalf("unexpected result: %+v", found)
	}

	missing, err := s.Find(context.Background(), tierauth.TokenFilter{Token: "tok-unknown"})
	if err != nil || len(missing) != 0 {
		t.Fatalf("unknown token must yield no rows: %v (%d)", err, len(missing))
	}
}

func TestRedisFindByClientNewestFirst(t *testing.T) {
	s, _ := newRedisStore(t)
	now := time.Now()
	seedRecord(t, s, "tok-old", "", now.Add(-2*time.Hour), 24*time.Hour)
	newest := seedRecord(t, s, "tok-new", "", now, 24*time.Hour)

	found, err := s.Find(context.Background(), tierauth.TokenFilter{
		Address:   "203.0.113.7",
		UserAgent: "test-agent/1.0",
	})
	if err != nil || len(found) != 2 {
		t.Fatalf("expected both client records: %v (%d)", err, len(found))
	}
	if found[0].ID != newest.ID {
		t.Fatal("results must be ordered newest first")
	}

	limited, err := s.Find(context.Background(), tierauth.TokenFilter{
		Address:   "203.0.113.7",
		UserAgent: "test-agent/1.0",
		Limit:     1,
	})
	if err != nil || len(limited) != 1 || limited[0].ID != newest.ID {
		t.Fatalf("limit must keep the newest record: %v %+v", err, limited)
	}
}

func TestRedisUpdateMovesTokenIndex(t *testing.T) {
	s, _ := newRedisStore(t)
	record := seedRecord(t, s, "tok-a", "", time.Now(), time.Hour)

	newToken := "tok-rotated"
	userID := "42"
	if err := s.Update(context.Background(), record.ID, tierauth.TokenMutation{Token: &newToken, UserID: &userID}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	found, err := s.Find(context.Background(), tierauth.TokenFilter{Token: newToken})
	if err != nil || len(found) != 1 || found[0].UserID != "42" {
		t.Fatalf("rotated token not found: %v %+v", err, found)
	}

	stale, err := s.Find(context.Background(), tierauth.TokenFilter{Token: "tok-a"})
	if err != nil || len(stale) != 0 {
		t.Fatalf("old token must no longer resolve: %v (%d)", err, len(stale))
	}
}

func TestRedisRecordExpires(t *testing.T) {
	s, mr := newRedisStore(t)
	seedRecord(t, s, "tok-a", "", time.Now(), time.Hour)

	mr.FastForward(2 * time.Hour)

	found, err := s.Find(context.Background(), tierauth.TokenFilter{Token: "tok-a"})
	if err != nil || len(found) != 0 {
		t.Fatalf("expired record must not resolve by token: %v (%d)", err, len(found))
	}

	byClient, err := s.Find(context.Background(), tierauth.TokenFilter{
		Address:   "203.0.113.7",
		UserAgent: "test-agent/1.0",
	})
	if err != nil || len(byClient) != 0 {
		t.Fatalf("expired record must not resolve by client: %v (%d)", err, len(byClient))
	}
}

func TestRedisUpdateToExpiredDeletes(t *testing.T) {
	s, _ := newRedisStore(t)
	record := seedRecord(t, s, "tok-a", "42", time.Now(), time.Hour)

	past := time.Now().Add(-time.Minute)
	if err := s.Update(context.Background(), record.ID, tierauth.TokenMutation{IssuedAt: &past, ExpiresAt: &past}); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	found, err := s.Find(context.Background(), tierauth.TokenFilter{Token: "tok-a"})
	if err != nil || len(found) != 0 {
		t.Fatalf("expired record must be gone: %v (%d)", err, len(found))
	}
	if err := s.Update(context.Background(), record.ID, tierauth.TokenMutation{UserID: &record.UserID}); err != ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound after expiry, got %v", err)
	}
}

func TestRedisUnsupportedFilter(t *testing.T) {
	s, _ := newRedisStore(t)
	if _, err := s.Find(context.Background(), tierauth.TokenFilter{Address: "203.0.113.7"}); err != ErrUnsupportedFilter {
		t.Fatalf("expected ErrUnsupportedFilter, got %v", err)
	}
}
