package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mlevaskis/tierauth"
)

// ErrRedisUnavailable is an exported constant or variable used by the session lifecycle engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrUnsupportedFilter is returned for filters with neither a token nor a
// full address/user-agent pair; the Redis store has no index for them.
var ErrUnsupportedFilter = errors.New("unsupported token filter")

const defaultRedisPrefix = "tierauth"

// Redis is a go-redis backed TokenStore. Records are JSON blobs expiring with
// their own ExpiresAt; a token digest index supports lookup by token string
// and a client set index supports lookup by address and user agent.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis describes the newredis operation and its observable behavior.
func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

type redisRecord struct {
	ID          string `json:"id"`
	Token       string `json:"token"`
	UserID      string `json:"user_id,omitempty"`
	VisitorHash string `json:"visitor_hash"`
	Address     string `json:"address"`
	UserAgent   string `json:"user_agent"`
	IssuedAt    int64  `json:"issued_at"`
	ExpiresAt   int64  `json:"expires_at"`
}

func toRedisRecord(r tierauth.TokenRecord) redisRecord {
	return redisRecord{
		ID:          r.ID,
		Token:       r.Token,
		UserID:      r.UserID,
		VisitorHash: r.VisitorHash,
		Address:     r.Address,
		UserAgent:   r.UserAgent,
		IssuedAt:    r.IssuedAt.Unix(),
		ExpiresAt:   r.ExpiresAt.Unix(),
	}
}

func (r redisRecord) toRecord() tierauth.TokenRecord {
	return tierauth.TokenRecord{
		ID:          r.ID,
		Token:       r.Token,
		UserID:      r.UserID,
		VisitorHash: r.VisitorHash,
		Address:     r.Address,
		UserAgent:   r.UserAgent,
		IssuedAt:    time.Unix(r.IssuedAt, 0),
		ExpiresAt:   time.Unix(r.ExpiresAt, 0),
	}
}

func (s *Redis) recordKey(id string) string {
	return fmt.Sprintf("%s:record:%s", s.prefix, id)
}

func (s *Redis) tokenKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return fmt.Sprintf("%s:token:%s", s.prefix, hex.EncodeToString(sum[:]))
}

func (s *Redis) clientKey(address, userAgent string) string {
	sum := sha256.Sum256([]byte(address + "\x00" + userAgent))
	return fmt.Sprintf("%s:client:%s", s.prefix, hex.EncodeToString(sum[:]))
}

// Find describes the find operation and its observable behavior.
func (s *Redis) Find(ctx context.Context, filter tierauth.TokenFilter) ([]tierauth.TokenRecord, error) {
	switch {
	case filter.Token != "":
		record, err := s.findByToken(ctx, filter.Token)
		if err != nil {
			return nil, err
		}
		if record == nil || !matches(*record, filter) {
			return nil, nil
		}
		return []tierauth.TokenRecord{*record}, nil
	case filter.Address != "" && filter.UserAgent != "":
		return s.findByClient(ctx, filter)
	default:
		return nil, ErrUnsupportedFilter
	}
}

func (s *Redis) findByToken(ctx context.Context, token string) (*tierauth.TokenRecord, error) {
	id, err := s.client.Get(ctx, s.tokenKey(token)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.loadRecord(ctx, id)
}

func (s *Redis) findByClient(ctx context.Context, filter tierauth.TokenFilter) ([]tierauth.TokenRecord, error) {
	key := s.clientKey(filter.Address, filter.UserAgent)
	ids, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var out []tierauth.TokenRecord
	for _, id := range ids {
		record, err := s.loadRecord(ctx, id)
		if err != nil {
			return nil, err
		}
		if record == nil {
			// Record expired out from under the index.
			_ = s.client.SRem(ctx, key, id).Err()
			continue
		}
		if matches(*record, filter) {
			out = append(out, *record)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].IssuedAt.After(out[j].IssuedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Redis) loadRecord(ctx context.Context, id string) (*tierauth.TokenRecord, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	var raw redisRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decoding token record %s: %w", id, err)
	}
	record := raw.toRecord()
	return &record, nil
}

// Insert describes the insert operation and its observable behavior.
func (s *Redis) Insert(ctx context.Context, record tierauth.TokenRecord) (tierauth.TokenRecord, error) {
	record.ID = uuid.New().String()

	if err := s.writeRecord(ctx, record, ""); err != nil {
		return tierauth.TokenRecord{}, err
	}
	return record, nil
}

// Update describes the update operation and its observable behavior.
func (s *Redis) Update(ctx context.Context, id string, mutation tierauth.TokenMutation) error {
	record, err := s.loadRecord(ctx, id)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrRecordNotFound
	}

	oldToken := record.Token
	apply(record, mutation)

	staleToken := ""
	if record.Token != oldToken {
		staleToken = oldToken
	}
	return s.writeRecord(ctx, *record, staleToken)
}

// writeRecord persists the record and its indexes in one transaction,
// dropping the stale token index when the token string changed. A record
// already past its expiry is removed instead of written.
func (s *Redis) writeRecord(ctx context.Context, record tierauth.TokenRecord, staleToken string) error {
	ttl := time.Until(record.ExpiresAt)

	pipe := s.client.TxPipeline()
	if staleToken != "" {
		pipe.Del(ctx, s.tokenKey(staleToken))
	}

	clientKey := s.clientKey(record.Address, record.UserAgent)
	if ttl <= 0 {
		pipe.Del(ctx, s.recordKey(record.ID), s.tokenKey(record.Token))
		pipe.SRem(ctx, clientKey, record.ID)
	} else {
		data, err := json.Marshal(toRedisRecord(record))
		if err != nil {
			return fmt.Errorf("encoding token record %s: %w", record.ID, err)
		}
		pipe.Set(ctx, s.recordKey(record.ID), data, ttl)
		pipe.Set(ctx, s.tokenKey(record.Token), record.ID, ttl)
		pipe.SAdd(ctx, clientKey, record.ID)
		pipe.Expire(ctx, clientKey, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

var _ tierauth.TokenStore = (*Redis)(nil)
