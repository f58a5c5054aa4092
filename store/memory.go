package store

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/mlevaskis/tierauth"
)

// ErrRecordNotFound is returned by Update when no record has the given id.
var ErrRecordNotFound = errors.New("token record not found")

// Memory is a mutex-guarded in-memory TokenStore. Intended for tests and
// single-process embedding; records are lost on restart and never swept.
type Memory struct {
	mu      sync.Mutex
	records map[string]tierauth.TokenRecord
	seq     map[string]uint64
	nextSeq uint64
}

// NewMemory describes the newmemory operation and its observable behavior.
func NewMemory() *Memory {
	return &Memory{
		records: make(map[string]tierauth.TokenRecord),
		seq:     make(map[string]uint64),
	}
}

// Find describes the find operation and its observable behavior.
func (m *Memory) Find(_ context.Context, filter tierauth.TokenFilter) ([]tierauth.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []tierauth.TokenRecord
	for _, record := range m.records {
		if matches(record, filter) {
			out = append(out, record)
		}
	}

	// Newest first; insertion order breaks IssuedAt ties.
	sort.Slice(out, func(i, j int) bool {
		if !out[i].IssuedAt.Equal(out[j].IssuedAt) {
			return out[i].IssuedAt.After(out[j].IssuedAt)
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Insert describes the insert operation and its observable behavior.
func (m *Memory) Insert(_ context.Context, record tierauth.TokenRecord) (tierauth.TokenRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	record.ID = uuid.New().String()
	m.nextSeq++
	m.seq[record.ID] = m.nextSeq
	m.records[record.ID] = record
	return record, nil
}

// Update describes the update operation and its observable behavior.
func (m *Memory) Update(_ context.Context, id string, mutation tierauth.TokenMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, ok := m.records[id]
	if !ok {
		return ErrRecordNotFound
	}
	apply(&record, mutation)
	m.records[id] = record
	return nil
}

func matches(record tierauth.TokenRecord, filter tierauth.TokenFilter) bool {
	if filter.Token != "" && record.Token != filter.Token {
		return false
	}
	if filter.Address != "" && record.Address != filter.Address {
		return false
	}
	if filter.UserAgent != "" && record.UserAgent != filter.UserAgent {
		return false
	}
	if !filter.ActiveAt.IsZero() && !record.ExpiresAt.After(filter.ActiveAt) {
		return false
	}
	return true
}

func apply(record *tierauth.TokenRecord, mutation tierauth.TokenMutation) {
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
}

var _ tierauth.TokenStore = (*Memory)(nil)
