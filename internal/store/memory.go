package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Memory is an in-process ProfileStore and CredentialStore. Values are deep
// copied on the way in and out so callers never share state with the store.
type Memory struct {
	mu      sync.RWMutex
	members []byte
	creds   map[string]TokenRecord
}

// NewMemory creates an in-memory store seeded with members.
func NewMemory(members ...Member) *Memory {
	m := &Memory{creds: make(map[string]TokenRecord)}
	_ = m.WriteAll(context.Background(), members)
	return m
}

func (m *Memory) ReadAll(ctx context.Context) ([]Member, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Member
	if err := json.Unmarshal(m.members, &out); err != nil {
		return nil, fmt.Errorf("decode members: %w", err)
	}
	return out, nil
}

func (m *Memory) WriteAll(ctx context.Context, members []Member) error {
	if members == nil {
		members = []Member{}
	}
	b, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("encode members: %w", err)
	}
	m.mu.Lock()
	m.members = b
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(ctx context.Context, memberID string) (TokenRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.creds[memberID]
	if !ok {
		return TokenRecord{}, ErrNotFound
	}
	rec.Scopes = append([]string(nil), rec.Scopes...)
	return rec, nil
}

func (m *Memory) Put(ctx context.Context, memberID string, rec TokenRecord) error {
	rec.Scopes = append([]string(nil), rec.Scopes...)
	m.mu.Lock()
	m.creds[memberID] = rec
	m.mu.Unlock()
	return nil
}
