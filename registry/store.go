package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/ourzora/v3-sub003/core"
)

// Store is keyed persistence for auction records. At most one record exists
// per asset key at a time.
type Store interface {
	// Get returns the record for the asset, or ErrNotFound.
	Get(ctx context.Context, asset core.Asset) (Record, error)

	// Put writes the record for the asset, replacing any existing one.
	Put(ctx context.Context, asset core.Asset, record Record) error

	// Delete removes the record for the asset, or returns ErrNotFound.
	Delete(ctx context.Context, asset core.Asset) error
}

// MemoryStore is an in-memory Store. Safe for concurrent use; intended for
// tests, local development, and single-node deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[core.Asset]Record
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[core.Asset]Record)}
}

// Get returns the record for the asset, or ErrNotFound.
func (s *MemoryStore) Get(_ context.Context, asset core.Asset) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[asset]
	if !ok {
		return Record{}, fmt.Errorf("%s: %w", asset, ErrNotFound)
	}
	return record.Clone(), nil
}

// Put writes the record for the asset, replacing any existing one.
func (s *MemoryStore) Put(_ context.Context, asset core.Asset, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[asset] = record.Clone()
	return nil
}

// Delete removes the record for the asset.
func (s *MemoryStore) Delete(_ context.Context, asset core.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[asset]; !ok {
		return fmt.Errorf("%s: %w", asset, ErrNotFound)
	}
	delete(s.records, asset)
	return nil
}
