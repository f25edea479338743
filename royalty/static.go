package royalty

import (
	"context"
	"sync"

	"github.com/ourzora/v3-sub003/core"
)

// StaticSource is a SpecSource backed by in-memory configuration:
// per-collection shares with optional per-asset overrides. Safe for
// concurrent use.
type StaticSource struct {
	mu          sync.RWMutex
	collections map[string][]Share
	assets      map[core.Asset][]Share
}

var _ SpecSource = (*StaticSource)(nil)

// NewStaticSource creates an empty source.
func NewStaticSource() *StaticSource {
	return &StaticSource{
		collections: make(map[string][]Share),
		assets:      make(map[core.Asset][]Share),
	}
}

// SetCollection configures the shares applied to every asset in a
// collection.
func (s *StaticSource) SetCollection(collection string, shares []Share) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = shares
}

// SetAsset configures shares for a single asset, overriding its
// collection's shares.
func (s *StaticSource) SetAsset(asset core.Asset, shares []Share) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assets[asset] = shares
}

// RoyaltySpec returns the configured shares, preferring the asset override.
// Assets with no configuration have no royalties; that is not an error.
func (s *StaticSource) RoyaltySpec(_ context.Context, asset core.Asset) ([]Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if shares, ok := s.assets[asset]; ok {
		return shares, nil
	}
	return s.collections[asset.Collection], nil
}
