package royalty

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
)

// Engine is a Resolver that caches resolved royalty specs per asset so
// repeated settlements against the same collection do not re-run detection.
// Cached entries expire after the configured TTL and are swept by a
// background cleanup loop.
type Engine struct {
	source SpecSource
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	cache map[core.Asset]cachedSpec
}

type cachedSpec struct {
	shares     []Share
	resolvedAt time.Time
}

var _ Resolver = (*Engine)(nil)

// NewEngine creates a caching resolver over source. Entries older than ttl
// are re-resolved on the next lookup.
func NewEngine(source SpecSource, ttl time.Duration) *Engine {
	return &Engine{
		source: source,
		ttl:    ttl,
		now:    time.Now,
		cache:  make(map[core.Asset]cachedSpec),
	}
}

// Lookup resolves the royalty payouts owed on a sale of the asset.
func (e *Engine) Lookup(ctx context.Context, asset core.Asset, saleAmount decimal.Decimal) ([]core.Payout, error) {
	shares, err := e.spec(ctx, asset)
	if err != nil {
		return nil, err
	}
	return Amounts(shares, saleAmount)
}

func (e *Engine) spec(ctx context.Context, asset core.Asset) ([]Share, error) {
	e.mu.Lock()
	entry, ok := e.cache[asset]
	e.mu.Unlock()
	if ok && e.now().Sub(entry.resolvedAt) < e.ttl {
		return entry.shares, nil
	}

	shares, err := e.source.RoyaltySpec(ctx, asset)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[asset] = cachedSpec{shares: shares, resolvedAt: e.now()}
	e.mu.Unlock()
	return shares, nil
}

// StartExpirationCleanup sweeps expired cache entries every interval until
// ctx is canceled, so an engine watching many collections does not grow
// without bound.
func (e *Engine) StartExpirationCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed := e.evictExpired()
				if removed > 0 {
					log.Printf("INFO: Evicted %d expired royalty cache entries", removed)
				}
			}
		}
	}()
}

func (e *Engine) evictExpired() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	removed := 0
	cutoff := e.now().Add(-e.ttl)
	for asset, entry := range e.cache {
		if entry.resolvedAt.Before(cutoff) {
			delete(e.cache, asset)
			removed++
		}
	}
	return removed
}
