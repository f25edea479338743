// Package engine implements the auction state machine: creation, bidding,
// cancellation, and settlement of time-boxed ascending auctions with escrow
// and a multi-party fee waterfall.
//
// States per asset: Uncreated → Pending (no bid) → Active (bid placed) →
// Settled|Canceled, where the terminal states remove the record entirely.
// The discriminant between Pending and Active is the first-bid timestamp:
// while zero the seller may cancel or reprice; once set the auction runs to
// settlement and nothing can stop it.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/escrow"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/payment"
	"github.com/ourzora/v3-sub003/registry"
	"github.com/ourzora/v3-sub003/royalty"
)

// TimeBuffer is the auto-extension window: a bid landing with less than
// this much time remaining stretches the auction so exactly this much
// remains.
const TimeBuffer = 15 * time.Minute

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// FeeSource provides the protocol fee terms at settlement time. A zero-bps
// fee disables the protocol cut.
type FeeSource interface {
	ProtocolFee(ctx context.Context) (core.Fee, error)
}

// StaticFeeSource is a FeeSource with fixed terms.
type StaticFeeSource core.Fee

// ProtocolFee returns the fixed terms.
func (s StaticFeeSource) ProtocolFee(context.Context) (core.Fee, error) {
	return core.Fee(s), nil
}

// Engine orchestrates auctions over its collaborators: the registry stores
// records, the escrow gateway custodies assets, the bank moves funds, and
// the royalty resolver prices creator cuts at settlement.
type Engine struct {
	store     registry.Store
	assets    escrow.Gateway
	bank      payment.Transactor
	royalties royalty.Resolver
	fees      FeeSource
	sink      events.Sink
	clock     Clock

	mu       sync.Mutex
	inflight map[core.Asset]bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock injects a clock, for tests.
func WithClock(clock Clock) Option {
	return func(e *Engine) { e.clock = clock }
}

// WithSink sets the event sink. Defaults to a log sink.
func WithSink(sink events.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// New creates an engine.
func New(store registry.Store, assets escrow.Gateway, bank payment.Transactor, royalties royalty.Resolver, fees FeeSource, opts ...Option) *Engine {
	e := &Engine{
		store:     store,
		assets:    assets,
		bank:      bank,
		royalties: royalties,
		fees:      fees,
		sink:      events.LogSink{},
		clock:     systemClock{},
		inflight:  make(map[core.Asset]bool),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// enter takes the per-asset mutual-exclusion guard. It rejects rather than
// blocks when the asset already has a call in flight: blocking would let a
// transfer callback deadlock the engine against itself. Reentrant mutation
// of the same auction always fails.
func (e *Engine) enter(asset core.Asset) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inflight[asset] {
		return ErrReentrantCall
	}
	e.inflight[asset] = true
	return nil
}

// exit releases the guard. Called on every exit path, error or not.
func (e *Engine) exit(asset core.Asset) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.inflight, asset)
}
