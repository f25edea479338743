package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/metrics"
	"github.com/ourzora/v3-sub003/registry"
)

// CreateAuction lists an asset for auction. The caller must be the asset's
// current owner or an operator the owner approved; the recorded seller is
// always the owner. No funds or assets move here — the asset stays with
// the seller until the first bid pulls it into escrow.
//
// An existing auction for the asset that has not started yet is silently
// replaced. One that has started rejects the call.
func (e *Engine) CreateAuction(ctx context.Context, caller string, asset core.Asset, terms registry.Terms) error {
	if err := e.enter(asset); err != nil {
		return err
	}
	defer e.exit(asset)

	if err := validateTerms(terms); err != nil {
		return err
	}

	// Check for an existing auction before checking ownership: once the
	// first bid escrows the asset the custodian owns it, so a started
	// auction must be reported as in progress rather than as an ownership
	// failure. A store error must abort too; it is not license to
	// overwrite whatever record it hid.
	existing, err := e.store.Get(ctx, asset)
	if err == nil {
		if existing.State.Started() {
			return ErrAuctionInProgress
		}
	} else if !errors.Is(err, registry.ErrNotFound) {
		return fmt.Errorf("failed to check for existing auction: %w", err)
	}

	owner, err := e.assets.Owner(ctx, asset)
	if err != nil {
		return fmt.Errorf("failed to look up asset owner: %w", err)
	}
	if caller != owner {
		approved, err := e.assets.IsApproved(ctx, owner, caller)
		if err != nil {
			return fmt.Errorf("failed to check operator approval: %w", err)
		}
		if !approved {
			return ErrNotOwnerOrOperator
		}
	}

	terms.Seller = owner
	record := registry.Record{Terms: terms, State: registry.State{HighestBid: decimal.Zero}}
	if err := e.store.Put(ctx, asset, record); err != nil {
		return fmt.Errorf("failed to store auction: %w", err)
	}

	log.Printf("INFO: Auction created for %s by %s (reserve %s)", asset, owner, terms.ReservePrice)
	e.sink.Emit(events.New(events.TypeAuctionCreated, e.clock.Now(), asset, record))
	metrics.AuctionsCreated.Inc()
	return nil
}

func validateTerms(terms registry.Terms) error {
	if terms.FundsRecipient == "" {
		return ErrInvalidFundsRecipient
	}
	if terms.Duration <= 0 {
		return ErrInvalidDuration
	}
	if err := core.ValidateAmount(terms.ReservePrice); err != nil {
		return fmt.Errorf("invalid reserve price: %w", err)
	}

	var feeBps int64
	if fee := terms.ListingFee; fee != nil {
		if fee.Recipient == "" || fee.Bps < 0 || fee.Bps > core.MaxBps {
			return fmt.Errorf("listing fee: %w", ErrInvalidFees)
		}
		feeBps += fee.Bps
	}
	if fee := terms.FinderFee; fee != nil {
		if fee.Bps < 0 || fee.Bps > core.MaxBps {
			return fmt.Errorf("finder fee: %w", ErrInvalidFees)
		}
		feeBps += fee.Bps
	}
	if feeBps > core.MaxBps {
		return fmt.Errorf("finder and listing fees sum to %d bps: %w", feeBps, ErrInvalidFees)
	}

	if gate := terms.TokenGate; gate != nil {
		if gate.Currency == "" || gate.MinBalance.Sign() <= 0 {
			return fmt.Errorf("token gate: %w", ErrInvalidFees)
		}
		if err := core.ValidateAmount(gate.MinBalance); err != nil {
			return fmt.Errorf("token gate balance: %w", err)
		}
	}
	return nil
}

// SetReservePrice updates the reserve. Seller only, and only before any
// bid exists.
func (e *Engine) SetReservePrice(ctx context.Context, caller string, asset core.Asset, price decimal.Decimal) error {
	if err := e.enter(asset); err != nil {
		return err
	}
	defer e.exit(asset)

	record, err := e.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	if caller != record.Terms.Seller {
		return ErrNotSeller
	}
	if record.State.Started() {
		return ErrAuctionStarted
	}
	if err := core.ValidateAmount(price); err != nil {
		return fmt.Errorf("invalid reserve price: %w", err)
	}

	record.Terms.ReservePrice = price
	if err := e.store.Put(ctx, asset, record); err != nil {
		return fmt.Errorf("failed to store auction: %w", err)
	}

	e.sink.Emit(events.New(events.TypeAuctionReservePriceUpdated, e.clock.Now(), asset, record))
	return nil
}

// CancelAuction removes an auction that has not started. Permitted by the
// seller or by the asset's current owner (the asset may have changed hands
// since listing). Nothing is transferred: before the first bid no escrow
// and no funds exist.
func (e *Engine) CancelAuction(ctx context.Context, caller string, asset core.Asset) error {
	if err := e.enter(asset); err != nil {
		return err
	}
	defer e.exit(asset)

	record, err := e.store.Get(ctx, asset)
	if err != nil {
		return err
	}
	if record.State.Started() {
		return ErrAuctionStarted
	}
	if caller != record.Terms.Seller {
		owner, err := e.assets.Owner(ctx, asset)
		if err != nil {
			return fmt.Errorf("failed to look up asset owner: %w", err)
		}
		if caller != owner {
			return ErrNotSellerOrOwner
		}
	}

	if err := e.store.Delete(ctx, asset); err != nil {
		return fmt.Errorf("failed to delete auction: %w", err)
	}

	log.Printf("INFO: Auction canceled for %s by %s", asset, caller)
	e.sink.Emit(events.New(events.TypeAuctionCanceled, e.clock.Now(), asset, record))
	metrics.AuctionsCanceled.Inc()
	return nil
}
