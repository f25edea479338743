package engine

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/metrics"
	"github.com/ourzora/v3-sub003/payment"
)

// BidResult reports what a successful bid did.
type BidResult struct {
	// FirstBid is true when this bid started the auction and pulled the
	// asset into escrow.
	FirstBid bool

	// Extended is true when the bid landed inside the time buffer and
	// stretched the auction's duration.
	Extended bool
}

// CreateBid places a bid in the auction's currency. attached is the native
// value that accompanied the call; it must equal amount exactly for
// native-currency auctions and be zero otherwise.
//
// The first valid bid pulls the asset from the seller into escrow and
// starts the clock; if the seller no longer owns the asset or revoked the
// custodian's approval the bid aborts entirely. Later bids must beat the
// standing bid by 10% (integer floor) and arrive strictly before the end;
// the outbid bidder is refunded through the payment fallback, which a
// hostile refund recipient cannot block.
func (e *Engine) CreateBid(ctx context.Context, caller string, asset core.Asset, amount, attached decimal.Decimal, finder string) (BidResult, error) {
	if err := e.enter(asset); err != nil {
		return BidResult{}, err
	}
	defer e.exit(asset)

	result, err := e.createBid(ctx, caller, asset, amount, attached, finder)
	if err != nil {
		metrics.BidsRejected.Inc()
		return BidResult{}, err
	}
	metrics.BidsAccepted.WithLabelValues(
		strconv.FormatBool(result.FirstBid),
		strconv.FormatBool(result.Extended),
	).Inc()
	return result, nil
}

func (e *Engine) createBid(ctx context.Context, caller string, asset core.Asset, amount, attached decimal.Decimal, finder string) (BidResult, error) {
	record, err := e.store.Get(ctx, asset)
	if err != nil {
		return BidResult{}, err
	}

	now := e.clock.Now()
	if !record.Terms.StartTime.IsZero() && now.Before(record.Terms.StartTime) {
		return BidResult{}, ErrStartTimePending
	}
	if err := core.ValidateAmount(amount); err != nil {
		return BidResult{}, fmt.Errorf("invalid bid amount: %w", err)
	}

	if gate := record.Terms.TokenGate; gate != nil {
		balance, err := e.bank.BalanceOf(ctx, caller, gate.Currency)
		if err != nil {
			return BidResult{}, fmt.Errorf("failed to check gate token balance: %w", err)
		}
		if balance.Cmp(gate.MinBalance) < 0 {
			return BidResult{}, ErrTokenGateNotMet
		}
	}

	firstBid := !record.State.Started()

	// remaining is the time left before expiry, computed once and shared
	// by the expiry check and the auto-extension check.
	var remaining time.Duration

	if firstBid {
		if amount.Cmp(record.Terms.ReservePrice) < 0 {
			return BidResult{}, fmt.Errorf("bid %s, reserve %s: %w", amount, record.Terms.ReservePrice, ErrReserveNotMet)
		}

		// Pull the asset into escrow before taking funds. A seller who no
		// longer owns the asset or revoked approval aborts the whole bid;
		// recording a bid against an unsecured asset is never acceptable.
		custodian := e.assets.Custodian()
		if err := e.assets.Transfer(ctx, asset, record.Terms.Seller, custodian); err != nil {
			return BidResult{}, fmt.Errorf("failed to escrow asset: %w", err)
		}

		if err := e.bank.Collect(ctx, caller, record.Terms.Currency, amount, attached); err != nil {
			// Undo the escrow pull; custody holds the asset so the return
			// transfer cannot be blocked by authorization.
			if rerr := e.assets.Transfer(ctx, asset, custodian, record.Terms.Seller); rerr != nil {
				log.Printf("ERROR: Failed to return %s to seller after aborted bid: %v", asset, rerr)
			}
			return BidResult{}, fmt.Errorf("failed to collect bid funds: %w", err)
		}

		record.State.FirstBidTime = now
		remaining = record.Terms.Duration
	} else {
		remaining = record.EndTime().Sub(now)
		if remaining <= 0 {
			return BidResult{}, ErrAuctionExpired
		}

		minBid, err := core.MinimumBid(record.State.HighestBid)
		if err != nil {
			return BidResult{}, err
		}
		if amount.Cmp(minBid) < 0 {
			return BidResult{}, fmt.Errorf("bid %s, minimum %s: %w", amount, minBid, ErrBidTooLow)
		}

		if err := e.bank.Collect(ctx, caller, record.Terms.Currency, amount, attached); err != nil {
			return BidResult{}, fmt.Errorf("failed to collect bid funds: %w", err)
		}

		// Refund the outbid bidder before recording the new bid. The
		// payment fallback guarantees a hostile recipient cannot revert
		// the bid flow.
		if err := e.bank.Pay(ctx, record.State.HighestBidder, record.Terms.Currency, record.State.HighestBid, payment.GasLimitRefund); err != nil {
			// Custody accounting failure, not a recipient failure. Give
			// the new bidder their funds back and abort.
			if rerr := e.bank.Pay(ctx, caller, record.Terms.Currency, amount, payment.GasLimitPayout); rerr != nil {
				log.Printf("ERROR: Failed to return collected bid to %s: %v", caller, rerr)
			}
			return BidResult{}, fmt.Errorf("failed to refund previous bidder: %w", err)
		}
	}

	record.State.HighestBid = amount
	record.State.HighestBidder = caller
	if record.Terms.FinderFee != nil {
		record.State.Finder = finder
	}

	extended := false
	if remaining < TimeBuffer {
		record.Terms.Duration += TimeBuffer - remaining
		extended = true
	}

	if err := e.store.Put(ctx, asset, record); err != nil {
		return BidResult{}, fmt.Errorf("failed to store auction: %w", err)
	}

	log.Printf("INFO: Bid %s on %s by %s (first=%t extended=%t)", amount, asset, caller, firstBid, extended)
	event := events.New(events.TypeAuctionBid, now, asset, record)
	event.FirstBid = firstBid
	event.Extended = extended
	e.sink.Emit(event)

	return BidResult{FirstBid: firstBid, Extended: extended}, nil
}
