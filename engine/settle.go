package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/metrics"
	"github.com/ourzora/v3-sub003/payment"
)

// Settlement is the outcome of a settled auction.
type Settlement struct {
	Asset          core.Asset
	Buyer          string
	Seller         string
	FundsRecipient string

	// Waterfall is the full fee accounting applied to the winning bid.
	Waterfall *core.WaterfallResult
}

// SettleAuction ends an auction whose duration has elapsed: it runs the fee
// waterfall over the winning bid, disburses royalties, the protocol fee,
// the finder fee, and the listing fee in that order, pays the remainder to
// the seller's funds recipient, releases the escrowed asset to the winner,
// and deletes the record. Any caller may settle once the end time arrives;
// only the first succeeds, after which the auction no longer exists.
func (e *Engine) SettleAuction(ctx context.Context, asset core.Asset) (*Settlement, error) {
	if err := e.enter(asset); err != nil {
		return nil, err
	}
	defer e.exit(asset)

	record, err := e.store.Get(ctx, asset)
	if err != nil {
		return nil, err
	}
	if !record.State.Started() {
		return nil, ErrAuctionNotStarted
	}
	now := e.clock.Now()
	if now.Before(record.EndTime()) {
		return nil, ErrAuctionNotEnded
	}

	gross := record.State.HighestBid

	royalties, err := e.royalties.Lookup(ctx, asset, gross)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve royalties: %w", err)
	}

	protocol, err := e.fees.ProtocolFee(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load protocol fee: %w", err)
	}
	var protocolFee *core.Fee
	if protocol.Bps > 0 {
		protocolFee = &protocol
	}

	var finderFee *core.Fee
	if record.Terms.FinderFee != nil && record.State.Finder != "" {
		finderFee = &core.Fee{Recipient: record.State.Finder, Bps: record.Terms.FinderFee.Bps}
	}
	var listingFee *core.Fee
	if record.Terms.ListingFee != nil {
		listingFee = &core.Fee{Recipient: record.Terms.ListingFee.Recipient, Bps: record.Terms.ListingFee.Bps}
	}

	// Fee computation happens in full before any transfer.
	result, err := core.RunWaterfall(gross, royalties, protocolFee, finderFee, listingFee)
	if err != nil {
		return nil, fmt.Errorf("fee waterfall: %w", err)
	}

	// Disburse in waterfall order, seller last. The payment fallback
	// absorbs hostile recipients; an error here is a custody accounting
	// bug and aborts before the record is touched.
	currency := record.Terms.Currency
	for _, payout := range result.Payouts() {
		if err := e.bank.Pay(ctx, payout.Recipient, currency, payout.Amount, payment.GasLimitPayout); err != nil {
			return nil, fmt.Errorf("failed to pay %s: %w", payout.Recipient, err)
		}
	}
	if err := e.bank.Pay(ctx, record.Terms.FundsRecipient, currency, result.Remainder, payment.GasLimitPayout); err != nil {
		return nil, fmt.Errorf("failed to pay seller proceeds: %w", err)
	}

	// Release the asset to the winner. Custody holds it, so this cannot
	// fail on authorization.
	if err := e.assets.Transfer(ctx, asset, e.assets.Custodian(), record.State.HighestBidder); err != nil {
		return nil, fmt.Errorf("failed to release asset to winner: %w", err)
	}

	if err := e.store.Delete(ctx, asset); err != nil {
		return nil, fmt.Errorf("failed to delete auction: %w", err)
	}

	log.Printf("INFO: Auction settled for %s: winner=%s gross=%s remainder=%s",
		asset, record.State.HighestBidder, gross, result.Remainder)

	event := events.New(events.TypeAuctionEnded, now, asset, record)
	event.Payouts = events.SettlementPayouts(result, record.Terms.FundsRecipient)
	e.sink.Emit(event)

	metrics.AuctionsSettled.Inc()
	for _, payout := range event.Payouts {
		metrics.SettlementPayouts.WithLabelValues(payout.Kind).Inc()
	}

	return &Settlement{
		Asset:          asset,
		Buyer:          record.State.HighestBidder,
		Seller:         record.Terms.Seller,
		FundsRecipient: record.Terms.FundsRecipient,
		Waterfall:      result,
	}, nil
}
