// Package events is the observability trace of the settlement engine.
// Closed auctions leave no registry record behind, so each lifecycle event
// carries the full terms+state snapshot at the moment of emission; a
// downstream indexer needs nothing else to reconstruct history.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/registry"
)

// Type is an auction lifecycle event kind.
type Type string

const (
	TypeAuctionCreated             Type = "AuctionCreated"
	TypeAuctionReservePriceUpdated Type = "AuctionReservePriceUpdated"
	TypeAuctionCanceled            Type = "AuctionCanceled"
	TypeAuctionBid                 Type = "AuctionBid"
	TypeAuctionEnded               Type = "AuctionEnded"
)

// Payout is one settlement disbursement in indexer wire form. Amounts are
// decimal strings in the sale currency's base unit.
type Payout struct {
	Kind      string `json:"kind" cbor:"kind"` // royalty, protocol, finder, listing, seller
	Recipient string `json:"recipient" cbor:"recipient"`
	Amount    string `json:"amount" cbor:"amount"`
}

// ListingFeeInfo mirrors registry.ListingFee in wire form.
type ListingFeeInfo struct {
	Recipient string `json:"recipient" cbor:"recipient"`
	Bps       int64  `json:"bps" cbor:"bps"`
}

// TokenGateInfo mirrors registry.TokenGate in wire form.
type TokenGateInfo struct {
	Currency   string `json:"currency" cbor:"currency"`
	MinBalance string `json:"min_balance" cbor:"min_balance"`
}

// Snapshot is the full terms+state of an auction at emission time, with
// amounts as decimal strings and times as unix seconds so both the JSON
// feed and the CBOR journal encode it identically.
type Snapshot struct {
	Seller          string          `json:"seller" cbor:"seller"`
	FundsRecipient  string          `json:"funds_recipient" cbor:"funds_recipient"`
	ReservePrice    string          `json:"reserve_price" cbor:"reserve_price"`
	DurationSeconds int64           `json:"duration_seconds" cbor:"duration_seconds"`
	StartTime       int64           `json:"start_time,omitempty" cbor:"start_time,omitempty"`
	Currency        string          `json:"currency" cbor:"currency"`
	ListingFee      *ListingFeeInfo `json:"listing_fee,omitempty" cbor:"listing_fee,omitempty"`
	FinderFeeBps    int64           `json:"finder_fee_bps,omitempty" cbor:"finder_fee_bps,omitempty"`
	TokenGate       *TokenGateInfo  `json:"token_gate,omitempty" cbor:"token_gate,omitempty"`

	FirstBidTime  int64  `json:"first_bid_time,omitempty" cbor:"first_bid_time,omitempty"`
	HighestBid    string `json:"highest_bid" cbor:"highest_bid"`
	HighestBidder string `json:"highest_bidder,omitempty" cbor:"highest_bidder,omitempty"`
	Finder        string `json:"finder,omitempty" cbor:"finder,omitempty"`
}

// NewSnapshot converts a registry record to wire form.
func NewSnapshot(record registry.Record) Snapshot {
	snap := Snapshot{
		Seller:          record.Terms.Seller,
		FundsRecipient:  record.Terms.FundsRecipient,
		ReservePrice:    record.Terms.ReservePrice.String(),
		DurationSeconds: int64(record.Terms.Duration / time.Second),
		Currency:        record.Terms.Currency,
		HighestBid:      record.State.HighestBid.String(),
		HighestBidder:   record.State.HighestBidder,
		Finder:          record.State.Finder,
	}
	if !record.Terms.StartTime.IsZero() {
		snap.StartTime = record.Terms.StartTime.Unix()
	}
	if fee := record.Terms.ListingFee; fee != nil {
		snap.ListingFee = &ListingFeeInfo{Recipient: fee.Recipient, Bps: fee.Bps}
	}
	if fee := record.Terms.FinderFee; fee != nil {
		snap.FinderFeeBps = fee.Bps
	}
	if gate := record.Terms.TokenGate; gate != nil {
		snap.TokenGate = &TokenGateInfo{Currency: gate.Currency, MinBalance: gate.MinBalance.String()}
	}
	if record.State.Started() {
		snap.FirstBidTime = record.State.FirstBidTime.Unix()
	}
	return snap
}

// SettlementPayouts flattens a waterfall result into wire payouts, in the
// order funds were disbursed, ending with the seller remainder.
func SettlementPayouts(result *core.WaterfallResult, fundsRecipient string) []Payout {
	out := make([]Payout, 0, len(result.Royalties)+4)
	for _, p := range result.Royalties {
		out = append(out, Payout{Kind: "royalty", Recipient: p.Recipient, Amount: p.Amount.String()})
	}
	if p := result.Protocol; p != nil {
		out = append(out, Payout{Kind: "protocol", Recipient: p.Recipient, Amount: p.Amount.String()})
	}
	if p := result.Finder; p != nil {
		out = append(out, Payout{Kind: "finder", Recipient: p.Recipient, Amount: p.Amount.String()})
	}
	if p := result.Listing; p != nil {
		out = append(out, Payout{Kind: "listing", Recipient: p.Recipient, Amount: p.Amount.String()})
	}
	out = append(out, Payout{Kind: "seller", Recipient: fundsRecipient, Amount: result.Remainder.String()})
	return out
}

// Event is one auction lifecycle transition.
type Event struct {
	ID      string     `json:"id" cbor:"id"`
	Type    Type       `json:"type" cbor:"type"`
	At      int64      `json:"at" cbor:"at"` // unix seconds
	Asset   core.Asset `json:"asset" cbor:"asset"`
	Auction Snapshot   `json:"auction" cbor:"auction"`

	// Bid-only flags.
	FirstBid bool `json:"first_bid,omitempty" cbor:"first_bid,omitempty"`
	Extended bool `json:"extended,omitempty" cbor:"extended,omitempty"`

	// Settlement breakdown, AuctionEnded only.
	Payouts []Payout `json:"payouts,omitempty" cbor:"payouts,omitempty"`
}

// New builds an event with a fresh ID and a snapshot of the record.
func New(typ Type, at time.Time, asset core.Asset, record registry.Record) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    typ,
		At:      at.Unix(),
		Asset:   asset,
		Auction: NewSnapshot(record),
	}
}

// Sink consumes lifecycle events. Emit must not block the settlement path;
// implementations that can stall must drop or buffer instead.
type Sink interface {
	Emit(event Event)
}
