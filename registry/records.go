// Package registry persists auction records. It holds no business logic:
// the state machine decides what a record means, the registry only stores
// and retrieves it per asset key.
package registry

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNotFound indicates no auction record exists for the asset key.
var ErrNotFound = errors.New("auction not found")

// ListingFee is the optional fee paid to the platform that listed the
// auction, in basis points of the running remainder at its waterfall step.
type ListingFee struct {
	Recipient string `json:"recipient"`
	Bps       int64  `json:"bps"`
}

// FinderFee is the optional referral fee paid to whoever sourced the
// winning bid. The finder itself is supplied per bid and recorded in State.
type FinderFee struct {
	Bps int64 `json:"bps"`
}

// TokenGate optionally restricts bidding to holders of a minimum balance of
// a gating token.
type TokenGate struct {
	Currency   string          `json:"currency"`
	MinBalance decimal.Decimal `json:"min_balance"`
}

// Terms are the auction's listing parameters. Seller is set at creation and
// immutable until the record is removed. Optional features are nil when the
// auction does not use them.
type Terms struct {
	Seller         string          `json:"seller"`
	FundsRecipient string          `json:"funds_recipient"`
	ReservePrice   decimal.Decimal `json:"reserve_price"`
	Duration       time.Duration   `json:"duration"`
	StartTime      time.Time       `json:"start_time"` // zero = no restriction
	Currency       string          `json:"currency"`   // "" = native currency

	ListingFee *ListingFee `json:"listing_fee,omitempty"`
	FinderFee  *FinderFee  `json:"finder_fee,omitempty"`
	TokenGate  *TokenGate  `json:"token_gate,omitempty"`
}

// State is the auction's live bidding state. FirstBidTime stays zero until
// the first valid bid and is never reset afterwards except by deleting the
// record; it discriminates "not started" (cancelable) from "started".
type State struct {
	FirstBidTime  time.Time       `json:"first_bid_time"`
	HighestBid    decimal.Decimal `json:"highest_bid"`
	HighestBidder string          `json:"highest_bidder"`
	Finder        string          `json:"finder,omitempty"` // finder credited on the highest bid
}

// Started reports whether a first bid has been accepted.
func (s State) Started() bool {
	return !s.FirstBidTime.IsZero()
}

// Record pairs an auction's terms with its bidding state. Both are created
// together and deleted together; there is no auction history.
type Record struct {
	Terms Terms `json:"terms"`
	State State `json:"state"`
}

// EndTime returns when the auction becomes settleable. Zero if bidding has
// not started.
func (r Record) EndTime() time.Time {
	if !r.State.Started() {
		return time.Time{}
	}
	return r.State.FirstBidTime.Add(r.Terms.Duration)
}

// Clone returns a deep copy, so callers can mutate optional-feature fields
// without aliasing stored records.
func (r Record) Clone() Record {
	out := r
	if r.Terms.ListingFee != nil {
		fee := *r.Terms.ListingFee
		out.Terms.ListingFee = &fee
	}
	if r.Terms.FinderFee != nil {
		fee := *r.Terms.FinderFee
		out.Terms.FinderFee = &fee
	}
	if r.Terms.TokenGate != nil {
		gate := *r.Terms.TokenGate
		out.Terms.TokenGate = &gate
	}
	return out
}
