package core

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrFeesExceedGross indicates a royalty configuration whose payouts sum to
// more than the sale amount. That is a configuration error upstream (a
// resolver returning 100%+) and must never be paid out.
var ErrFeesExceedGross = errors.New("fee total exceeds sale amount")

// WaterfallResult is the full accounting of one settlement: every payout in
// the order it is owed, and the remainder due to the seller.
type WaterfallResult struct {
	Gross     decimal.Decimal `json:"gross"`
	Royalties []Payout        `json:"royalties,omitempty"`
	Protocol  *Payout         `json:"protocol,omitempty"`
	Finder    *Payout         `json:"finder,omitempty"`
	Listing   *Payout         `json:"listing,omitempty"`
	Remainder decimal.Decimal `json:"remainder"`
}

// Payouts returns every non-seller disbursement in waterfall order.
func (r *WaterfallResult) Payouts() []Payout {
	out := make([]Payout, 0, len(r.Royalties)+3)
	out = append(out, r.Royalties...)
	for _, p := range []*Payout{r.Protocol, r.Finder, r.Listing} {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out
}

// FeeTotal returns the sum of all non-seller payouts.
func (r *WaterfallResult) FeeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range r.Payouts() {
		total = total.Add(p.Amount)
	}
	return total
}

// RunWaterfall deducts royalties, the protocol fee, the finder fee, and the
// listing fee from a gross sale amount, in exactly that order. Each
// basis-point fee is computed as floor(runningRemainder × bps / 10000) and
// subtracted before the next fee is computed, so fees compound on the
// post-prior-fee amount rather than the original gross. Downstream
// accounting depends on this exact order and compounding; do not reorder.
//
// Royalty amounts are taken as resolved by the royalty lookup; their sum may
// not exceed gross. Basis-point fees are bounded by MaxBps, so the running
// remainder can never go negative and the invariant
//
//	remainder = gross − Σ payouts
//
// holds exactly on every successful return.
func RunWaterfall(gross decimal.Decimal, royalties []Payout, protocol, finder, listing *Fee) (*WaterfallResult, error) {
	if err := ValidateAmount(gross); err != nil {
		return nil, fmt.Errorf("invalid gross amount: %w", err)
	}

	result := &WaterfallResult{Gross: gross}
	remainder := gross

	// Step 1: royalties, exactly as resolved.
	royaltyTotal := decimal.Zero
	for _, r := range royalties {
		if err := ValidateAmount(r.Amount); err != nil {
			return nil, fmt.Errorf("invalid royalty amount for %s: %w", r.Recipient, err)
		}
		royaltyTotal = royaltyTotal.Add(r.Amount)
	}
	if royaltyTotal.Cmp(gross) > 0 {
		return nil, fmt.Errorf("royalties %s on gross %s: %w", royaltyTotal, gross, ErrFeesExceedGross)
	}
	for _, r := range royalties {
		if r.Amount.Sign() > 0 {
			result.Royalties = append(result.Royalties, r)
		}
	}
	remainder = remainder.Sub(royaltyTotal)

	// Steps 2-4: protocol fee, then finder fee, then listing fee, each on
	// the remainder left by the prior step.
	take := func(fee *Fee) (*Payout, error) {
		if fee == nil || fee.Bps == 0 {
			return nil, nil
		}
		amount, err := FeePortion(remainder, fee.Bps)
		if err != nil {
			return nil, err
		}
		if amount.Sign() == 0 {
			return nil, nil
		}
		remainder = remainder.Sub(amount)
		return &Payout{Recipient: fee.Recipient, Amount: amount}, nil
	}

	var err error
	if result.Protocol, err = take(protocol); err != nil {
		return nil, fmt.Errorf("protocol fee: %w", err)
	}
	if result.Finder, err = take(finder); err != nil {
		return nil, fmt.Errorf("finder fee: %w", err)
	}
	if result.Listing, err = take(listing); err != nil {
		return nil, fmt.Errorf("listing fee: %w", err)
	}

	result.Remainder = remainder
	return result, nil
}
