// Package royalty is the royalty-resolution boundary of the settlement
// engine. The engine treats resolution as a black box that maps an asset
// and a sale amount to a list of payouts; how the shares are detected
// (ERC-2981, registry overrides, manifests) is behind the SpecSource seam.
package royalty

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
)

// ErrNoSpec indicates an asset with no royalty configuration. Callers treat
// it as "no royalties owed", not as a failure.
var ErrNoSpec = errors.New("no royalty spec for asset")

// Share is one recipient's cut of a sale, in basis points of the gross.
type Share struct {
	Recipient string `json:"recipient"`
	Bps       int64  `json:"bps"`
}

// SpecSource resolves the royalty shares configured for an asset.
// Implementations may hit a chain, a registry service, or static config.
type SpecSource interface {
	RoyaltySpec(ctx context.Context, asset core.Asset) ([]Share, error)
}

// Resolver turns an asset and a gross sale amount into concrete royalty
// payouts.
type Resolver interface {
	Lookup(ctx context.Context, asset core.Asset, saleAmount decimal.Decimal) ([]core.Payout, error)
}

// Amounts computes the payouts owed for the given shares on a sale amount,
// each as floor(saleAmount × bps / 10000). Amounts are reported exactly as
// configured; a spec summing past 100% is surfaced downstream as a
// configuration error by the fee waterfall, never silently clipped here.
func Amounts(shares []Share, saleAmount decimal.Decimal) ([]core.Payout, error) {
	payouts := make([]core.Payout, 0, len(shares))
	for _, share := range shares {
		amount, err := core.FeePortion(saleAmount, share.Bps)
		if err != nil {
			return nil, fmt.Errorf("royalty share for %s: %w", share.Recipient, err)
		}
		if amount.Sign() == 0 {
			continue
		}
		payouts = append(payouts, core.Payout{Recipient: share.Recipient, Amount: amount})
	}
	return payouts, nil
}
