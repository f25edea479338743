package core

import (
	"github.com/shopspring/decimal"
)

// Asset identifies a unique item by collection address and token id.
// It is the key under which auctions, escrow custody, and royalty
// configuration are tracked.
type Asset struct {
	Collection string `json:"collection"`
	TokenID    string `json:"token_id"`
}

// String returns the canonical "collection/token" form of the key.
func (a Asset) String() string {
	return a.Collection + "/" + a.TokenID
}

// Payout is a single disbursement owed to a recipient, denominated in the
// sale currency's base unit.
type Payout struct {
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`
}

// Fee describes a basis-point fee owed to a recipient. A nil *Fee means the
// fee is not configured and is skipped entirely by the waterfall.
type Fee struct {
	Recipient string `json:"recipient"`
	Bps       int64  `json:"bps"`
}
