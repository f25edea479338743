// Package escrow defines the asset custody boundary of the settlement
// engine. The auction state machine never touches asset ownership directly;
// it pulls items into custody and releases them through a Gateway.
package escrow

import (
	"context"
	"errors"

	"github.com/ourzora/v3-sub003/core"
)

var (
	// ErrUnknownAsset indicates an asset the gateway has no record of.
	ErrUnknownAsset = errors.New("unknown asset")

	// ErrNotOwner indicates a transfer whose `from` is not the asset's
	// current owner.
	ErrNotOwner = errors.New("sender does not own asset")

	// ErrNotAuthorized indicates the owner has not approved the gateway's
	// custodian to move the asset. The caller must not retry; the owner has
	// to re-grant approval first.
	ErrNotAuthorized = errors.New("custodian not authorized to move asset")
)

// Gateway moves assets in and out of auction custody.
//
// Transfer fails with ErrNotOwner if from no longer owns the asset, and with
// ErrNotAuthorized if from has revoked the custodian's approval. Pulling
// into escrow is Transfer(asset, seller, Custodian()); releasing is
// Transfer(asset, Custodian(), winner).
type Gateway interface {
	// Custodian is the account that holds escrowed assets.
	Custodian() string

	// Owner returns the current owner of the asset.
	Owner(ctx context.Context, asset core.Asset) (string, error)

	// IsApproved reports whether owner has authorized operator to move
	// assets on their behalf.
	IsApproved(ctx context.Context, owner, operator string) (bool, error)

	// Transfer moves the asset from `from` to `to`.
	Transfer(ctx context.Context, asset core.Asset, from, to string) error
}
