package engine

import "errors"

// Precondition violations. Each aborts the call synchronously with no state
// mutated; callers retry with corrected input or not at all.
var (
	// ErrAuctionInProgress indicates an attempt to create an auction for an
	// asset whose existing auction has already received a bid.
	ErrAuctionInProgress = errors.New("auction in progress for asset")

	// ErrAuctionStarted indicates a cancel or reprice after the first bid;
	// a started auction is irreversible until settlement.
	ErrAuctionStarted = errors.New("auction has started")

	// ErrAuctionNotStarted indicates a settlement attempt before any bid.
	ErrAuctionNotStarted = errors.New("auction has no bids")

	// ErrStartTimePending indicates a bid before the auction's start time.
	ErrStartTimePending = errors.New("auction start time not reached")

	// ErrAuctionExpired indicates a bid at or after the auction's end.
	ErrAuctionExpired = errors.New("auction expired")

	// ErrAuctionNotEnded indicates a settlement attempt before the end.
	ErrAuctionNotEnded = errors.New("auction not over")

	// ErrNotSeller indicates a reprice by anyone but the seller.
	ErrNotSeller = errors.New("caller is not the seller")

	// ErrNotSellerOrOwner indicates a cancel by anyone but the seller or
	// the asset's current owner.
	ErrNotSellerOrOwner = errors.New("caller is not the seller or asset owner")

	// ErrNotOwnerOrOperator indicates a create by anyone but the asset's
	// owner or an operator the owner approved.
	ErrNotOwnerOrOperator = errors.New("caller is not the asset owner or an approved operator")

	// ErrInvalidFundsRecipient indicates a create without a funds
	// recipient.
	ErrInvalidFundsRecipient = errors.New("funds recipient must be set")

	// ErrInvalidDuration indicates a non-positive auction duration.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrInvalidFees indicates optional fee terms that are malformed or
	// sum past 100%.
	ErrInvalidFees = errors.New("invalid fee terms")

	// ErrReserveNotMet indicates a first bid below the reserve price.
	ErrReserveNotMet = errors.New("bid below reserve price")

	// ErrBidTooLow indicates a later bid below the 10% minimum increment.
	ErrBidTooLow = errors.New("bid below minimum increment")

	// ErrTokenGateNotMet indicates a bid on a gated auction by a bidder
	// without the required gate-token balance.
	ErrTokenGateNotMet = errors.New("bidder does not meet token gate")

	// ErrReentrantCall indicates a mutating call on an asset that already
	// has a mutating call in flight, e.g. from within a transfer callback.
	ErrReentrantCall = errors.New("reentrant call on asset")
)
