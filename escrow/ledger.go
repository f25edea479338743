package escrow

import (
	"context"
	"fmt"
	"sync"

	"github.com/ourzora/v3-sub003/core"
)

// Ledger is an in-memory Gateway implementation. It is safe for concurrent
// use and is intended for tests, local development, and the self-contained
// auctiond deployment; a chain-backed gateway satisfies the same interface
// in production.
type Ledger struct {
	custodian string

	mu        sync.RWMutex
	owners    map[core.Asset]string
	approvals map[string]map[string]bool // owner -> operator -> approved
}

var _ Gateway = (*Ledger)(nil)

// NewLedger creates an empty ledger whose escrowed assets are held by the
// given custodian account.
func NewLedger(custodian string) *Ledger {
	return &Ledger{
		custodian: custodian,
		owners:    make(map[core.Asset]string),
		approvals: make(map[string]map[string]bool),
	}
}

// Custodian returns the account that holds escrowed assets.
func (l *Ledger) Custodian() string {
	return l.custodian
}

// Mint records an asset as owned by owner. Existing ownership is replaced;
// intended for seeding test and development state.
func (l *Ledger) Mint(asset core.Asset, owner string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.owners[asset] = owner
}

// SetApproval grants or revokes operator's right to move owner's assets.
func (l *Ledger) SetApproval(owner, operator string, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ops := l.approvals[owner]
	if ops == nil {
		ops = make(map[string]bool)
		l.approvals[owner] = ops
	}
	ops[operator] = approved
}

// Owner returns the current owner of the asset.
func (l *Ledger) Owner(_ context.Context, asset core.Asset) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[asset]
	if !ok {
		return "", fmt.Errorf("%s: %w", asset, ErrUnknownAsset)
	}
	return owner, nil
}

// IsApproved reports whether owner has authorized operator.
func (l *Ledger) IsApproved(_ context.Context, owner, operator string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.approvals[owner][operator], nil
}

// Transfer moves the asset from `from` to `to`. When `from` is not the
// custodian itself, `from` must have approved the custodian.
func (l *Ledger) Transfer(_ context.Context, asset core.Asset, from, to string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	owner, ok := l.owners[asset]
	if !ok {
		return fmt.Errorf("%s: %w", asset, ErrUnknownAsset)
	}
	if owner != from {
		return fmt.Errorf("%s owned by %s, not %s: %w", asset, owner, from, ErrNotOwner)
	}
	if from != l.custodian && !l.approvals[from][l.custodian] {
		return fmt.Errorf("%s: %w", asset, ErrNotAuthorized)
	}

	l.owners[asset] = to
	return nil
}
