package payment

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
)

// Bank is an in-memory Transactor. It tracks per-currency balances and
// allowances, the module's own custody account, and which accounts reject
// direct native transfers, so the wrap-on-failure path can be exercised
// without a chain. Safe for concurrent use.
type Bank struct {
	self    string // module custody account
	wrapped string // currency credited when a native payout bounces

	mu            sync.Mutex
	balances      map[string]map[string]decimal.Decimal            // currency -> holder
	allowances    map[string]map[string]map[string]decimal.Decimal // currency -> owner -> spender
	rejectsNative map[string]bool
}

var _ Transactor = (*Bank)(nil)

// NewBank creates an empty bank. self is the module custody account and
// wrapped the fungible currency used as the native fallback credit.
func NewBank(self, wrapped string) *Bank {
	return &Bank{
		self:          self,
		wrapped:       wrapped,
		balances:      make(map[string]map[string]decimal.Decimal),
		allowances:    make(map[string]map[string]map[string]decimal.Decimal),
		rejectsNative: make(map[string]bool),
	}
}

// WrappedCurrency returns the currency code credited on bounced native
// payouts.
func (b *Bank) WrappedCurrency() string {
	return b.wrapped
}

// Credit adds amount of currency to holder's balance. Seeding helper for
// tests and local development.
func (b *Bank) Credit(holder, currency string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(holder, currency, amount)
}

// Approve grants spender an allowance over owner's currency balance.
func (b *Bank) Approve(owner, spender, currency string, amount decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()
	owners := b.allowances[currency]
	if owners == nil {
		owners = make(map[string]map[string]decimal.Decimal)
		b.allowances[currency] = owners
	}
	spenders := owners[owner]
	if spenders == nil {
		spenders = make(map[string]decimal.Decimal)
		owners[owner] = spenders
	}
	spenders[spender] = amount
}

// RejectNative marks an account as refusing direct native transfers, the
// way a contract recipient without a payable fallback would.
func (b *Bank) RejectNative(account string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rejectsNative[account] = true
}

// Collect pulls amount of currency from `from` into module custody.
func (b *Bank) Collect(_ context.Context, from, currency string, amount, attached decimal.Decimal) error {
	if err := core.ValidateAmount(amount); err != nil {
		return fmt.Errorf("invalid collection amount: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if currency == NativeCurrency {
		// The attached value accompanied the call; it must match exactly.
		if !attached.Equal(amount) {
			return fmt.Errorf("attached %s, need %s: %w", attached, amount, ErrWrongAttachedValue)
		}
		b.credit(b.self, NativeCurrency, amount)
		return nil
	}

	if attached.Sign() != 0 {
		return fmt.Errorf("attached %s on fungible collection: %w", attached, ErrWrongAttachedValue)
	}

	allowance := b.allowances[currency][from][b.self]
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("allowance %s, need %s: %w", allowance, amount, ErrInsufficientAllowance)
	}
	balance := b.balances[currency][from]
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("balance %s, need %s: %w", balance, amount, ErrInsufficientFunds)
	}

	b.allowances[currency][from][b.self] = allowance.Sub(amount)
	b.balances[currency][from] = balance.Sub(amount)
	b.credit(b.self, currency, amount)
	return nil
}

// Pay sends amount of currency from module custody to `to`, wrapping on a
// rejected native transfer.
func (b *Bank) Pay(_ context.Context, to, currency string, amount decimal.Decimal, gasLimit uint64) error {
	if err := core.ValidateAmount(amount); err != nil {
		return fmt.Errorf("invalid payout amount: %w", err)
	}
	if amount.Sign() == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	held := b.balances[currency][b.self]
	if held.Cmp(amount) < 0 {
		// Custody accounting is broken; this is a module bug, not a
		// recipient failure.
		return fmt.Errorf("custody holds %s of %q, need %s: %w", held, currency, amount, ErrInsufficientFunds)
	}

	if currency == NativeCurrency && b.rejectsNative[to] {
		// Direct transfer bounced: wrap the amount and credit the
		// recipient's wrapped-native balance instead.
		log.Printf("WARNING: native payout of %s to %s rejected (gas limit %d), crediting %s", amount, to, gasLimit, b.wrapped)
		b.balances[currency][b.self] = held.Sub(amount)
		b.credit(to, b.wrapped, amount)
		return nil
	}

	b.balances[currency][b.self] = held.Sub(amount)
	b.credit(to, currency, amount)
	return nil
}

// BalanceOf returns the holder's balance of currency.
func (b *Bank) BalanceOf(_ context.Context, holder, currency string) (decimal.Decimal, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[currency][holder], nil
}

// credit assumes b.mu is held.
func (b *Bank) credit(holder, currency string, amount decimal.Decimal) {
	holders := b.balances[currency]
	if holders == nil {
		holders = make(map[string]decimal.Decimal)
		b.balances[currency] = holders
	}
	holders[holder] = holders[holder].Add(amount)
}
