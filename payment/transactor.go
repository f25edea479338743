// Package payment implements the value transfer primitive of the settlement
// engine: collecting bid funds into module custody and paying them out.
//
// Outgoing payouts are structured as a two-step strategy: try a direct
// transfer, and on failure for the native currency credit the recipient's
// wrapped-native balance instead. A payout therefore never fails because of
// a hostile recipient, and refunds, fee payouts, and seller proceeds can
// never block settlement.
package payment

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// NativeCurrency is the currency code of the chain's native currency. Any
// other currency code identifies a fungible token.
const NativeCurrency = ""

// Gas ceilings hinted to the transfer layer on outgoing native payouts.
// A refund happens inside a bid and must not let the previous bidder burn
// the new bidder's gas; settlement payouts are uncapped.
const (
	GasLimitRefund uint64 = 50000
	GasLimitPayout uint64 = 0 // 0 = no cap
)

var (
	// ErrWrongAttachedValue indicates a native-currency collection whose
	// attached value does not exactly match the requested amount.
	ErrWrongAttachedValue = errors.New("attached value does not match amount")

	// ErrInsufficientFunds indicates a fungible collection from an account
	// whose balance is below the requested amount.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInsufficientAllowance indicates a fungible collection the owner
	// has not authorized for the requested amount.
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Transactor moves funds between the settlement module and external
// accounts.
type Transactor interface {
	// Collect pulls amount of currency from `from` into module custody.
	// For the native currency the attached value must equal amount exactly;
	// for fungible tokens the owner needs sufficient balance and a
	// sufficient allowance granted to the module.
	Collect(ctx context.Context, from, currency string, amount, attached decimal.Decimal) error

	// Pay sends amount of currency from module custody to `to`. Pay never
	// returns an error caused by the recipient: a native transfer a hostile
	// recipient rejects is wrapped and credited instead. gasLimit is the
	// gas ceiling hint forwarded with native transfers (0 = no cap).
	Pay(ctx context.Context, to, currency string, amount decimal.Decimal, gasLimit uint64) error

	// BalanceOf returns the holder's balance of currency. Used by the
	// token-gate check on gated auctions.
	BalanceOf(ctx context.Context, holder, currency string) (decimal.Decimal, error)
}
