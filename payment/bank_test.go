package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"
)

const (
	module  = "module"
	wrapped = "wnative"
	erc20   = "0xtoken"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestBank_CollectNativeRequiresExactAttachment(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		amount   string
		attached string
		wantErr  bool
	}{
		{"exact attachment", "100", "100", false},
		{"under-attached", "100", "99", true},
		{"over-attached", "100", "101", true},
		{"nothing attached", "100", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank := NewBank(module, wrapped)
			err := bank.Collect(ctx, "bidder", NativeCurrency, dec(tt.amount), dec(tt.attached))
			if tt.wantErr {
				check.True(t, errors.Is(err, ErrWrongAttachedValue))
			} else {
				check.NoError(t, err)
				held, _ := bank.BalanceOf(ctx, module, NativeCurrency)
				check.Equal(t, dec(tt.amount), held)
			}
		})
	}
}

func TestBank_CollectFungible(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	bank.Credit("bidder", erc20, dec("150"))

	// No allowance yet.
	err := bank.Collect(ctx, "bidder", erc20, dec("100"), decimal.Zero)
	check.True(t, errors.Is(err, ErrInsufficientAllowance))

	// Allowance but short balance.
	bank.Approve("bidder", module, erc20, dec("500"))
	err = bank.Collect(ctx, "bidder", erc20, dec("200"), decimal.Zero)
	check.True(t, errors.Is(err, ErrInsufficientFunds))

	// Attached value is a native-only concept.
	err = bank.Collect(ctx, "bidder", erc20, dec("100"), dec("100"))
	check.True(t, errors.Is(err, ErrWrongAttachedValue))

	check.NoError(t, bank.Collect(ctx, "bidder", erc20, dec("100"), decimal.Zero))

	held, _ := bank.BalanceOf(ctx, module, erc20)
	check.Equal(t, dec("100"), held)
	left, _ := bank.BalanceOf(ctx, "bidder", erc20)
	check.Equal(t, dec("50"), left)
}

func TestBank_CollectDecrementsAllowance(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	bank.Credit("bidder", erc20, dec("300"))
	bank.Approve("bidder", module, erc20, dec("100"))

	check.NoError(t, bank.Collect(ctx, "bidder", erc20, dec("100"), decimal.Zero))

	// Allowance is spent; a second pull must fail even though the balance
	// would cover it.
	err := bank.Collect(ctx, "bidder", erc20, dec("100"), decimal.Zero)
	check.True(t, errors.Is(err, ErrInsufficientAllowance))
}

func TestBank_PayDirect(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	bank.Credit(module, NativeCurrency, dec("1000"))

	check.NoError(t, bank.Pay(ctx, "seller", NativeCurrency, dec("400"), GasLimitPayout))

	got, _ := bank.BalanceOf(ctx, "seller", NativeCurrency)
	check.Equal(t, dec("400"), got)
	held, _ := bank.BalanceOf(ctx, module, NativeCurrency)
	check.Equal(t, dec("600"), held)
}

func TestBank_PayHostileRecipientFallsBackToWrapped(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	bank.Credit(module, NativeCurrency, dec("1000"))
	bank.RejectNative("hostile")

	// The call must succeed even though the recipient rejects funds.
	check.NoError(t, bank.Pay(ctx, "hostile", NativeCurrency, dec("1000"), GasLimitRefund))

	direct, _ := bank.BalanceOf(ctx, "hostile", NativeCurrency)
	check.Equal(t, decimal.Zero, direct)
	credited, _ := bank.BalanceOf(ctx, "hostile", wrapped)
	check.Equal(t, dec("1000"), credited)
	held, _ := bank.BalanceOf(ctx, module, NativeCurrency)
	check.Equal(t, decimal.Zero, held)
}

func TestBank_PayFungibleIgnoresNativeRejection(t *testing.T) {
	// Fungible payouts are ledger credits; a recipient that rejects native
	// transfers still receives them directly.
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	bank.Credit(module, erc20, dec("100"))
	bank.RejectNative("hostile")

	check.NoError(t, bank.Pay(ctx, "hostile", erc20, dec("100"), GasLimitPayout))

	got, _ := bank.BalanceOf(ctx, "hostile", erc20)
	check.Equal(t, dec("100"), got)
}

func TestBank_PayZeroIsNoop(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	check.NoError(t, bank.Pay(ctx, "seller", NativeCurrency, decimal.Zero, GasLimitPayout))
}

func TestBank_PayBeyondCustodyFails(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(module, wrapped)
	bank.Credit(module, NativeCurrency, dec("10"))

	err := bank.Pay(ctx, "seller", NativeCurrency, dec("11"), GasLimitPayout)
	check.True(t, errors.Is(err, ErrInsufficientFunds))
}
