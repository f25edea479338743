package escrow

import (
	"context"
	"errors"
	"testing"

	"github.com/peterldowns/testy/check"

	"github.com/ourzora/v3-sub003/core"
)

var testAsset = core.Asset{Collection: "0xabc", TokenID: "1"}

func TestLedger_PullIntoEscrowRequiresApproval(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("module")
	ledger.Mint(testAsset, "seller")

	// No approval yet: pull must fail and ownership must not change.
	err := ledger.Transfer(ctx, testAsset, "seller", ledger.Custodian())
	check.True(t, errors.Is(err, ErrNotAuthorized))

	owner, err := ledger.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, "seller", owner)

	ledger.SetApproval("seller", "module", true)
	check.NoError(t, ledger.Transfer(ctx, testAsset, "seller", ledger.Custodian()))

	owner, err = ledger.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, "module", owner)
}

func TestLedger_ReleaseFromCustodyNeedsNoApproval(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("module")
	ledger.Mint(testAsset, "module")

	check.NoError(t, ledger.Transfer(ctx, testAsset, "module", "winner"))

	owner, err := ledger.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, "winner", owner)
}

func TestLedger_TransferFromNonOwnerFails(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("module")
	ledger.Mint(testAsset, "seller")
	ledger.SetApproval("mallory", "module", true)

	err := ledger.Transfer(ctx, testAsset, "mallory", "module")
	check.True(t, errors.Is(err, ErrNotOwner))
}

func TestLedger_RevokedApprovalBlocksTransfer(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("module")
	ledger.Mint(testAsset, "seller")
	ledger.SetApproval("seller", "module", true)
	ledger.SetApproval("seller", "module", false)

	err := ledger.Transfer(ctx, testAsset, "seller", "module")
	check.True(t, errors.Is(err, ErrNotAuthorized))
}

func TestLedger_UnknownAsset(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("module")

	_, err := ledger.Owner(ctx, testAsset)
	check.True(t, errors.Is(err, ErrUnknownAsset))

	err = ledger.Transfer(ctx, testAsset, "seller", "module")
	check.True(t, errors.Is(err, ErrUnknownAsset))
}

func TestLedger_IsApproved(t *testing.T) {
	ctx := context.Background()
	ledger := NewLedger("module")

	approved, err := ledger.IsApproved(ctx, "seller", "operator")
	check.NoError(t, err)
	check.False(t, approved)

	ledger.SetApproval("seller", "operator", true)
	approved, err = ledger.IsApproved(ctx, "seller", "operator")
	check.NoError(t, err)
	check.True(t, approved)
}
