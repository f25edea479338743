package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/escrow"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/payment"
	"github.com/ourzora/v3-sub003/registry"
	"github.com/ourzora/v3-sub003/royalty"
)

const (
	custodian = "auction-house"
	seller    = "seller"
	vault     = "seller-vault"
	bidder1   = "bidder-1"
	bidder2   = "bidder-2"
	protoFee  = "protocol-treasury"
)

var testAsset = core.Asset{Collection: "0xabc", TokenID: "1"}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	engine *Engine
	store  *registry.MemoryStore
	assets *escrow.Ledger
	bank   *payment.Bank
	source *royalty.StaticSource
	sink   *events.Recorder
	clock  *fakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  registry.NewMemoryStore(),
		assets: escrow.NewLedger(custodian),
		bank:   payment.NewBank(custodian, "wnative"),
		source: royalty.NewStaticSource(),
		sink:   &events.Recorder{},
		clock:  &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	f.engine = New(
		f.store, f.assets, f.bank,
		royalty.NewEngine(f.source, time.Hour),
		StaticFeeSource(core.Fee{Recipient: protoFee, Bps: 500}),
		WithClock(f.clock),
		WithSink(f.sink),
	)
	f.assets.Mint(testAsset, seller)
	f.assets.SetApproval(seller, custodian, true)
	return f
}

func defaultTerms() registry.Terms {
	return registry.Terms{
		FundsRecipient: vault,
		ReservePrice:   dec("1000000000000000000"),
		Duration:       24 * time.Hour,
		Currency:       payment.NativeCurrency,
	}
}

func (f *fixture) create(t *testing.T, terms registry.Terms) {
	t.Helper()
	assert.NoError(t, f.engine.CreateAuction(context.Background(), seller, testAsset, terms))
}

func (f *fixture) bid(t *testing.T, caller, amount string) BidResult {
	t.Helper()
	result, err := f.engine.CreateBid(context.Background(), caller, testAsset, dec(amount), dec(amount), "")
	assert.NoError(t, err)
	return result
}

func (f *fixture) balance(t *testing.T, holder, currency string) decimal.Decimal {
	t.Helper()
	balance, err := f.bank.BalanceOf(context.Background(), holder, currency)
	assert.NoError(t, err)
	return balance
}

// --- creation ---------------------------------------------------------------

func TestCreateAuction_RecordsTermsWithOwnerAsSeller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, record.Terms.Seller)
	check.Equal(t, vault, record.Terms.FundsRecipient)
	check.False(t, record.State.Started())

	// No escrow before the first bid.
	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, owner)

	check.Equal(t, events.TypeAuctionCreated, f.sink.Last().Type)
}

func TestCreateAuction_ApprovedOperatorMayList(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.assets.SetApproval(seller, "gallery", true)

	check.NoError(t, f.engine.CreateAuction(ctx, "gallery", testAsset, defaultTerms()))

	// Seller is the owner, not the operator who listed.
	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, record.Terms.Seller)
}

func TestCreateAuction_StrangerRejected(t *testing.T) {
	f := newFixture(t)
	err := f.engine.CreateAuction(context.Background(), "mallory", testAsset, defaultTerms())
	check.True(t, errors.Is(err, ErrNotOwnerOrOperator))
}

func TestCreateAuction_InvalidTerms(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*registry.Terms)
		want   error
	}{
		{"missing funds recipient", func(terms *registry.Terms) { terms.FundsRecipient = "" }, ErrInvalidFundsRecipient},
		{"zero duration", func(terms *registry.Terms) { terms.Duration = 0 }, ErrInvalidDuration},
		{"negative reserve", func(terms *registry.Terms) { terms.ReservePrice = dec("-1") }, core.ErrAmountOutOfRange},
		{"fractional reserve", func(terms *registry.Terms) { terms.ReservePrice = dec("1.5") }, core.ErrAmountOutOfRange},
		{"listing fee without recipient", func(terms *registry.Terms) {
			terms.ListingFee = &registry.ListingFee{Bps: 100}
		}, ErrInvalidFees},
		{"listing fee over 100%", func(terms *registry.Terms) {
			terms.ListingFee = &registry.ListingFee{Recipient: "platform", Bps: 10001}
		}, ErrInvalidFees},
		{"finder plus listing over 100%", func(terms *registry.Terms) {
			terms.ListingFee = &registry.ListingFee{Recipient: "platform", Bps: 6000}
			terms.FinderFee = &registry.FinderFee{Bps: 6000}
		}, ErrInvalidFees},
		{"token gate without currency", func(terms *registry.Terms) {
			terms.TokenGate = &registry.TokenGate{MinBalance: dec("1")}
		}, ErrInvalidFees},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			terms := defaultTerms()
			tt.mutate(&terms)
			err := f.engine.CreateAuction(context.Background(), seller, testAsset, terms)
			check.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestCreateAuction_ReplacesUnstartedAuction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	replacement := defaultTerms()
	replacement.ReservePrice = dec("5")
	check.NoError(t, f.engine.CreateAuction(ctx, seller, testAsset, replacement))

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, dec("5"), record.Terms.ReservePrice)
}

func TestCreateAuction_StartedAuctionRejectsReplacement(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")

	err := f.engine.CreateAuction(context.Background(), seller, testAsset, defaultTerms())
	check.True(t, errors.Is(err, ErrAuctionInProgress))
}

// failingStore simulates a store whose reads fail transiently.
type failingStore struct {
	registry.Store
	err error
}

func (s *failingStore) Get(context.Context, core.Asset) (registry.Record, error) {
	return registry.Record{}, s.err
}

func TestCreateAuction_StoreFailureAborts(t *testing.T) {
	// A failing existence check must abort creation, not overwrite
	// whatever record the failure hid.
	f := newFixture(t)
	storeDown := errors.New("connection refused")
	eng := New(
		&failingStore{err: storeDown}, f.assets, f.bank,
		royalty.NewEngine(f.source, time.Hour),
		StaticFeeSource(core.Fee{Recipient: protoFee, Bps: 500}),
		WithClock(f.clock),
		WithSink(f.sink),
	)

	err := eng.CreateAuction(context.Background(), seller, testAsset, defaultTerms())
	check.True(t, errors.Is(err, storeDown))
}

// --- reserve price ----------------------------------------------------------

func TestSetReservePrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	check.NoError(t, f.engine.SetReservePrice(ctx, seller, testAsset, dec("2000000000000000000")))
	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, dec("2000000000000000000"), record.Terms.ReservePrice)
	check.Equal(t, events.TypeAuctionReservePriceUpdated, f.sink.Last().Type)

	// Only the seller may reprice.
	err = f.engine.SetReservePrice(ctx, "mallory", testAsset, dec("1"))
	check.True(t, errors.Is(err, ErrNotSeller))
}

func TestSetReservePrice_RejectedOnceStarted(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")

	err := f.engine.SetReservePrice(context.Background(), seller, testAsset, dec("5"))
	check.True(t, errors.Is(err, ErrAuctionStarted))
}

// --- cancellation -----------------------------------------------------------

func TestCancelAuction_BySeller(t *testing.T) {
	// Scenario C: create, no bid, cancel. Records deleted, no transfers.
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	check.NoError(t, f.engine.CancelAuction(ctx, seller, testAsset))

	_, err := f.store.Get(ctx, testAsset)
	check.True(t, errors.Is(err, registry.ErrNotFound))
	check.Equal(t, events.TypeAuctionCanceled, f.sink.Last().Type)

	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, owner)
}

func TestCancelAuction_ByNewOwner(t *testing.T) {
	// The asset changed hands outside the auction; the new owner may void
	// the stale listing.
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.assets.Mint(testAsset, "new-owner")

	check.NoError(t, f.engine.CancelAuction(ctx, "new-owner", testAsset))
}

func TestCancelAuction_StrangerRejected(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())

	err := f.engine.CancelAuction(context.Background(), "mallory", testAsset)
	check.True(t, errors.Is(err, ErrNotSellerOrOwner))
}

func TestCancelAuction_RejectedOnceStarted(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")

	err := f.engine.CancelAuction(context.Background(), seller, testAsset)
	check.True(t, errors.Is(err, ErrAuctionStarted))
}

// --- bidding ----------------------------------------------------------------

func TestCreateBid_FirstBidEscrowsAndStartsClock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	result := f.bid(t, bidder1, "1000000000000000000")
	check.True(t, result.FirstBid)
	check.False(t, result.Extended)

	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, custodian, owner)

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, f.clock.now, record.State.FirstBidTime)
	check.Equal(t, dec("1000000000000000000"), record.State.HighestBid)
	check.Equal(t, bidder1, record.State.HighestBidder)

	check.Equal(t, dec("1000000000000000000"), f.balance(t, custodian, payment.NativeCurrency))

	event := f.sink.Last()
	check.Equal(t, events.TypeAuctionBid, event.Type)
	check.True(t, event.FirstBid)
}

func TestCreateBid_BelowReserveRejected(t *testing.T) {
	// Scenario B: bid below reserve leaves no trace.
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("999999999999999999"), dec("999999999999999999"), "")
	check.True(t, errors.Is(err, ErrReserveNotMet))

	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, owner)

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.False(t, record.State.Started())
	check.Equal(t, decimal.Zero, f.balance(t, custodian, payment.NativeCurrency))
}

func TestCreateBid_RevokedEscrowApprovalAbortsBid(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.assets.SetApproval(seller, custodian, false)

	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1000000000000000000"), dec("1000000000000000000"), "")
	check.True(t, errors.Is(err, escrow.ErrNotAuthorized))

	// No funds collected, auction still unstarted and cancelable.
	check.Equal(t, decimal.Zero, f.balance(t, custodian, payment.NativeCurrency))
	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.False(t, record.State.Started())
	check.NoError(t, f.engine.CancelAuction(ctx, seller, testAsset))
}

func TestCreateBid_FailedCollectionReturnsAssetToSeller(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	// Wrong attached value: escrow pull is undone.
	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1000000000000000000"), dec("1"), "")
	check.True(t, errors.Is(err, payment.ErrWrongAttachedValue))

	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, owner)

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.False(t, record.State.Started())
}

func TestCreateBid_MinimumIncrementEnforced(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")

	// 1.099… is below the 10% step over 1.0.
	_, err := f.engine.CreateBid(ctx, bidder2, testAsset, dec("1099999999999999999"), dec("1099999999999999999"), "")
	check.True(t, errors.Is(err, ErrBidTooLow))

	// Exactly highest + floor(highest/10) is accepted.
	result, err := f.engine.CreateBid(ctx, bidder2, testAsset, dec("1100000000000000000"), dec("1100000000000000000"), "")
	check.NoError(t, err)
	check.False(t, result.FirstBid)
}

func TestCreateBid_OutbidBidderRefunded(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")
	f.bid(t, bidder2, "1500000000000000000")

	check.Equal(t, dec("1000000000000000000"), f.balance(t, bidder1, payment.NativeCurrency))
	// Custody holds only the standing bid.
	check.Equal(t, dec("1500000000000000000"), f.balance(t, custodian, payment.NativeCurrency))
}

func TestCreateBid_HostileRefundRecipientCannotBlockBid(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bank.RejectNative(bidder1)
	f.bid(t, bidder1, "1000000000000000000")
	f.bid(t, bidder2, "1500000000000000000")

	// The refund fell back to a wrapped-native credit.
	check.Equal(t, decimal.Zero, f.balance(t, bidder1, payment.NativeCurrency))
	check.Equal(t, dec("1000000000000000000"), f.balance(t, bidder1, "wnative"))
}

func TestCreateBid_AfterExpiryRejected(t *testing.T) {
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")
	f.clock.Advance(24 * time.Hour)

	_, err := f.engine.CreateBid(context.Background(), bidder2, testAsset, dec("2000000000000000000"), dec("2000000000000000000"), "")
	check.True(t, errors.Is(err, ErrAuctionExpired))
}

func TestCreateBid_BeforeStartTimeRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	terms := defaultTerms()
	terms.StartTime = f.clock.now.Add(time.Hour)
	f.create(t, terms)

	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1000000000000000000"), dec("1000000000000000000"), "")
	check.True(t, errors.Is(err, ErrStartTimePending))

	f.clock.Advance(time.Hour)
	f.bid(t, bidder1, "1000000000000000000")
}

func TestCreateBid_UnknownAuction(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateBid(context.Background(), bidder1, testAsset, dec("1"), dec("1"), "")
	check.True(t, errors.Is(err, registry.ErrNotFound))
}

func TestCreateBid_TokenGate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	terms := defaultTerms()
	terms.TokenGate = &registry.TokenGate{Currency: "0xgate", MinBalance: dec("10")}
	f.create(t, terms)

	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1000000000000000000"), dec("1000000000000000000"), "")
	check.True(t, errors.Is(err, ErrTokenGateNotMet))

	f.bank.Credit(bidder1, "0xgate", dec("10"))
	f.bid(t, bidder1, "1000000000000000000")
}

func TestCreateBid_FungibleCurrency(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	terms := defaultTerms()
	terms.Currency = "0xtoken"
	f.create(t, terms)

	f.bank.Credit(bidder1, "0xtoken", dec("2000000000000000000"))

	// Without an allowance the pull fails and the asset goes back.
	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1000000000000000000"), decimal.Zero, "")
	check.True(t, errors.Is(err, payment.ErrInsufficientAllowance))
	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, seller, owner)

	f.bank.Approve(bidder1, custodian, "0xtoken", dec("2000000000000000000"))
	result, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1000000000000000000"), decimal.Zero, "")
	check.NoError(t, err)
	check.True(t, result.FirstBid)
	check.Equal(t, dec("1000000000000000000"), f.balance(t, custodian, "0xtoken"))
}

// --- auto-extension ---------------------------------------------------------

func TestCreateBid_ExtensionInsideBuffer(t *testing.T) {
	// Scenario D: a bid 5 minutes before expiry stretches the auction so
	// exactly 15 minutes remain from the bid's timestamp.
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")
	start := f.clock.now

	f.clock.Advance(24*time.Hour - 5*time.Minute)
	result := f.bid(t, bidder2, "1100000000000000000")
	check.True(t, result.Extended)

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, 24*time.Hour+10*time.Minute, record.Terms.Duration)
	check.Equal(t, f.clock.now.Add(TimeBuffer), record.State.FirstBidTime.Add(record.Terms.Duration))
	check.Equal(t, start, record.State.FirstBidTime)

	// A bid after the original end but before the new one still lands.
	f.clock.Advance(14 * time.Minute)
	result = f.bid(t, bidder1, "1210000000000000000")
	check.True(t, result.Extended)
}

func TestCreateBid_NoExtensionOutsideBuffer(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")

	f.clock.Advance(24*time.Hour - 15*time.Minute)
	result := f.bid(t, bidder2, "1100000000000000000")
	check.False(t, result.Extended)

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, 24*time.Hour, record.Terms.Duration)
}

func TestCreateBid_ShortAuctionFirstBidExtends(t *testing.T) {
	// A duration below the buffer is stretched by the first bid itself.
	ctx := context.Background()
	f := newFixture(t)
	terms := defaultTerms()
	terms.Duration = 5 * time.Minute
	f.create(t, terms)

	result := f.bid(t, bidder1, "1000000000000000000")
	check.True(t, result.FirstBid)
	check.True(t, result.Extended)

	record, err := f.store.Get(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, TimeBuffer, record.Terms.Duration)
}

// --- settlement -------------------------------------------------------------

func TestSettleAuction_EndToEnd(t *testing.T) {
	// Scenario A: bid 1.0, outbid 1.5 at +10h, settle at +25h.
	ctx := context.Background()
	f := newFixture(t)
	f.source.SetCollection(testAsset.Collection, []royalty.Share{{Recipient: "creator", Bps: 500}})
	f.create(t, defaultTerms())

	f.bid(t, bidder1, "1000000000000000000")
	f.clock.Advance(10 * time.Hour)
	f.bid(t, bidder2, "1500000000000000000")
	check.Equal(t, dec("1000000000000000000"), f.balance(t, bidder1, payment.NativeCurrency))

	f.clock.Advance(15 * time.Hour)
	settlement, err := f.engine.SettleAuction(ctx, testAsset)
	assert.NoError(t, err)
	check.Equal(t, bidder2, settlement.Buyer)
	check.Equal(t, seller, settlement.Seller)

	// Waterfall on 1.5: royalty 5% = 0.075, protocol 5% of the rest.
	check.Equal(t, dec("75000000000000000"), settlement.Waterfall.Royalties[0].Amount)
	check.Equal(t, dec("71250000000000000"), settlement.Waterfall.Protocol.Amount)
	check.Equal(t, dec("1353750000000000000"), settlement.Waterfall.Remainder)
	check.Equal(t, settlement.Waterfall.Gross, settlement.Waterfall.Remainder.Add(settlement.Waterfall.FeeTotal()))

	// Funds landed.
	check.Equal(t, dec("75000000000000000"), f.balance(t, "creator", payment.NativeCurrency))
	check.Equal(t, dec("71250000000000000"), f.balance(t, protoFee, payment.NativeCurrency))
	check.Equal(t, dec("1353750000000000000"), f.balance(t, vault, payment.NativeCurrency))
	check.Equal(t, decimal.Zero, f.balance(t, custodian, payment.NativeCurrency))

	// Asset released to the winner; record gone.
	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, bidder2, owner)
	_, err = f.store.Get(ctx, testAsset)
	check.True(t, errors.Is(err, registry.ErrNotFound))

	event := f.sink.Last()
	check.Equal(t, events.TypeAuctionEnded, event.Type)
	check.Equal(t, 3, len(event.Payouts))
	check.Equal(t, "seller", event.Payouts[len(event.Payouts)-1].Kind)
}

func TestSettleAuction_FinderAndListingFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	terms := defaultTerms()
	terms.ReservePrice = dec("10000")
	terms.FinderFee = &registry.FinderFee{Bps: 200}
	terms.ListingFee = &registry.ListingFee{Recipient: "platform", Bps: 100}
	f.create(t, terms)

	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("10000"), dec("10000"), "finder")
	assert.NoError(t, err)

	f.clock.Advance(25 * time.Hour)
	settlement, err := f.engine.SettleAuction(ctx, testAsset)
	assert.NoError(t, err)

	// protocol 5% of 10000 = 500, finder 2% of 9500 = 190,
	// listing 1% of 9310 = 93, remainder 9217.
	check.Equal(t, dec("500"), settlement.Waterfall.Protocol.Amount)
	check.Equal(t, dec("190"), settlement.Waterfall.Finder.Amount)
	check.Equal(t, "finder", settlement.Waterfall.Finder.Recipient)
	check.Equal(t, dec("93"), settlement.Waterfall.Listing.Amount)
	check.Equal(t, dec("9217"), settlement.Waterfall.Remainder)

	check.Equal(t, dec("190"), f.balance(t, "finder", payment.NativeCurrency))
	check.Equal(t, dec("93"), f.balance(t, "platform", payment.NativeCurrency))
}

func TestSettleAuction_HostileSellerRecipientGetsWrappedCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bank.RejectNative(vault)
	f.bid(t, bidder1, "1000000000000000000")

	f.clock.Advance(25 * time.Hour)
	_, err := f.engine.SettleAuction(ctx, testAsset)
	check.NoError(t, err)

	check.Equal(t, decimal.Zero, f.balance(t, vault, payment.NativeCurrency))
	check.Equal(t, dec("950000000000000000"), f.balance(t, vault, "wnative"))
}

func TestSettleAuction_Preconditions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.engine.SettleAuction(ctx, testAsset)
	check.True(t, errors.Is(err, registry.ErrNotFound))

	f.create(t, defaultTerms())
	_, err = f.engine.SettleAuction(ctx, testAsset)
	check.True(t, errors.Is(err, ErrAuctionNotStarted))

	f.bid(t, bidder1, "1000000000000000000")
	f.clock.Advance(23 * time.Hour)
	_, err = f.engine.SettleAuction(ctx, testAsset)
	check.True(t, errors.Is(err, ErrAuctionNotEnded))
}

func TestSettleAuction_SecondSettleFindsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")
	f.clock.Advance(25 * time.Hour)

	_, err := f.engine.SettleAuction(ctx, testAsset)
	check.NoError(t, err)

	_, err = f.engine.SettleAuction(ctx, testAsset)
	check.True(t, errors.Is(err, registry.ErrNotFound))
}

func TestSettleAuction_RoyaltyConfigOver100PercentAborts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.source.SetCollection(testAsset.Collection, []royalty.Share{
		{Recipient: "creator", Bps: 6000},
		{Recipient: "co-creator", Bps: 6000},
	})
	f.create(t, defaultTerms())
	f.bid(t, bidder1, "1000000000000000000")
	f.clock.Advance(25 * time.Hour)

	_, err := f.engine.SettleAuction(ctx, testAsset)
	check.True(t, errors.Is(err, core.ErrFeesExceedGross))

	// Nothing moved: custody still holds asset and funds.
	owner, err := f.assets.Owner(ctx, testAsset)
	check.NoError(t, err)
	check.Equal(t, custodian, owner)
	check.Equal(t, dec("1000000000000000000"), f.balance(t, custodian, payment.NativeCurrency))
}

// --- reentrancy -------------------------------------------------------------

// reentrantSink attempts a mutating call on the same asset from inside
// event emission, the way a callback-driven attacker would.
type reentrantSink struct {
	engine *Engine
	err    error
}

func (s *reentrantSink) Emit(event events.Event) {
	if event.Type == events.TypeAuctionBid {
		_, s.err = s.engine.CreateBid(context.Background(), "attacker", event.Asset, dec("9000000000000000000"), dec("9000000000000000000"), "")
	}
}

func TestReentrantBidRejected(t *testing.T) {
	f := newFixture(t)
	sink := &reentrantSink{engine: f.engine}
	f.engine.sink = sink
	f.create(t, defaultTerms())

	_, err := f.engine.CreateBid(context.Background(), bidder1, testAsset, dec("1000000000000000000"), dec("1000000000000000000"), "")
	check.NoError(t, err)
	check.True(t, errors.Is(sink.err, ErrReentrantCall))
}

func TestGuardReleasedAfterError(t *testing.T) {
	// A failed call must release the per-asset guard.
	ctx := context.Background()
	f := newFixture(t)
	f.create(t, defaultTerms())

	_, err := f.engine.CreateBid(ctx, bidder1, testAsset, dec("1"), dec("1"), "")
	check.True(t, errors.Is(err, ErrReserveNotMet))

	f.bid(t, bidder1, "1000000000000000000")
}
