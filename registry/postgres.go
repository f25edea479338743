package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
)

// Schema creates the auctions table. NUMERIC(78,0) covers the full 256-bit
// amount range.
const Schema = `
CREATE TABLE IF NOT EXISTS auctions (
	collection            TEXT        NOT NULL,
	token_id              TEXT        NOT NULL,
	seller                TEXT        NOT NULL,
	funds_recipient       TEXT        NOT NULL,
	reserve_price         NUMERIC(78,0) NOT NULL,
	duration_ns           BIGINT      NOT NULL,
	start_time            TIMESTAMPTZ,
	currency              TEXT        NOT NULL,
	listing_fee_recipient TEXT,
	listing_fee_bps       BIGINT,
	finder_fee_bps        BIGINT,
	gate_currency         TEXT,
	gate_min_balance      NUMERIC(78,0),
	first_bid_time        TIMESTAMPTZ,
	highest_bid           NUMERIC(78,0) NOT NULL,
	highest_bidder        TEXT        NOT NULL,
	finder                TEXT        NOT NULL,
	PRIMARY KEY (collection, token_id)
);
`

// PostgresStore is a Store backed by PostgreSQL, for deployments where
// auction records must survive process restarts.
type PostgresStore struct {
	db *sqlx.DB
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store using the provided database handle.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects to the given DSN and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}
	return NewPostgresStore(db), nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type auctionRow struct {
	Collection          string         `db:"collection"`
	TokenID             string         `db:"token_id"`
	Seller              string         `db:"seller"`
	FundsRecipient      string         `db:"funds_recipient"`
	ReservePrice        string         `db:"reserve_price"`
	DurationNs          int64          `db:"duration_ns"`
	StartTime           sql.NullTime   `db:"start_time"`
	Currency            string         `db:"currency"`
	ListingFeeRecipient sql.NullString `db:"listing_fee_recipient"`
	ListingFeeBps       sql.NullInt64  `db:"listing_fee_bps"`
	FinderFeeBps        sql.NullInt64  `db:"finder_fee_bps"`
	GateCurrency        sql.NullString `db:"gate_currency"`
	GateMinBalance      sql.NullString `db:"gate_min_balance"`
	FirstBidTime        sql.NullTime   `db:"first_bid_time"`
	HighestBid          string         `db:"highest_bid"`
	HighestBidder       string         `db:"highest_bidder"`
	Finder              string         `db:"finder"`
}

func rowFromRecord(asset core.Asset, record Record) auctionRow {
	// Duration persists in nanoseconds: an auto-extended duration under
	// the real clock carries sub-second precision that must survive a
	// reload, or the end time would shift.
	row := auctionRow{
		Collection:     asset.Collection,
		TokenID:        asset.TokenID,
		Seller:         record.Terms.Seller,
		FundsRecipient: record.Terms.FundsRecipient,
		ReservePrice:   record.Terms.ReservePrice.String(),
		DurationNs:     int64(record.Terms.Duration),
		Currency:       record.Terms.Currency,
		HighestBid:     record.State.HighestBid.String(),
		HighestBidder:  record.State.HighestBidder,
		Finder:         record.State.Finder,
	}
	if !record.Terms.StartTime.IsZero() {
		row.StartTime = sql.NullTime{Time: record.Terms.StartTime, Valid: true}
	}
	if fee := record.Terms.ListingFee; fee != nil {
		row.ListingFeeRecipient = sql.NullString{String: fee.Recipient, Valid: true}
		row.ListingFeeBps = sql.NullInt64{Int64: fee.Bps, Valid: true}
	}
	if fee := record.Terms.FinderFee; fee != nil {
		row.FinderFeeBps = sql.NullInt64{Int64: fee.Bps, Valid: true}
	}
	if gate := record.Terms.TokenGate; gate != nil {
		row.GateCurrency = sql.NullString{String: gate.Currency, Valid: true}
		row.GateMinBalance = sql.NullString{String: gate.MinBalance.String(), Valid: true}
	}
	if !record.State.FirstBidTime.IsZero() {
		row.FirstBidTime = sql.NullTime{Time: record.State.FirstBidTime, Valid: true}
	}
	return row
}

func (r auctionRow) toRecord() (Record, error) {
	reserve, err := decimal.NewFromString(r.ReservePrice)
	if err != nil {
		return Record{}, fmt.Errorf("invalid stored reserve price %q: %w", r.ReservePrice, err)
	}
	highest, err := decimal.NewFromString(r.HighestBid)
	if err != nil {
		return Record{}, fmt.Errorf("invalid stored highest bid %q: %w", r.HighestBid, err)
	}

	record := Record{
		Terms: Terms{
			Seller:         r.Seller,
			FundsRecipient: r.FundsRecipient,
			ReservePrice:   reserve,
			Duration:       time.Duration(r.DurationNs),
			Currency:       r.Currency,
		},
		State: State{
			HighestBid:    highest,
			HighestBidder: r.HighestBidder,
			Finder:        r.Finder,
		},
	}
	if r.StartTime.Valid {
		record.Terms.StartTime = r.StartTime.Time.UTC()
	}
	if r.ListingFeeBps.Valid {
		record.Terms.ListingFee = &ListingFee{
			Recipient: r.ListingFeeRecipient.String,
			Bps:       r.ListingFeeBps.Int64,
		}
	}
	if r.FinderFeeBps.Valid {
		record.Terms.FinderFee = &FinderFee{Bps: r.FinderFeeBps.Int64}
	}
	if r.GateCurrency.Valid {
		minBalance, err := decimal.NewFromString(r.GateMinBalance.String)
		if err != nil {
			return Record{}, fmt.Errorf("invalid stored gate balance %q: %w", r.GateMinBalance.String, err)
		}
		record.Terms.TokenGate = &TokenGate{
			Currency:   r.GateCurrency.String,
			MinBalance: minBalance,
		}
	}
	if r.FirstBidTime.Valid {
		record.State.FirstBidTime = r.FirstBidTime.Time.UTC()
	}
	return record, nil
}

// Get returns the record for the asset, or ErrNotFound.
func (s *PostgresStore) Get(ctx context.Context, asset core.Asset) (Record, error) {
	var row auctionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT collection, token_id, seller, funds_recipient, reserve_price,
		       duration_ns, start_time, currency, listing_fee_recipient,
		       listing_fee_bps, finder_fee_bps, gate_currency, gate_min_balance,
		       first_bid_time, highest_bid, highest_bidder, finder
		FROM auctions WHERE collection = $1 AND token_id = $2
	`, asset.Collection, asset.TokenID)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%s: %w", asset, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("failed to load auction %s: %w", asset, err)
	}
	return row.toRecord()
}

// Put writes the record for the asset, replacing any existing one.
func (s *PostgresStore) Put(ctx context.Context, asset core.Asset, record Record) error {
	row := rowFromRecord(asset, record)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO auctions (
			collection, token_id, seller, funds_recipient, reserve_price,
			duration_ns, start_time, currency, listing_fee_recipient,
			listing_fee_bps, finder_fee_bps, gate_currency, gate_min_balance,
			first_bid_time, highest_bid, highest_bidder, finder
		) VALUES (
			:collection, :token_id, :seller, :funds_recipient, :reserve_price,
			:duration_ns, :start_time, :currency, :listing_fee_recipient,
			:listing_fee_bps, :finder_fee_bps, :gate_currency, :gate_min_balance,
			:first_bid_time, :highest_bid, :highest_bidder, :finder
		)
		ON CONFLICT (collection, token_id) DO UPDATE SET
			seller = EXCLUDED.seller,
			funds_recipient = EXCLUDED.funds_recipient,
			reserve_price = EXCLUDED.reserve_price,
			duration_ns = EXCLUDED.duration_ns,
			start_time = EXCLUDED.start_time,
			currency = EXCLUDED.currency,
			listing_fee_recipient = EXCLUDED.listing_fee_recipient,
			listing_fee_bps = EXCLUDED.listing_fee_bps,
			finder_fee_bps = EXCLUDED.finder_fee_bps,
			gate_currency = EXCLUDED.gate_currency,
			gate_min_balance = EXCLUDED.gate_min_balance,
			first_bid_time = EXCLUDED.first_bid_time,
			highest_bid = EXCLUDED.highest_bid,
			highest_bidder = EXCLUDED.highest_bidder,
			finder = EXCLUDED.finder
	`, row)
	if err != nil {
		return fmt.Errorf("failed to store auction %s: %w", asset, err)
	}
	return nil
}

// Delete removes the record for the asset.
func (s *PostgresStore) Delete(ctx context.Context, asset core.Asset) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auctions WHERE collection = $1 AND token_id = $2`,
		asset.Collection, asset.TokenID)
	if err != nil {
		return fmt.Errorf("failed to delete auction %s: %w", asset, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete auction %s: %w", asset, err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", asset, ErrNotFound)
	}
	return nil
}
