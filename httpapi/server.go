// Package httpapi exposes the auction engine over HTTP: a JSON API for
// auction lifecycle calls, a websocket event feed, and the metrics and
// health endpoints.
//
// Callers identify themselves with the X-Caller-Address header. The API
// performs no authentication beyond that; it trusts the deployment's edge
// to have verified the address.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/ourzora/v3-sub003/core"
	"github.com/ourzora/v3-sub003/engine"
	"github.com/ourzora/v3-sub003/escrow"
	"github.com/ourzora/v3-sub003/events"
	"github.com/ourzora/v3-sub003/metrics"
	"github.com/ourzora/v3-sub003/payment"
	"github.com/ourzora/v3-sub003/registry"
)

// CallerHeader carries the caller's address on every mutating request.
const CallerHeader = "X-Caller-Address"

// Handler serves the auction HTTP API.
type Handler struct {
	engine *engine.Engine
	store  registry.Store
	hub    *events.Hub
}

// NewHandler creates a Handler. hub may be nil, in which case the event
// feed endpoint reports unavailable.
func NewHandler(eng *engine.Engine, store registry.Store, hub *events.Hub) *Handler {
	return &Handler{engine: eng, store: store, hub: hub}
}

// Router builds the route table.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/v1/auctions", h.createAuction).Methods(http.MethodPost)
	r.HandleFunc("/v1/auctions/{collection}/{token}", h.getAuction).Methods(http.MethodGet)
	r.HandleFunc("/v1/auctions/{collection}/{token}", h.cancelAuction).Methods(http.MethodDelete)
	r.HandleFunc("/v1/auctions/{collection}/{token}/reserve", h.setReservePrice).Methods(http.MethodPut)
	r.HandleFunc("/v1/auctions/{collection}/{token}/bids", h.createBid).Methods(http.MethodPost)
	r.HandleFunc("/v1/auctions/{collection}/{token}/settle", h.settleAuction).Methods(http.MethodPost)

	r.HandleFunc("/v1/events", h.streamEvents).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	return r
}

// Server wraps the handler in an http.Server with sane timeouts.
func (h *Handler) Server(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

type feeTerms struct {
	Recipient string `json:"recipient,omitempty"`
	Bps       int64  `json:"bps"`
}

type gateTerms struct {
	Currency   string `json:"currency"`
	MinBalance string `json:"min_balance"`
}

type createAuctionRequest struct {
	Collection      string     `json:"collection"`
	TokenID         string     `json:"token_id"`
	FundsRecipient  string     `json:"funds_recipient"`
	ReservePrice    string     `json:"reserve_price"`
	DurationSeconds int64      `json:"duration_seconds"`
	StartTime       int64      `json:"start_time,omitempty"`
	Currency        string     `json:"currency,omitempty"`
	ListingFee      *feeTerms  `json:"listing_fee,omitempty"`
	FinderFee       *feeTerms  `json:"finder_fee,omitempty"`
	TokenGate       *gateTerms `json:"token_gate,omitempty"`
}

func (h *Handler) createAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(w, r)
	if !ok {
		return
	}

	var req createAuctionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if req.Collection == "" || req.TokenID == "" {
		writeError(w, http.StatusBadRequest, "collection and token_id are required")
		return
	}
	asset := core.Asset{Collection: req.Collection, TokenID: req.TokenID}

	reserve, err := decimal.NewFromString(req.ReservePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reserve_price")
		return
	}
	terms := registry.Terms{
		FundsRecipient: req.FundsRecipient,
		ReservePrice:   reserve,
		Duration:       time.Duration(req.DurationSeconds) * time.Second,
		Currency:       req.Currency,
	}
	if req.StartTime > 0 {
		terms.StartTime = time.Unix(req.StartTime, 0).UTC()
	}
	if req.ListingFee != nil {
		terms.ListingFee = &registry.ListingFee{Recipient: req.ListingFee.Recipient, Bps: req.ListingFee.Bps}
	}
	if req.FinderFee != nil {
		terms.FinderFee = &registry.FinderFee{Bps: req.FinderFee.Bps}
	}
	if req.TokenGate != nil {
		minBalance, err := decimal.NewFromString(req.TokenGate.MinBalance)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid token_gate.min_balance")
			return
		}
		terms.TokenGate = &registry.TokenGate{Currency: req.TokenGate.Currency, MinBalance: minBalance}
	}

	if err := h.engine.CreateAuction(r.Context(), caller, asset, terms); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"asset": asset.String()})
}

func (h *Handler) getAuction(w http.ResponseWriter, r *http.Request) {
	asset := assetFromVars(r)
	record, err := h.store.Get(r.Context(), asset)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events.NewSnapshot(record))
}

type setReserveRequest struct {
	ReservePrice string `json:"reserve_price"`
}

func (h *Handler) setReservePrice(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(w, r)
	if !ok {
		return
	}
	var req setReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	price, err := decimal.NewFromString(req.ReservePrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid reserve_price")
		return
	}
	if err := h.engine.SetReservePrice(r.Context(), caller, assetFromVars(r), price); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) cancelAuction(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(w, r)
	if !ok {
		return
	}
	if err := h.engine.CancelAuction(r.Context(), caller, assetFromVars(r)); err != nil {
		writeEngineError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type createBidRequest struct {
	Amount   string `json:"amount"`
	Attached string `json:"attached,omitempty"`
	Finder   string `json:"finder,omitempty"`
}

type createBidResponse struct {
	FirstBid bool `json:"first_bid"`
	Extended bool `json:"extended"`
}

func (h *Handler) createBid(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerAddress(w, r)
	if !ok {
		return
	}
	var req createBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}
	attached := decimal.Zero
	if req.Attached != "" {
		attached, err = decimal.NewFromString(req.Attached)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid attached")
			return
		}
	}

	result, err := h.engine.CreateBid(r.Context(), caller, assetFromVars(r), amount, attached, req.Finder)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createBidResponse{FirstBid: result.FirstBid, Extended: result.Extended})
}

type settlementResponse struct {
	Asset          string          `json:"asset"`
	Buyer          string          `json:"buyer"`
	Seller         string          `json:"seller"`
	FundsRecipient string          `json:"funds_recipient"`
	Gross          string          `json:"gross"`
	Remainder      string          `json:"remainder"`
	Payouts        []events.Payout `json:"payouts"`
}

func (h *Handler) settleAuction(w http.ResponseWriter, r *http.Request) {
	// Anyone may settle; no caller header required.
	settlement, err := h.engine.SettleAuction(r.Context(), assetFromVars(r))
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settlementResponse{
		Asset:          settlement.Asset.String(),
		Buyer:          settlement.Buyer,
		Seller:         settlement.Seller,
		FundsRecipient: settlement.FundsRecipient,
		Gross:          settlement.Waterfall.Gross.String(),
		Remainder:      settlement.Waterfall.Remainder.String(),
		Payouts:        events.SettlementPayouts(settlement.Waterfall, settlement.FundsRecipient),
	})
}

func assetFromVars(r *http.Request) core.Asset {
	vars := mux.Vars(r)
	return core.Asset{Collection: vars["collection"], TokenID: vars["token"]}
}

func callerAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	caller := r.Header.Get(CallerHeader)
	if caller == "" {
		writeError(w, http.StatusUnauthorized, "missing "+CallerHeader+" header")
		return "", false
	}
	return caller, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("ERROR: Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps engine errors onto HTTP statuses. Unrecognized
// errors are internal: they indicate a custody or storage fault, not a
// caller mistake.
func writeEngineError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrNotFound),
		errors.Is(err, escrow.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNotSeller),
		errors.Is(err, engine.ErrNotSellerOrOwner),
		errors.Is(err, engine.ErrNotOwnerOrOperator),
		errors.Is(err, escrow.ErrNotAuthorized),
		errors.Is(err, escrow.ErrNotOwner):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrAuctionInProgress),
		errors.Is(err, engine.ErrAuctionStarted),
		errors.Is(err, engine.ErrAuctionNotStarted),
		errors.Is(err, engine.ErrAuctionNotEnded),
		errors.Is(err, engine.ErrAuctionExpired),
		errors.Is(err, engine.ErrStartTimePending),
		errors.Is(err, engine.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, engine.ErrReserveNotMet),
		errors.Is(err, engine.ErrBidTooLow),
		errors.Is(err, engine.ErrTokenGateNotMet):
		return http.StatusUnprocessableEntity
	case errors.Is(err, payment.ErrInsufficientFunds),
		errors.Is(err, payment.ErrInsufficientAllowance):
		return http.StatusPaymentRequired
	case errors.Is(err, engine.ErrInvalidFundsRecipient),
		errors.Is(err, engine.ErrInvalidDuration),
		errors.Is(err, engine.ErrInvalidFees),
		errors.Is(err, payment.ErrWrongAttachedValue),
		errors.Is(err, core.ErrAmountOutOfRange),
		errors.Is(err, core.ErrInvalidBps):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
