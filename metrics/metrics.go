// Package metrics exposes Prometheus collectors for the settlement engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the engine's Prometheus collectors.
var Registry = prometheus.NewRegistry()

var (
	AuctionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auctions",
			Name:      "created_total",
			Help:      "Total number of auctions created.",
		},
	)

	AuctionsCanceled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auctions",
			Name:      "canceled_total",
			Help:      "Total number of auctions canceled before a first bid.",
		},
	)

	AuctionsSettled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auctions",
			Name:      "settled_total",
			Help:      "Total number of auctions settled.",
		},
	)

	BidsAccepted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auctions",
			Name:      "bids_accepted_total",
			Help:      "Total number of accepted bids.",
		},
		[]string{"first", "extended"},
	)

	BidsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "auctions",
			Name:      "bids_rejected_total",
			Help:      "Total number of rejected bids.",
		},
	)

	SettlementPayouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "auctions",
			Name:      "settlement_payouts_total",
			Help:      "Total number of settlement disbursements by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		AuctionsCreated,
		AuctionsCanceled,
		AuctionsSettled,
		BidsAccepted,
		BidsRejected,
		SettlementPayouts,
	)
}

// Handler serves the registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
