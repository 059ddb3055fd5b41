package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MarketMetrics aggregates the Prometheus collectors for the settlement
// engines. Counters are fed by the node's event emitter rather than by the
// engines themselves, keeping the engines free of observability concerns.
type MarketMetrics struct {
	settlements          *prometheus.CounterVec
	bidsAccepted         prometheus.Counter
	refunds              prometheus.Counter
	custodyDeposits      prometheus.Counter
	custodyReleases      prometheus.Counter
	emergencyWithdrawals *prometheus.CounterVec
}

var (
	marketOnce     sync.Once
	marketRegistry *MarketMetrics
)

// Market returns the process-wide marketplace metrics, registering the
// collectors on first use.
func Market() *MarketMetrics {
	marketOnce.Do(func() {
		marketRegistry = &MarketMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "market_settlements_total",
				Help: "Count of settled orders by kind (sale, auction, buyout).",
			}, []string{"kind"}),
			bidsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bids_accepted_total",
				Help: "Count of accepted auction bids.",
			}),
			refunds: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "market_bid_refunds_total",
				Help: "Count of displaced reserve-clearing bidders refunded.",
			}),
			custodyDeposits: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_custody_deposits_total",
				Help: "Count of assets deposited into the vault.",
			}),
			custodyReleases: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_custody_releases_total",
				Help: "Count of assets released from the vault.",
			}),
			emergencyWithdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_emergency_withdrawals_total",
				Help: "Count of self-service withdrawals while paused, by kind.",
			}, []string{"kind"}),
		}
		prometheus.MustRegister(
			marketRegistry.settlements,
			marketRegistry.bidsAccepted,
			marketRegistry.refunds,
			marketRegistry.custodyDeposits,
			marketRegistry.custodyReleases,
			marketRegistry.emergencyWithdrawals,
		)
	})
	return marketRegistry
}

// ObserveSettlement records a settled order of the given kind.
func (m *MarketMetrics) ObserveSettlement(kind string) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(kind).Inc()
}

// ObserveBid records an accepted bid.
func (m *MarketMetrics) ObserveBid() {
	if m == nil {
		return
	}
	m.bidsAccepted.Inc()
}

// ObserveRefund records a displaced-bidder refund.
func (m *MarketMetrics) ObserveRefund() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

// ObserveDeposit records a custody deposit.
func (m *MarketMetrics) ObserveDeposit() {
	if m == nil {
		return
	}
	m.custodyDeposits.Inc()
}

// ObserveRelease records a custody release.
func (m *MarketMetrics) ObserveRelease() {
	if m == nil {
		return
	}
	m.custodyReleases.Inc()
}

// ObserveEmergencyWithdrawal records a self-service withdrawal by kind
// ("asset" or "currency").
func (m *MarketMetrics) ObserveEmergencyWithdrawal(kind string) {
	if m == nil {
		return
	}
	m.emergencyWithdrawals.WithLabelValues(kind).Inc()
}
