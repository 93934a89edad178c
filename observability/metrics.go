package observability

import (
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type settlementMetrics struct {
	profitDistributed *prometheus.CounterVec
	lossDistributed   prometheus.Counter
	lossShortfall     prometheus.Counter
	lossRecovered     prometheus.Counter
	paymentsApplied   *prometheus.CounterVec
	drawdowns         *prometheus.CounterVec
	epochCloses       prometheus.Counter
	redemptionShares  *prometheus.CounterVec
	redemptionAmount  *prometheus.CounterVec
	operationLatency  *prometheus.HistogramVec
	operationErrors   *prometheus.CounterVec
}

var (
	settlementOnce     sync.Once
	settlementRegistry *settlementMetrics
)

// Settlement returns the lazily-initialised metrics registry for the
// settlement engines.
func Settlement() *settlementMetrics {
	settlementOnce.Do(func() {
		settlementRegistry = &settlementMetrics{
			profitDistributed: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "pool",
				Name:      "profit_distributed_total",
				Help:      "Profit distributed through the waterfall segmented by destination.",
			}, []string{"destination"}),
			lossDistributed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "pool",
				Name:      "loss_distributed_total",
				Help:      "Losses absorbed by covers and tranches.",
			}),
			lossShortfall: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "pool",
				Name:      "loss_shortfall_total",
				Help:      "Losses exceeding total pool capital, reported but unabsorbed.",
			}),
			lossRecovered: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "pool",
				Name:      "loss_recovered_total",
				Help:      "Recovered funds credited back against recorded losses.",
			}),
			paymentsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "credit",
				Name:      "payments_applied_total",
				Help:      "Borrower payment volume segmented by credit variant.",
			}, []string{"kind"}),
			drawdowns: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "credit",
				Name:      "drawdowns_total",
				Help:      "Drawdown volume segmented by credit variant.",
			}, []string{"kind"}),
			epochCloses: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "epoch",
				Name:      "closes_total",
				Help:      "Epoch close operations completed.",
			}),
			redemptionShares: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "epoch",
				Name:      "redemption_shares_processed_total",
				Help:      "Redemption shares settled at epoch close segmented by tranche.",
			}, []string{"tranche"}),
			redemptionAmount: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "epoch",
				Name:      "redemption_amount_processed_total",
				Help:      "Redemption value settled at epoch close segmented by tranche.",
			}, []string{"tranche"}),
			operationLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "tranchepool",
				Subsystem: "gateway",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for gateway handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"route", "outcome"}),
			operationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "tranchepool",
				Subsystem: "gateway",
				Name:      "errors_total",
				Help:      "Gateway errors segmented by route and status code.",
			}, []string{"route", "status"}),
		}
		prometheus.MustRegister(
			settlementRegistry.profitDistributed,
			settlementRegistry.lossDistributed,
			settlementRegistry.lossShortfall,
			settlementRegistry.lossRecovered,
			settlementRegistry.paymentsApplied,
			settlementRegistry.drawdowns,
			settlementRegistry.epochCloses,
			settlementRegistry.redemptionShares,
			settlementRegistry.redemptionAmount,
			settlementRegistry.operationLatency,
			settlementRegistry.operationErrors,
		)
	})
	return settlementRegistry
}

// amountFloat converts a big integer amount into a float64 counter delta.
// Precision loss past 2^53 is acceptable for monitoring.
func amountFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}

// ObserveProfit records profit distributed to one destination bucket.
func (m *settlementMetrics) ObserveProfit(destination string, amount *big.Int) {
	m.profitDistributed.WithLabelValues(destination).Add(amountFloat(amount))
}

// ObserveLoss records an absorbed loss and any unabsorbed shortfall.
func (m *settlementMetrics) ObserveLoss(absorbed, shortfall *big.Int) {
	m.lossDistributed.Add(amountFloat(absorbed))
	if shortfall != nil && shortfall.Sign() > 0 {
		m.lossShortfall.Add(amountFloat(shortfall))
	}
}

// ObserveRecovery records recovered funds.
func (m *settlementMetrics) ObserveRecovery(amount *big.Int) {
	m.lossRecovered.Add(amountFloat(amount))
}

// ObservePayment records an applied borrower payment.
func (m *settlementMetrics) ObservePayment(kind string, amount *big.Int) {
	m.paymentsApplied.WithLabelValues(kind).Add(amountFloat(amount))
}

// ObserveDrawdown records a borrower drawdown.
func (m *settlementMetrics) ObserveDrawdown(kind string, amount *big.Int) {
	m.drawdowns.WithLabelValues(kind).Add(amountFloat(amount))
}

// ObserveEpochClose records a completed close and its per-tranche volumes.
func (m *settlementMetrics) ObserveEpochClose(tranche string, shares, amount *big.Int) {
	m.epochCloses.Inc()
	m.redemptionShares.WithLabelValues(tranche).Add(amountFloat(shares))
	m.redemptionAmount.WithLabelValues(tranche).Add(amountFloat(amount))
}

// ObserveRequest records a gateway handler invocation.
func (m *settlementMetrics) ObserveRequest(route, outcome string, duration time.Duration) {
	m.operationLatency.WithLabelValues(route, outcome).Observe(duration.Seconds())
}

// ObserveError records a gateway handler failure.
func (m *settlementMetrics) ObserveError(route, status string) {
	m.operationErrors.WithLabelValues(route, status).Inc()
}
