package state

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusChainHeight     prometheus.Gauge
	prometheusDifficulty      prometheus.Gauge
	prometheusBlocksMined     prometheus.Counter
	prometheusBlocksAccepted  prometheus.Counter
	prometheusChainsReplaced  prometheus.Counter
	prometheusRejected        *prometheus.CounterVec
	prometheusMempoolAccepted prometheus.Counter

	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusChainHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "chain_height",
			Help:      "Index of the latest block in the chain",
		},
	)
	prometheusDifficulty = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "difficulty",
			Help:      "Difficulty of the latest block in the chain",
		},
	)
	prometheusBlocksMined = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "blocks_mined",
			Help:      "Number of blocks mined by this node",
		},
	)
	prometheusBlocksAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "blocks_accepted",
			Help:      "Number of blocks appended to the chain",
		},
	)
	prometheusChainsReplaced = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "chains_replaced",
			Help:      "Number of times the chain was replaced by a longer one",
		},
	)
	prometheusRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "rejected",
			Help:      "Number of candidates rejected during validation",
		},
		[]string{
			"kind", // block, chain or tx
		},
	)
	prometheusMempoolAccepted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "utxochain",
			Subsystem: "state",
			Name:      "mempool_accepted",
			Help:      "Number of transactions added to the mempool",
		},
	)
}
