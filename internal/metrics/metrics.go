package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every metric exported by the scanner.
const Namespace = "scanner"

// SearchMetrics tracks arbitrage search activity.
type SearchMetrics struct {
	Edges    *prometheus.CounterVec
	Chains   prometheus.Counter
	Searches prometheus.Counter
	Duration prometheus.Histogram
}

func NewSearchMetrics(reg prometheus.Registerer) *SearchMetrics {
	factory := promauto.With(reg)
	return &SearchMetrics{
		Edges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "search",
			Name:      "edges_total",
			Help:      "Search edges by outcome (quoted or the reason they were skipped)",
		}, []string{"result"}),
		Chains: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "search",
			Name:      "chains_total",
			Help:      "Profitable chains accepted",
		}),
		Searches: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "search",
			Name:      "runs_total",
			Help:      "Completed searches",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search wall time in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}
}

func (m *SearchMetrics) Edge(result string) {
	if m == nil {
		return
	}
	m.Edges.WithLabelValues(result).Inc()
}

func (m *SearchMetrics) Chain() {
	if m == nil {
		return
	}
	m.Chains.Inc()
}

func (m *SearchMetrics) ObserveSearch(d time.Duration) {
	if m == nil {
		return
	}
	m.Searches.Inc()
	m.Duration.Observe(d.Seconds())
}

// RPCMetrics tracks account fetches against the RPC node.
type RPCMetrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

func NewRPCMetrics(reg prometheus.Registerer) *RPCMetrics {
	factory := promauto.With(reg)
	return &RPCMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "requests_total",
			Help:      "RPC requests by method and status",
		}, []string{"method", "status"}),
		Latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "rpc",
			Name:      "request_duration_seconds",
			Help:      "RPC request latency in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"method"}),
	}
}

func (m *RPCMetrics) Observe(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(method, status).Inc()
	m.Latency.WithLabelValues(method).Observe(d.Seconds())
}

// OpportunityMetrics tracks what the scan loop reports.
type OpportunityMetrics struct {
	Found      *prometheus.CounterVec
	BestProfit *prometheus.GaugeVec
}

func NewOpportunityMetrics(reg prometheus.Registerer) *OpportunityMetrics {
	factory := promauto.With(reg)
	return &OpportunityMetrics{
		Found: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "scan",
			Name:      "opportunities_total",
			Help:      "Opportunities reported per start asset",
		}, []string{"start"}),
		BestProfit: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "scan",
			Name:      "best_profit_bps",
			Help:      "Best profit in basis points from the latest round per start asset",
		}, []string{"start"}),
	}
}

func (m *OpportunityMetrics) Report(start string, count int, bestBps float64) {
	if m == nil {
		return
	}
	m.Found.WithLabelValues(start).Add(float64(count))
	m.BestProfit.WithLabelValues(start).Set(bestBps)
}
