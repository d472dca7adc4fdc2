package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSearchMetrics(t *testing.T) {
	m := NewSearchMetrics(prometheus.NewRegistry())
	assert.NotNil(t, m)

	m.Edge("quoted")
	m.Edge("quoted")
	m.Edge("no_liquidity")
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Edges.WithLabelValues("quoted")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Edges.WithLabelValues("no_liquidity")))

	m.Chain()
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Chains))

	m.ObserveSearch(25 * time.Millisecond)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Searches))
}

func TestRPCMetrics(t *testing.T) {
	m := NewRPCMetrics(prometheus.NewRegistry())

	m.Observe("getAccountInfo", "ok", time.Millisecond)
	m.Observe("getAccountInfo", "error", time.Millisecond)
	m.Observe("getAccountInfo", "ok", time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues("getAccountInfo", "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Requests.WithLabelValues("getAccountInfo", "error")))
}

func TestOpportunityMetrics(t *testing.T) {
	m := NewOpportunityMetrics(prometheus.NewRegistry())

	m.Report("So11111111111111111111111111111111111111112", 3, 12.5)
	assert.Equal(t, float64(3), testutil.ToFloat64(m.Found.WithLabelValues("So11111111111111111111111111111111111111112")))
	assert.Equal(t, 12.5, testutil.ToFloat64(m.BestProfit.WithLabelValues("So11111111111111111111111111111111111111112")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var search *SearchMetrics
	var rpc *RPCMetrics
	var opp *OpportunityMetrics

	assert.NotPanics(t, func() {
		search.Edge("quoted")
		search.Chain()
		search.ObserveSearch(time.Second)
		rpc.Observe("getSlot", "ok", time.Second)
		opp.Report("x", 1, 1)
	})
}
