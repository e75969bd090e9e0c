package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	m.RecordCycle("501", "ok", 2*time.Second)
	m.RecordCandidate("501", "delivered")
	m.RecordCandidate("501", "delivered")
	m.RecordDedupHit("warm")
	m.RecordWalletScore(true)
	m.RecordWalletScore(false)
	m.RecordDelivery("primary", true, nil)
	m.RecordDelivery("secondary", false, errors.New("boom"))
	m.RecordSweep(map[string]int{"token": 3})
	m.SetPending(4)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cycles.WithLabelValues("501", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Candidates.WithLabelValues("501", "delivered")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DedupHits.WithLabelValues("warm")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WalletsScored.WithLabelValues("unscored")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("primary", "image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Deliveries.WithLabelValues("secondary", "failed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SweepRemoved.WithLabelValues("token")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.StorePending))
	assert.Greater(t, testutil.ToFloat64(m.LastSuccessfulCycle.WithLabelValues("501")), 0.0)
}

func TestMetrics_Observers(t *testing.T) {
	m := NewMetricsWith(prometheus.NewRegistry(), "test")

	up := m.UpstreamObserver()
	up("candles", 10*time.Millisecond, nil)
	up("candles", 10*time.Millisecond, errors.New("502"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamErrors.WithLabelValues("candles")))

	st := m.StoreObserver()
	st("token", "post", nil)
	st("token", "post", errors.New("flood"))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StoreOps.WithLabelValues("token", "post")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StoreErrors.WithLabelValues("token", "post")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordCycle("501", "ok", time.Second)
	m.RecordCandidate("501", "filtered")
	m.RecordDelivery("primary", false, nil)
	m.UpstreamObserver()("op", time.Second, nil)
	m.StoreObserver()("p", "op", nil)
}
