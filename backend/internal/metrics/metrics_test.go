package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Observe("create_follow", time.Now(), nil)
	m.Observe("create_follow", time.Now(), errors.New("duplicate"))
	m.Observe("create_follow", time.Now(), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.operations.WithLabelValues("create_follow", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("create_follow", OutcomeError)))
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.CascadeDeleted("connections", 3)
	m.CascadeDeleted("connections", 0)
	m.SweepRemoved("follows", 2)

	assert.Equal(t, 3.0, testutil.ToFloat64(m.cascadeDeleted.WithLabelValues("connections")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweepRemoved.WithLabelValues("follows")))
}

func TestMetrics_Registered(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.FeedItems("subscribed", 4)
	m.Observe("list_freets", time.Now(), nil)

	n, err := testutil.GatherAndCount(reg, "channelfeed_feed_items", "channelfeed_operations_total")
	assert.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("x", time.Now(), nil)
		m.CascadeDeleted("x", 1)
		m.SweepRemoved("x", 1)
		m.FeedItems("x", 1)
	})
}
