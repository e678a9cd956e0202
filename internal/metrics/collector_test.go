package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whispurrnet/overlay/orchestrator"
)

type fakeStatsSource struct {
	stats orchestrator.Stats
}

func (f fakeStatsSource) GetStats() orchestrator.Stats { return f.stats }

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestCollector_ObserveSetsGauges(t *testing.T) {
	c := &Collector{
		messagesSent:     prometheus.NewCounter(prometheus.CounterOpts{Name: "t_sent"}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{Name: "t_recv"}),
		connectedPeers:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_peers"}),
		averageLatency:   prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_latency"}),
		activeExtensions: prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_ext"}),
		gossipEfficiency: prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_eff"}),
		uptime:           prometheus.NewGauge(prometheus.GaugeOpts{Name: "t_uptime"}),
	}

	src := fakeStatsSource{stats: orchestrator.Stats{
		ConnectedPeers:   3,
		MessagesSent:     5,
		MessagesReceived: 2,
		AverageLatencyMS: 12.5,
		UptimeMS:         4000,
		ActiveExtensions: 1,
		GossipEfficiency: 0.75,
	}}
	c.Observe(src)

	assert.Equal(t, 3.0, gaugeValue(t, c.connectedPeers))
	assert.Equal(t, 12.5, gaugeValue(t, c.averageLatency))
	assert.Equal(t, 1.0, gaugeValue(t, c.activeExtensions))
	assert.Equal(t, 0.75, gaugeValue(t, c.gossipEfficiency))
	assert.Equal(t, 4.0, gaugeValue(t, c.uptime))
	assert.Equal(t, 5.0, counterValue(t, c.messagesSent))
	assert.Equal(t, 2.0, counterValue(t, c.messagesReceived))

	src.stats.MessagesSent = 8
	src.stats.MessagesReceived = 3
	c.Observe(src)
	assert.Equal(t, 8.0, counterValue(t, c.messagesSent))
	assert.Equal(t, 3.0, counterValue(t, c.messagesReceived))
}

func TestNewCollector_RegistersWithoutPanicking(t *testing.T) {
	assert.NotPanics(t, func() {
		Registry = prometheus.NewRegistry()
		NewCollector()
	})
}
