// Package metrics exposes Prometheus instrumentation for the connection
// manager and gossip orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/whispurrnet/overlay/orchestrator"
)

// Registry is the collector registry the HTTP handler serves. A dedicated
// registry (rather than prometheus.DefaultRegisterer) keeps a second node
// in the same process from panicking on duplicate registration.
var Registry = prometheus.NewRegistry()

// Collector holds every gauge and counter the overlay exports, mirroring
// the shape of orchestrator.Stats so GetStats snapshots translate directly
// into Prometheus samples.
type Collector struct {
	messagesSent     prometheus.Counter
	messagesReceived prometheus.Counter
	connectedPeers   prometheus.Gauge
	averageLatency   prometheus.Gauge
	activeExtensions prometheus.Gauge
	gossipEfficiency prometheus.Gauge
	uptime           prometheus.Gauge

	peersConnectedTotal    prometheus.Counter
	peersDisconnectedTotal prometheus.Counter
	gossipDroppedTotal     prometheus.Counter
	handshakeFailures      prometheus.Counter

	lastSent     int64
	lastReceived int64
}

// NewCollector builds and registers every metric with Registry.
func NewCollector() *Collector {
	c := &Collector{
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_messages_sent_total",
			Help: "Total number of protocol messages sent by this node.",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_messages_received_total",
			Help: "Total number of protocol messages received and accepted past dedup.",
		}),
		connectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_connected_peers",
			Help: "Number of peers currently in a sending state.",
		}),
		averageLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_average_latency_ms",
			Help: "Average ping/pong round-trip latency across connected peers, in milliseconds.",
		}),
		activeExtensions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_active_extensions",
			Help: "Number of extension handlers registered with the orchestrator.",
		}),
		gossipEfficiency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_gossip_efficiency",
			Help: "Ratio of propagated to drained gossip-queue records.",
		}),
		uptime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "overlay_uptime_seconds",
			Help: "Seconds since the orchestrator started.",
		}),
		peersConnectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_peer_connected_total",
			Help: "Total number of connected events observed.",
		}),
		peersDisconnectedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_peer_disconnected_total",
			Help: "Total number of disconnected events observed.",
		}),
		gossipDroppedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_gossip_dropped_total",
			Help: "Total number of gossip records dropped for being at queue capacity.",
		}),
		handshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "overlay_handshake_failures_total",
			Help: "Total number of failed connection attempts (direct and relay exhausted).",
		}),
	}

	Registry.MustRegister(
		c.messagesSent,
		c.messagesReceived,
		c.connectedPeers,
		c.averageLatency,
		c.activeExtensions,
		c.gossipEfficiency,
		c.uptime,
		c.peersConnectedTotal,
		c.peersDisconnectedTotal,
		c.gossipDroppedTotal,
		c.handshakeFailures,
	)
	return c
}

// StatsSource is implemented by *orchestrator.Orchestrator.
type StatsSource interface {
	GetStats() orchestrator.Stats
}

// Observe pushes a point-in-time snapshot from src into the gauges.
// orchestrator.Stats reports lifetime cumulative totals, but a Prometheus
// Counter only supports Add, so the two message counters are tracked as
// the positive delta against the last observed snapshot.
func (c *Collector) Observe(src StatsSource) {
	stats := src.GetStats()
	c.connectedPeers.Set(float64(stats.ConnectedPeers))
	c.averageLatency.Set(stats.AverageLatencyMS)
	c.activeExtensions.Set(float64(stats.ActiveExtensions))
	c.gossipEfficiency.Set(stats.GossipEfficiency)
	c.uptime.Set(float64(stats.UptimeMS) / 1000)

	sentDelta := stats.MessagesSent - c.lastSent
	recvDelta := stats.MessagesReceived - c.lastReceived
	if sentDelta > 0 {
		c.messagesSent.Add(float64(sentDelta))
	}
	if recvDelta > 0 {
		c.messagesReceived.Add(float64(recvDelta))
	}
	c.lastSent = stats.MessagesSent
	c.lastReceived = stats.MessagesReceived
}

// RecordPeerConnected increments the lifetime connected-peer counter.
func (c *Collector) RecordPeerConnected() { c.peersConnectedTotal.Inc() }

// RecordPeerDisconnected increments the lifetime disconnected-peer counter.
func (c *Collector) RecordPeerDisconnected() { c.peersDisconnectedTotal.Inc() }

// RecordGossipDropped increments the dropped-gossip counter.
func (c *Collector) RecordGossipDropped() { c.gossipDroppedTotal.Inc() }

// RecordHandshakeFailure increments the handshake-failure counter.
func (c *Collector) RecordHandshakeFailure() { c.handshakeFailures.Inc() }

// PollEvery starts a goroutine calling Observe(src) on interval until stop
// is closed.
func (c *Collector) PollEvery(interval time.Duration, src StatsSource, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.Observe(src)
			case <-stop:
				return
			}
		}
	}()
}
