package health

import (
	"context"

	"github.com/whispurrnet/overlay/orchestrator"
)

// MinConnectedPeers below which the peers check reports degraded rather
// than healthy. A node with zero peers isn't necessarily broken (it may
// just have booted), so this never reports unhealthy on its own.
const MinConnectedPeers = 1

// GossipQueueDegradedAt is the gossip-queue occupancy ratio at or above which the
// check reports degraded, signaling that propagation isn't keeping up with
// intake.
const GossipQueueDegradedAt = 0.8

// PeersCheck reports healthy when at least MinConnectedPeers peers are
// connected, degraded otherwise.
func PeersCheck(o *orchestrator.Orchestrator) Check {
	return func(ctx context.Context) (Status, map[string]interface{}, error) {
		stats := o.GetStats()
		details := map[string]interface{}{"connected_peers": stats.ConnectedPeers}
		if stats.ConnectedPeers < MinConnectedPeers {
			return StatusDegraded, details, nil
		}
		return StatusHealthy, details, nil
	}
}

// GossipQueueCheck reports the current gossip queue depth against its
// capacity, degraded once occupancy is at or above GossipQueueDegradedAt.
func GossipQueueCheck(o *orchestrator.Orchestrator) Check {
	return func(ctx context.Context) (Status, map[string]interface{}, error) {
		depth, capacity := o.QueueDepth()
		details := map[string]interface{}{"depth": depth, "capacity": capacity}
		if capacity > 0 && float64(depth)/float64(capacity) >= GossipQueueDegradedAt {
			return StatusDegraded, details, nil
		}
		return StatusHealthy, details, nil
	}
}

// UptimeCheck always reports healthy; it exists to surface uptime and
// pipeline efficiency in the health payload without gating readiness on
// them.
func UptimeCheck(o *orchestrator.Orchestrator) Check {
	return func(ctx context.Context) (Status, map[string]interface{}, error) {
		stats := o.GetStats()
		return StatusHealthy, map[string]interface{}{
			"uptime_ms":         stats.UptimeMS,
			"gossip_efficiency": stats.GossipEfficiency,
			"active_extensions": stats.ActiveExtensions,
		}, nil
	}
}

// RegisterDefaults registers the standard peers, gossip_queue, and uptime
// checks for o against c.
func RegisterDefaults(c *Checker, o *orchestrator.Orchestrator) {
	c.Register("peers", PeersCheck(o))
	c.Register("gossip_queue", GossipQueueCheck(o))
	c.Register("uptime", UptimeCheck(o))
}
