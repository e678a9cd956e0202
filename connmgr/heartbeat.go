package connmgr

import (
	"time"

	"github.com/whispurrnet/overlay/protocol"
)

// pingTTLMS is the short TTL attached to heartbeat Pings, distinct from
// the default message TTL applied to application traffic.
const pingTTLMS = 10_000

// heartbeatLoop sends a Ping to peer every heartbeat interval while it
// remains directly connected. A failed send transitions the peer to Error
// with reason "Heartbeat failed". The implicit heartbeat timeout (no
// traffic, including Pong, between two ticks) is enforced here: readLoop
// refreshes LastSeen on every frame, and a peer whose LastSeen predates the
// previous tick is failed with reason "Heartbeat timeout".
//
// Relayed peers are excluded: a relay-routed Ping would be answered by the
// relay's liveness, not the peer's, so it can't detect a peer that's gone
// dark behind a still-healthy relay.
func (m *Manager) heartbeatLoop(peer *Peer) {
	defer m.wg.Done()

	interval := m.cfg.HeartbeatInterval()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var prevTick time.Time
	for {
		select {
		case now := <-ticker.C:
			m.mu.RLock()
			_, known := m.peers[peer.NodeID]
			state := peer.State
			lastSeen := peer.LastSeen
			m.mu.RUnlock()
			if !known || state != StateConnected {
				return
			}
			if !prevTick.IsZero() && lastSeen.Before(prevTick) {
				m.failPeer(peer, "Heartbeat timeout")
				return
			}
			prevTick = now

			ping, err := protocol.Construct(protocol.KindPing, m.localID, nil, protocol.Options{TTL: pingTTLMS})
			if err != nil {
				continue
			}
			if sendErr := m.sendRaw(peer, ping); sendErr != nil {
				m.failPeer(peer, "Heartbeat failed")
				return
			}
		case <-m.stop:
			return
		}
	}
}
