package connmgr

import (
	"crypto/rand"
	"time"

	"github.com/whispurrnet/overlay/protocol"
)

// obfuscationPayloadSize pads each cover-traffic frame to roughly the size
// of a typical Whisper payload, so a passive observer watching frame sizes
// on the wire can't distinguish idle cover traffic from real messages.
const obfuscationPayloadSize = 256

// obfuscationLoop is the single periodic task that services cover traffic
// when enabled. It sends a padded, discardable Ping to one connected peer
// per tick so the wire looks equally busy whether or not the node has
// anything real to say. Receivers need no special handling: handleIncoming
// already answers every Ping with a Pong regardless of payload contents.
func (m *Manager) obfuscationLoop() {
	defer m.wg.Done()

	interval := m.cfg.ObfuscationInterval()
	if interval <= 0 {
		interval = 45 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sendCoverTraffic()
		case <-m.stop:
			return
		}
	}
}

// sendCoverTraffic picks one connected peer and sends it a padded Ping.
// Failures are silently dropped: cover traffic carries no information, so
// there is nothing useful to report or retry.
func (m *Manager) sendCoverTraffic() {
	peer := m.randomConnectedPeer()
	if peer == nil {
		return
	}
	padding := make([]byte, obfuscationPayloadSize)
	if _, err := rand.Read(padding); err != nil {
		return
	}
	msg, err := protocol.Construct(protocol.KindPing, m.localID, padding, protocol.Options{TTL: pingTTLMS})
	if err != nil {
		return
	}
	_ = m.sendRaw(peer, msg)
}

// randomConnectedPeer returns an arbitrary directly-connected peer. Go's
// randomized map iteration order is enough variety for cover traffic; no
// peer list shuffle is needed.
func (m *Manager) randomConnectedPeer() *Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.peers {
		if p.State == StateConnected {
			return p
		}
	}
	return nil
}
