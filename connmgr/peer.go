// Package connmgr owns per-peer connection state: the state machine, key
// agreement and encryption envelope, heartbeats, connection-cap eviction,
// and the typed event stream the orchestrator consumes. It is the only
// package that touches transport handles directly.
package connmgr

import (
	"time"

	"github.com/whispurrnet/overlay/protocol"
	"github.com/whispurrnet/overlay/transport"
)

// State is a peer's position in the per-peer connection state machine
// described for the connection manager: Disconnected -> Connecting ->
// Connected|Relaying, with Error terminal and the record dropped on entry.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateRelaying     State = "relaying"
	StateError        State = "error"
)

// CanSend reports whether messages may be sent or received while a peer is
// in this state — true only for Connected and Relaying.
func (s State) CanSend() bool {
	return s == StateConnected || s == StateRelaying
}

// Quality is the per-peer link quality triple tracked from heartbeat
// round trips.
type Quality struct {
	LatencyMS         int64
	RelativeBandwidth float64
	Reliability       float64
}

// Peer is the record held per known node: identity, state, transport
// handle, liveness, and the set of message kinds the peer has advertised
// support for. It is mutated only by the manager's own event handlers.
type Peer struct {
	NodeID        string
	State         State
	Variant       transport.Variant
	PublicKey     []byte
	LastSeen      time.Time
	LastPing      time.Time
	Latency       time.Duration
	Quality       Quality
	SupportedKind map[protocol.Kind]bool

	channel      transport.Channel
	sharedSecret []byte
}

func newPeer(nodeID string, publicKey []byte) *Peer {
	return &Peer{
		NodeID:        nodeID,
		State:         StateDisconnected,
		PublicKey:     publicKey,
		LastSeen:      time.Now(),
		SupportedKind: make(map[protocol.Kind]bool),
	}
}
