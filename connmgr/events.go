package connmgr

import "github.com/whispurrnet/overlay/protocol"

// EventKind discriminates the manager's typed event stream.
type EventKind string

const (
	EventConnected    EventKind = "connected"
	EventDisconnected EventKind = "disconnected"
	EventMessage      EventKind = "message"
	EventError        EventKind = "error"
)

// Event is delivered synchronously with respect to the transport event
// that triggered it, so the orchestrator observes peer and message
// lifecycle in the order the transport actually produced it.
type Event struct {
	Kind    EventKind
	Peer    *Peer
	Message *protocol.Message
	PeerID  string
	Reason  string
	Err     error
}
