package connmgr

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/whispurrnet/overlay/config"
	"github.com/whispurrnet/overlay/identity"
	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/protocol"
	"github.com/whispurrnet/overlay/transport"
)

// sentinel errors surfaced to callers and recorded in disconnected events.
var (
	ErrInvalidID            = logger.NewMeshError(logger.ErrCodeInvalidInput, "invalid peer id", nil)
	ErrTransportUnavailable = logger.NewMeshError(logger.ErrCodeTransportError, "neither direct nor relay transport succeeded", nil)
)

// Manager owns per-peer transport handles and connection state. It is the
// only package-level type that may touch a transport.Channel directly;
// the orchestrator calls back into it to send and never sees a channel.
type Manager struct {
	localID  string
	keys     *identity.KeyPair
	cfg      config.ConnectionConfig
	maxPeers int

	mu    sync.RWMutex
	peers map[string]*Peer

	events chan Event

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewManager constructs a Manager bound to the local node's key pair and
// connection configuration. The event channel is buffered so a slow
// consumer cannot stall transport read loops indefinitely.
func NewManager(localID string, keys *identity.KeyPair, cfg config.ConnectionConfig, maxPeers int) *Manager {
	m := &Manager{
		localID:  localID,
		keys:     keys,
		cfg:      cfg,
		maxPeers: maxPeers,
		peers:    make(map[string]*Peer),
		events:   make(chan Event, 256),
		stop:     make(chan struct{}),
	}
	if cfg.EnableObfuscation {
		m.wg.Add(1)
		go m.obfuscationLoop()
	}
	return m
}

// Events returns the manager's typed event stream.
func (m *Manager) Events() <-chan Event {
	return m.events
}

func (m *Manager) emit(ev Event) {
	select {
	case m.events <- ev:
	case <-m.stop:
	}
}

// ConnectToPeer establishes a connection to peerID. If the peer is already
// known and in a sending state this is a no-op that reports success.
// Otherwise it attempts the direct transport first, falls back to the
// configured relay servers in order, and transitions to Error (emitting
// disconnected) if every attempt fails.
func (m *Manager) ConnectToPeer(ctx context.Context, peerID string, peerPublicKey []byte) bool {
	if !identity.ValidateNodeID(peerID) {
		m.emit(Event{Kind: EventError, PeerID: peerID, Err: ErrInvalidID})
		return false
	}

	m.mu.Lock()
	if existing, ok := m.peers[peerID]; ok && existing.State.CanSend() {
		m.mu.Unlock()
		return true
	}
	peer := newPeer(peerID, peerPublicKey)
	peer.State = StateConnecting
	m.evictIfAboveCapLocked()
	m.peers[peerID] = peer
	m.mu.Unlock()

	attemptCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout())
	defer cancel()

	if ch, err := transport.DialDirect(attemptCtx, m.localID, peerID, m.cfg.RTCConfig.STUNServers); err == nil {
		if err := m.sendHello(attemptCtx, ch); err != nil {
			_ = ch.Close()
		} else {
			m.onOpen(peer, ch, StateConnected)
			return true
		}
	}

	for _, relayURL := range m.cfg.RelayServers {
		ch, err := transport.DialRelay(attemptCtx, relayURL, m.localID, peerID)
		if err != nil {
			continue
		}
		m.onOpen(peer, ch, StateRelaying)
		return true
	}

	m.mu.Lock()
	peer.State = StateError
	delete(m.peers, peerID)
	m.mu.Unlock()
	m.emit(Event{Kind: EventDisconnected, PeerID: peerID, Reason: ErrTransportUnavailable.Error()})
	return false
}

// AcceptPeer registers an already-open inbound channel as a connected
// peer without performing any outbound dial. It is the entry point a
// direct-transport listener or relay server uses to hand an accepted
// connection to the manager, mirroring ConnectToPeer's bookkeeping
// (connection cap, read loop, heartbeats, connected event) for the
// passive side of a peer-to-peer link.
func (m *Manager) AcceptPeer(peerID string, peerPublicKey []byte, ch transport.Channel) *Peer {
	if !identity.ValidateNodeID(peerID) {
		m.emit(Event{Kind: EventError, PeerID: peerID, Err: ErrInvalidID})
		return nil
	}

	m.mu.Lock()
	peer := newPeer(peerID, peerPublicKey)
	m.evictIfAboveCapLocked()
	m.peers[peerID] = peer
	m.mu.Unlock()

	state := StateConnected
	if ch.Variant() == transport.VariantRelay {
		state = StateRelaying
	}
	m.onOpen(peer, ch, state)
	return peer
}

// sendHello sends a clear-text Hello frame identifying this node and its
// public key over a freshly dialed channel, before it is registered as a
// peer. The direct transport carries no identity of its own (dialing is
// keyed on the node id string alone), so the listening side learns who
// just connected from this first frame rather than from the transport.
func (m *Manager) sendHello(ctx context.Context, ch transport.Channel) error {
	hello, err := protocol.Construct(protocol.KindHello, m.localID, nil, protocol.Options{
		Fields: map[string]any{"public_key": hex.EncodeToString(m.keys.PublicBytes())},
	})
	if err != nil {
		return err
	}
	data, err := protocol.Serialize(hello)
	if err != nil {
		return err
	}
	return ch.Send(ctx, data)
}

// AcceptDirectLoop accepts inbound direct dials from acceptor until ctx is
// done, reading each one's Hello handshake and adopting it as a connected
// peer. Runs until ctx is canceled; callers typically run it in its own
// goroutine for the lifetime of the node.
func (m *Manager) AcceptDirectLoop(ctx context.Context, acceptor *transport.DirectAcceptor) {
	for {
		ch, err := acceptor.Accept(ctx)
		if err != nil {
			return
		}
		go m.completeInboundHandshake(ch)
	}
}

// completeInboundHandshake reads the single expected Hello frame off a
// freshly accepted channel and, if well-formed, hands it to AcceptPeer.
// Any failure (timeout, bad frame, wrong kind) closes the channel without
// registering a peer.
func (m *Manager) completeInboundHandshake(ch transport.Channel) {
	helloCtx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout())
	defer cancel()

	frame, err := ch.Recv(helloCtx)
	if err != nil {
		_ = ch.Close()
		return
	}
	msg, err := protocol.Deserialize(frame)
	if err != nil || msg.Kind != protocol.KindHello {
		logger.Warn("connmgr: inbound handshake did not start with hello")
		_ = ch.Close()
		return
	}
	pubHex, _ := msg.Fields["public_key"].(string)
	pub, err := hex.DecodeString(pubHex)
	if err != nil {
		logger.GetDefaultLogger().WithPeer(msg.Sender).Warn("connmgr: inbound hello had unparseable public key")
		_ = ch.Close()
		return
	}

	m.AcceptPeer(msg.Sender, pub, ch)
}

// onOpen transitions peer into state, wires its channel, starts the
// per-peer read loop and heartbeat loop, and emits a connected event.
func (m *Manager) onOpen(peer *Peer, ch transport.Channel, state State) {
	m.mu.Lock()
	peer.channel = ch
	peer.Variant = ch.Variant()
	peer.State = state
	peer.LastSeen = time.Now()
	m.mu.Unlock()

	m.wg.Add(2)
	go m.readLoop(peer)
	go m.heartbeatLoop(peer)

	m.emit(Event{Kind: EventConnected, Peer: peer})
}

// readLoop is the single task per peer that handles incoming bytes. Having
// exactly one reader per peer gives FIFO ordering of events from that peer
// without any extra sequencing machinery.
func (m *Manager) readLoop(peer *Peer) {
	defer m.wg.Done()
	for {
		frame, err := peer.channel.Recv(context.Background())
		if err != nil {
			m.failPeer(peer, fmt.Sprintf("read failed: %v", err))
			return
		}
		m.handleIncoming(peer, frame)
	}
}

// handleIncoming decodes, decrypts, and dispatches a single inbound frame.
// Ping is answered synchronously here, inline with readLoop, so the Pong
// reply is ordered ahead of any later message the same peer sends.
func (m *Manager) handleIncoming(peer *Peer, frame []byte) {
	msg, err := protocol.Deserialize(frame)
	if err != nil {
		logger.GetDefaultLogger().WithPeer(peer.NodeID).Warn("connmgr: drop undecodable frame", logger.Error(err))
		return
	}

	if msg.Kind != protocol.KindPing && msg.Kind != protocol.KindPong && msg.Kind != protocol.KindHello {
		if err := m.decryptPayload(peer, msg); err != nil {
			logger.GetDefaultLogger().WithPeer(peer.NodeID).Warn("connmgr: drop undecryptable message", logger.Error(err))
			return
		}
	}

	m.mu.Lock()
	peer.LastSeen = time.Now()
	m.mu.Unlock()

	switch msg.Kind {
	case protocol.KindPing:
		echo := []byte(strconv.FormatInt(msg.Timestamp, 10))
		pong, err := protocol.Construct(protocol.KindPong, m.localID, echo, protocol.Options{})
		if err == nil {
			_ = m.sendRaw(peer, pong)
		}
		return
	case protocol.KindPong:
		echoed, err := strconv.ParseInt(string(msg.Payload), 10, 64)
		if err != nil {
			return
		}
		m.mu.Lock()
		peer.Latency = time.Since(time.UnixMilli(echoed))
		peer.Quality.LatencyMS = peer.Latency.Milliseconds()
		m.mu.Unlock()
		return
	}

	m.emit(Event{Kind: EventMessage, Peer: peer, Message: msg})
}

func (m *Manager) failPeer(peer *Peer, reason string) {
	m.mu.Lock()
	if _, ok := m.peers[peer.NodeID]; !ok {
		m.mu.Unlock()
		return
	}
	peer.State = StateError
	delete(m.peers, peer.NodeID)
	m.mu.Unlock()

	if peer.channel != nil {
		_ = peer.channel.Close()
	}
	m.emit(Event{Kind: EventDisconnected, PeerID: peer.NodeID, Reason: reason})
}

// Send encrypts and delivers msg to peerID, requiring a sending state.
func (m *Manager) Send(peerID string, msg *protocol.Message) bool {
	m.mu.RLock()
	peer, ok := m.peers[peerID]
	m.mu.RUnlock()
	if !ok || !peer.State.CanSend() {
		return false
	}
	return m.sendRaw(peer, msg) == nil
}

func (m *Manager) sendRaw(peer *Peer, msg *protocol.Message) error {
	if msg.Kind != protocol.KindPing && msg.Kind != protocol.KindPong && msg.Kind != protocol.KindHello {
		if err := m.encryptPayload(peer, msg); err != nil {
			return err
		}
	}
	data, err := protocol.Serialize(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout())
	defer cancel()
	if err := peer.channel.Send(ctx, data); err != nil {
		return err
	}
	return nil
}

// BroadcastToPeers sends msg to every peer currently in a sending state,
// returning the count that accepted it.
func (m *Manager) BroadcastToPeers(msg *protocol.Message) int {
	m.mu.RLock()
	targets := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.State.CanSend() {
			targets = append(targets, p)
		}
	}
	m.mu.RUnlock()

	accepted := 0
	for _, p := range targets {
		clone := *msg
		if m.sendRaw(p, &clone) == nil {
			accepted++
		}
	}
	return accepted
}

// Disconnect closes the peer's transport (best-effort), emits
// disconnected, and drops the peer record.
func (m *Manager) Disconnect(peerID string) {
	m.mu.Lock()
	peer, ok := m.peers[peerID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.peers, peerID)
	m.mu.Unlock()

	if peer.channel != nil {
		_ = peer.channel.Close()
	}
	m.emit(Event{Kind: EventDisconnected, PeerID: peerID, Reason: "disconnect requested"})
}

// ConnectedPeers returns a snapshot of peers currently in a sending state.
func (m *Manager) ConnectedPeers() []*Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Peer, 0, len(m.peers))
	for _, p := range m.peers {
		if p.State.CanSend() {
			out = append(out, p)
		}
	}
	return out
}

// evictIfAboveCapLocked evicts the peer with the smallest LastSeen when
// adding one more peer would exceed maxPeers. Caller must hold m.mu.
func (m *Manager) evictIfAboveCapLocked() {
	if m.maxPeers <= 0 || len(m.peers) < m.maxPeers {
		return
	}
	var oldestID string
	var oldest time.Time
	for id, p := range m.peers {
		if oldestID == "" || p.LastSeen.Before(oldest) {
			oldestID = id
			oldest = p.LastSeen
		}
	}
	if oldestID == "" {
		return
	}
	evicted := m.peers[oldestID]
	delete(m.peers, oldestID)
	if evicted.channel != nil {
		_ = evicted.channel.Close()
	}
	go m.emit(Event{Kind: EventDisconnected, PeerID: oldestID, Reason: "evicted: connection cap reached"})
}

// Shutdown cancels all heartbeats, closes all transports, and clears
// state. Safe to call more than once.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.stop)
		m.mu.Lock()
		peers := make([]*Peer, 0, len(m.peers))
		for _, p := range m.peers {
			peers = append(peers, p)
		}
		m.peers = make(map[string]*Peer)
		m.mu.Unlock()

		for _, p := range peers {
			if p.channel != nil {
				_ = p.channel.Close()
			}
		}
		m.wg.Wait()
		close(m.events)
	})
}
