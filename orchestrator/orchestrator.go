package orchestrator

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/whispurrnet/overlay/config"
	"github.com/whispurrnet/overlay/connmgr"
	"github.com/whispurrnet/overlay/internal/logger"
	"github.com/whispurrnet/overlay/protocol"
)

// fanout is the number of peers a propagated broadcast is sent to per
// gossip tick.
const fanout = 3

// IntentMatcher decides whether a Resonance record should be dispatched to
// extensions. It is the single overridable seam the gossip pipeline calls
// through, so richer matchers (hierarchical, vector-similarity) can replace
// the default without touching the pipeline itself.
type IntentMatcher func(msg *protocol.Message) bool

// defaultIntentMatcher accepts any Resonance whose strength exceeds 0.5.
func defaultIntentMatcher(msg *protocol.Message) bool {
	return msg.Strength != nil && *msg.Strength > 0.5
}

// nowMS is overridden in tests that need to pin expiry checks.
var nowMS = func() int64 { return time.Now().UnixMilli() }

// Orchestrator is the gossip/resonance core sitting above the connection
// manager. It owns the dedup record, the gossip queue, and the extension
// registry; the connection manager owns everything transport-related.
type Orchestrator struct {
	localID string
	manager *connmgr.Manager
	cfg     config.GossipConfig
	matcher IntentMatcher

	registry *extensionRegistry
	dedup    *dedupTable
	queue    *gossipQueue

	messagesSent     int64
	messagesReceived int64
	gossipEnqueued   int64
	gossipPropagated int64
	startedAt        time.Time

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewOrchestrator constructs an Orchestrator bound to manager. A nil
// matcher falls back to defaultIntentMatcher.
func NewOrchestrator(localID string, manager *connmgr.Manager, cfg config.GossipConfig, matcher IntentMatcher) *Orchestrator {
	if matcher == nil {
		matcher = defaultIntentMatcher
	}
	return &Orchestrator{
		localID:   localID,
		manager:   manager,
		cfg:       cfg,
		matcher:   matcher,
		registry:  newExtensionRegistry(),
		dedup:     newDedupTable(),
		queue:     newGossipQueue(cfg.MaxConcurrentGossip * 20),
		startedAt: time.Now(),
		stop:      make(chan struct{}),
	}
}

// Start launches the incoming-message pipeline and the periodic gossip
// propagation tick.
func (o *Orchestrator) Start() {
	o.wg.Add(2)
	go o.pipelineLoop()
	go o.gossipLoop()
}

// Shutdown stops both background tasks and runs Cleanup on every
// registered extension, logging (never propagating) cleanup failures.
func (o *Orchestrator) Shutdown() {
	o.stopOnce.Do(func() {
		close(o.stop)
		o.wg.Wait()
		for _, ext := range o.registry.all() {
			if err := ext.Cleanup(); err != nil {
				logger.Warn("orchestrator: extension cleanup failed",
					logger.String("extension", ext.ID()), logger.Error(err))
			}
		}
	})
}

// Whisper builds a Whisper record addressed to peerID and sends it via the
// connection manager, incrementing messages_sent on success.
func (o *Orchestrator) Whisper(peerID string, content []byte, intent string) bool {
	if intent == "" {
		intent = "default"
	}
	msg, err := protocol.Construct(protocol.KindWhisper, o.localID, content, protocol.Options{TargetID: peerID, Intent: intent})
	if err != nil {
		return false
	}
	if !o.manager.Send(peerID, msg) {
		return false
	}
	atomic.AddInt64(&o.messagesSent, 1)
	return true
}

// Broadcast builds a Broadcast record, enqueues it for propagation, sends
// it immediately to every currently connected peer, and returns the count
// of peers that accepted the immediate send.
func (o *Orchestrator) Broadcast(content []byte, intent string, maxHops int) int {
	if intent == "" {
		intent = "default"
	}
	if maxHops <= 0 {
		maxHops = o.cfg.MaxHops
	}
	msg, err := protocol.Construct(protocol.KindBroadcast, o.localID, content, protocol.Options{
		Intent:  intent,
		MaxHops: maxHops,
		TTL:     o.cfg.MessageTTLMS,
	})
	if err != nil {
		return 0
	}
	o.queue.push(msg)
	accepted := o.manager.BroadcastToPeers(msg)
	atomic.AddInt64(&o.messagesSent, int64(accepted))
	return accepted
}

// Resonate builds a Resonance record and sends it to every connected peer,
// returning the accepted count.
func (o *Orchestrator) Resonate(intent string, strength float64) int {
	if intent == "" {
		intent = "default"
	}
	msg, err := protocol.Construct(protocol.KindResonance, o.localID, nil, protocol.Options{Intent: intent, Strength: strength})
	if err != nil {
		return 0
	}
	accepted := o.manager.BroadcastToPeers(msg)
	atomic.AddInt64(&o.messagesSent, int64(accepted))
	return accepted
}

// RegisterExtension adds ext to the registry and runs its Initialize hook.
// Re-registering an existing id is a caller error.
func (o *Orchestrator) RegisterExtension(ext Extension) error {
	if err := o.registry.register(ext); err != nil {
		return err
	}
	return ext.Initialize(o)
}

// UnregisterExtension removes ext and runs its Cleanup hook.
func (o *Orchestrator) UnregisterExtension(id string) error {
	ext := o.lookupExtension(id)
	if err := o.registry.unregister(id); err != nil {
		return err
	}
	if ext != nil {
		if err := ext.Cleanup(); err != nil {
			logger.Warn("orchestrator: extension cleanup failed", logger.String("extension", id), logger.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) lookupExtension(id string) Extension {
	for _, ext := range o.registry.all() {
		if ext.ID() == id {
			return ext
		}
	}
	return nil
}

// QueueDepth reports the gossip queue's current occupancy and capacity,
// for health reporting.
func (o *Orchestrator) QueueDepth() (depth, capacity int) {
	return o.queue.depthAndCapacity()
}

// GetStats returns a point-in-time snapshot of pipeline and peer state.
func (o *Orchestrator) GetStats() Stats {
	peers := o.manager.ConnectedPeers()
	var latencySum time.Duration
	for _, p := range peers {
		latencySum += p.Latency
	}
	avgLatency := 0.0
	if len(peers) > 0 {
		avgLatency = float64(latencySum.Milliseconds()) / float64(len(peers))
	}

	enqueued := atomic.LoadInt64(&o.gossipEnqueued)
	propagated := atomic.LoadInt64(&o.gossipPropagated)
	efficiency := 0.0
	if enqueued > 0 {
		efficiency = float64(propagated) / float64(enqueued)
	}

	return Stats{
		ConnectedPeers:   len(peers),
		MessagesSent:     atomic.LoadInt64(&o.messagesSent),
		MessagesReceived: atomic.LoadInt64(&o.messagesReceived),
		AverageLatencyMS: avgLatency,
		UptimeMS:         time.Since(o.startedAt).Milliseconds(),
		ActiveExtensions: o.registry.count(),
		GossipEfficiency: efficiency,
	}
}

// pipelineLoop is the single task that drains the connection manager's
// event stream and runs the incoming-message pipeline.
func (o *Orchestrator) pipelineLoop() {
	defer o.wg.Done()
	events := o.manager.Events()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			o.handleEvent(ev)
		case <-o.stop:
			return
		}
	}
}

func (o *Orchestrator) handleEvent(ev connmgr.Event) {
	if ev.Kind != connmgr.EventMessage {
		return
	}
	o.handleMessage(ev.Message, ev.Peer)
}

// handleMessage runs the incoming-message pipeline: structural validation,
// dedup, then kind-specific dispatch. There is no separate "message
// received" event stream; callers observe effects through GetStats and
// extension dispatch instead.
func (o *Orchestrator) handleMessage(msg *protocol.Message, peer *connmgr.Peer) {
	result := protocol.Validate(msg, nowMS())
	if !result.Valid {
		return
	}
	if o.dedup.seenBefore(msg.Sender, msg.Nonce) {
		return
	}
	o.dedup.sweep(o.cfg.MessageTTL())

	atomic.AddInt64(&o.messagesReceived, 1)

	switch msg.Kind {
	case protocol.KindBroadcast:
		o.handleBroadcast(msg)
	case protocol.KindResonance:
		if o.matcher(msg) {
			o.registry.dispatch(msg, peer)
		}
	case protocol.KindPing, protocol.KindPong:
		// already handled by the connection manager.
	default:
		o.registry.dispatch(msg, peer)
	}
}

// handleBroadcast stops forwarding once the hop cap is reached or the
// local node has already relayed this record, otherwise marks it seen and
// enqueues it for the next propagation tick.
func (o *Orchestrator) handleBroadcast(msg *protocol.Message) {
	if msg.MaxHops == nil || msg.CurrentHops == nil {
		return
	}
	if *msg.CurrentHops >= *msg.MaxHops {
		return
	}
	for _, seen := range msg.SeenBy {
		if seen == o.localID {
			return
		}
	}

	msg.SeenBy = append(msg.SeenBy, o.localID)
	hops := *msg.CurrentHops + 1
	msg.CurrentHops = &hops
	o.queue.push(msg)
}

// gossipLoop drains the gossip queue every configured interval and
// propagates each surviving record to a random fan-out of connected peers.
func (o *Orchestrator) gossipLoop() {
	defer o.wg.Done()

	interval := o.cfg.Interval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.propagateTick()
		case <-o.stop:
			return
		}
	}
}

func (o *Orchestrator) propagateTick() {
	if !o.cfg.EnableAutoPropagation {
		return
	}

	batch := o.queue.drain(o.cfg.MaxConcurrentGossip)
	now := nowMS()

	for _, msg := range batch {
		atomic.AddInt64(&o.gossipEnqueued, 1)
		if msg.IsExpired(now) {
			continue
		}

		targets := randomFanout(o.manager.ConnectedPeers(), fanout)
		sent := false
		for _, peer := range targets {
			clone := *msg
			if o.manager.Send(peer.NodeID, &clone) {
				sent = true
			}
		}
		if sent {
			atomic.AddInt64(&o.gossipPropagated, 1)
		}
	}
}

// randomFanout returns up to n peers picked uniformly at random from
// peers, without replacement. Ordering among concurrent broadcasts is not
// guaranteed.
func randomFanout(peers []*connmgr.Peer, n int) []*connmgr.Peer {
	if len(peers) <= n {
		return peers
	}
	shuffled := make([]*connmgr.Peer, len(peers))
	copy(shuffled, peers)
	rand.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	return shuffled[:n]
}
